package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/billing"
	billingstripe "github.com/dukerupert/giftlist/internal/billing/stripe"
	"github.com/dukerupert/giftlist/internal/slug"
	"github.com/dukerupert/giftlist/internal/store"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: title required", store.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{fmt.Errorf("%w: %w", store.ErrInvalidInput, auth.ErrPasswordTooShort), http.StatusBadRequest, "invalid_input"},
		{slug.ErrInvalid, http.StatusBadRequest, "invalid_slug"},
		{slug.ErrReserved, http.StatusBadRequest, "reserved_slug"},
		{store.ErrSlugTaken, http.StatusConflict, "slug_taken"},
		{store.ErrItemUnavailable, http.StatusConflict, "item_unavailable"},
		{store.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{store.ErrListExpired, http.StatusGone, "list_expired"},
		{store.ErrNotFound, http.StatusNotFound, "not_found"},
		{store.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: bad header", billing.ErrInvalidSignature), http.StatusBadRequest, "invalid_signature"},
		{billing.ErrBillingUnavailable, http.StatusServiceUnavailable, "billing_unavailable"},
		{billingstripe.ErrCheckoutURLMissing, http.StatusBadGateway, "checkout_url_missing"},
		{billing.ErrMissingMetadata, http.StatusInternalServerError, "internal"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("errorStatus(%v) = %d %q, want %d %q", tt.err, status, code, tt.status, tt.code)
		}
	}
}

func TestReservationResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "reserved"},
		{store.ErrItemUnavailable, "unavailable"},
		{store.ErrListExpired, "expired"},
		{fmt.Errorf("reserve: %w", store.ErrNotFound), "not_found"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := reservationResult(tt.err); got != tt.want {
			t.Errorf("reservationResult(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
