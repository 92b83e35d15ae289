package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlist/internal/billing"
	billingstripe "github.com/dukerupert/giftlist/internal/billing/stripe"
	"github.com/dukerupert/giftlist/internal/slug"
	"github.com/dukerupert/giftlist/internal/store"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{slug.ErrInvalid, http.StatusBadRequest, "invalid_slug"},
	{slug.ErrReserved, http.StatusBadRequest, "reserved_slug"},
	{store.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{store.ErrSlugTaken, http.StatusConflict, "slug_taken"},
	{store.ErrItemUnavailable, http.StatusConflict, "item_unavailable"},
	{store.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{store.ErrListExpired, http.StatusGone, "list_expired"},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{store.ErrForbidden, http.StatusForbidden, "forbidden"},
	{billing.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{billing.ErrBillingUnavailable, http.StatusServiceUnavailable, "billing_unavailable"},
	{billingstripe.ErrCheckoutURLMissing, http.StatusBadGateway, "checkout_url_missing"},
}

// errorStatus maps a domain error to its HTTP status and stable code.
func errorStatus(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// respondError writes err using the mapping table. Unmapped errors are
// logged and their text is not sent to the client.
func respondError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON", store.ErrInvalidInput)
	}
	return nil
}
