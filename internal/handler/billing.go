package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/billing"
)

const maxWebhookBytes = 65536

var locales = map[string]bool{"en": true, "et": true, "ru": true}

type BillingHandler struct {
	billing *billing.Service
	logger  *slog.Logger
}

func NewBillingHandler(svc *billing.Service, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: svc, logger: logger.With("component", "billing_handler")}
}

type checkoutRequest struct {
	Locale string `json:"locale"`
}

// Checkout starts paying for a list. The body is optional.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, h.logger, r, err)
			return
		}
	}
	if !locales[req.Locale] {
		req.Locale = "en"
	}

	owner, _ := auth.FromContext(r.Context())
	res, err := h.billing.StartCheckout(r.Context(), owner.ID, owner.Email, r.PathValue("id"), req.Locale)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type webhookResponse struct {
	Received bool                  `json:"received"`
	Result   billing.WebhookResult `json:"result"`
}

// StripeWebhook applies a provider delivery. Processing failures answer 500
// so the provider redelivers.
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "read body")
		return
	}

	result, err := h.billing.ProcessWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Result: result})
}
