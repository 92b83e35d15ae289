// Package billing starts checkouts and grants paid access to lists,
// idempotently per payment provider event.
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/giftlist/internal/access"
	billingstore "github.com/dukerupert/giftlist/internal/billing/store"
	billingstripe "github.com/dukerupert/giftlist/internal/billing/stripe"
	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/metrics"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
	"github.com/google/uuid"
)

var (
	ErrBillingUnavailable = errors.New("billing unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMissingMetadata    = errors.New("checkout session missing list metadata")
)

// Provider is the payment provider surface the service needs.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req billingstripe.CheckoutRequest) (*billingstripe.CheckoutSession, error)
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// Mailer sends the post-purchase receipt.
type Mailer interface {
	SendPassReceipt(ctx context.Context, toEmail, listTitle, listID string, until time.Time) error
}

type Config struct {
	PaidAccessDays int
	ManualFallback bool
}

type Service struct {
	db             *sql.DB
	lists          *store.ListStore
	subscriptions  *billingstore.SubscriptionStore
	payments       *billingstore.PaymentStore
	sessions       *billingstore.CheckoutSessionStore
	events         *billingstore.WebhookEventStore
	provider       Provider
	mailer         Mailer
	paidAccessDays int
	manualFallback bool
	now            func() time.Time
	logger         *slog.Logger
}

// NewService wires the billing service. provider and mailer may be nil.
func NewService(db *sql.DB, lists *store.ListStore, provider Provider, mailer Mailer, cfg Config, now func() time.Time, logger *slog.Logger) *Service {
	if cfg.PaidAccessDays <= 0 {
		cfg.PaidAccessDays = access.DefaultPaidAccessDays
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:             db,
		lists:          lists,
		subscriptions:  billingstore.NewSubscriptionStore(db),
		payments:       billingstore.NewPaymentStore(db),
		sessions:       billingstore.NewCheckoutSessionStore(db),
		events:         billingstore.NewWebhookEventStore(db),
		provider:       provider,
		mailer:         mailer,
		paidAccessDays: cfg.PaidAccessDays,
		manualFallback: cfg.ManualFallback,
		now:            now,
		logger:         logger,
	}
}

type CheckoutResult struct {
	URL           string `json:"url,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	AlreadyActive bool   `json:"already_active,omitempty"`
	Manual        bool   `json:"manual,omitempty"`
}

// StartCheckout begins paying for a list. A list that is already active
// short-circuits without creating a session.
func (s *Service) StartCheckout(ctx context.Context, ownerID, ownerEmail, listID, locale string) (*CheckoutResult, error) {
	l, err := s.lists.GetOwned(ctx, ownerID, listID)
	if err != nil {
		return nil, err
	}
	if l.AccessStatus(s.now()) == access.StatusActive {
		return &CheckoutResult{AlreadyActive: true}, nil
	}

	switch {
	case s.provider != nil:
		sess, err := s.provider.CreateCheckoutSession(ctx, billingstripe.CheckoutRequest{
			ListID:        listID,
			OwnerID:       ownerID,
			Locale:        locale,
			CustomerEmail: ownerEmail,
		})
		if err != nil {
			return nil, err
		}
		err = s.sessions.Create(ctx, model.CheckoutSession{
			ID:        sess.ID,
			ListID:    listID,
			OwnerID:   ownerID,
			Provider:  model.ProviderStripe,
			Locale:    locale,
			URL:       sess.URL,
			CreatedAt: s.now(),
		})
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil

	case s.manualFallback:
		if _, err := s.GrantPass(ctx, GrantRequest{
			ListID:     listID,
			OwnerID:    ownerID,
			Provider:   model.ProviderManual,
			PaymentRef: "manual_" + uuid.NewString(),
		}); err != nil {
			return nil, err
		}
		return &CheckoutResult{Manual: true}, nil
	}
	return nil, ErrBillingUnavailable
}

type GrantRequest struct {
	ListID      string
	OwnerID     string
	Provider    string
	PaymentRef  string
	AmountTotal *int64
	Currency    *string
}

// GrantPass gives a list paid access from now for the configured period.
func (s *Service) GrantPass(ctx context.Context, req GrantRequest) (*model.List, error) {
	var granted *model.List
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		granted, err = s.grantTx(ctx, tx, req, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// grantTx resets paid access to now plus the pass length. Repeat purchases
// do not stack.
func (s *Service) grantTx(ctx context.Context, tx *sql.Tx, req GrantRequest, now time.Time) (*model.List, error) {
	until := access.AddDays(now, s.paidAccessDays)

	l, err := store.ExtendPaidAccess(ctx, tx, req.OwnerID, req.ListID, until, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.subscriptions.Upsert(ctx, tx, req.OwnerID, req.ListID, until, now); err != nil {
		return nil, err
	}
	err = s.payments.Create(ctx, tx, model.Payment{
		ID:           uuid.NewString(),
		ListID:       req.ListID,
		OwnerID:      req.OwnerID,
		Provider:     req.Provider,
		PaymentRef:   req.PaymentRef,
		AmountTotal:  req.AmountTotal,
		Currency:     req.Currency,
		AccessEndsAt: until,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

type WebhookResult string

const (
	WebhookProcessed       WebhookResult = "processed"
	WebhookDuplicate       WebhookResult = "duplicate"
	WebhookIgnored         WebhookResult = "ignored"
	WebhookAwaitingPayment WebhookResult = "awaiting_payment"
	webhookFailed          WebhookResult = "failed"
)

// ProcessWebhook verifies and applies one provider delivery. A redelivered
// event that was already handled returns WebhookDuplicate without side
// effects. Processing errors mark the event failed and are returned so the
// provider retries.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) (WebhookResult, error) {
	if s.provider == nil {
		return "", ErrBillingUnavailable
	}
	if sigHeader == "" {
		return "", ErrInvalidSignature
	}
	event, err := s.provider.ConstructWebhookEvent(payload, sigHeader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claimedAt := s.now()
	claimed, err := s.events.Claim(ctx, s.db, event.ID, model.ProviderStripe, string(event.Type), claimedAt)
	if err != nil {
		return "", err
	}
	if !claimed {
		s.record(event, WebhookDuplicate)
		return WebhookDuplicate, nil
	}

	result, err := s.handleEvent(ctx, event, claimedAt)
	if errors.Is(err, billingstore.ErrClaimLost) {
		// A redelivery took the event over; its outcome stands.
		s.record(event, WebhookDuplicate)
		return WebhookDuplicate, nil
	}
	if err != nil {
		if markErr := s.events.MarkFailed(ctx, s.db, event.ID, err.Error(), claimedAt, s.now()); markErr != nil {
			s.logger.Error("mark webhook failed", "event_id", event.ID, "error", markErr)
		}
		s.record(event, webhookFailed)
		return "", err
	}
	s.record(event, result)
	return result, nil
}

func (s *Service) record(event stripe.Event, result WebhookResult) {
	metrics.WebhookEvents.WithLabelValues(string(result)).Inc()
	s.logger.Info("webhook event", "event_id", event.ID, "type", event.Type, "result", result)
}

func (s *Service) handleEvent(ctx context.Context, event stripe.Event, claimedAt time.Time) (WebhookResult, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return s.handleCheckoutPaid(ctx, event, claimedAt)
	}
	if err := s.events.MarkProcessed(ctx, s.db, event.ID, claimedAt, s.now()); err != nil {
		return "", err
	}
	return WebhookIgnored, nil
}

func (s *Service) handleCheckoutPaid(ctx context.Context, event stripe.Event, claimedAt time.Time) (WebhookResult, error) {
	if event.Data == nil {
		return "", fmt.Errorf("event %s has no data", event.ID)
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", fmt.Errorf("unmarshal checkout session: %w", err)
	}

	// Delayed payment methods complete unpaid; the async success event grants.
	if event.Type == stripe.EventTypeCheckoutSessionCompleted && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		if err := s.events.MarkProcessed(ctx, s.db, event.ID, claimedAt, s.now()); err != nil {
			return "", err
		}
		return WebhookAwaitingPayment, nil
	}

	listID := sess.Metadata[billingstripe.MetadataListID]
	ownerID := sess.Metadata[billingstripe.MetadataOwnerID]
	if listID == "" || ownerID == "" {
		return "", ErrMissingMetadata
	}

	req := GrantRequest{
		ListID:     listID,
		OwnerID:    ownerID,
		Provider:   model.ProviderStripe,
		PaymentRef: sess.ID,
	}
	if sess.AmountTotal > 0 {
		amount := sess.AmountTotal
		req.AmountTotal = &amount
	}
	if sess.Currency != "" {
		currency := string(sess.Currency)
		req.Currency = &currency
	}

	var granted *model.List
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		var err error
		granted, err = s.grantTx(ctx, tx, req, now)
		if err != nil {
			return err
		}
		if _, err := s.sessions.MarkCompleted(ctx, tx, sess.ID, now); err != nil {
			return err
		}
		// Only the current claim holder may commit the grant.
		return s.events.MarkProcessed(ctx, tx, event.ID, claimedAt, now)
	})
	if err != nil {
		return "", err
	}

	s.sendReceipt(ctx, sess, granted)
	return WebhookProcessed, nil
}

func (s *Service) sendReceipt(ctx context.Context, sess stripe.CheckoutSession, l *model.List) {
	if s.mailer == nil || l == nil || l.PaidAccessEndsAt == nil {
		return
	}
	to := sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		to = sess.CustomerDetails.Email
	}
	if to == "" {
		return
	}
	if err := s.mailer.SendPassReceipt(ctx, to, l.Title, l.ID, *l.PaidAccessEndsAt); err != nil {
		s.logger.Warn("send pass receipt", "list_id", l.ID, "error", err)
	}
}
