package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrCheckoutURLMissing = errors.New("checkout session has no url")

// Metadata keys carried on every checkout session.
const (
	MetadataListID  = "listId"
	MetadataOwnerID = "ownerId"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	// SuccessURL and CancelURL may contain {LIST_ID} and {LOCALE}.
	// {CHECKOUT_SESSION_ID} is left for Stripe to fill in.
	SuccessURL string
	CancelURL  string
}

// Configured reports whether checkout sessions can be created.
func (c Config) Configured() bool {
	return c.SecretKey != "" && c.PriceID != ""
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

type CheckoutRequest struct {
	ListID        string
	OwnerID       string
	Locale        string
	CustomerEmail string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession creates a one-off payment session for a list pass.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.ListID),
		SuccessURL:        stripe.String(expandURL(c.cfg.SuccessURL, req)),
		CancelURL:         stripe.String(expandURL(c.cfg.CancelURL, req)),
		Metadata: map[string]string{
			MetadataListID:  req.ListID,
			MetadataOwnerID: req.OwnerID,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.Locale != "" {
		params.Locale = stripe.String(req.Locale)
	}
	params.Context = ctx

	sess, err := checksession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if sess.URL == "" {
		return nil, ErrCheckoutURLMissing
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func expandURL(tmpl string, req CheckoutRequest) string {
	return strings.NewReplacer(
		"{LIST_ID}", req.ListID,
		"{LOCALE}", req.Locale,
	).Replace(tmpl)
}
