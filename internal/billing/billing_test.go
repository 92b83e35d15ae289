package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/giftlist/internal/access"
	billingstore "github.com/dukerupert/giftlist/internal/billing/store"
	billingstripe "github.com/dukerupert/giftlist/internal/billing/stripe"
	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
)

const testWebhookSecret = "whsec_test"

var testNow = time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	*billingstripe.Client
	mu       sync.Mutex
	requests []billingstripe.CheckoutRequest
	err      error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{Client: billingstripe.NewClient(billingstripe.Config{WebhookSecret: testWebhookSecret})}
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req billingstripe.CheckoutRequest) (*billingstripe.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.requests = append(p.requests, req)
	return &billingstripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []string
	until []time.Time
}

func (m *fakeMailer) SendPassReceipt(_ context.Context, to, _, _ string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	m.until = append(m.until, until)
	return nil
}

type fixture struct {
	db      *sql.DB
	lists   *store.ListStore
	list    *model.List
	service *Service
	mailer  *fakeMailer
	now     time.Time
}

func setup(t *testing.T, provider Provider, manual bool) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db, mailer: &fakeMailer{}, now: testNow}
	clock := func() time.Time { return f.now }
	f.lists = store.NewListStore(db, clock, 0)

	f.list, err = f.lists.Create(context.Background(), store.CreateListInput{
		OwnerID:    "owner-1",
		Title:      "Our Wedding",
		Slug:       "our-wedding",
		EventType:  model.EventWedding,
		TemplateID: "classic",
		Visibility: model.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(db, f.lists, provider, f.mailer, Config{ManualFallback: manual}, clock, logger)
	return f
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func signedEvent(t *testing.T, id, eventType string, session map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]any{"object": session},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func paidSession(listID, ownerID string) map[string]any {
	return map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"amount_total":   1900,
		"currency":       "eur",
		"metadata":       map[string]string{"listId": listID, "ownerId": ownerID},
		"customer_details": map[string]any{
			"email": "anna@example.com",
		},
	}
}

func TestStartCheckoutProvider(t *testing.T) {
	p := newFakeProvider()
	f := setup(t, p, false)
	ctx := context.Background()

	res, err := f.service.StartCheckout(ctx, "owner-1", "anna@example.com", f.list.ID, "et")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if res.URL != "https://checkout.example/cs_test_1" {
		t.Errorf("URL = %q, want session url", res.URL)
	}
	if len(p.requests) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(p.requests))
	}
	req := p.requests[0]
	if req.ListID != f.list.ID || req.OwnerID != "owner-1" || req.Locale != "et" {
		t.Errorf("request = %+v, want list, owner and locale", req)
	}

	sess, err := billingstore.NewCheckoutSessionStore(f.db).GetByID(ctx, "cs_test_1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess == nil || sess.Status != model.CheckoutPending {
		t.Errorf("session = %+v, want pending record", sess)
	}
}

func TestStartCheckoutAlreadyActive(t *testing.T) {
	p := newFakeProvider()
	f := setup(t, p, false)
	ctx := context.Background()

	if _, err := f.service.GrantPass(ctx, GrantRequest{ListID: f.list.ID, OwnerID: "owner-1", Provider: model.ProviderManual, PaymentRef: "manual_1"}); err != nil {
		t.Fatalf("GrantPass: %v", err)
	}

	res, err := f.service.StartCheckout(ctx, "owner-1", "", f.list.ID, "en")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if !res.AlreadyActive {
		t.Error("expected short-circuit for active list")
	}
	if len(p.requests) != 0 {
		t.Errorf("provider calls = %d, want 0", len(p.requests))
	}
}

func TestStartCheckoutManualFallback(t *testing.T) {
	f := setup(t, nil, true)
	ctx := context.Background()

	res, err := f.service.StartCheckout(ctx, "owner-1", "", f.list.ID, "en")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if !res.Manual {
		t.Error("expected manual grant")
	}

	l, _ := f.lists.GetByID(ctx, f.list.ID)
	if s := l.AccessStatus(f.now); s != access.StatusActive {
		t.Errorf("AccessStatus = %q, want active", s)
	}
	payments, err := billingstore.NewPaymentStore(f.db).ListByList(ctx, f.list.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || !strings.HasPrefix(payments[0].PaymentRef, "manual_") {
		t.Errorf("payments = %+v, want one manual payment", payments)
	}
}

func TestStartCheckoutUnavailable(t *testing.T) {
	f := setup(t, nil, false)
	if _, err := f.service.StartCheckout(context.Background(), "owner-1", "", f.list.ID, "en"); !errors.Is(err, ErrBillingUnavailable) {
		t.Errorf("err = %v, want ErrBillingUnavailable", err)
	}
}

func TestStartCheckoutForbidden(t *testing.T) {
	f := setup(t, newFakeProvider(), false)
	if _, err := f.service.StartCheckout(context.Background(), "owner-2", "", f.list.ID, "en"); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestStartCheckoutURLMissing(t *testing.T) {
	p := newFakeProvider()
	p.err = billingstripe.ErrCheckoutURLMissing
	f := setup(t, p, false)
	if _, err := f.service.StartCheckout(context.Background(), "owner-1", "", f.list.ID, "en"); !errors.Is(err, billingstripe.ErrCheckoutURLMissing) {
		t.Errorf("err = %v, want ErrCheckoutURLMissing", err)
	}
}

func TestGrantPassResetsFromNow(t *testing.T) {
	f := setup(t, nil, true)
	ctx := context.Background()
	req := GrantRequest{ListID: f.list.ID, OwnerID: "owner-1", Provider: model.ProviderManual, PaymentRef: "manual_1"}

	l, err := f.service.GrantPass(ctx, req)
	if err != nil {
		t.Fatalf("GrantPass: %v", err)
	}
	want := testNow.AddDate(0, 0, 90)
	if l.PaidAccessEndsAt == nil || !l.PaidAccessEndsAt.Equal(want) {
		t.Errorf("PaidAccessEndsAt = %v, want %v", l.PaidAccessEndsAt, want)
	}
	if !l.PurgeAt.Equal(want) {
		t.Errorf("PurgeAt = %v, want %v", l.PurgeAt, want)
	}

	f.now = testNow.AddDate(0, 0, 10)
	req.PaymentRef = "manual_2"
	l, err = f.service.GrantPass(ctx, req)
	if err != nil {
		t.Fatalf("GrantPass: %v", err)
	}
	want = f.now.AddDate(0, 0, 90)
	if !l.PaidAccessEndsAt.Equal(want) {
		t.Errorf("second grant PaidAccessEndsAt = %v, want %v without stacking", l.PaidAccessEndsAt, want)
	}

	sub, _ := billingstore.NewSubscriptionStore(f.db).GetByOwner(ctx, "owner-1")
	if sub == nil || len(sub.ActiveListIDs) != 1 {
		t.Errorf("subscription = %+v, want one active list", sub)
	}
	if n := f.count(t, `SELECT COUNT(*) FROM billing_payments`); n != 2 {
		t.Errorf("payments = %d, want 2", n)
	}

	if _, err := f.service.GrantPass(ctx, GrantRequest{ListID: f.list.ID, OwnerID: "owner-2"}); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("foreign owner err = %v, want ErrForbidden", err)
	}
}

func TestProcessWebhookIdempotent(t *testing.T) {
	f := setup(t, newFakeProvider(), false)
	ctx := context.Background()

	if _, err := f.service.StartCheckout(ctx, "owner-1", "anna@example.com", f.list.ID, "et"); err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	payload, sig := signedEvent(t, "evt_1", "checkout.session.completed", paidSession(f.list.ID, "owner-1"))

	res, err := f.service.ProcessWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if res != WebhookProcessed {
		t.Errorf("result = %q, want processed", res)
	}

	first, _ := f.lists.GetByID(ctx, f.list.ID)

	f.now = testNow.Add(time.Hour)
	res, err = f.service.ProcessWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatalf("ProcessWebhook redelivery: %v", err)
	}
	if res != WebhookDuplicate {
		t.Errorf("redelivery result = %q, want duplicate", res)
	}

	second, _ := f.lists.GetByID(ctx, f.list.ID)
	if !second.PaidAccessEndsAt.Equal(*first.PaidAccessEndsAt) {
		t.Errorf("paid access moved on redelivery: %v -> %v", first.PaidAccessEndsAt, second.PaidAccessEndsAt)
	}
	if n := f.count(t, `SELECT COUNT(*) FROM billing_payments WHERE list_id = ?`, f.list.ID); n != 1 {
		t.Errorf("payments = %d, want 1", n)
	}

	sess, _ := billingstore.NewCheckoutSessionStore(f.db).GetByID(ctx, "cs_test_1")
	if sess.Status != model.CheckoutCompleted {
		t.Errorf("session status = %q, want completed", sess.Status)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != "anna@example.com" {
		t.Errorf("receipts = %v, want one to anna@example.com", f.mailer.sent)
	}

	payments, _ := billingstore.NewPaymentStore(f.db).ListByList(ctx, f.list.ID)
	if p := payments[0]; p.PaymentRef != "cs_test_1" || p.AmountTotal == nil || *p.AmountTotal != 1900 {
		t.Errorf("payment = %+v, want provider session ref and amount", p)
	}
}

func TestProcessWebhookTakeoverGrantsOnce(t *testing.T) {
	provider := newFakeProvider()
	f := setup(t, provider, false)
	ctx := context.Background()

	payload, sig := signedEvent(t, "evt_slow", "checkout.session.completed", paidSession(f.list.ID, "owner-1"))
	event, err := provider.ConstructWebhookEvent(payload, sig)
	if err != nil {
		t.Fatalf("ConstructWebhookEvent: %v", err)
	}

	// An earlier delivery claimed the event and is still working on it.
	slowClaim := testNow.Add(-billingstore.StaleProcessingAfter - time.Minute)
	events := billingstore.NewWebhookEventStore(f.db)
	if claimed, err := events.Claim(ctx, f.db, event.ID, model.ProviderStripe, string(event.Type), slowClaim); err != nil || !claimed {
		t.Fatalf("Claim = %v, %v, want true", claimed, err)
	}

	res, err := f.service.ProcessWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if res != WebhookProcessed {
		t.Fatalf("result = %q, want processed after takeover", res)
	}

	// The slow delivery finishes after being taken over.
	f.now = testNow.Add(time.Minute)
	if _, err := f.service.handleCheckoutPaid(ctx, event, slowClaim); !errors.Is(err, billingstore.ErrClaimLost) {
		t.Fatalf("slow grant err = %v, want ErrClaimLost", err)
	}

	if n := f.count(t, `SELECT COUNT(*) FROM billing_payments WHERE list_id = ?`, f.list.ID); n != 1 {
		t.Errorf("payments = %d, want 1", n)
	}
	got, _ := f.lists.GetByID(ctx, f.list.ID)
	if want := testNow.Add(90 * 24 * time.Hour); !got.PaidAccessEndsAt.Equal(want) {
		t.Errorf("paid access ends = %v, want %v", got.PaidAccessEndsAt, want)
	}
	e, _ := events.GetByID(ctx, event.ID)
	if e.Status != model.WebhookProcessed {
		t.Errorf("event status = %q, want processed", e.Status)
	}
}

func TestProcessWebhookInvalidSignature(t *testing.T) {
	f := setup(t, newFakeProvider(), false)
	payload, _ := signedEvent(t, "evt_1", "checkout.session.completed", paidSession(f.list.ID, "owner-1"))

	for _, sig := range []string{"", "t=1,v1=deadbeef"} {
		if _, err := f.service.ProcessWebhook(context.Background(), payload, sig); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("sig %q: err = %v, want ErrInvalidSignature", sig, err)
		}
	}
	if n := f.count(t, `SELECT COUNT(*) FROM billing_webhook_events`); n != 0 {
		t.Errorf("events = %d, want 0 for rejected deliveries", n)
	}
}

func TestProcessWebhookMissingMetadata(t *testing.T) {
	f := setup(t, newFakeProvider(), false)
	ctx := context.Background()

	sess := paidSession(f.list.ID, "owner-1")
	delete(sess, "metadata")
	payload, sig := signedEvent(t, "evt_meta", "checkout.session.completed", sess)

	if _, err := f.service.ProcessWebhook(ctx, payload, sig); !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("err = %v, want ErrMissingMetadata", err)
	}
	e, _ := billingstore.NewWebhookEventStore(f.db).GetByID(ctx, "evt_meta")
	if e == nil || e.Status != model.WebhookFailed {
		t.Fatalf("event = %+v, want failed", e)
	}

	// A failed event is retried on redelivery instead of being reported as a duplicate.
	if _, err := f.service.ProcessWebhook(ctx, payload, sig); !errors.Is(err, ErrMissingMetadata) {
		t.Errorf("redelivery err = %v, want ErrMissingMetadata", err)
	}
}

func TestProcessWebhookAsyncPayment(t *testing.T) {
	f := setup(t, newFakeProvider(), false)
	ctx := context.Background()

	unpaid := paidSession(f.list.ID, "owner-1")
	unpaid["payment_status"] = "unpaid"
	payload, sig := signedEvent(t, "evt_completed", "checkout.session.completed", unpaid)

	res, err := f.service.ProcessWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if res != WebhookAwaitingPayment {
		t.Errorf("result = %q, want awaiting_payment", res)
	}
	if l, _ := f.lists.GetByID(ctx, f.list.ID); l.PaidAccessEndsAt != nil {
		t.Error("unpaid session granted access")
	}

	payload, sig = signedEvent(t, "evt_async", "checkout.session.async_payment_succeeded", paidSession(f.list.ID, "owner-1"))
	res, err = f.service.ProcessWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatalf("ProcessWebhook async: %v", err)
	}
	if res != WebhookProcessed {
		t.Errorf("async result = %q, want processed", res)
	}
	if l, _ := f.lists.GetByID(ctx, f.list.ID); l.AccessStatus(f.now) != access.StatusActive {
		t.Error("async success did not grant access")
	}
}

func TestProcessWebhookIgnoresOtherEvents(t *testing.T) {
	f := setup(t, newFakeProvider(), false)
	payload, sig := signedEvent(t, "evt_other", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	res, err := f.service.ProcessWebhook(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if res != WebhookIgnored {
		t.Errorf("result = %q, want ignored", res)
	}
}
