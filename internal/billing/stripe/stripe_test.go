package stripe

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

func TestExpandURL(t *testing.T) {
	req := CheckoutRequest{ListID: "list-1", Locale: "et"}
	got := expandURL("https://app.example/{LOCALE}/lists/{LIST_ID}?session={CHECKOUT_SESSION_ID}", req)
	want := "https://app.example/et/lists/list-1?session={CHECKOUT_SESSION_ID}"
	if got != want {
		t.Errorf("expandURL = %q, want %q", got, want)
	}
}

func TestConfigured(t *testing.T) {
	if (Config{SecretKey: "sk_test"}).Configured() {
		t.Error("expected unconfigured without price id")
	}
	if !(Config{SecretKey: "sk_test", PriceID: "price_1"}).Configured() {
		t.Error("expected configured with key and price id")
	}
}

func TestConstructWebhookEvent(t *testing.T) {
	c := NewClient(Config{WebhookSecret: "whsec_test"})
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	event, err := c.ConstructWebhookEvent(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("ConstructWebhookEvent: %v", err)
	}
	if event.ID != "evt_1" {
		t.Errorf("event id = %q, want %q", event.ID, "evt_1")
	}

	if _, err := c.ConstructWebhookEvent(payload, "t=1,v1=deadbeef"); err == nil {
		t.Error("expected bad signature to fail")
	}
}
