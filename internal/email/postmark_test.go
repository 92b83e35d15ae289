package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var until = time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)

func TestSendPassReceipt(t *testing.T) {
	var received message
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"MessageID": "test-id", "ErrorCode": 0}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "https://giftlist.test", WithEndpoint(server.URL))

	err := client.SendPassReceipt(context.Background(), "anna@example.com", "Our Wedding", "list-1", until)
	if err != nil {
		t.Fatalf("send pass receipt: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "anna@example.com" {
		t.Errorf("To = %q, want %q", received.To, "anna@example.com")
	}
	if received.Subject != `Your gift list "Our Wedding" is active` {
		t.Errorf("Subject = %q, want receipt subject", received.Subject)
	}
	if received.Tag != "pass-receipt" {
		t.Errorf("Tag = %q, want pass-receipt", received.Tag)
	}
	if !strings.Contains(received.TextBody, "1 March 2027") {
		t.Errorf("TextBody = %q, want access end date", received.TextBody)
	}
	if !strings.Contains(received.HtmlBody, "https://giftlist.test/lists/list-1") {
		t.Errorf("HtmlBody = %q, want list link", received.HtmlBody)
	}
}

func TestSendPassReceiptNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "https://giftlist.test")

	err := client.SendPassReceipt(context.Background(), "anna@example.com", "L", "list-1", until)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendPassReceiptAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"ErrorCode": 300, "Message": "Invalid 'To' address"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "https://giftlist.test", WithEndpoint(server.URL))

	err := client.SendPassReceipt(context.Background(), "bad", "L", "list-1", until)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.ErrorCode != 300 {
		t.Errorf("apiErr = %+v, want status 422 code 300", apiErr)
	}
}

func TestSendPassReceiptAPIErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "https://giftlist.test", WithEndpoint(server.URL))

	err := client.SendPassReceipt(context.Background(), "anna@example.com", "L", "list-1", until)
	if err == nil || err.Error() != "postmark: status 500" {
		t.Fatalf("err = %v, want postmark: status 500", err)
	}
}

func TestConfigured(t *testing.T) {
	if !NewClient("token", "from@test.com", "https://test.com").Configured() {
		t.Error("expected Configured() = true")
	}
	if NewClient("", "from@test.com", "https://test.com").Configured() {
		t.Error("expected Configured() = false")
	}
}
