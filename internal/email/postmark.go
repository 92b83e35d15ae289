// Package email sends transactional mail through the Postmark API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured")

// APIError is a non-2xx answer from Postmark.
type APIError struct {
	StatusCode int
	ErrorCode  int    `json:"ErrorCode"`
	Message    string `json:"Message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postmark: status %d", e.StatusCode)
	}
	return fmt.Sprintf("postmark: status %d code %d: %s", e.StatusCode, e.ErrorCode, e.Message)
}

type Client struct {
	serverToken string
	fromEmail   string
	siteURL     string
	endpoint    string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoint overrides the Postmark send URL.
func WithEndpoint(url string) Option {
	return func(cl *Client) {
		cl.endpoint = url
	}
}

// NewClient builds a client. siteURL prefixes the links placed in messages.
func NewClient(serverToken, fromEmail, siteURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		siteURL:     siteURL,
		endpoint:    defaultEndpoint,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type message struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	Tag           string `json:"Tag,omitempty"`
	MessageStream string `json:"MessageStream"`
}

// SendPassReceipt tells a buyer their list is paid for and until when.
func (c *Client) SendPassReceipt(ctx context.Context, toEmail, listTitle, listID string, until time.Time) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	link := fmt.Sprintf("%s/lists/%s", c.siteURL, listID)
	date := until.UTC().Format("2 January 2006")

	return c.send(ctx, message{
		From:    c.fromEmail,
		To:      toEmail,
		Subject: fmt.Sprintf("Your gift list %q is active", listTitle),
		TextBody: fmt.Sprintf("Thank you! %s stays open to your guests until %s.\n\nManage it here:\n%s",
			listTitle, date, link),
		HtmlBody: fmt.Sprintf(`<p>Thank you! <strong>%s</strong> stays open to your guests until %s.</p><p><a href="%s">Manage your list</a></p>`,
			listTitle, date, link),
		Tag:           "pass-receipt",
		MessageStream: "outbound",
	})
}

func (c *Client) send(ctx context.Context, m message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	// Postmark normally explains failures in a JSON body; an empty or
	// unparseable body still yields the status.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, apiErr)
	return apiErr
}
