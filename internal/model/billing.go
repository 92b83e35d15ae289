package model

import "time"

const (
	ProviderStripe = "stripe"
	ProviderManual = "manual"
)

type Payment struct {
	ID           string    `json:"id"`
	ListID       string    `json:"list_id"`
	OwnerID      string    `json:"owner_id"`
	Provider     string    `json:"provider"`
	PaymentRef   string    `json:"payment_ref"`
	AmountTotal  *int64    `json:"amount_total"`
	Currency     *string   `json:"currency"`
	AccessEndsAt time.Time `json:"access_ends_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Subscription aggregates an owner's paid lists.
type Subscription struct {
	OwnerID          string     `json:"owner_id"`
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	ActiveListIDs    []string   `json:"active_list_ids"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

const (
	CheckoutPending   = "pending"
	CheckoutCompleted = "completed"
)

type CheckoutSession struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	OwnerID     string     `json:"owner_id"`
	Provider    string     `json:"provider"`
	Status      string     `json:"status"`
	Locale      string     `json:"locale"`
	URL         string     `json:"url"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

const (
	WebhookProcessing = "processing"
	WebhookProcessed  = "processed"
	WebhookFailed     = "failed"
)

type WebhookEvent struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
