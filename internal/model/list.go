package model

import (
	"time"

	"github.com/dukerupert/giftlist/internal/access"
)

type EventType string

const (
	EventWedding    EventType = "wedding"
	EventBirthday   EventType = "birthday"
	EventBabyShower EventType = "babyShower"
	EventChristmas  EventType = "christmas"
)

func (e EventType) Valid() bool {
	switch e {
	case EventWedding, EventBirthday, EventBabyShower, EventChristmas:
		return true
	}
	return false
}

// ParseVisibility maps unknown stored values to private.
func ParseVisibility(s string) Visibility {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityPublicPassword:
		return v
	}
	return VisibilityPrivate
}

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityPublicPassword:
		return true
	}
	return false
}

func ValidTemplate(id string) bool {
	for _, t := range TemplateIDs {
		if t == id {
			return true
		}
	}
	return false
}

type Visibility string

const (
	VisibilityPublic         Visibility = "public"
	VisibilityPrivate        Visibility = "private"
	VisibilityPublicPassword Visibility = "public_password"
)

// RequiresPassword reports whether guests must present the list secret.
func (v Visibility) RequiresPassword() bool {
	return v == VisibilityPublicPassword
}

const (
	ListStatusDraft       = "draft"
	BillingModelOneTime90 = "one_time_90d"
)

// TemplateIDs is the closed set of page templates a list may use.
var TemplateIDs = []string{"classic", "modern", "festive", "playful"}

type List struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	EventType        EventType  `json:"event_type"`
	TemplateID       string     `json:"template_id"`
	Visibility       Visibility `json:"visibility"`
	Status           string     `json:"status"`
	BillingModel     string     `json:"billing_model"`
	TrialEndsAt      *time.Time `json:"trial_ends_at"`
	PaidAccessEndsAt *time.Time `json:"paid_access_ends_at"`
	PurgeAt          time.Time  `json:"purge_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EffectiveTrialEnd falls back to creation plus the default trial for lists
// stored without a trial end.
func (l List) EffectiveTrialEnd() *time.Time {
	return access.TrialEnd(l.TrialEndsAt, l.CreatedAt, access.DefaultTrialDays)
}

func (l List) AccessStatus(now time.Time) access.Status {
	return access.Resolve(l.EffectiveTrialEnd(), l.PaidAccessEndsAt, now)
}

// ListView is a list annotated with its derived access state.
type ListView struct {
	List
	AccessStatus  access.Status `json:"access_status"`
	TrialDaysLeft int           `json:"trial_days_left"`
	PaidDaysLeft  int           `json:"paid_days_left"`
}

func NewListView(l List, now time.Time) ListView {
	return ListView{
		List:          l,
		AccessStatus:  l.AccessStatus(now),
		TrialDaysLeft: access.RemainingDays(l.EffectiveTrialEnd(), now),
		PaidDaysLeft:  access.RemainingDays(l.PaidAccessEndsAt, now),
	}
}

type SlugClaim struct {
	Slug      string    `json:"slug"`
	ListID    string    `json:"list_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PurgeCandidate is a list whose purge horizon has passed.
type PurgeCandidate struct {
	ID      string    `json:"id"`
	Slug    string    `json:"slug"`
	PurgeAt time.Time `json:"purge_at"`
}
