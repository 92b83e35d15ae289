package model

import "time"

type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemReserved  ItemStatus = "reserved"
	ItemGifted    ItemStatus = "gifted"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemAvailable, ItemReserved, ItemGifted:
		return true
	}
	return false
}

// OwnerCanSet reports whether an owner may move an item from s to next.
// available -> reserved is reserved for guests.
func (s ItemStatus) OwnerCanSet(next ItemStatus) bool {
	switch s {
	case ItemAvailable:
		return next == ItemGifted
	case ItemReserved:
		return next == ItemAvailable || next == ItemGifted
	case ItemGifted:
		return next == ItemAvailable
	}
	return false
}

type Item struct {
	ID              string     `json:"id"`
	ListID          string     `json:"list_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Link            *string    `json:"link"`
	MediaRef        *string    `json:"media_ref"`
	Status          ItemStatus `json:"status"`
	ReservedByName  *string    `json:"reserved_by_name"`
	ReservedMessage *string    `json:"reserved_message"`
	ReservedAt      *time.Time `json:"reserved_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PublicItem is the guest-facing projection of an item.
type PublicItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Link        *string    `json:"link"`
	MediaRef    *string    `json:"media_ref"`
	Status      ItemStatus `json:"status"`
}

func (i Item) Public() PublicItem {
	return PublicItem{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		Link:        i.Link,
		MediaRef:    i.MediaRef,
		Status:      i.Status,
	}
}

const ReservationActive = "active"

// Reservation is an append-only audit record of one guest reservation.
type Reservation struct {
	ID           string    `json:"id"`
	ListID       string    `json:"list_id"`
	ItemID       string    `json:"item_id"`
	GuestName    *string   `json:"guest_name"`
	GuestMessage *string   `json:"guest_message"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type Story struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	MediaRef  *string   `json:"media_ref"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WheelEntry struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}
