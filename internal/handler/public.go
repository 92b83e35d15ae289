package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/giftlist/internal/access"
	"github.com/dukerupert/giftlist/internal/metrics"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
	"github.com/dukerupert/giftlist/internal/websocket"
)

// PasswordHeader carries the guest password for public_password lists.
const PasswordHeader = "X-List-Password"

// PublicHandler serves guests. Nothing it returns identifies who reserved
// an item.
type PublicHandler struct {
	lists        *store.ListStore
	items        *store.ItemStore
	reservations *store.ReservationStore
	content      *store.ContentStore
	hub          Publisher
	now          func() time.Time
	logger       *slog.Logger
}

func NewPublicHandler(ls *store.ListStore, is *store.ItemStore, rs *store.ReservationStore, cs *store.ContentStore, hub Publisher, now func() time.Time, logger *slog.Logger) *PublicHandler {
	if now == nil {
		now = time.Now
	}
	return &PublicHandler{
		lists:        ls,
		items:        is,
		reservations: rs,
		content:      cs,
		hub:          hub,
		now:          now,
		logger:       logger.With("component", "public_handler"),
	}
}

type publicList struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Slug         string             `json:"slug"`
	EventType    model.EventType    `json:"event_type"`
	TemplateID   string             `json:"template_id"`
	Visibility   model.Visibility   `json:"visibility"`
	AccessStatus access.Status      `json:"access_status"`
	Items        []model.PublicItem `json:"items"`
	Stories      []model.Story      `json:"stories"`
	WheelEntries []model.WheelEntry `json:"wheel_entries"`
}

func (h *PublicHandler) GetList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l, err := h.lists.GetPublic(ctx, r.PathValue("slug"), r.Header.Get(PasswordHeader))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	items, err := h.items.List(ctx, l.ID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	stories, err := h.content.ListStories(ctx, l.ID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	entries, err := h.content.ListWheelEntries(ctx, l.ID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	resp := publicList{
		ID:           l.ID,
		Title:        l.Title,
		Slug:         l.Slug,
		EventType:    l.EventType,
		TemplateID:   l.TemplateID,
		Visibility:   l.Visibility,
		AccessStatus: l.AccessStatus(h.now()),
		Items:        make([]model.PublicItem, 0, len(items)),
		Stories:      stories,
		WheelEntries: entries,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, item.Public())
	}
	if resp.Stories == nil {
		resp.Stories = []model.Story{}
	}
	if resp.WheelEntries == nil {
		resp.WheelEntries = []model.WheelEntry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type reserveRequest struct {
	GuestName    *string `json:"guest_name"`
	GuestMessage *string `json:"guest_message"`
}

// Reserve claims an available item for a guest. Password-gated lists need
// the password here too.
func (h *PublicHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, itemID := r.PathValue("id"), r.PathValue("itemID")

	var req reserveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	l, err := h.lists.GetByID(ctx, listID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if l != nil && l.Visibility.RequiresPassword() {
		ok, err := h.lists.VerifyPassword(ctx, l.ID, r.Header.Get(PasswordHeader))
		if err != nil {
			respondError(w, h.logger, r, err)
			return
		}
		if !ok {
			metrics.Reservations.WithLabelValues("forbidden").Inc()
			respondError(w, h.logger, r, store.ErrForbidden)
			return
		}
	}

	item, err := h.reservations.Reserve(ctx, listID, itemID, req.GuestName, req.GuestMessage)
	metrics.Reservations.WithLabelValues(reservationResult(err)).Inc()
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	if h.hub != nil {
		h.hub.Publish(websocket.ItemMessage(websocket.TypeItemReserved, item))
	}
	writeJSON(w, http.StatusOK, item.Public())
}

func reservationResult(err error) string {
	switch {
	case err == nil:
		return "reserved"
	case errors.Is(err, store.ErrItemUnavailable):
		return "unavailable"
	case errors.Is(err, store.ErrListExpired):
		return "expired"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	}
	return "error"
}
