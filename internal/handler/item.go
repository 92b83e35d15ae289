package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
	"github.com/dukerupert/giftlist/internal/websocket"
)

// Publisher fans item changes out to live viewers.
type Publisher interface {
	Publish(msg websocket.Message)
}

type ItemHandler struct {
	lists  *store.ListStore
	items  *store.ItemStore
	hub    Publisher
	logger *slog.Logger
}

func NewItemHandler(ls *store.ListStore, is *store.ItemStore, hub Publisher, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{lists: ls, items: is, hub: hub, logger: logger.With("component", "item_handler")}
}

func (h *ItemHandler) publish(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Publish(msg)
	}
}

type createItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Link        *string `json:"link"`
	MediaRef    *string `json:"media_ref"`
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	item, err := h.items.Create(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), store.CreateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Link:        req.Link,
		MediaRef:    req.MediaRef,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	h.publish(websocket.ItemMessage(websocket.TypeItemCreated, item))
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	l, err := h.lists.GetOwned(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	items, err := h.items.List(r.Context(), l.ID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	listID, itemID := r.PathValue("id"), r.PathValue("itemID")
	if err := h.items.Delete(r.Context(), auth.OwnerID(r.Context()), listID, itemID); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	h.publish(websocket.Message{Type: websocket.TypeItemDeleted, ListID: listID, ItemID: itemID})
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status model.ItemStatus `json:"status"`
}

func (h *ItemHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	item, err := h.items.SetStatus(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), r.PathValue("itemID"), req.Status)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	h.publish(websocket.ItemMessage(websocket.TypeItemStatusChanged, item))
	writeJSON(w, http.StatusOK, item)
}
