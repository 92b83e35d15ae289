package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
)

type ListHandler struct {
	lists  *store.ListStore
	now    func() time.Time
	logger *slog.Logger
}

func NewListHandler(ls *store.ListStore, now func() time.Time, logger *slog.Logger) *ListHandler {
	if now == nil {
		now = time.Now
	}
	return &ListHandler{lists: ls, now: now, logger: logger.With("component", "list_handler")}
}

type createListRequest struct {
	Title      string           `json:"title"`
	Slug       string           `json:"slug"`
	EventType  model.EventType  `json:"event_type"`
	TemplateID string           `json:"template_id"`
	Visibility model.Visibility `json:"visibility"`
	Password   string           `json:"password"`
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	l, err := h.lists.Create(r.Context(), store.CreateListInput{
		OwnerID:    auth.OwnerID(r.Context()),
		Title:      req.Title,
		Slug:       req.Slug,
		EventType:  req.EventType,
		TemplateID: req.TemplateID,
		Visibility: req.Visibility,
		Password:   req.Password,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.NewListView(*l, h.now()))
}

func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.ListByOwner(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	now := h.now()
	views := make([]model.ListView, 0, len(lists))
	for _, l := range lists {
		views = append(views, model.NewListView(l, now))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.lists.GetOwned(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewListView(*l, h.now()))
}

type updateListRequest struct {
	Title      string          `json:"title"`
	EventType  model.EventType `json:"event_type"`
	TemplateID string          `json:"template_id"`
}

func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	l, err := h.lists.Update(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), store.UpdateListInput{
		Title:      req.Title,
		EventType:  req.EventType,
		TemplateID: req.TemplateID,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewListView(*l, h.now()))
}

type slugCheckResponse struct {
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
}

// CheckSlug answers whether a slug could be claimed right now.
func (h *ListHandler) CheckSlug(w http.ResponseWriter, r *http.Request) {
	normalized, ok, err := h.lists.CheckSlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slugCheckResponse{Slug: normalized, Available: ok})
}
