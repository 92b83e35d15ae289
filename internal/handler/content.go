package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
)

// ContentHandler serves a list's stories and wheel entries to its owner.
type ContentHandler struct {
	lists   *store.ListStore
	content *store.ContentStore
	logger  *slog.Logger
}

func NewContentHandler(ls *store.ListStore, cs *store.ContentStore, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{lists: ls, content: cs, logger: logger.With("component", "content_handler")}
}

type storyRequest struct {
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	MediaRef *string `json:"media_ref"`
}

func (h *ContentHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	st, err := h.content.CreateStory(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), store.CreateStoryInput{
		Title:    req.Title,
		Body:     req.Body,
		MediaRef: req.MediaRef,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *ContentHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	l, err := h.lists.GetOwned(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	stories, err := h.content.ListStories(r.Context(), l.ID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if stories == nil {
		stories = []model.Story{}
	}
	writeJSON(w, http.StatusOK, stories)
}

func (h *ContentHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	err := h.content.DeleteStory(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), r.PathValue("storyID"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type wheelEntryRequest struct {
	Label string `json:"label"`
}

func (h *ContentHandler) CreateWheelEntry(w http.ResponseWriter, r *http.Request) {
	var req wheelEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	e, err := h.content.CreateWheelEntry(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), store.CreateWheelEntryInput{
		Label: req.Label,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *ContentHandler) ListWheelEntries(w http.ResponseWriter, r *http.Request) {
	l, err := h.lists.GetOwned(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	entries, err := h.content.ListWheelEntries(r.Context(), l.ID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if entries == nil {
		entries = []model.WheelEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *ContentHandler) DeleteWheelEntry(w http.ResponseWriter, r *http.Request) {
	err := h.content.DeleteWheelEntry(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), r.PathValue("entryID"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
