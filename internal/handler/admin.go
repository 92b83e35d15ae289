package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/giftlist/internal/purge"
)

type AdminHandler struct {
	purger *purge.Purger
	logger *slog.Logger
}

func NewAdminHandler(p *purge.Purger, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{purger: p, logger: logger.With("component", "admin_handler")}
}

// Purge runs one purge invocation. Query: dryRun=true, limit=N.
func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := purge.Options{}
	if v := q.Get("dryRun"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "dryRun must be a boolean")
			return
		}
		opts.DryRun = dry
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be an integer")
			return
		}
		opts.Limit = n
	}

	report, err := h.purger.Run(r.Context(), opts)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
