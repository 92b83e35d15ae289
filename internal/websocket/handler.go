package websocket

import (
	"context"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/giftlist/internal/model"
)

// ListGetter loads a list by id and checks guest passwords. Implemented by
// *store.ListStore.
type ListGetter interface {
	GetByID(ctx context.Context, id string) (*model.List, error)
	VerifyPassword(ctx context.Context, listID, password string) (bool, error)
}

const (
	passwordHeader = "X-List-Password"
	// Browsers cannot set headers on a websocket handshake.
	passwordParam = "password"
)

func guestPassword(r *http.Request) string {
	if p := r.Header.Get(passwordHeader); p != "" {
		return p
	}
	return r.URL.Query().Get(passwordParam)
}

// HandleList upgrades GET /ws/lists/{id} for lists guests can see. Private
// and unknown lists get 404 before the upgrade, and password-gated lists
// without the matching password get 403.
func HandleList(hub *Hub, lists ListGetter, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID := r.PathValue("id")
		l, err := lists.GetByID(r.Context(), listID)
		if err != nil {
			hub.logger.Error("load list for websocket", "list_id", listID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if l == nil || l.Visibility == model.VisibilityPrivate {
			http.NotFound(w, r)
			return
		}
		if l.Visibility.RequiresPassword() {
			ok, err := lists.VerifyPassword(r.Context(), l.ID, guestPassword(r))
			if err != nil {
				hub.logger.Error("verify list password", "list_id", listID, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, l.ID).Run(r.Context())
	}
}
