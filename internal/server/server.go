package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/billing"
	"github.com/dukerupert/giftlist/internal/handler"
	"github.com/dukerupert/giftlist/internal/metrics"
	"github.com/dukerupert/giftlist/internal/middleware"
	"github.com/dukerupert/giftlist/internal/purge"
	"github.com/dukerupert/giftlist/internal/store"
	ws "github.com/dukerupert/giftlist/internal/websocket"
)

const (
	reserveLimit  = 20
	reserveWindow = time.Minute
)

type Config struct {
	JWTSecret         string
	JWTIssuer         string
	CronSecret        string
	TrialDays         int
	PaidAccessDays    int
	ManualBilling     bool
	PurgeDefaultLimit int
	PurgeMaxLimit     int
	OriginPatterns    []string
}

// Deps are the optional collaborators. A nil Provider, Mailer or Storage
// disables that feature.
type Deps struct {
	Provider billing.Provider
	Mailer   billing.Mailer
	Storage  purge.Storage
	Now      func() time.Time
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	lists       *store.ListStore
	verifier    *auth.TokenVerifier
	cronSecret  string
	origins     []string
	purger      *purge.Purger
	rateLimiter *middleware.RateLimiter
	listH       *handler.ListHandler
	itemH       *handler.ItemHandler
	contentH    *handler.ContentHandler
	publicH     *handler.PublicHandler
	billingH    *handler.BillingHandler
	adminH      *handler.AdminHandler
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, deps Deps, logger *slog.Logger) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	hub := ws.NewHub(logger)

	listStore := store.NewListStore(db, now, cfg.TrialDays)
	itemStore := store.NewItemStore(db, now)
	reservationStore := store.NewReservationStore(db, now)
	contentStore := store.NewContentStore(db, now)
	purgeStore := store.NewPurgeStore(db, store.DefaultDeleteChunk)

	billingSvc := billing.NewService(db, listStore, deps.Provider, deps.Mailer, billing.Config{
		PaidAccessDays: cfg.PaidAccessDays,
		ManualFallback: cfg.ManualBilling,
	}, now, logger.With("component", "billing"))
	purger := purge.New(purgeStore, deps.Storage, now, cfg.PurgeDefaultLimit, cfg.PurgeMaxLimit, logger)

	return &Server{
		db:          db,
		hub:         hub,
		lists:       listStore,
		verifier:    auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		cronSecret:  cfg.CronSecret,
		origins:     cfg.OriginPatterns,
		purger:      purger,
		rateLimiter: middleware.NewRateLimiter(now),
		listH:       handler.NewListHandler(listStore, now, logger),
		itemH:       handler.NewItemHandler(listStore, itemStore, hub, logger),
		contentH:    handler.NewContentHandler(listStore, contentStore, logger),
		publicH:     handler.NewPublicHandler(listStore, itemStore, reservationStore, contentStore, hub, now, logger),
		billingH:    handler.NewBillingHandler(billingSvc, logger),
		adminH:      handler.NewAdminHandler(purger, logger),
		logger:      logger,
	}
}

func (s *Server) Purger() *purge.Purger {
	return s.purger
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/slugs/{slug}", s.listH.CheckSlug)
	mux.HandleFunc("GET /api/public/lists/{slug}", s.publicH.GetList)
	mux.Handle("POST /api/public/lists/{id}/items/{itemID}/reserve",
		middleware.RateLimit(s.rateLimiter, middleware.ByIP, reserveLimit, reserveWindow)(http.HandlerFunc(s.publicH.Reserve)))
	mux.HandleFunc("POST /webhooks/stripe", s.billingH.StripeWebhook)
	mux.HandleFunc("GET /ws/lists/{id}", ws.HandleList(s.hub, s.lists, s.origins))
	mux.Handle("POST /api/admin/purge", middleware.RequireSecret(s.cronSecret)(http.HandlerFunc(s.adminH.Purge)))

	owner := http.NewServeMux()
	s.registerOwnerRoutes(owner)
	requireOwner := middleware.RequireOwner(s.verifier)
	mux.Handle("/api/lists", requireOwner(owner))
	mux.Handle("/api/lists/", requireOwner(owner))

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) registerOwnerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/lists", s.listH.Create)
	mux.HandleFunc("GET /api/lists", s.listH.List)
	mux.HandleFunc("GET /api/lists/{id}", s.listH.Get)
	mux.HandleFunc("PATCH /api/lists/{id}", s.listH.Update)

	mux.HandleFunc("GET /api/lists/{id}/items", s.itemH.List)
	mux.HandleFunc("POST /api/lists/{id}/items", s.itemH.Create)
	mux.HandleFunc("DELETE /api/lists/{id}/items/{itemID}", s.itemH.Delete)
	mux.HandleFunc("POST /api/lists/{id}/items/{itemID}/status", s.itemH.SetStatus)

	mux.HandleFunc("GET /api/lists/{id}/stories", s.contentH.ListStories)
	mux.HandleFunc("POST /api/lists/{id}/stories", s.contentH.CreateStory)
	mux.HandleFunc("DELETE /api/lists/{id}/stories/{storyID}", s.contentH.DeleteStory)

	mux.HandleFunc("GET /api/lists/{id}/wheel", s.contentH.ListWheelEntries)
	mux.HandleFunc("POST /api/lists/{id}/wheel", s.contentH.CreateWheelEntry)
	mux.HandleFunc("DELETE /api/lists/{id}/wheel/{entryID}", s.contentH.DeleteWheelEntry)

	mux.HandleFunc("POST /api/lists/{id}/checkout", s.billingH.Checkout)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
