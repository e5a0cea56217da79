package api

import (
	"net/http"

	"roomlink-api/logging"
	"roomlink-api/marketplace/application"
	"roomlink-api/marketplace/domain"
	"roomlink-api/metrics"
	"roomlink-api/middleware/bearer"
	"roomlink-api/middleware/ratelimit"
	rlinfra "roomlink-api/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Auth     *application.AuthService
	Listings *application.ListingService
	Blobs    domain.BlobStore
	Tokens   bearer.Verifier
	Logger   *logrus.Logger
	Metrics  *metrics.Registry

	// RateLimit nil desliga o gate.
	RateLimit   *ratelimit.Options
	Concurrency ratelimit.ConcurrencyOptions

	// UploadDir é servido em /uploads/. Vazio desliga.
	UploadDir      string
	MaxUploadBytes int64

	// DebugStats habilita GET /debug/ratelimit.
	DebugStats *rlinfra.MemoryStatsStore
}

type handler struct {
	Deps
}

// NewRouter monta o handler HTTP completo.
//
// Ordem: request id e log de acesso (passivos), gate de rate limit, limite de
// concorrência, recover e então as rotas. Rotas protegidas exigem bearer.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	h := &handler{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.Requests(d.Logger))
	if d.RateLimit != nil {
		r.Use(ratelimit.Middleware(*d.RateLimit))
	}
	r.Use(ratelimit.ConcurrencyMiddleware(d.Concurrency))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	auth := bearer.Options{Verifier: d.Tokens, Logger: d.Logger, OnFailure: h.authFailed}
	requireAuth := bearer.Require(auth)

	r.Get("/healthz", h.health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	if d.DebugStats != nil {
		r.Get("/debug/ratelimit", h.debugRateLimit)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.With(bearer.Optional(auth)).Get("/me", h.me)
	})

	// Sem subrouter: "/api/listings/" não pode cair no POST e escapar do gate.
	r.Get("/api/listings", h.searchListings)
	r.With(requireAuth).Post("/api/listings", h.createListing)
	r.With(requireAuth).Get("/api/listings/my-listings", h.myListings)
	r.Get("/api/listings/{id}", h.getListing)

	r.With(requireAuth).Post("/api/upload", h.upload)
	if d.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))))
	}

	return r
}

func (h *handler) authFailed(reason string) {
	if h.Metrics != nil {
		h.Metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
