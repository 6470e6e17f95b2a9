/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Logger:     Structured request logging (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/chargers/*   Resource registry
  /api/accounts/*   Account ledger and session history
  /api/escrows/*    Escrow funding and release
  /api/sessions/*   Session ledger
  /api/wallets/*    Balances (airdrop in dev)
  /api/dev/*        Dev helpers
  /api/admin/*      Admin operations (dev only)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SignerHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Charger routes
		r.Route("/chargers", func(r chi.Router) {
			r.Get("/", h.ListChargers)
			r.Post("/", h.CreateCharger)
			r.Get("/{address}", h.GetCharger)
			r.Put("/{address}", h.UpdateCharger)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.InitializeAccount)
			r.Get("/{identity}", h.GetAccount)
			r.Get("/{identity}/sessions", h.ListSessions)
		})

		// Escrow routes
		r.Route("/escrows", func(r chi.Router) {
			r.Post("/", h.FundEscrow)
			r.Get("/{address}", h.GetEscrow)
			r.Post("/{address}/release", h.ReleaseEscrow)
		})

		// Session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.RecordSession)
			r.Get("/{address}", h.GetSession)
		})

		// Wallet routes
		r.Route("/wallets", func(r chi.Router) {
			r.Get("/{identity}", h.GetWallet)
			if h.DevEndpoints {
				r.Post("/{identity}/airdrop", h.Airdrop)
			}
		})

		if h.DevEndpoints {
			r.Post("/dev/identities", h.DeriveIdentity)
			r.Post("/admin/reset", h.ResetDatabase)
		}
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("remote", r.RemoteAddr),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
