package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/elysia-dev/elysia-korea-pf/core"
	"github.com/elysia-dev/elysia-korea-pf/observability"
	"github.com/elysia-dev/elysia-korea-pf/observability/logging"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/auth"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/indexer"
	bondmw "github.com/elysia-dev/elysia-korea-pf/services/bondd/middleware"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/stream"
)

const (
	serviceName  = "bondd"
	maxBodyBytes = 1 << 20
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Node     *core.Node
	DB       *gorm.DB
	Indexer  *indexer.Indexer
	Hub      *stream.Hub
	Verifier *auth.Verifier
	// ClaimLimiter throttles the public claim endpoint. Nil disables it.
	ClaimLimiter *bondmw.RateLimiter
	Logger       *slog.Logger
}

// Server exposes the settlement node over HTTP.
type Server struct {
	node     *core.Node
	db       *gorm.DB
	indexer  *indexer.Indexer
	hub      *stream.Hub
	verifier *auth.Verifier
	limiter  *bondmw.RateLimiter
	logger   *slog.Logger

	router http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) (*Server, error) {
	if cfg.Node == nil {
		return nil, errors.New("server: node required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("server: verifier required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = stream.NewHub()
	}
	srv := &Server{
		node:     cfg.Node,
		db:       cfg.DB,
		indexer:  cfg.Indexer,
		hub:      hub,
		verifier: cfg.Verifier,
		limiter:  cfg.ClaimLimiter,
		logger:   logger,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router wrapped with tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, serviceName,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/v1/stream"
		}),
	)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/stream", s.hub.ServeHTTP)

	idempotent := bondmw.WithIdempotency(s.db)

	r.Group(func(r chi.Router) {
		r.Use(s.instrument)
		r.Get("/healthz", s.handleHealth)

		r.Route("/v1", func(v1 chi.Router) {
			v1.Get("/products", s.handleListProducts)
			v1.Get("/products/{id}", s.handleGetProduct)
			v1.Get("/products/{id}/holders", s.handleHolders)
			v1.Get("/products/{id}/balances/{holder}", s.handleBalance)
			v1.Get("/products/{id}/claimable/{holder}", s.handleClaimable)
			v1.Get("/products/{id}/events", s.handleProductEvents)
			v1.Get("/products/{id}/report", s.handleReport)
			v1.Get("/holders/{holder}/claims", s.handleHolderClaims)
			v1.Get("/approvals/{owner}/{operator}", s.handleGetApproval)
			v1.Get("/tokens", s.handleListTokens)
			v1.Get("/tokens/{token}", s.handleGetToken)
			v1.Get("/tokens/{token}/balances/{account}", s.handleTokenBalance)

			claim := v1.With(idempotent)
			if s.limiter != nil {
				claim = v1.With(s.limiter.Middleware, idempotent)
			}
			claim.Post("/products/{id}/claim/{holder}", s.handleClaim)

			v1.Group(func(protected chi.Router) {
				protected.Use(s.verifier.Middleware)
				protected.Use(idempotent)
				protected.Post("/products/bullet", s.handleCreateBullet)
				protected.Post("/products/coupon", s.handleCreateCoupon)
				protected.Post("/products/{id}/uri", s.handleSetURI)
				protected.Post("/products/{id}/mint", s.handleMintBatch)
				protected.Post("/products/{id}/transfer", s.handleTransfer)
				protected.Post("/products/{id}/repay", s.handleRepay)
				protected.Post("/products/{id}/deposit", s.handleDeposit)
				protected.Post("/products/{id}/residue", s.handleResidue)
				protected.Post("/approvals", s.handleSetApproval)
				protected.Post("/tokens", s.handleRegisterToken)
				protected.Post("/tokens/{token}/approve", s.handleTokenApprove)
				protected.Post("/tokens/{token}/mint", s.handleTokenMint)
			})
		})
	})
	return r
}

// instrument records per-route metrics and an access log line.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.ModuleMetrics().Observe(route, r.Method, status, elapsed)
		s.logger.Info("request",
			"method", r.Method,
			"path", route,
			"status", status,
			"duration", elapsed,
			"request_id", chimw.GetReqID(r.Context()),
			logging.Secret("idempotency_key", r.Header.Get(bondmw.HeaderIdempotencyKey)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status["status"] = "degraded"
			status["indexer"] = "unavailable"
			s.writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, api.Error{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, api.Error{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, api.Error{Error: "missing identity"})
		return common.Address{}, false
	}
	return caller, true
}

func (s *Server) productID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := api.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, err.Error())
		return 0, false
	}
	return id, true
}

func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request, param string) (common.Address, bool) {
	addr, err := api.ParseAddress(chi.URLParam(r, param))
	if err != nil {
		s.badRequest(w, param+": "+err.Error())
		return common.Address{}, false
	}
	return addr, true
}
