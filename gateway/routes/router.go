package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendingpool/gateway/middleware"
)

const (
	// LendingPrefix roots every lending route.
	LendingPrefix = "/v1/lending"

	ReadRateKey  = "lending"
	WriteRateKey = "lending-write"
	WriteScope   = "lending:write"
)

type Config struct {
	Lending       Lending
	Timeout       time.Duration
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// New builds the HTTP surface: health and metrics endpoints plus the lending
// routes. Write routes require an authenticated caller.
func New(cfg Config) (http.Handler, error) {
	if cfg.Lending == nil {
		return nil, errors.New("routes: lending engine required")
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = middleware.NewAuthenticator(middleware.AuthConfig{}, cfg.Logger)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lr := &lendingRoutes{
		engine:  cfg.Lending,
		timeout: cfg.Timeout,
		logger:  logger.With(slog.String("component", "gateway-lending")),
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route(LendingPrefix, func(sr chi.Router) {
		if cfg.Observability != nil {
			sr.Use(cfg.Observability.Middleware("lending"))
		}
		sr.Group(func(reads chi.Router) {
			if cfg.RateLimiter != nil {
				reads.Use(cfg.RateLimiter.Middleware(ReadRateKey))
			}
			lr.mountReads(reads)
		})
		sr.Group(func(writes chi.Router) {
			if cfg.RateLimiter != nil {
				writes.Use(cfg.RateLimiter.Middleware(WriteRateKey))
			}
			writes.Use(cfg.Authenticator.Middleware(WriteScope))
			lr.mountWrites(writes)
		})
	})

	return r, nil
}
