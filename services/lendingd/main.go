package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendingpool/config"
	"lendingpool/core/events"
	"lendingpool/gateway/auth"
	"lendingpool/gateway/middleware"
	"lendingpool/gateway/routes"
	"lendingpool/native/bank"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/lending"
	"lendingpool/observability/logging"
	telemetry "lendingpool/observability/otel"
	"lendingpool/services/lending/engine"
	daemonconfig "lendingpool/services/lendingd/config"
	"lendingpool/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LENDING_ENV"))
	logger := logging.Setup("lendingd", env)

	cfg, err := daemonconfig.Load(cfgPath)
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger = logging.SetupWithOptions("lendingd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if err := run(logger, env, cfg); err != nil {
		fatal(logger, "lendingd stopped", err)
	}
}

func run(logger *slog.Logger, env string, cfg daemonconfig.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "lendingd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	poolCfg, err := config.Load(cfg.PoolConfig)
	if err != nil {
		return fmt.Errorf("load pool config: %w", err)
	}
	quotes, err := poolCfg.Oracle()
	if err != nil {
		return fmt.Errorf("configure oracle: %w", err)
	}
	ledger := bank.NewLedger()
	pool := lending.NewPool(quotes, ledger, poolCfg.AccessControl(), poolCfg.PoolParams())
	pool.SetLogger(logger)
	pool.SetPauses(poolCfg.Pauses)
	pool.SetEmitter(events.LogEmitter{Logger: logger.With(slog.String("component", "lending-events"))})

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(pool, ledger, quotes, db, engine.Options{
		Logger: logger,
		Quota: nativecommon.Quota{
			MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerEpoch,
			MaxValuePerEpoch:    cfg.Quota.MaxValuePerEpoch,
			EpochSeconds:        cfg.Quota.EpochSeconds,
		},
	})
	found, err := eng.Restore()
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if !found {
		if err := pool.InitGenesis(poolCfg.Genesis()); err != nil {
			return fmt.Errorf("init genesis: %w", err)
		}
		if err := poolCfg.Fund(ledger); err != nil {
			return fmt.Errorf("fund genesis balances: %w", err)
		}
		hash, err := eng.Persist()
		if err != nil {
			return fmt.Errorf("persist genesis: %w", err)
		}
		logger.Info("lending pool initialised from genesis", "reserves", len(poolCfg.Reserves), "snapshot", hash.Hex())
	}

	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for key, limit := range cfg.RateLimits {
		limits[key] = middleware.RateLimit{
			RatePerSecond:     limit.RatePerSecond,
			RequestsPerMinute: limit.RequestsPerMinute,
			Burst:             limit.Burst,
			DefaultTokens:     limit.DefaultTokens,
			Tokens:            limit.Tokens,
		}
	}
	authenticator := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ScopeClaim: cfg.Auth.ScopeClaim,
		ClockSkew:  cfg.Auth.ClockSkew,
	}, logger)
	if cfg.Auth.SingleUseTokens {
		tokens, err := auth.NewLevelDBReplayStore(cfg.TokenStorePath())
		if err != nil {
			return fmt.Errorf("open token store: %w", err)
		}
		defer func() {
			stop()
			_ = tokens.Close()
		}()
		authenticator.SetReplayGuard(tokens)
		go tokens.Run(ctx, time.Minute, func(err error) {
			logger.Warn("prune spent tokens", "error", err)
		})
	}

	handler, err := routes.New(routes.Config{
		Lending:       eng,
		Timeout:       cfg.RequestTimeout,
		Authenticator: authenticator,
		RateLimiter:   middleware.NewRateLimiter(limits, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true, LogRequests: strings.EqualFold(env, "dev")}, logger),
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowCredentials: cfg.CORS.AllowCredentials,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	tcpAddr, _ := listener.Addr().(*net.TCPAddr)
	loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
	dev := strings.EqualFold(env, "dev")
	if !cfg.TLS.Enabled() && !dev && !loopback {
		_ = listener.Close()
		return errors.New("plaintext lendingd mode is restricted to loopback listeners or dev environment")
	}
	if !cfg.Auth.Enabled && !dev && !loopback {
		_ = listener.Close()
		return errors.New("unauthenticated writes are restricted to loopback listeners or dev environment")
	}

	server := &http.Server{
		Handler:           otelhttp.NewHandler(handler, "lendingd"),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", "address", listener.Addr().String(), "tls", cfg.TLS.Enabled())
		if cfg.TLS.Enabled() {
			serverErr <- server.ServeTLS(listener, cfg.TLS.CertPath, cfg.TLS.KeyPath)
			return
		}
		serverErr <- server.Serve(listener)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err)
			_ = server.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve http: %w", err)
		}
	}

	if hash, err := eng.Persist(); err != nil {
		logger.Error("persist lending state on shutdown", "error", err)
	} else {
		logger.Info("lending state persisted", "snapshot", hash.Hex())
	}
	return serveErr
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
