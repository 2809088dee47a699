// Command sessiontrust-server serves the /auth routes over HTTP.
//
// Engine settings come from SESSIONTRUST_* variables (see
// sessiontrust.LoadConfigFromEnv). Server wiring:
//
//	ADDR           listen address (default :8080)
//	DATABASE_URL   Postgres DSN; accounts and tokens are kept in memory when unset
//	REDIS_URL      Redis URL for the token store and login throttle
//	RESEND_*       Resend mail settings; messages are logged when RESEND_API_KEY is unset
//	LOG_LEVEL      logrus level (default info)
//	LOG_FORMAT     "json" or "text"
//	OTEL_ENDPOINT  OTLP/HTTP trace endpoint; tracing is off when unset
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrEthical07/sessiontrust"
	"github.com/MrEthical07/sessiontrust/httpapi"
	"github.com/MrEthical07/sessiontrust/notify"
	"github.com/MrEthical07/sessiontrust/storage/memory"
	"github.com/MrEthical07/sessiontrust/storage/postgres"
)

type serverConfig struct {
	Addr            string              `env:"ADDR" envDefault:":8080"`
	DatabaseURL     string              `env:"DATABASE_URL"`
	RedisURL        string              `env:"REDIS_URL"`
	LogLevel        string              `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string              `env:"LOG_FORMAT" envDefault:"text"`
	OTelEndpoint    string              `env:"OTEL_ENDPOINT"`
	ShutdownTimeout time.Duration       `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Resend          notify.ResendConfig `envPrefix:"RESEND_"`
}

func main() {
	logger := logrus.New()

	var sc serverConfig
	if err := env.Parse(&sc); err != nil {
		logger.WithError(err).Fatal("parse server config")
	}
	configureLogger(logger, sc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, sc, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func configureLogger(logger *logrus.Logger, sc serverConfig) {
	if level, err := logrus.ParseLevel(sc.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithError(err).Warn("unknown log level, using info")
	}
	if sc.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

func run(ctx context.Context, sc serverConfig, logger *logrus.Logger) error {
	cfg, err := sessiontrust.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	shutdownTracing, err := setupTracing(ctx, sc.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("flush traces")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	builder := sessiontrust.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithMetricsRegisterer(registry)

	if sc.RedisURL != "" {
		opts, err := redis.ParseURL(sc.RedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		// Tokens go to Redis unless Postgres holds them below.
		builder.WithRedis(client)
	}

	switch {
	case sc.DatabaseURL != "":
		store, err := postgres.Open(ctx, sc.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		builder.WithAccountStore(store).WithTokenStore(store)
		logger.Info("using postgres store")
	case sc.RedisURL != "":
		builder.WithAccountStore(memory.New())
		logger.Warn("DATABASE_URL not set, accounts are kept in memory")
	default:
		store := memory.New()
		builder.WithAccountStore(store).WithTokenStore(store)
		logger.Warn("DATABASE_URL not set, accounts and tokens are kept in memory")
	}

	var notifier sessiontrust.Notifier = notify.NewLogNotifier(logger)
	if sc.Resend.APIKey != "" {
		resend, err := notify.NewResendNotifier(sc.Resend, nil, logger)
		if err != nil {
			return err
		}
		notifier = resend
	}
	builder.WithNotifier(notifier)

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	router := mux.NewRouter()
	httpapi.NewHandler(engine, logger).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", sc.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
