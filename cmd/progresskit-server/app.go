package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"progresskit"
	jsonfileAdapter "progresskit/adapters/jsonfile"
	mem "progresskit/adapters/memory"
	redisAdapter "progresskit/adapters/redis"
	sqlxAdapter "progresskit/adapters/sqlx"
	"progresskit/api/httpapi"
	"progresskit/config"
	"progresskit/engine"
	"progresskit/integrations/webhook"
	"progresskit/notify"
	"progresskit/realtime"
	"progresskit/scoring"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Service *progresskit.Service
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	if path := os.Getenv("PROGRESSKIT_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStore(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	return setupStore(ctx, cfg)
}

func provideNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if len(cfg.Webhooks.Endpoints) > 0 {
		return webhook.New(cfg.Webhooks.Endpoints)
	}
	return notify.LogNotifier{Log: log}
}

func provideService(cfg *config.Config, store engine.Store, hub *realtime.Hub, notifier notify.Notifier, log *slog.Logger) *progresskit.Service {
	return progresskit.New(
		progresskit.WithStore(store),
		progresskit.WithRealtime(hub),
		progresskit.WithDispatchMode(engine.DispatchAsync),
		progresskit.WithScorer(scoring.NewTableScorer(cfg.Scoring)),
		progresskit.WithNotifier(notifier),
		progresskit.WithLogger(log),
	)
}

func provideHandler(svc *progresskit.Service, hub *realtime.Hub, cfg *config.Config) http.Handler {
	return httpapi.NewMux(svc.Processor, svc.Engine, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStore creates the progression store selected by configuration.
func setupStore(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		return jsonfileAdapter.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
