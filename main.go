// Command chat-curator is the main entrypoint for the chat filtering service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the key-value store (Postgres or in-memory) and runs idempotent
//     migrations.
//   - Wires the filter publisher and subscriber over the messaging bus,
//     optionally across processes through a websocket hub.
//   - Joins Twitch chat and evaluates every message against the compiled
//     filter groups.
//   - Exposes an HTTP server with filter management, /healthz, /readyz,
//     /metrics, and the evaluated chat stream.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fractalo/chat-curator/badges"
	"github.com/fractalo/chat-curator/chat"
	"github.com/fractalo/chat-curator/config"
	"github.com/fractalo/chat-curator/filtersync"
	"github.com/fractalo/chat-curator/kvstore"
	"github.com/fractalo/chat-curator/messaging"
	"github.com/fractalo/chat-curator/server"
	"github.com/fractalo/chat-curator/telemetry"
	"github.com/fractalo/chat-curator/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	initLogger(cfg)

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-curator", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Store: Postgres when a DSN is configured, in-memory otherwise.
	var store kvstore.Store
	handlerDeps := server.Deps{}
	if cfg.DBDsn != "" {
		database, err := kvstore.Connect()
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := kvstore.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
		store = kvstore.NewPostgres(database)
		handlerDeps.DB = database
	} else {
		slog.Info("DB_DSN not set, using in-memory store without persistence")
		store = kvstore.NewMemory()
	}
	handlerDeps.Store = store

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Messaging bus: in-process by default, websocket when configured.
	var bus messaging.Bus
	if cfg.MessagingHubURL != "" {
		wsBus, err := messaging.DialBus(cfg.MessagingHubURL)
		if err != nil {
			slog.Error("failed to join messaging hub", slog.String("url", cfg.MessagingHubURL), slog.Any("err", err))
			os.Exit(1)
		}
		defer wsBus.Close()
		bus = wsBus
	} else {
		bus = messaging.NewLocalBus()
	}

	// Optionally host a hub for other processes.
	if cfg.MessagingHubListen != "" {
		hub := messaging.NewHub()
		go hub.Run(ctx)
		go func() {
			slog.Info("messaging hub listening", slog.String("addr", cfg.MessagingHubListen))
			srv := &http.Server{
				Addr:              cfg.MessagingHubListen,
				Handler:           hub,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				_ = srv.Close()
			}()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("messaging hub server error", slog.Any("err", err))
			}
		}()
	}

	// Filter sync: the publisher owns storage and compilation, the subscriber
	// mirrors the compiled groups for evaluation.
	publisherChannel := messaging.NewChannel("storage", bus)
	defer publisherChannel.Close()
	publisher := filtersync.NewPublisher(store, publisherChannel)
	if err := publisher.Start(ctx); err != nil {
		slog.Error("failed to start filter publisher", slog.Any("err", err))
		os.Exit(1)
	}
	defer publisher.Stop()

	subscriberChannel := messaging.NewChannel("evaluator", bus)
	defer subscriberChannel.Close()
	subscriber := filtersync.NewSubscriber(subscriberChannel, publisherChannel.ID())
	if err := subscriber.Start(ctx); err != nil {
		slog.Error("failed to start filter subscriber", slog.Any("err", err))
		os.Exit(1)
	}
	defer subscriber.Stop()

	// Badges: Helix when credentials are configured, public fallback otherwise.
	var badgeSource badges.Source
	if err := cfg.ValidateHelixReady(); err == nil {
		badgeSource = twitchapi.NewHelixClient(cfg.TwitchClientID, cfg.TwitchClientSecret)
	} else {
		slog.Info("helix credentials not configured, using badge fallback endpoint only")
	}
	badgeCache := badges.NewCache(store, badgeSource, cfg.BadgeFallbackURL)
	handlerDeps.Badges = badgeCache

	// Chat reader, evaluating against the subscriber-side cache.
	broker := chat.NewBroker()
	handlerDeps.Broker = broker
	handlerDeps.Cache = subscriber.Cache()
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Info("chat reader disabled", slog.Any("err", err))
	} else {
		reader, err := chat.NewReader(chat.Config{
			Channels:   cfg.TwitchChannels,
			Username:   cfg.TwitchBotUsername,
			OAuthToken: cfg.TwitchOAuthToken,
		}, subscriber.Cache(), broker)
		if err != nil {
			slog.Error("failed to build chat reader", slog.Any("err", err))
			os.Exit(1)
		}
		go func() {
			if err := reader.Run(ctx); err != nil {
				slog.Error("chat reader exited with error", slog.Any("err", err))
			}
		}()
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (filter management, health, metrics, chat stream)
	go func() {
		if err := server.Start(ctx, handlerDeps, cfg.ListenAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// initLogger configures the default slog logger from LOG_LEVEL and LOG_FORMAT.
func initLogger(cfg *config.Config) {
	lvl := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", cfg.LogLevel))
	}
	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", strings.ToLower(cfg.LogFormat)))
}
