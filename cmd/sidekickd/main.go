// Sidekickd - background process for the Sidekick profile harvester.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/tebita/sidekick/internal/api"
	"github.com/tebita/sidekick/internal/background"
	"github.com/tebita/sidekick/internal/browser"
	"github.com/tebita/sidekick/internal/bus"
	"github.com/tebita/sidekick/internal/config"
	"github.com/tebita/sidekick/internal/domain"
	"github.com/tebita/sidekick/internal/identity"
	"github.com/tebita/sidekick/internal/letter"
	"github.com/tebita/sidekick/internal/middleware"
	"github.com/tebita/sidekick/internal/scrape"
	"github.com/tebita/sidekick/internal/state"
	"github.com/tebita/sidekick/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting background process", "port", cfg.Port, "browser_enabled", cfg.BrowserEnabled)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Message bus and state coordinator.
	hub := bus.NewHub(logger)
	mux := bus.NewMux(logger)
	coord := state.New(repo, hub, logger)

	// External collaborators.
	ident := identity.NewClient(cfg.IdentityURL, cfg.IdentityKey, logger)
	gen := letter.NewClient(cfg.WebhookURL, logger)

	// Browser boundary (optional, like any collaborator).
	var scraper background.Scraper
	if cfg.BrowserEnabled {
		b, err := browser.Connect(ctx, cfg.BrowserURL, cfg.BrowserHeadless, logger)
		if err != nil {
			slog.Warn("Browser unavailable, extraction disabled", "error", err)
		} else {
			defer func() {
				if closeErr := b.Close(); closeErr != nil {
					slog.Debug("Failed to close browser", "error", closeErr)
				}
			}()

			orch := scrape.NewOrchestrator(cfg.AnchorTimeout, cfg.SectionTimeout, func(record domain.Profile) {
				// Extraction results enter the bus as fire-and-forget
				// events, same as an in-page script would send them.
				coord.ApplyExtractedProfile(ctx, &record)
				hub.Broadcast(bus.KindProfileScraped, record)
			}, logger)

			watcher := browser.NewWatcher(b, orch, cfg.SectionTimeout, logger)
			go watcher.Watch(ctx)
			scraper = watcher
			slog.Info("Browser watcher started")
		}
	}
	if scraper == nil {
		slog.Info("Extraction disabled (no browser)")
	}

	// Background dispatch table.
	bg := background.New(coord, ident, gen, scraper, repo, hub, logger)
	bg.Register(mux)

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	api.NewHandler(coord, repo).RegisterRoutes(r)

	// Surface WebSocket endpoint.
	r.Get("/ws/surface", bus.NewServer(hub, mux, logger).ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // surfaces hold long-lived WebSocket connections
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Background process stopped")
}
