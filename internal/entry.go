// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vellum/internal/api"
	"github.com/starford/vellum/internal/journal"
	"github.com/starford/vellum/internal/mcpserver"
	"github.com/starford/vellum/internal/sceneservice"
	"github.com/starford/vellum/internal/sse"
	"github.com/starford/vellum/internal/storage"
	"github.com/starford/vellum/internal/watcher"
)

// deps are the components shared by the HTTP and MCP entry points.
type deps struct {
	logger *slog.Logger
	store  *storage.FS
	db     *journal.DB
	svc    *sceneservice.Service
}

func (d *deps) Close() error {
	return d.db.Close()
}

// setup opens the scene directory and journal and builds the scene service.
// Logs go to the configured output, or out when none is set.
func (a *application) setup(ctx context.Context, out io.Writer, extra ...sceneservice.Option) (*deps, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config
	if a.logOutput != nil {
		out = a.logOutput
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("scenes_dir", cfg.Scenes.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure scenes directory exists.
	if err := os.MkdirAll(cfg.Scenes.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scenes dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Scenes.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := journal.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	opts := append([]sceneservice.Option{
		sceneservice.WithLogger(logger),
		sceneservice.WithChangeOptions(cfg.History.ChangeOptions(logger)),
		sceneservice.WithMaxEntries(cfg.History.MaxEntries),
	}, extra...)
	svc := sceneservice.NewService(store, db, opts...)

	// Run initial sync.
	if err := svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &deps{logger: logger, store: store, db: db, svc: svc}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	d, err := app.setup(ctx, os.Stdout, sceneservice.WithEvents(publishTo(broker)))
	if err != nil {
		return err
	}
	defer d.Close()

	cfg, logger := app.config, d.logger

	if cfg.Auth.AuthEnabled() {
		logger.Info("Authentication enabled", slog.String("mode", cfg.Auth.Mode))
	} else {
		logger.Warn("Authentication disabled")
	}

	apiRouter := api.NewRouter(d.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; /api/events is served by the broker inside it.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start scene file watcher.
	if cfg.Scenes.Watch {
		g.Go(func() error {
			if err := watcher.Watch(gCtx, d.store.Root(), d.svc, logger); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// publishTo forwards scene service events to the SSE broker.
func publishTo(b *sse.Broker) sceneservice.EventFunc {
	return func(ev sceneservice.Event) {
		sc := sse.SceneChange{Kind: ev.Kind, ID: ev.SceneID, Name: ev.Name, Live: ev.Live}
		if h := ev.History; h != nil {
			sc.History = sse.HistoryState{Undo: h.Undo, Redo: h.Redo, CanUndo: h.CanUndo, CanRedo: h.CanRedo}
		}
		b.PublishScene(sc)
	}
}

// RunMCP serves the scene editing tools over stdio. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	d, err := app.setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer d.Close()

	d.logger.Info("MCP server starting on stdio")
	return mcpserver.New(d.svc).ServeStdio()
}
