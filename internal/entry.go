// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cpbuild/internal/api"
	"github.com/starford/cpbuild/internal/convert"
	"github.com/starford/cpbuild/internal/index"
	"github.com/starford/cpbuild/internal/layout"
	"github.com/starford/cpbuild/internal/mcpserver"
	"github.com/starford/cpbuild/internal/normalize"
	"github.com/starford/cpbuild/internal/pageservice"
	"github.com/starford/cpbuild/internal/render"
	"github.com/starford/cpbuild/internal/site"
	"github.com/starford/cpbuild/internal/sse"
	"github.com/starford/cpbuild/internal/storage"
)

// ErrBuildFailed is returned by Build when at least one document failed.
var ErrBuildFailed = errors.New("build failed")

// components are the long-lived pieces shared by every runner.
type components struct {
	logger  *slog.Logger
	db      *index.DB
	output  storage.Provider
	builder *site.Builder
	service *pageservice.Service
}

func (c *components) Close() error {
	return c.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

func setup(app *application) (*components, error) {
	cfg := app.config
	logger := app.logger
	baseURL := cfg.ResolveBaseURL()

	logger.Info("Configuration loaded",
		slog.String("input", cfg.Paths.Input),
		slog.String("output", cfg.Paths.Output),
		slog.String("templates", cfg.Paths.Templates),
		slog.String("static", cfg.Paths.Static),
		slog.String("base_url", baseURL),
		slog.String("index_path", cfg.Index.Path),
		slog.Int("workers", cfg.Build.Workers),
		slog.String("log_level", cfg.App.LogLevel.String()))

	sources, err := storage.NewFS(cfg.Paths.Input)
	if err != nil {
		return nil, fmt.Errorf("init sources: %w", err)
	}
	tmplFS, err := storage.NewFS(cfg.Paths.Templates)
	if err != nil {
		return nil, fmt.Errorf("init templates: %w", err)
	}
	output, err := storage.EnsureFS(cfg.Paths.Output)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}
	var static storage.Provider
	if cfg.Paths.Static != "" {
		static, err = storage.NewFS(cfg.Paths.Static, storage.IncludeHidden())
		if err != nil {
			return nil, fmt.Errorf("init static: %w", err)
		}
	}

	r := render.NewGoldmark(render.Options{
		Highlight:      cfg.Render.Highlight,
		HighlightStyle: cfg.Render.HighlightStyle,
	})
	templates := layout.NewProviderStore(tmplFS)
	comp, err := layout.NewComposer(templates, baseURL, cfg.Site.HistoryBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init layout: %w", err)
	}
	preview, err := pageservice.NewPreviewConverter(r, cfg.Site.ImgRoot, cfg.Preview.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init preview: %w", err)
	}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	b := site.NewBuilder(site.Config{
		Converter:    convert.New(normalize.New(cfg.Site.ImgRoot), r, comp),
		Sources:      sources,
		Output:       output,
		Static:       static,
		Templates:    templates,
		Index:        db,
		BaseURL:      baseURL,
		Workers:      cfg.Build.Workers,
		Force:        cfg.Build.Force,
		ShowProgress: cfg.Build.ShowProgress,
		Logger:       logger,
	})

	var sanitize *bluemonday.Policy
	if cfg.Preview.Sanitize {
		sanitize = pageservice.SanitizePolicy()
	}

	return &components{
		logger:  logger,
		db:      db,
		output:  output,
		builder: b,
		service: pageservice.NewService(b, db, output, preview, sanitize),
	}, nil
}

// Build converts the whole source tree once and exits.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger)

	c, err := setup(app)
	if err != nil {
		return err
	}
	defer c.Close()

	rep, err := c.builder.BuildAll(ctx)
	if err != nil {
		return err
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", ErrBuildFailed, rep.Failed, rep.Built+rep.Skipped+rep.Failed)
	}
	return nil
}

// Serve builds the site, then serves the output directory, the HTTP API and
// live page events until ctx is cancelled or a signal arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	c, err := setup(app)
	if err != nil {
		return err
	}
	defer c.Close()

	// Run initial build.
	if _, err := c.builder.BuildAll(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(c.service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if _, _, err := c.db.ListPages(1, 0, "", ""); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	// Built site.
	r.Handle("/*", http.FileServer(http.Dir(c.output.Root())))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			if err := c.builder.Watch(gCtx, broker.PublishPageEvent); err != nil {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP builds the site and serves the MCP tools on stdin/stdout. Logs go
// to stderr unless a logger is supplied.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger)

	c, err := setup(app)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.builder.BuildAll(ctx); err != nil {
		app.logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	return mcpserver.New(c.service).ServeStdio()
}
