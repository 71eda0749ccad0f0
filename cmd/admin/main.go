package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-page-designer/internal/catalog"
	"go-page-designer/internal/clipboard"
	"go-page-designer/internal/config"
	"go-page-designer/internal/dispatcher"
	"go-page-designer/internal/operations"
	"go-page-designer/internal/security"
	"go-page-designer/internal/storage"
	"go-page-designer/internal/templatemanager"

	"github.com/justinas/nosurf"
)

//go:embed templates/*.html
var templateFS embed.FS

// adminApplication holds the application-wide dependencies for the designer server.
type adminApplication struct {
	logger        *slog.Logger
	security      config.SecurityConfig
	templates     *templatemanager.Manager
	designer      *dispatcher.Dispatcher
	clipboards    *clipboard.Manager
	surfaces      *surfaceHub
	templateCache map[string]*template.Template
}

// newTemplateData creates a map of data to pass to templates, including the CSRF token.
func (app *adminApplication) newTemplateData(r *http.Request) map[string]any {
	return map[string]any{
		"CSRFToken":   nosurf.Token(r),
		"CurrentYear": time.Now().Year(),
	}
}

func newTemplateCache() (map[string]*template.Template, error) {
	cache := map[string]*template.Template{}

	// Pages define a "content" block rendered by layout.html.
	pages := []string{
		"dashboard.html",
		"message.html",
	}
	for _, page := range pages {
		ts, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("error parsing page template %s: %w", page, err)
		}
		cache[page] = ts
	}
	return cache, nil
}

// newAdminApplication wires the designer services on top of store and cat.
func newAdminApplication(cfg *config.Config, store storage.DataStore, cat catalog.Catalog, logger *slog.Logger) (*adminApplication, error) {
	templateCache, err := newTemplateCache()
	if err != nil {
		return nil, err
	}

	gate := security.NewGate(cfg.Security.Authorizer(), logger)
	engine := operations.NewEngine(cat, gate, logger)
	manager := templatemanager.NewManager(store, logger)
	clipboards := clipboard.NewManager(cfg.Clipboard.TTL, cfg.Clipboard.SingleStorage)

	app := &adminApplication{
		logger:        logger,
		security:      cfg.Security,
		templates:     manager,
		designer:      dispatcher.New(engine, manager, clipboards, cfg.Designer.Enabled, logger),
		clipboards:    clipboards,
		surfaces:      newSurfaceHub(logger),
		templateCache: templateCache,
	}
	manager.Subscribe(app.surfaces.notify)
	return app, nil
}

// expireClipboards drops idle clipboards until ctx is done.
func (app *adminApplication) expireClipboards(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.clipboards.CleanupExpired(); n > 0 {
				app.logger.Info("Expired idle clipboards", "count", n)
			}
		}
	}
}

func main() {
	configPath := flag.String("config", "", "Path to the configuration file (default: ./designer.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stdout)

	store, closeStore, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path, logger)
	if err != nil {
		logger.Error("Failed to initialize template store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close template store", "error", err)
		}
	}()
	logger.Info("Using template store", "driver", cfg.Storage.Driver, "path", store.GetBasePath())

	cat, err := catalog.LoadYAML(cfg.Catalog.Path)
	if err != nil {
		logger.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}

	app, err := newAdminApplication(cfg, store, cat, logger)
	if err != nil {
		logger.Error("Failed to create designer application", "error", err)
		os.Exit(1)
	}
	logger.Info("Designer UI templates cached successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go app.expireClipboards(ctx, time.Hour)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting designer server", "address", fmt.Sprintf("http://localhost%s", addr), "designerEnabled", cfg.Designer.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Designer server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down designer server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
		app.surfaces.closeAll()
	}
}
