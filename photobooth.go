// Package photobooth is a browser photobooth server built with Go and Echo.
// Kiosk clients post captured frames; the server composes them into branded
// photo strips, stores them on disk and offers a password-gated admin
// gallery plus short-lived QR share links.
package photobooth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// App is the central photobooth application. It wires together the
// composition pipeline, store, gallery cache, live hub and handlers.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Store   *Store
	Gallery *GalleryCache
	Hub     *Hub
	Logger  *log.Logger

	brand        atomic.Pointer[branding]
	loginLimiter *RateLimiter
	boothLimiter *RateLimiter
	stopCleanup  func()
	stopHub      context.CancelFunc
}

// WithLogger sets the application logger (default discards everything).
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// New validates cfg and builds a ready-to-serve App. Call Close when done.
func New(cfg Config, opts ...Option) (*App, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	var err error
	a.Store, err = NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("photobooth: init store: %w", err)
	}
	if err := a.loadActiveProfile(); err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("photobooth: init pipeline: %w", err)
	}
	a.stopCleanup = a.Store.StartCleanupScheduler(time.Minute, func(err error) {
		a.Logger.Error("share token cleanup failed", "err", err)
	})

	a.Gallery = NewGalleryCache(cfg.ContentDir, cfg.GalleryCacheTTL)
	a.loginLimiter = NewRateLimiter(5, time.Minute)
	a.boothLimiter = NewRateLimiter(120, time.Minute)

	a.Hub = NewHub(a.Logger.WithPrefix("live"))
	hubCtx, cancel := context.WithCancel(context.Background())
	a.stopHub = cancel
	go a.Hub.Run(hubCtx)

	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// The embedded booth client is the fallback for /public/js/booth.js.
	e.GET("/public/js/booth.js", a.handleBoothScript)
	e.Static("/public", a.Config.StaticDir)
	e.GET("/", a.handleBooth)
	e.GET("/content/:name", a.handleContent)

	// Route-level middleware: an empty-prefix group would also catch
	// unmatched paths.
	booth := []echo.MiddlewareFunc{middleware.BodyLimit(maxBodySize), a.boothLimit}
	e.POST("/compose", a.handleCompose, booth...)
	e.POST("/upload", a.handleUpload, booth...)
	e.POST("/share/:name", a.handleShare, booth...)
	e.GET("/s/:token", a.handleShared)

	e.GET("/admin", a.handleAdmin)
	e.POST("/login", a.handleLogin)
	e.POST("/logout", handleLogout)
	e.GET("/download/:name", a.handleDownload, requireAdmin)
	e.POST("/delete/:name", a.handleDelete, requireAdmin)
	e.POST("/delete-all", a.handleDeleteAll, requireAdmin)
	e.GET("/admin/live", a.Hub.serveWS, requireAdmin)
	e.POST("/admin/profiles", a.handleSaveProfile, requireAdmin)
	e.POST("/admin/profiles/deactivate", a.handleDeactivateProfiles, requireAdmin)
	e.POST("/admin/profiles/:id/activate", a.handleActivateProfile, requireAdmin)
	e.POST("/admin/profiles/:id/delete", a.handleDeleteProfile, requireAdmin)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "addr", a.Config.Addr, "content", a.Config.ContentDir)
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopHub != nil {
		a.stopHub()
	}
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.boothLimiter != nil {
		a.boothLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// published records a gallery change everywhere that tracks one.
func (a *App) published(event, filename string) {
	a.Gallery.Invalidate()
	if err := a.Store.RecordEvent(event, filename); err != nil {
		a.Logger.Warn("record event failed", "event", event, "err", err)
	}
	ev := GalleryEvent{Event: event, Filename: filename}
	if filename != "" {
		ev.URL = contentURL(filename)
	}
	a.Hub.Publish(ev)
}
