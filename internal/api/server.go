// Package api serves the session inspector over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sessionlens/internal/completeness"
	"github.com/zulandar/sessionlens/internal/inspector"
	"github.com/zulandar/sessionlens/internal/override"
	"github.com/zulandar/sessionlens/internal/refresh"
	"github.com/zulandar/sessionlens/internal/store"
)

// Inspector is the set of operations the API exposes.
type Inspector interface {
	ListSessions(ctx context.Context, f store.SessionFilter) ([]inspector.Summary, error)
	GetSessionDetails(ctx context.Context, sessionID string) (*inspector.Details, error)
	GetCompleteness(ctx context.Context, sessionID string) (completeness.Status, error)
	SaveEdits(ctx context.Context, sessionID string, e inspector.Edits) (*inspector.SaveResult, error)
	ClearLocalOverride(ctx context.Context, sessionID string) error
	ListOverrides() ([]override.Patch, error)
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Inspector Inspector
	Hub       *refresh.Hub // nil disables live events
	Port      int
	Out       io.Writer
	Logger    *slog.Logger
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Inspector == nil {
		return fmt.Errorf("api: inspector is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Inspector API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, &handlers{svc: opts.Inspector, hub: opts.Hub, log: logger})
	return router
}
