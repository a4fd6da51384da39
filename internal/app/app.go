// Package app wires the report API and owns its lifecycle: the HTTP server,
// the temp file reaper and pending artifact deletions.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	v1 "siete/report-portal/report-portal-backend/api/v1"
	"siete/report-portal/report-portal-backend/internal/config"
	"siete/report-portal/report-portal-backend/internal/reports"
	"siete/report-portal/report-portal-backend/internal/reports/cleanup"
)

// App is the running report service
type App struct {
	config *config.Config
	logger *zap.Logger

	db     *sqlx.DB
	api    *v1.ReportsAPI
	reaper *cleanup.Reaper
	router *gin.Engine
	server *http.Server

	mu       sync.Mutex
	started  bool
	closed   bool
	serveErr chan error
}

// New builds the application from a validated configuration. The database
// is only opened when company verification is enabled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		config: cfg,
		logger: logger,
	}

	if cfg.Reports.VerifyCompany {
		logger.Info("Connecting to database",
			zap.String("type", cfg.Database.Type),
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.DBName))
		db, err := reports.Connect(ctx, cfg.Database.DriverName(), cfg.Database.GetDSN())
		if err != nil {
			return nil, err
		}
		a.db = db
	}

	api, err := v1.SetupReportsAPI(cfg, a.db, logger)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("failed to set up reports API: %w", err)
	}
	a.api = api

	a.reaper = cleanup.NewReaper(cleanup.Config{
		Dir:      cfg.Reports.TempDir,
		Interval: cfg.Reports.CleanupInterval,
		MaxAge:   cfg.Reports.MaxAge,
	}, logger)

	a.router = a.buildRouter()
	a.server = &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// Router returns the HTTP handler
func (a *App) Router() http.Handler {
	return a.router
}

// API returns the wired reports API
func (a *App) API() *v1.ReportsAPI {
	return a.api
}

func (a *App) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), reports.Metrics(), cors())

	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group(a.config.Server.APIPrefix)
	{
		v1.RegisterReportsRoutes(api, a.api)
	}
	return router
}

// CORS Middleware
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (a *App) health(c *gin.Context) {
	tool := a.api.Checker.Check(c.Request.Context())
	status := "healthy"
	if !tool.Installed {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"engine":    tool,
		"pending":   a.api.Service.PendingDeletions(),
	})
}

// Start starts the reaper and begins serving HTTP in the background
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started || a.closed {
		return fmt.Errorf("application already started")
	}

	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}

	if err := a.reaper.Start(); err != nil {
		listener.Close()
		return err
	}

	serveErr := make(chan error, 1)
	a.serveErr = serveErr
	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.started = true
	a.logger.Info("Server started",
		zap.String("addr", listener.Addr().String()),
		zap.String("api_prefix", a.config.Server.APIPrefix),
		zap.String("template_dir", a.api.Catalog.Dir()),
		zap.String("engine", a.api.Runner.Path()))
	return nil
}

// Run starts the application and blocks until ctx is done or the server
// fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
	case err, ok := <-a.serveErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops the reaper, drains the HTTP server and deletes artifacts
// still waiting for their deferred deletion.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var shutdownErr error
	if a.started {
		a.reaper.Stop()
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server forced to shutdown: %w", err)
		}
		a.started = false
	}
	a.closed = true

	a.api.Service.FlushDeletions()
	a.closeDB()

	a.logger.Info("Server exiting")
	return shutdownErr
}

func (a *App) closeDB() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
	a.db = nil
}
