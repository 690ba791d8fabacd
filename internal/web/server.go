// Package web serves the HTTP control surface for one server directory:
// status and lifecycle endpoints, background jobs, scheduled backups,
// health probes and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/robfig/cron/v3"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/management"
	"github.com/KevinTCoughlin/spud/internal/metrics"
	"github.com/KevinTCoughlin/spud/internal/platform"
	"github.com/KevinTCoughlin/spud/internal/process"
	"github.com/KevinTCoughlin/spud/internal/server"
)

const (
	shutdownTimeout    = 10 * time.Second
	goroutineThreshold = 1000
)

// Options configures a Server.
type Options struct {
	Controller   *management.Controller
	Orchestrator *management.Orchestrator
	Metrics      *metrics.Metrics
	Runner       platform.CommandRunner
	Now          func() time.Time
}

// Server is the gin application plus its backup schedule.
type Server struct {
	ctl     *management.Controller
	orch    *management.Orchestrator
	metrics *metrics.Metrics
	jobs    *jobStore
	cron    *cron.Cron
	router  *gin.Engine
	now     func() time.Time

	// base is the parent context for background jobs.
	base context.Context
}

// New builds the router and parses the backup schedule, if any.
func New(opts Options) (*Server, error) {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Orchestrator == nil {
		opts.Orchestrator = management.NewOrchestrator(opts.Controller)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		ctl:     opts.Controller,
		orch:    opts.Orchestrator,
		metrics: opts.Metrics,
		jobs:    newJobStore(opts.Now),
		cron:    cron.New(),
		now:     opts.Now,
		base:    context.Background(),
	}

	cfg := s.ctl.Config()
	if cfg.BackupSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.BackupSchedule, s.scheduledBackup); err != nil {
			return nil, fmt.Errorf("%w: backup schedule %q: %v", config.ErrInvalidSetting, cfg.BackupSchedule, err)
		}
	}

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(goroutineThreshold))
	health.AddReadinessCheck("dependencies", func() error {
		return platform.RequireCommands(opts.Runner, "screen", cfg.JavaPath)
	})
	health.AddReadinessCheck("directories", cfg.ValidateDirectories)

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/start", s.handleStart)
	api.POST("/restart", s.handleRestart)
	api.POST("/stop", s.handleStop)
	api.POST("/backup", s.handleBackup)
	api.GET("/jobs/:id", s.handleJob)

	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/live", gin.WrapF(health.LiveEndpoint))
	r.GET("/ready", gin.WrapF(health.ReadyEndpoint))

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr and runs the backup schedule until ctx is done.
// Background jobs are cancelled with ctx and awaited before Run returns.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.base = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.cron.Start()
	defer func() {
		<-s.cron.Stop().Done()
		s.jobs.wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Wait blocks until background jobs have finished.
func (s *Server) Wait() {
	s.jobs.wait()
}

func (s *Server) scheduledBackup() {
	job, err := management.NewBackupJob(s.ctl.Config(), management.ScopeFull, true, s.now())
	if err != nil {
		slog.Error("scheduled backup", "err", err)
		return
	}
	s.jobs.start(s.base, "scheduled-backup", func(ctx context.Context) (any, error) {
		return s.orch.Backup(ctx, job, false)
	})
}

type statusResponse struct {
	management.Status
	Config *config.ServerConfig `json:"config"`
}

func (s *Server) handleStatus(c *gin.Context) {
	st, err := s.ctl.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{Status: st, Config: s.ctl.Config()})
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.ctl.Start(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "starting"})
}

func (s *Server) handleRestart(c *gin.Context) {
	if err := s.ctl.Restart(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restarting"})
}

func (s *Server) handleStop(c *gin.Context) {
	id := s.jobs.start(s.base, "stop", func(ctx context.Context) (any, error) {
		return nil, s.ctl.Stop(ctx)
	})
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) handleBackup(c *gin.Context) {
	offline, err := queryBool(c, "offline")
	if err != nil {
		writeError(c, err)
		return
	}
	force, err := queryBool(c, "force")
	if err != nil {
		writeError(c, err)
		return
	}
	scope, err := management.ParseScope(c.DefaultQuery("scope", management.ScopeFull.String()))
	if err != nil {
		writeError(c, err)
		return
	}
	job, err := management.NewBackupJob(s.ctl.Config(), scope, force, s.now())
	if err != nil {
		writeError(c, err)
		return
	}

	id := s.jobs.start(s.base, "backup", func(ctx context.Context) (any, error) {
		return s.orch.Backup(ctx, job, offline)
	})
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) handleJob(c *gin.Context) {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func queryBool(c *gin.Context, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", config.ErrInvalidSetting, key, v)
	}
	return b, nil
}

// statusFor maps an operation error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, management.ErrAlreadyRunning),
		errors.Is(err, management.ErrNotRunning),
		errors.Is(err, process.ErrNotFound),
		errors.Is(err, management.ErrBackupExists),
		errors.Is(err, management.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, config.ErrMissingSetting),
		errors.Is(err, config.ErrInvalidSetting),
		errors.Is(err, config.ErrInvalidMemoryBounds),
		errors.Is(err, config.ErrNoDirectoryFound),
		errors.Is(err, server.ErrUnsupportedVersion),
		errors.Is(err, server.ErrNoJarFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// requestLogger logs one line per request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		level := slog.LevelInfo
		if path == "/live" || path == "/ready" || path == "/metrics" {
			level = slog.LevelDebug
		}
		slog.Log(c.Request.Context(), level, "http_request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}
