// Package server
//
// @title Yesterday Backup API
// @version 1.0
// @description Backup inventory and restoration control
// @host localhost:8082
// @BasePath /
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yesterday-dev/yesterday/internal/archives"
	"github.com/yesterday-dev/yesterday/internal/config"
	"github.com/yesterday-dev/yesterday/internal/containers"
	"github.com/yesterday-dev/yesterday/internal/metrics"
	"github.com/yesterday-dev/yesterday/internal/models"
	"github.com/yesterday-dev/yesterday/internal/restore"
)

// Restorer starts restorations and reports their progress
type Restorer interface {
	Start(ctx context.Context, backupID string) (restore.Job, error)
	Progress(backupID string) (restore.Job, error)
	Jobs() []restore.Job
}

// ArchiveCatalog lists the backups available in the bucket
type ArchiveCatalog interface {
	List(ctx context.Context, force bool) ([]models.Archive, error)
}

// ContainerManager inspects and stops restored backups
type ContainerManager interface {
	Loaded(ctx context.Context) ([]string, error)
	Unload(ctx context.Context, backupID string) error
}

// Dependencies are the collaborators the HTTP layer delegates to
type Dependencies struct {
	Restorer   Restorer
	Catalog    ArchiveCatalog
	Containers ContainerManager
	Metrics    http.Handler // optional
}

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	db        *gorm.DB
	config    *config.Config
	logger    zerolog.Logger
	validator *validator.Validate
	deps      Dependencies
	scheduler *cron.Cron
	closers   []func() error
	version   string
}

// New creates a new server instance with production collaborators
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize database with production settings
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	inspector, err := containers.NewInspector(cfg.Containers.Prefix, cfg.Containers.Services, zlog)
	if err != nil {
		return nil, err
	}

	lister := archives.NewGSUtilLister(cfg.Storage.Bucket, nil, zlog)
	catalog := archives.NewCatalog(db, lister, zlog)

	restoreMetrics := metrics.NewRestorations()
	controller := restore.NewController(
		restore.NewStore(),
		restore.NewScriptRunner(cfg.Restore.ScriptPath, zlog),
		restore.NewClassifier(nil),
		inspector,
		restore.Options{
			MonotonicProgress: cfg.Restore.MonotonicProgress,
			Observer:          restoreMetrics,
		},
		zlog,
	)

	server := newServer(cfg, zlog, version, Dependencies{
		Restorer:   controller,
		Catalog:    catalog,
		Containers: inspector,
		Metrics:    restoreMetrics.Handler(),
	})
	server.db = db
	server.closers = append(server.closers, inspector.Close)

	// Refresh the archive cache periodically
	if cfg.Inventory.RefreshSchedule != "" {
		scheduler, err := catalog.StartScheduler(cfg.Inventory.RefreshSchedule)
		if err != nil {
			return nil, err
		}
		server.scheduler = scheduler
	}

	zlog.Info().
		Str("bucket", cfg.Storage.Bucket).
		Str("restore_script", cfg.Restore.ScriptPath).
		Bool("monotonic_progress", cfg.Restore.MonotonicProgress).
		Msg("Server initialized")

	return server, nil
}

// newServer wires the router around already-built collaborators
func newServer(cfg *config.Config, zlog zerolog.Logger, version string, deps Dependencies) *Server {
	s := &Server{
		config:    cfg,
		logger:    zlog,
		validator: newValidator(),
		deps:      deps,
		version:   version,
	}
	s.setupRouter()
	return s
}

// initDatabase opens the SQLite inventory cache
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 4
		maxIdleConns    = 2
		connMaxLifetime = 300  // 5 minutes
		busyTimeout     = 5000 // 5 seconds
	)

	db, err := gorm.Open(sqlite.Open(cfg.Inventory.DatabaseURL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	origins := s.config.HTTP.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	s.router.Use(cors.New(corsConfig))

	s.router.GET("/health", s.healthCheck)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	api := s.router.Group("/api")
	{
		api.GET("/backups", s.listBackups)
		api.GET("/backups/loaded", s.listLoadedBackups)
		api.POST("/backups/:id/load", s.loadBackup)
		api.GET("/backups/:id/progress", s.getProgress)
		api.POST("/backups/:id/unload", s.unloadBackup)
		api.GET("/restorations", s.listRestorations)
		api.GET("/current-backup", s.getCurrentBackup)
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "yesterday-api",
		"version":   s.version,
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              s.config.HTTP.Address,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.config.HTTP.Address).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Restorations cannot be cancelled; anything still running is abandoned
	// along with the process, as is its in-memory record.
	for _, job := range s.deps.Restorer.Jobs() {
		if job.Status.IsRunning() {
			s.logger.Warn().
				Str("backup_id", job.BackupID).
				Str("status", string(job.Status)).
				Int("progress", job.Progress).
				Msg("Restoration still running at shutdown")
		}
	}

	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.logger.Warn().Err(err).Msg("Error releasing resource")
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.logger.Error().Err(err).Msg("Error closing database")
			}
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
