package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/deepguard/backend/internal/api"
	"github.com/deepguard/backend/internal/classifier"
	"github.com/deepguard/backend/internal/config"
	"github.com/deepguard/backend/internal/content"
	"github.com/deepguard/backend/internal/history"
	"github.com/deepguard/backend/internal/logging"
	"github.com/deepguard/backend/internal/metrics"
	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/notify"
	"github.com/deepguard/backend/internal/session"
	"github.com/deepguard/backend/internal/storage"
	"github.com/deepguard/backend/internal/upload"
	"github.com/deepguard/backend/internal/web"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "deepguard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Config lives next to the executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	configPath := filepath.Join(filepath.Dir(exePath), "deepguard.config.xml")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.LogConfig{
		ServiceName: "deepguard",
		LogLevel:    cfg.Advanced.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	var (
		counters       = metrics.Nop()
		metricsHandler http.Handler
	)
	if cfg.Advanced.EnableMetrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		counters = metrics.New(registry)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	// Upload validation
	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return err
	}
	validator := upload.NewValidator(upload.Constraints{
		AllowedTypes: cfg.AllowedTypes(),
		MaxSize:      maxUpload,
	})
	uploads := upload.NewManager(validator, storage.NewMemoryStore(), counters, logger.Named("upload"))

	// Analysis ledger
	ledger, err := history.NewDuckStore(cfg.Demo.HistoryDatabase, cfg.Advanced.DuckDBThreads, logger.Named("history"))
	if err != nil {
		return fmt.Errorf("failed to open analysis history: %w", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("failed to close analysis history", zap.Error(err))
		}
	}()

	sessions := session.NewManager(uploads, classifier.New(nil), session.Options{
		ProcessingDelay:     cfg.ProcessingDelay(),
		MaxSessions:         cfg.Demo.MaxSessions,
		NotificationBacklog: cfg.Demo.NotificationBacklog,
		Recorder:            ledger,
		Observer:            notificationLogger(logger.Named("notify")),
		Metrics:             counters,
		Logger:              logger.Named("session"),
	})
	defer sessions.Close()
	go sessions.RunCleanup(ctx, cfg.CleanupInterval(), cfg.SessionTimeout())

	// Site content
	site, err := loadSite(cfg)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	var corsOrigins []string
	if cfg.Server.EnableCORS {
		corsOrigins = cfg.AllowOrigins()
	}
	api.SetupMiddleware(e, api.MiddlewareOptions{
		Logger:           logger,
		RequestLogging:   cfg.Advanced.EnableRequestLogging,
		Compression:      cfg.Advanced.EnableCompression,
		CompressionLevel: cfg.Advanced.CompressionLevel,
		BodyLimit:        cfg.Server.BodyLimit,
		CORSOrigins:      corsOrigins,
		Timeout:          time.Duration(cfg.Server.ReadTimeout) * time.Second,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions:       sessions,
		Uploads:        validator,
		History:        ledger,
		Site:           site,
		ReleaseBaseURL: cfg.Content.ReleaseBaseURL,
		RepositoryURL:  cfg.Content.RepositoryURL,
		Version:        Version,
		Metrics:        metricsHandler,
		Logger:         logger.Named("events"),
	}))

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("failed to register static routes", zap.Error(err))
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, maxUpload, embeddedMode)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- e.StartServer(s)
	}()

	logger.Info("server started",
		zap.String("addr", cfg.GetServerAddr()),
		zap.String("version", Version),
		zap.Duration("processing_delay", cfg.ProcessingDelay()),
	)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func notificationLogger(logger *zap.Logger) notify.Sink {
	return notify.SinkFunc(func(n models.Notification) {
		logger.Debug("notification",
			zap.String("session", n.SessionID),
			zap.String("title", n.Title),
			zap.String("variant", string(n.Variant)))
	})
}

func loadSite(cfg *config.AppConfig) (*models.SiteContent, error) {
	if cfg.Content.ContentFile == "" {
		return content.Default(cfg.Content.ReleaseBaseURL)
	}
	return content.LoadFile(cfg.Content.ContentFile, cfg.Content.ReleaseBaseURL)
}

func printBanner(cfg *config.AppConfig, configPath string, maxUpload int64, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Embedded demo page"
	}
	ledger := cfg.Demo.HistoryDatabase
	if ledger == "" {
		ledger = "in-memory"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           DeepGuard Detection Demo                        ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Max File:  %-46s║\n", humanize.IBytes(uint64(maxUpload)))
	fmt.Printf("║  History:   %-46s║\n", ledger)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
