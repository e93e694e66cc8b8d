// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions       SessionManager
	Uploads        *upload.Validator // nil uses the default constraints
	History        HistoryReader
	Site           *models.SiteContent
	ReleaseBaseURL string
	RepositoryURL  string
	Version        string
	Metrics        http.Handler // nil disables /metrics
	Logger         *zap.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Demo    DemoHandler
	Content ContentHandler
	Stats   StatsHandler
	Events  EventsHandler
	Metrics http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Sessions),
		Demo:    NewDemoHandler(deps.Sessions, deps.Uploads),
		Content: NewContentHandler(deps.Site, deps.ReleaseBaseURL, deps.RepositoryURL),
		Stats:   NewStatsHandler(deps.History),
		Events:  NewWebSocketHandler(deps.Sessions, deps.Logger),
		Metrics: deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Site content
	apiGroup.GET("/content", handlers.Content.HandleGetContent)
	apiGroup.GET("/content/:section", handlers.Content.HandleGetSection)
	apiGroup.GET("/docs/:slug/download", handlers.Content.HandleDownloadDocument)
	apiGroup.GET("/repository", handlers.Content.HandleOpenRepository)

	// Demo sessions
	demoGroup := apiGroup.Group("/demo")
	demoGroup.POST("/sessions", handlers.Demo.HandleCreateSession)
	demoGroup.GET("/sessions/:id", handlers.Demo.HandleGetSession)
	demoGroup.DELETE("/sessions/:id", handlers.Demo.HandleDeleteSession)
	demoGroup.POST("/sessions/:id/keepalive", handlers.Demo.HandleKeepAlive)
	demoGroup.POST("/sessions/:id/file", handlers.Demo.HandleUploadFile)
	demoGroup.POST("/sessions/:id/file/metadata", handlers.Demo.HandleDeclareFile)
	demoGroup.POST("/sessions/:id/analysis", handlers.Demo.HandleRunAnalysis)
	demoGroup.GET("/sessions/:id/result", handlers.Demo.HandleGetResult)
	demoGroup.GET("/sessions/:id/result/msgpack", handlers.Demo.HandleGetResultMsgpack)
	demoGroup.GET("/sessions/:id/notifications", handlers.Demo.HandleGetNotifications)
	demoGroup.GET("/sessions/:id/events", handlers.Events.HandleEvents)

	// Analysis ledger
	demoGroup.GET("/stats", handlers.Stats.HandleGetStats)
	demoGroup.GET("/history", handlers.Stats.HandleGetHistory)

	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}
}

// MiddlewareOptions selects the optional middleware
type MiddlewareOptions struct {
	Logger           *zap.Logger
	RequestLogging   bool
	ExposeErrors     bool
	Compression      bool
	CompressionLevel int
	BodyLimit        string
	CORSOrigins      []string // empty disables CORS
	Timeout          time.Duration
}

// isStreamPath reports whether a request must not be buffered or timed out
func isStreamPath(path string) bool {
	return strings.HasSuffix(path, "/events")
}

// isUploadPath reports whether a request carries a file body. The upload
// handler enforces its own ceiling so type errors win over size errors.
func isUploadPath(path string) bool {
	return strings.HasPrefix(path, "/api/demo/sessions/") && strings.HasSuffix(path, "/file")
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e.HTTPErrorHandler = NewErrorHandler(logger, opts.ExposeErrors)

	if opts.RequestLogging {
		httpLogger := logger.Named("http")
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/api/health" || path == "/metrics" || isStreamPath(path)
			},
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
					zap.String("remote_ip", v.RemoteIP),
				}
				if v.Error != nil {
					fields = append(fields, zap.Error(v.Error))
				}
				httpLogger.Info("request", fields...)
				return nil
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	if opts.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: opts.Timeout,
			Skipper: func(c echo.Context) bool {
				return isStreamPath(c.Request().URL.Path)
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if opts.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: opts.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return isStreamPath(c.Request().URL.Path)
			},
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
			Limit: opts.BodyLimit,
			Skipper: func(c echo.Context) bool {
				return isUploadPath(c.Request().URL.Path)
			},
		}))
	}

	if len(opts.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
