// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/deepguard/backend/internal/history"
	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// DemoHandler handles the interactive demo's session operations
type DemoHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleUploadFile(c echo.Context) error
	HandleDeclareFile(c echo.Context) error
	HandleRunAnalysis(c echo.Context) error
	HandleGetResult(c echo.Context) error
	HandleGetResultMsgpack(c echo.Context) error
	HandleGetNotifications(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
}

// ContentHandler serves the static site copy
type ContentHandler interface {
	HandleGetContent(c echo.Context) error
	HandleGetSection(c echo.Context) error
	HandleDownloadDocument(c echo.Context) error
	HandleOpenRepository(c echo.Context) error
}

// StatsHandler serves the analysis ledger
type StatsHandler interface {
	HandleGetStats(c echo.Context) error
	HandleGetHistory(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// EventsHandler streams a session's state and notifications
type EventsHandler interface {
	HandleEvents(c echo.Context) error
}

// SessionManager defines the interface for demo session management
// This allows mocking in tests
type SessionManager interface {
	StartSession() (*models.DemoSession, error)
	GetSession(id string) (*models.DemoSession, bool)
	TouchSession(id string) bool
	DeleteSession(id string) error
	SelectFile(id string, d upload.Declaration) (*models.DemoSession, error)
	RunAnalysis(id string) (*models.DemoSession, error)
	Result(id string) (*models.ClassificationResult, error)
	Notifications(id string) ([]models.Notification, error)
	Subscribe(id string) (<-chan models.Notification, func(), error)
	Count() int
}

// HistoryReader is the read side of the analysis ledger
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Stats(ctx context.Context) (*history.Stats, error)
}
