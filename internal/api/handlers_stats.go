// handlers_stats.go - Analysis ledger queries
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const maxHistoryLimit = 200

// StatsHandlerImpl implements the StatsHandler interface
type StatsHandlerImpl struct {
	history HistoryReader
}

// NewStatsHandler creates a stats handler
func NewStatsHandler(history HistoryReader) StatsHandler {
	return &StatsHandlerImpl{history: history}
}

// HandleGetStats returns per-label aggregates of resolved analyses
func (h *StatsHandlerImpl) HandleGetStats(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("analysis history is disabled")
	}

	stats, err := h.history.Stats(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to aggregate history", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// HandleGetHistory returns the most recent resolved analyses
func (h *StatsHandlerImpl) HandleGetHistory(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("analysis history is disabled")
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to read history", err)
	}
	return c.JSON(http.StatusOK, entries)
}
