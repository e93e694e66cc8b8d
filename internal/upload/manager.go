package upload

import (
	"fmt"

	"github.com/deepguard/backend/internal/metrics"
	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/storage"
	"go.uber.org/zap"
)

// Declaration is what a browser reports about a selected file.
type Declaration struct {
	Name      string
	MediaType string
	Size      int64
}

// Manager validates declarations and registers accepted files.
type Manager struct {
	validator *Validator
	store     storage.Store
	metrics   *metrics.Collectors
	logger    *zap.Logger
}

// NewManager creates an upload intake manager.
func NewManager(validator *Validator, store storage.Store, m *metrics.Collectors, logger *zap.Logger) *Manager {
	if m == nil {
		m = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		validator: validator,
		store:     store,
		metrics:   m,
		logger:    logger.Named("upload"),
	}
}

// Validator returns the validator backing this manager.
func (m *Manager) Validator() *Validator {
	return m.validator
}

// Intake validates a declaration. Accepted files are registered with the store
// and returned in the outcome; rejected ones are never stored.
func (m *Manager) Intake(d Declaration) (models.ValidationOutcome, error) {
	candidate := &models.UploadedFile{
		Name:      d.Name,
		MediaType: d.MediaType,
		Size:      d.Size,
	}

	outcome := m.validator.Validate(candidate)
	if !outcome.Accepted {
		m.metrics.UploadsTotal.WithLabelValues(string(outcome.Reason)).Inc()
		m.logger.Info("upload rejected",
			zap.String("name", d.Name),
			zap.String("type", d.MediaType),
			zap.Int64("size", d.Size),
			zap.String("reason", string(outcome.Reason)))
		return outcome, nil
	}

	file, err := m.store.Register(d.Name, d.MediaType, d.Size)
	if err != nil {
		return models.ValidationOutcome{}, fmt.Errorf("registering upload: %w", err)
	}

	m.metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	m.logger.Info("upload accepted",
		zap.String("id", file.ID),
		zap.String("name", file.Name),
		zap.String("type", file.MediaType),
		zap.Int64("size", file.Size))

	return models.Accepted(file), nil
}

// Release forgets a file that is no longer any session's selection.
func (m *Manager) Release(file *models.UploadedFile) {
	if file == nil || file.ID == "" {
		return
	}
	if err := m.store.Delete(file.ID); err != nil {
		m.logger.Debug("release of unknown upload", zap.String("id", file.ID), zap.Error(err))
	}
}

// Registered returns the number of files currently held by the store.
func (m *Manager) Registered() int {
	return m.store.Len()
}
