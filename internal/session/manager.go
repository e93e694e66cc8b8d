package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deepguard/backend/internal/classifier"
	"github.com/deepguard/backend/internal/metrics"
	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/notify"
	"github.com/deepguard/backend/internal/upload"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultProcessingDelay is how long a run stays in Processing.
const DefaultProcessingDelay = 3000 * time.Millisecond

// DefaultMaxSessions limits concurrent demo sessions held in memory.
const DefaultMaxSessions = 500

// SessionKeepAliveWindow protects recently used sessions from cleanup.
const SessionKeepAliveWindow = 5 * time.Minute

// Timer is the part of *time.Timer the manager needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Recorder receives every resolved analysis.
type Recorder interface {
	Record(ctx context.Context, sessionID string, result models.ClassificationResult) error
}

// Options configure a Manager.
type Options struct {
	ProcessingDelay     time.Duration
	MaxSessions         int
	NotificationBacklog int
	Recorder            Recorder
	Observer            notify.Sink // sees every notification of every session
	Metrics             *metrics.Collectors
	Logger              *zap.Logger
	AfterFunc           AfterFunc
	Now                 func() time.Time
}

// Manager owns every visitor's demo state machine.
type Manager struct {
	sessions   map[string]*SessionState
	mu         sync.RWMutex
	uploads    *upload.Manager
	classifier *classifier.Classifier
	recorder   Recorder
	observer   notify.Sink
	metrics    *metrics.Collectors
	logger     *zap.Logger
	delay      time.Duration
	max        int
	backlog    int
	afterFunc  AfterFunc
	now        func() time.Time
}

// SessionState holds a demo, its notification feed and its pending timer.
type SessionState struct {
	Demo         *Demo
	Feed         *notify.Feed
	LastAccessed time.Time
	timer        Timer
}

// NewManager creates a session manager.
func NewManager(uploads *upload.Manager, c *classifier.Classifier, opts Options) *Manager {
	if opts.ProcessingDelay <= 0 {
		opts.ProcessingDelay = DefaultProcessingDelay
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = notify.Discard
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = stdAfterFunc
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if c == nil {
		c = classifier.New(nil)
	}

	return &Manager{
		sessions:   make(map[string]*SessionState),
		uploads:    uploads,
		classifier: c,
		recorder:   opts.Recorder,
		observer:   opts.Observer,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Named("session"),
		delay:      opts.ProcessingDelay,
		max:        opts.MaxSessions,
		backlog:    opts.NotificationBacklog,
		afterFunc:  opts.AfterFunc,
		now:        opts.Now,
	}
}

// ProcessingDelay returns the configured artificial delay.
func (m *Manager) ProcessingDelay() time.Duration {
	return m.delay
}

// StartSession creates an Idle demo.
func (m *Manager) StartSession() (*models.DemoSession, error) {
	now := m.now()
	id := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.max && !m.evictOldestLocked() {
		return nil, ErrTooManySessions
	}

	state := &SessionState{
		Demo:         NewDemo(id, now),
		Feed:         notify.NewFeed(m.backlog),
		LastAccessed: now,
	}
	m.sessions[id] = state
	m.metrics.ActiveSessions.Set(float64(len(m.sessions)))

	m.logger.Debug("session started", zap.String("session", id))
	return m.snapshotLocked(state), nil
}

// evictOldestLocked frees one slot by dropping the least recently used
// session that is not processing.
func (m *Manager) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, state := range m.sessions {
		if state.Demo.State() == models.DemoStateProcessing {
			continue
		}
		if oldestID == "" || state.LastAccessed.Before(oldest) {
			oldestID, oldest = id, state.LastAccessed
		}
	}
	if oldestID == "" {
		return false
	}
	m.removeLocked(oldestID)
	m.logger.Info("evicted session to free capacity", zap.String("session", oldestID))
	return true
}

// GetSession returns a snapshot of a session.
func (m *Manager) GetSession(id string) (*models.DemoSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = m.now()
	return m.snapshotLocked(state), true
}

// TouchSession refreshes a session's last-access time.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if ok {
		state.LastAccessed = m.now()
	}
	return ok
}

// SelectFile validates a declaration and, when accepted, makes it the
// session's current file. Any pending run is cancelled.
func (m *Manager) SelectFile(id string, d upload.Declaration) (*models.DemoSession, error) {
	if _, err := m.feed(id); err != nil {
		return nil, err
	}

	outcome, err := m.uploads.Intake(d)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		if outcome.Accepted {
			m.uploads.Release(outcome.File)
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	now := m.now()
	state.LastAccessed = now

	if !outcome.Accepted {
		err := state.Demo.SelectFile(outcome, now)
		snap := m.snapshotLocked(state)
		m.mu.Unlock()
		m.emit(state.Feed, id, rejectionNotice(outcome.Reason, m.uploads.Validator().Constraints().MaxSize))
		return snap, err
	}

	if m.stopTimerLocked(state) {
		m.metrics.AnalysesDiscarded.Inc()
		m.logger.Info("pending analysis superseded by new file", zap.String("session", id))
	}
	previous := state.Demo.File()
	if err := state.Demo.SelectFile(outcome, now); err != nil {
		m.mu.Unlock()
		m.uploads.Release(outcome.File)
		return nil, err
	}
	snap := m.snapshotLocked(state)
	m.mu.Unlock()
	m.uploads.Release(previous)

	m.emit(state.Feed, id, notify.Info(
		"File uploaded successfully",
		fmt.Sprintf("%s is ready for analysis.", outcome.File.Name),
	))
	return snap, nil
}

func rejectionNotice(reason models.RejectReason, maxSize int64) models.Notification {
	if reason == models.RejectTooLarge {
		limit := "50MB"
		if maxSize != upload.DefaultMaxSize {
			limit = humanize.IBytes(uint64(maxSize))
		}
		return notify.Destructive("File too large", fmt.Sprintf("Please upload files smaller than %s.", limit))
	}
	return notify.Destructive("Invalid file type", "Please upload MP4, AVI, MOV, JPG, or PNG files only.")
}

// RunAnalysis moves the session into Processing and schedules its
// resolution after the processing delay.
func (m *Manager) RunAnalysis(id string) (*models.DemoSession, error) {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	now := m.now()
	state.LastAccessed = now

	run, err := state.Demo.BeginRun(uuid.New().String(), now)
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, ErrNoFileSelected) {
			m.emit(state.Feed, id, notify.Destructive("No file selected", "Please upload a file first."))
		}
		return nil, err
	}

	// Announce before arming the timer so the completion notice always follows.
	m.emit(state.Feed, id, notify.Info("Processing started", "Analyzing file for deepfake detection..."))
	state.timer = m.afterFunc(m.delay, func() { m.complete(id, run) })
	snap := m.snapshotLocked(state)
	m.mu.Unlock()

	m.metrics.AnalysesStarted.Inc()
	m.logger.Info("analysis started",
		zap.String("session", id),
		zap.String("run", run.ID),
		zap.String("file", run.File.Name),
		zap.Duration("delay", m.delay))

	return snap, nil
}

// complete is the timer callback of a run.
func (m *Manager) complete(id string, run Run) {
	result := m.classifier.Classify(run.File)

	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	// Superseded runs were already counted as discarded when cancelled.
	if !state.Demo.Complete(run, result, m.now()) {
		m.mu.Unlock()
		m.logger.Debug("discarded stale analysis", zap.String("session", id), zap.String("run", run.ID))
		return
	}
	state.timer = nil
	resolved, _ := state.Demo.Result()
	m.mu.Unlock()

	label := string(resolved.Label)
	m.metrics.AnalysesResolved.WithLabelValues(label).Inc()
	m.metrics.Confidence.WithLabelValues(label).Observe(float64(resolved.Confidence))
	m.logger.Info("analysis resolved",
		zap.String("session", id),
		zap.String("run", run.ID),
		zap.String("label", label),
		zap.Int("confidence", resolved.Confidence),
		zap.String("branch", string(resolved.Branch)))

	variant := models.VariantDefault
	if resolved.Label == models.LabelSynthetic {
		variant = models.VariantDestructive
	}
	m.emit(state.Feed, id, models.Notification{
		Title:       "Analysis complete",
		Description: fmt.Sprintf("Detection result: %s (%d%% confidence)", resolved.Label.Short(), resolved.Confidence),
		Variant:     variant,
	})

	if m.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.recorder.Record(ctx, id, *resolved); err != nil {
			m.logger.Warn("failed to record analysis", zap.String("session", id), zap.Error(err))
		}
	}
}

// Result returns the session's last resolved result.
func (m *Manager) Result(id string) (*models.ClassificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	state.LastAccessed = m.now()

	result, ok := state.Demo.Result()
	if !ok {
		return nil, nil
	}
	return result, nil
}

// Notifications returns the session's recent notifications.
func (m *Manager) Notifications(id string) ([]models.Notification, error) {
	feed, err := m.feed(id)
	if err != nil {
		return nil, err
	}
	return feed.Recent(), nil
}

// Subscribe streams the session's notifications until cancel is called or
// the session is removed.
func (m *Manager) Subscribe(id string) (<-chan models.Notification, func(), error) {
	feed, err := m.feed(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := feed.Subscribe(32)
	return ch, cancel, nil
}

func (m *Manager) feed(id string) (*notify.Feed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return state.Feed, nil
}

// DeleteSession removes a session and cancels its pending run.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.removeLocked(id)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes sessions idle for longer than maxAge. Sessions
// that are processing or were touched within SessionKeepAliveWindow stay.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	window := SessionKeepAliveWindow
	if maxAge < window {
		window = maxAge
	}
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-window)

	var stale []string
	for id, state := range m.sessions {
		if state.Demo.State() == models.DemoStateProcessing {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			stale = append(stale, id)
		}
	}

	sort.Strings(stale)
	for _, id := range stale {
		m.removeLocked(id)
	}
	if len(stale) > 0 {
		m.logger.Info("cleaned up idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// RunCleanup removes idle sessions every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldSessions(maxAge)
		}
	}
}

// Close cancels every pending run and releases all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sessions {
		m.removeLocked(id)
	}
}

func (m *Manager) removeLocked(id string) {
	state, ok := m.sessions[id]
	if !ok {
		return
	}
	if m.stopTimerLocked(state) {
		m.metrics.AnalysesDiscarded.Inc()
	}
	state.Feed.Close()
	m.uploads.Release(state.Demo.File())
	delete(m.sessions, id)
	m.metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

// stopTimerLocked cancels a pending run, reporting whether one was pending.
func (m *Manager) stopTimerLocked(state *SessionState) bool {
	if state.timer == nil {
		return false
	}
	state.timer.Stop()
	state.timer = nil
	return state.Demo.Abandon(m.now())
}

func (m *Manager) snapshotLocked(state *SessionState) *models.DemoSession {
	snap := state.Demo.Snapshot()
	snap.LastAccessed = state.LastAccessed
	return snap
}

func (m *Manager) emit(feed *notify.Feed, id string, n models.Notification) {
	n.SessionID = id
	if n.Timestamp.IsZero() {
		n.Timestamp = m.now()
	}
	if n.Variant == "" {
		n.Variant = models.VariantDefault
	}
	m.metrics.NotificationsTotal.WithLabelValues(string(n.Variant)).Inc()
	feed.Notify(n)
	m.observer.Notify(n)
}
