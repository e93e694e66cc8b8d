// Package history keeps a ledger of resolved demo analyses in an in-memory
// DuckDB database and answers aggregate queries over it.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/deepguard/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Entry is one resolved analysis.
type Entry struct {
	RunID      string       `json:"runId"`
	SessionID  string       `json:"sessionId"`
	FileName   string       `json:"fileName"`
	Label      models.Label `json:"label"`
	Confidence int          `json:"confidence"`
	Branch     string       `json:"branch"`
	ResolvedAt time.Time    `json:"resolvedAt"`
}

// LabelStats aggregates runs sharing a label.
type LabelStats struct {
	Label         models.Label `json:"label"`
	Count         int          `json:"count"`
	AvgConfidence float64      `json:"avgConfidence"`
	MinConfidence int          `json:"minConfidence"`
	MaxConfidence int          `json:"maxConfidence"`
}

// Stats summarises the ledger.
type Stats struct {
	Total   int          `json:"total"`
	ByLabel []LabelStats `json:"byLabel"`
}

// DuckStore records analyses in DuckDB. An empty path keeps the database in
// memory, which is the default: nothing outlives the process.
type DuckStore struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewDuckStore opens a DuckDB database at path ("" for in-memory) and
// creates the runs table.
func NewDuckStore(path string, threads int, logger *zap.Logger) (*DuckStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threads <= 0 {
		threads = 1
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	// An in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id      VARCHAR PRIMARY KEY,
			session_id  VARCHAR NOT NULL,
			file_name   VARCHAR NOT NULL,
			label       VARCHAR NOT NULL,
			confidence  INTEGER NOT NULL,
			branch      VARCHAR NOT NULL,
			resolved_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Named("history").Info("analysis ledger ready", zap.String("path", displayPath(path)))
	return &DuckStore{db: db, logger: logger.Named("history")}, nil
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

// Record appends a resolved analysis.
func (ds *DuckStore) Record(ctx context.Context, sessionID string, r models.ClassificationResult) error {
	resolvedAt := r.CompletedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}

	_, err := ds.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session_id, file_name, label, confidence, branch, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, sessionID, r.FileName, string(r.Label), r.Confidence, string(r.Branch), resolvedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (ds *DuckStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := ds.db.QueryContext(ctx,
		`SELECT run_id, session_id, file_name, label, confidence, branch, resolved_at
		 FROM runs ORDER BY resolved_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e     Entry
			label string
		)
		if err := rows.Scan(&e.RunID, &e.SessionID, &e.FileName, &label, &e.Confidence, &e.Branch, &e.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		e.Label = models.Label(label)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates the ledger per label.
func (ds *DuckStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := ds.db.QueryContext(ctx,
		`SELECT label, COUNT(*), AVG(confidence), MIN(confidence), MAX(confidence)
		 FROM runs GROUP BY label ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("aggregating runs: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByLabel: make([]LabelStats, 0, 2)}
	for rows.Next() {
		var (
			ls    LabelStats
			label string
		)
		if err := rows.Scan(&label, &ls.Count, &ls.AvgConfidence, &ls.MinConfidence, &ls.MaxConfidence); err != nil {
			return nil, fmt.Errorf("scanning aggregate: %w", err)
		}
		ls.Label = models.Label(label)
		stats.Total += ls.Count
		stats.ByLabel = append(stats.ByLabel, ls)
	}
	return stats, rows.Err()
}

// Close releases the database.
func (ds *DuckStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return nil
	}
	ds.closed = true
	return ds.db.Close()
}
