package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/upload"
)

var (
	ErrNoFileSelected   = errors.New("no file selected")
	ErrAnalysisRunning  = errors.New("analysis already in progress")
	ErrSessionNotFound  = errors.New("session not found")
	ErrTooManySessions  = errors.New("too many active sessions")
	ErrRejectedUpload   = errors.New("upload rejected")
	errUnknownRejection = errors.New("unknown rejection reason")
)

// Run identifies one scheduled analysis. A run only resolves while its
// generation is still the demo's current generation.
type Run struct {
	ID         string
	Generation uint64
	File       *models.UploadedFile
}

// Demo is the presentation state machine of a single visitor:
//
//	Idle -> FileReady -> Processing -> Resolved
//
// SelectFile is valid from any state and returns to FileReady; each accepted
// selection and each run bumps the generation, which invalidates any run
// still in flight. Demo is not safe for concurrent use; Manager serializes it.
type Demo struct {
	id         string
	state      models.DemoState
	file       *models.UploadedFile
	result     *models.ClassificationResult
	generation uint64
	runID      string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewDemo creates a demo in the Idle state.
func NewDemo(id string, now time.Time) *Demo {
	return &Demo{
		id:        id,
		state:     models.DemoStateIdle,
		createdAt: now,
		updatedAt: now,
	}
}

// State returns the current state.
func (d *Demo) State() models.DemoState { return d.state }

// File returns the current selection, or nil.
func (d *Demo) File() *models.UploadedFile { return d.file }

// Generation returns the current generation token.
func (d *Demo) Generation() uint64 { return d.generation }

// SelectFile applies a validation outcome. A rejection leaves the demo
// untouched and is reported as an error wrapping the upload sentinel.
// An acceptance replaces the file, clears the result and supersedes any
// pending run.
func (d *Demo) SelectFile(outcome models.ValidationOutcome, now time.Time) error {
	if !outcome.Accepted {
		reason := upload.ReasonError(outcome.Reason)
		if reason == nil {
			reason = errUnknownRejection
		}
		return fmt.Errorf("%w: %w", ErrRejectedUpload, reason)
	}
	if outcome.File == nil {
		return fmt.Errorf("%w: accepted outcome without file", ErrRejectedUpload)
	}

	d.file = outcome.File
	d.result = nil
	d.runID = ""
	d.generation++
	d.state = models.DemoStateFileReady
	d.updatedAt = now
	return nil
}

// BeginRun moves FileReady or Resolved into Processing.
func (d *Demo) BeginRun(runID string, now time.Time) (Run, error) {
	if d.file == nil {
		return Run{}, ErrNoFileSelected
	}
	if d.state == models.DemoStateProcessing {
		return Run{}, ErrAnalysisRunning
	}

	d.generation++
	d.runID = runID
	d.result = nil
	d.state = models.DemoStateProcessing
	d.updatedAt = now

	return Run{ID: runID, Generation: d.generation, File: d.file}, nil
}

// Complete resolves a run. It reports false, changing nothing, when the run
// has been superseded.
func (d *Demo) Complete(run Run, result models.ClassificationResult, now time.Time) bool {
	if d.state != models.DemoStateProcessing || run.Generation != d.generation {
		return false
	}

	result.RunID = run.ID
	d.result = &result
	d.state = models.DemoStateResolved
	d.updatedAt = now
	return true
}

// Abandon drops an in-flight run and returns to FileReady.
func (d *Demo) Abandon(now time.Time) bool {
	if d.state != models.DemoStateProcessing {
		return false
	}
	d.generation++
	d.runID = ""
	d.state = models.DemoStateFileReady
	d.updatedAt = now
	return true
}

// Result returns the last resolved result, if any.
func (d *Demo) Result() (*models.ClassificationResult, bool) {
	if d.result == nil {
		return nil, false
	}
	r := *d.result
	return &r, true
}

// Snapshot copies the demo into its wire form.
func (d *Demo) Snapshot() *models.DemoSession {
	s := &models.DemoSession{
		ID:         d.id,
		State:      d.state,
		Generation: d.generation,
		RunID:      d.runID,
		CreatedAt:  d.createdAt,
		UpdatedAt:  d.updatedAt,
	}
	if d.file != nil {
		f := *d.file
		s.File = &f
	}
	if d.result != nil {
		r := *d.result
		s.Result = &r
	}
	return s
}
