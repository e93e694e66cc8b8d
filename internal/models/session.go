package models

import "time"

// DemoState is the presentation state of one visitor's demo.
type DemoState string

const (
	DemoStateIdle       DemoState = "idle"
	DemoStateFileReady  DemoState = "file_ready"
	DemoStateProcessing DemoState = "processing"
	DemoStateResolved   DemoState = "resolved"
)

// DemoSession is a point-in-time snapshot of a demo state machine.
type DemoSession struct {
	ID           string                `json:"id"`
	State        DemoState             `json:"state"`
	File         *UploadedFile         `json:"file,omitempty"`
	Result       *ClassificationResult `json:"result,omitempty"`
	Generation   uint64                `json:"generation"`
	RunID        string                `json:"runId,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	LastAccessed time.Time             `json:"lastAccessed"`
}

// Processing reports whether an analysis timer is in flight.
func (s *DemoSession) Processing() bool {
	return s.State == DemoStateProcessing
}
