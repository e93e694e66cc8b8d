package models

import "time"

// Variant selects how a notification is styled.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a toast surfaced to the visitor.
type Notification struct {
	SessionID   string    `json:"sessionId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	Timestamp   time.Time `json:"timestamp"`
}
