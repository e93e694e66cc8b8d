package models

import "time"

// UploadedFile is the metadata of a file selected for the demo.
// Contents are never kept; only what the browser declared.
type UploadedFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MediaType  string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}
