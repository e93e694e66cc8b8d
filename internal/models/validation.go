package models

// RejectReason explains why an upload was refused.
type RejectReason string

const (
	RejectInvalidType RejectReason = "invalid_type"
	RejectTooLarge    RejectReason = "too_large"
)

// ValidationOutcome is either Accepted (File set) or Rejected (Reason set).
type ValidationOutcome struct {
	Accepted bool          `json:"accepted"`
	File     *UploadedFile `json:"file,omitempty"`
	Reason   RejectReason  `json:"reason,omitempty"`
}

// Accepted wraps a file that passed validation.
func Accepted(file *UploadedFile) ValidationOutcome {
	return ValidationOutcome{Accepted: true, File: file}
}

// Rejected builds a refusal with the given reason.
func Rejected(reason RejectReason) ValidationOutcome {
	return ValidationOutcome{Reason: reason}
}
