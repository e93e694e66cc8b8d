package upload

import (
	"errors"
	"fmt"
	"slices"

	"github.com/deepguard/backend/internal/models"
)

// MiB is one mebibyte.
const MiB = int64(1024 * 1024)

// DefaultMaxSize is the upload ceiling (inclusive).
const DefaultMaxSize = 50 * MiB

// DefaultAllowedTypes is the allow-list of declared media types.
var DefaultAllowedTypes = []string{
	"video/mp4",
	"video/avi",
	"video/mov",
	"image/jpeg",
	"image/png",
	"image/jpg",
}

var (
	ErrInvalidType = errors.New("invalid file type")
	ErrTooLarge    = errors.New("file too large")
)

// Constraints bound what the validator accepts.
type Constraints struct {
	AllowedTypes []string
	MaxSize      int64
}

// DefaultConstraints returns the stock allow-list and 50 MiB ceiling.
func DefaultConstraints() Constraints {
	return Constraints{
		AllowedTypes: slices.Clone(DefaultAllowedTypes),
		MaxSize:      DefaultMaxSize,
	}
}

// Validator checks declared media type and size. File contents are never read.
type Validator struct {
	constraints Constraints
}

// NewValidator creates a validator. Empty fields fall back to the defaults.
func NewValidator(c Constraints) *Validator {
	if len(c.AllowedTypes) == 0 {
		c.AllowedTypes = slices.Clone(DefaultAllowedTypes)
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	return &Validator{constraints: c}
}

// Constraints returns a copy of the active constraints.
func (v *Validator) Constraints() Constraints {
	return Constraints{
		AllowedTypes: slices.Clone(v.constraints.AllowedTypes),
		MaxSize:      v.constraints.MaxSize,
	}
}

// Check returns nil when the declaration is acceptable. An invalid type is
// reported ahead of an oversize file.
func (v *Validator) Check(mediaType string, size int64) error {
	if !slices.Contains(v.constraints.AllowedTypes, mediaType) {
		return fmt.Errorf("%w: %q", ErrInvalidType, mediaType)
	}
	if size > v.constraints.MaxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, v.constraints.MaxSize)
	}
	return nil
}

// Validate classifies a candidate as Accepted or Rejected.
func (v *Validator) Validate(file *models.UploadedFile) models.ValidationOutcome {
	err := v.Check(file.MediaType, file.Size)
	switch {
	case err == nil:
		return models.Accepted(file)
	case errors.Is(err, ErrInvalidType):
		return models.Rejected(models.RejectInvalidType)
	default:
		return models.Rejected(models.RejectTooLarge)
	}
}

// ReasonError maps a rejection reason back to its sentinel error.
func ReasonError(reason models.RejectReason) error {
	switch reason {
	case models.RejectInvalidType:
		return ErrInvalidType
	case models.RejectTooLarge:
		return ErrTooLarge
	}
	return nil
}
