package models

import "time"

// Label is the outcome of the mock classifier.
type Label string

const (
	LabelAuthentic Label = "authentic"
	LabelSynthetic Label = "synthetic"
)

// DisplayName returns the headline the page shows for a label.
func (l Label) DisplayName() string {
	if l == LabelAuthentic {
		return "Authentic Content"
	}
	return "Deepfake Detected"
}

// Short returns the one-word result used in notifications.
func (l Label) Short() string {
	if l == LabelAuthentic {
		return "Authentic"
	}
	return "Deepfake"
}

// Description returns the explanatory text shown under a result.
func (l Label) Description() string {
	if l == LabelAuthentic {
		return "This content appears to be authentic with natural facial expressions and consistent features."
	}
	return "Artificial content detected with inconsistencies in facial landmarks and temporal features."
}

// Branch records which decision rule produced a result.
type Branch string

const (
	BranchSyntheticMajority Branch = "synthetic-majority"
	BranchRealMajority      Branch = "real-majority"
	BranchTie               Branch = "tie"
)

// ClassificationResult is produced from exactly one UploadedFile.
type ClassificationResult struct {
	RunID          string          `json:"runId" msgpack:"runId"`
	FileID         string          `json:"fileId" msgpack:"fileId"`
	FileName       string          `json:"fileName" msgpack:"fileName"`
	Label          Label           `json:"label" msgpack:"label"`
	Confidence     int             `json:"confidence" msgpack:"confidence"` // 0-100
	Branch         Branch          `json:"branch" msgpack:"branch"`
	SyntheticScore int             `json:"syntheticScore" msgpack:"syntheticScore"`
	RealScore      int             `json:"realScore" msgpack:"realScore"`
	Breakdown      ResultBreakdown `json:"breakdown" msgpack:"breakdown"`
	Headline       string          `json:"headline" msgpack:"headline"`
	Description    string          `json:"description" msgpack:"description"`
	CompletedAt    time.Time       `json:"completedAt" msgpack:"completedAt"`
}

// ResultBreakdown holds the detail figures the page derives from confidence.
type ResultBreakdown struct {
	FacialConsistency int `json:"facialConsistency" msgpack:"facialConsistency"`
	TemporalAnalysis  int `json:"temporalAnalysis" msgpack:"temporalAnalysis"`
	LightingPattern   int `json:"lightingPattern" msgpack:"lightingPattern"`
	EdgeArtifacts     int `json:"edgeArtifacts" msgpack:"edgeArtifacts"`
}

// NewResultBreakdown offsets the headline confidence the same way the page does.
func NewResultBreakdown(confidence int) ResultBreakdown {
	return ResultBreakdown{
		FacialConsistency: confidence - 2,
		TemporalAnalysis:  confidence + 1,
		LightingPattern:   confidence - 1,
		EdgeArtifacts:     confidence + 2,
	}
}
