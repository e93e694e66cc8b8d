// Package classifier implements the demo's keyword and size heuristic.
// It is not a detection model: the label comes from filename substrings and
// byte-size thresholds, and the confidence carries a random jitter.
package classifier

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/deepguard/backend/internal/models"
)

const mib = int64(1024 * 1024)

// Keywords whose presence in a lowercased filename counts as one indicator.
var (
	SyntheticKeywords = []string{"animated", "cartoon", "cgi", "render", "generated", "ai", "deepfake", "fake", "synthetic"}
	RealKeywords      = []string{"real", "authentic", "original", "live", "recording"}
)

// Confidence bands per decision branch: base + U[0,1) * span, rounded.
var bands = map[models.Branch]struct{ base, span float64 }{
	models.BranchSyntheticMajority: {88, 10},
	models.BranchRealMajority:      {92, 7},
	models.BranchTie:               {85, 10},
}

// Bounds returns the inclusive confidence range of a branch.
func Bounds(b models.Branch) (lo, hi int) {
	band := bands[b]
	return int(band.base), int(band.base + band.span)
}

// RandomSource yields uniform draws in [0, 1).
type RandomSource interface {
	Float64() float64
}

// lockedSource makes a *rand.Rand safe for concurrent timers.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// NewSeededSource returns a reproducible RandomSource.
func NewSeededSource(seed uint64) RandomSource {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Scores are the two independent indicator counts.
type Scores struct {
	Synthetic int `json:"synthetic"`
	Real      int `json:"real"`
}

// Score counts the indicators for a declared file.
func Score(name string, size int64, mediaType string) Scores {
	lower := strings.ToLower(name)

	var s Scores
	if containsAny(lower, SyntheticKeywords) {
		s.Synthetic++
	}
	if size < mib {
		s.Synthetic++
	}
	if strings.Contains(mediaType, "gif") {
		s.Synthetic++
	}

	if containsAny(lower, RealKeywords) {
		s.Real++
	}
	if size > 10*mib {
		s.Real++
	}
	if strings.Contains(mediaType, "mp4") && size > 5*mib {
		s.Real++
	}
	return s
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Decide applies the decision policy to a pair of scores. The tie branch
// labels by size alone: authentic above 2 MiB, synthetic otherwise.
func Decide(s Scores, size int64) (models.Label, models.Branch) {
	switch {
	case s.Synthetic > s.Real:
		return models.LabelSynthetic, models.BranchSyntheticMajority
	case s.Real > s.Synthetic:
		return models.LabelAuthentic, models.BranchRealMajority
	case size > 2*mib:
		return models.LabelAuthentic, models.BranchTie
	default:
		return models.LabelSynthetic, models.BranchTie
	}
}

// Classifier turns an accepted file into a ClassificationResult.
type Classifier struct {
	rng RandomSource
	now func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the completion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// New creates a classifier. A nil source uses the process-wide generator.
func New(src RandomSource, opts ...Option) *Classifier {
	if src == nil {
		src = globalSource{}
	}
	c := &Classifier{rng: src, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Classify labels a file and draws its confidence.
func (c *Classifier) Classify(file *models.UploadedFile) models.ClassificationResult {
	scores := Score(file.Name, file.Size, file.MediaType)
	label, branch := Decide(scores, file.Size)
	confidence := c.confidence(branch)

	return models.ClassificationResult{
		FileID:         file.ID,
		FileName:       file.Name,
		Label:          label,
		Confidence:     confidence,
		Branch:         branch,
		SyntheticScore: scores.Synthetic,
		RealScore:      scores.Real,
		Breakdown:      models.NewResultBreakdown(confidence),
		Headline:       label.DisplayName(),
		Description:    label.Description(),
		CompletedAt:    c.now(),
	}
}

func (c *Classifier) confidence(b models.Branch) int {
	band := bands[b]
	u := c.rng.Float64()
	// Clamp misbehaving sources so the branch bounds always hold.
	if u < 0 || math.IsNaN(u) {
		u = 0
	} else if u >= 1 {
		u = math.Nextafter(1, 0)
	}
	return int(math.Round(band.base + u*band.span))
}
