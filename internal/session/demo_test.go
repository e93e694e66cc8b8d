package session

import (
	"testing"
	"time"

	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func accepted(name string) models.ValidationOutcome {
	return models.Accepted(&models.UploadedFile{ID: name, Name: name, MediaType: "video/mp4", Size: 3 * upload.MiB})
}

func TestDemo_HappyPath(t *testing.T) {
	d := NewDemo("s1", t0)
	assert.Equal(t, models.DemoStateIdle, d.State())

	require.NoError(t, d.SelectFile(accepted("clip.mp4"), t0))
	assert.Equal(t, models.DemoStateFileReady, d.State())

	run, err := d.BeginRun("r1", t0)
	require.NoError(t, err)
	assert.Equal(t, models.DemoStateProcessing, d.State())
	assert.Equal(t, "clip.mp4", run.File.Name)

	_, ok := d.Result()
	assert.False(t, ok, "no result while processing")

	assert.True(t, d.Complete(run, models.ClassificationResult{Label: models.LabelAuthentic, Confidence: 90}, t0))
	assert.Equal(t, models.DemoStateResolved, d.State())

	result, ok := d.Result()
	require.True(t, ok)
	assert.Equal(t, "r1", result.RunID)
	assert.Equal(t, 90, result.Confidence)
}

func TestDemo_RunWithoutFile(t *testing.T) {
	d := NewDemo("s1", t0)

	_, err := d.BeginRun("r1", t0)
	assert.ErrorIs(t, err, ErrNoFileSelected)
	assert.Equal(t, models.DemoStateIdle, d.State())
	assert.Zero(t, d.Generation())
}

func TestDemo_RunWhileProcessing(t *testing.T) {
	d := NewDemo("s1", t0)
	require.NoError(t, d.SelectFile(accepted("a.mp4"), t0))
	_, err := d.BeginRun("r1", t0)
	require.NoError(t, err)
	gen := d.Generation()

	_, err = d.BeginRun("r2", t0)
	assert.ErrorIs(t, err, ErrAnalysisRunning)
	assert.Equal(t, gen, d.Generation())
}

func TestDemo_RejectionLeavesStateUntouched(t *testing.T) {
	d := NewDemo("s1", t0)
	require.NoError(t, d.SelectFile(accepted("a.mp4"), t0))
	run, err := d.BeginRun("r1", t0)
	require.NoError(t, err)
	gen := d.Generation()

	err = d.SelectFile(models.Rejected(models.RejectTooLarge), t0)
	assert.ErrorIs(t, err, ErrRejectedUpload)
	assert.ErrorIs(t, err, upload.ErrTooLarge)

	assert.Equal(t, models.DemoStateProcessing, d.State())
	assert.Equal(t, gen, d.Generation())
	assert.Equal(t, "a.mp4", d.File().Name)

	// The pending run still resolves.
	assert.True(t, d.Complete(run, models.ClassificationResult{}, t0))
}

func TestDemo_RejectionInIdle(t *testing.T) {
	d := NewDemo("s1", t0)

	err := d.SelectFile(models.Rejected(models.RejectInvalidType), t0)
	assert.ErrorIs(t, err, upload.ErrInvalidType)
	assert.Equal(t, models.DemoStateIdle, d.State())
	assert.Nil(t, d.File())
}

func TestDemo_ReselectSupersedesRun(t *testing.T) {
	d := NewDemo("s1", t0)
	require.NoError(t, d.SelectFile(accepted("first.mp4"), t0))
	run, err := d.BeginRun("r1", t0)
	require.NoError(t, err)

	require.NoError(t, d.SelectFile(accepted("second.mp4"), t0))
	assert.Equal(t, models.DemoStateFileReady, d.State())

	assert.False(t, d.Complete(run, models.ClassificationResult{FileName: "first.mp4"}, t0), "stale run must be discarded")
	assert.Equal(t, models.DemoStateFileReady, d.State())
	_, ok := d.Result()
	assert.False(t, ok)
}

func TestDemo_ReselectClearsResult(t *testing.T) {
	d := NewDemo("s1", t0)
	require.NoError(t, d.SelectFile(accepted("a.mp4"), t0))
	run, err := d.BeginRun("r1", t0)
	require.NoError(t, err)
	require.True(t, d.Complete(run, models.ClassificationResult{}, t0))

	require.NoError(t, d.SelectFile(accepted("b.mp4"), t0))
	assert.Equal(t, models.DemoStateFileReady, d.State())
	_, ok := d.Result()
	assert.False(t, ok)
	assert.Nil(t, d.Snapshot().Result)
}

func TestDemo_RerunFromResolved(t *testing.T) {
	d := NewDemo("s1", t0)
	require.NoError(t, d.SelectFile(accepted("a.mp4"), t0))
	first, err := d.BeginRun("r1", t0)
	require.NoError(t, err)
	require.True(t, d.Complete(first, models.ClassificationResult{}, t0))

	second, err := d.BeginRun("r2", t0)
	require.NoError(t, err)
	assert.Equal(t, models.DemoStateProcessing, d.State())
	assert.Greater(t, second.Generation, first.Generation)

	assert.False(t, d.Complete(first, models.ClassificationResult{}, t0), "earlier run cannot resolve the new one")
	assert.True(t, d.Complete(second, models.ClassificationResult{}, t0))
}

func TestDemo_Abandon(t *testing.T) {
	d := NewDemo("s1", t0)
	assert.False(t, d.Abandon(t0))

	require.NoError(t, d.SelectFile(accepted("a.mp4"), t0))
	run, err := d.BeginRun("r1", t0)
	require.NoError(t, err)

	assert.True(t, d.Abandon(t0))
	assert.Equal(t, models.DemoStateFileReady, d.State())
	assert.False(t, d.Complete(run, models.ClassificationResult{}, t0))
}

func TestDemo_SnapshotIsACopy(t *testing.T) {
	d := NewDemo("s1", t0)
	require.NoError(t, d.SelectFile(accepted("a.mp4"), t0.Add(time.Second)))

	snap := d.Snapshot()
	snap.File.Name = "mutated"

	assert.Equal(t, "a.mp4", d.File().Name)
	assert.Equal(t, "s1", snap.ID)
	assert.Equal(t, models.DemoStateFileReady, snap.State)
	assert.Equal(t, t0, snap.CreatedAt)
	assert.Equal(t, t0.Add(time.Second), snap.UpdatedAt)
}
