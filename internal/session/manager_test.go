package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deepguard/backend/internal/classifier"
	"github.com/deepguard/backend/internal/metrics"
	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/testutil"
	"github.com/deepguard/backend/internal/upload"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	sessionID string
	result    models.ClassificationResult
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (r *fakeRecorder) Record(_ context.Context, sessionID string, result models.ClassificationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, recordedRun{sessionID, result})
	return nil
}

func (r *fakeRecorder) Runs() []recordedRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRun(nil), r.runs...)
}

type harness struct {
	mgr      *Manager
	sched    *testutil.ManualScheduler
	clock    *testutil.Clock
	store    *testutil.MockStorage
	recorder *fakeRecorder
	sink     *testutil.RecordingSink
	metrics  *metrics.Collectors
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		sched:    &testutil.ManualScheduler{},
		clock:    testutil.NewClock(t0),
		store:    testutil.NewMockStorage(),
		recorder: &fakeRecorder{},
		sink:     &testutil.RecordingSink{},
		metrics:  metrics.Nop(),
	}
	uploads := upload.NewManager(upload.NewValidator(upload.DefaultConstraints()), h.store, h.metrics, nil)

	opts.AfterFunc = func(d time.Duration, f func()) Timer { return h.sched.AfterFunc(d, f) }
	opts.Now = h.clock.Now
	opts.Recorder = h.recorder
	opts.Observer = h.sink
	opts.Metrics = h.metrics

	h.mgr = NewManager(uploads, classifier.New(testutil.FixedSource{Value: 0.5}), opts)
	t.Cleanup(h.mgr.Close)
	return h
}

func smallClip() upload.Declaration {
	return upload.Declaration{Name: "clip.mp4", MediaType: "video/mp4", Size: 500 * 1024}
}

func TestManager_FullRun(t *testing.T) {
	h := newHarness(t, Options{})

	sess, err := h.mgr.StartSession()
	require.NoError(t, err)
	assert.Equal(t, models.DemoStateIdle, sess.State)

	sess, err = h.mgr.SelectFile(sess.ID, smallClip())
	require.NoError(t, err)
	assert.Equal(t, models.DemoStateFileReady, sess.State)
	require.NotNil(t, sess.File)
	assert.Equal(t, "clip.mp4", sess.File.Name)

	sess, err = h.mgr.RunAnalysis(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DemoStateProcessing, sess.State)
	assert.NotEmpty(t, sess.RunID)

	timers := h.sched.Timers()
	require.Len(t, timers, 1)
	assert.Equal(t, DefaultProcessingDelay, timers[0].Delay)

	result, err := h.mgr.Result(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, result, "no result before the delay elapses")

	require.Equal(t, 1, h.sched.FirePending())

	got, ok := h.mgr.GetSession(sess.ID)
	require.True(t, ok)
	assert.Equal(t, models.DemoStateResolved, got.State)
	require.NotNil(t, got.Result)
	assert.Equal(t, models.LabelSynthetic, got.Result.Label)
	assert.Equal(t, 93, got.Result.Confidence)
	assert.Equal(t, sess.RunID, got.Result.RunID)

	notes, err := h.mgr.Notifications(sess.ID)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "File uploaded successfully", notes[0].Title)
	assert.Equal(t, "clip.mp4 is ready for analysis.", notes[0].Description)
	assert.Equal(t, "Processing started", notes[1].Title)
	assert.Equal(t, "Analyzing file for deepfake detection...", notes[1].Description)
	assert.Equal(t, "Analysis complete", notes[2].Title)
	assert.Equal(t, "Detection result: Deepfake (93% confidence)", notes[2].Description)
	assert.Equal(t, models.VariantDestructive, notes[2].Variant)
	for _, n := range notes {
		assert.Equal(t, sess.ID, n.SessionID)
	}
	assert.Equal(t, []string{"File uploaded successfully", "Processing started", "Analysis complete"}, h.sink.Titles())

	runs := h.recorder.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, sess.ID, runs[0].sessionID)
	assert.Equal(t, 93, runs[0].result.Confidence)

	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.AnalysesStarted))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.AnalysesResolved.WithLabelValues("synthetic")))
}

func TestManager_AuthenticResultUsesDefaultVariant(t *testing.T) {
	h := newHarness(t, Options{})
	sess, err := h.mgr.StartSession()
	require.NoError(t, err)

	_, err = h.mgr.SelectFile(sess.ID, upload.Declaration{Name: "real_recording.mp4", MediaType: "video/mp4", Size: 12 * upload.MiB})
	require.NoError(t, err)
	_, err = h.mgr.RunAnalysis(sess.ID)
	require.NoError(t, err)
	h.sched.FirePending()

	notes, err := h.mgr.Notifications(sess.ID)
	require.NoError(t, err)
	last := notes[len(notes)-1]
	assert.Equal(t, "Detection result: Authentic (96% confidence)", last.Description) // 92 + 0.5*7 = 95.5
	assert.Equal(t, models.VariantDefault, last.Variant)
}

func TestManager_RunWithoutFile(t *testing.T) {
	h := newHarness(t, Options{})
	sess, err := h.mgr.StartSession()
	require.NoError(t, err)

	_, err = h.mgr.RunAnalysis(sess.ID)
	assert.ErrorIs(t, err, ErrNoFileSelected)

	got, _ := h.mgr.GetSession(sess.ID)
	assert.Equal(t, models.DemoStateIdle, got.State)
	assert.Empty(t, h.sched.Timers(), "no timer may be armed")

	notes, _ := h.mgr.Notifications(sess.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "No file selected", notes[0].Title)
	assert.Equal(t, "Please upload a file first.", notes[0].Description)
	assert.Equal(t, models.VariantDestructive, notes[0].Variant)
}

func TestManager_RunTwice(t *testing.T) {
	h := newHarness(t, Options{})
	sess, _ := h.mgr.StartSession()
	_, err := h.mgr.SelectFile(sess.ID, smallClip())
	require.NoError(t, err)
	_, err = h.mgr.RunAnalysis(sess.ID)
	require.NoError(t, err)

	_, err = h.mgr.RunAnalysis(sess.ID)
	assert.ErrorIs(t, err, ErrAnalysisRunning)
	assert.Len(t, h.sched.Timers(), 1)
}

func TestManager_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		decl        upload.Declaration
		sentinel    error
		title       string
		description string
	}{
		{
			name:        "invalid type",
			decl:        upload.Declaration{Name: "ai_generated_fake.gif", MediaType: "image/gif", Size: 1024},
			sentinel:    upload.ErrInvalidType,
			title:       "Invalid file type",
			description: "Please upload MP4, AVI, MOV, JPG, or PNG files only.",
		},
		{
			name:        "too large",
			decl:        upload.Declaration{Name: "long.mp4", MediaType: "video/mp4", Size: 51 * upload.MiB},
			sentinel:    upload.ErrTooLarge,
			title:       "File too large",
			description: "Please upload files smaller than 50MB.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			sess, _ := h.mgr.StartSession()

			snap, err := h.mgr.SelectFile(sess.ID, tt.decl)
			assert.ErrorIs(t, err, ErrRejectedUpload)
			assert.ErrorIs(t, err, tt.sentinel)
			require.NotNil(t, snap)
			assert.Equal(t, models.DemoStateIdle, snap.State)
			assert.Zero(t, h.store.Len(), "rejected files are never registered")

			notes, _ := h.mgr.Notifications(sess.ID)
			require.Len(t, notes, 1)
			assert.Equal(t, tt.title, notes[0].Title)
			assert.Equal(t, tt.description, notes[0].Description)
			assert.Equal(t, models.VariantDestructive, notes[0].Variant)
		})
	}
}

func TestRejectionNotice_CustomLimit(t *testing.T) {
	n := rejectionNotice(models.RejectTooLarge, 10*upload.MiB)
	assert.Equal(t, "File too large", n.Title)
	assert.Equal(t, "Please upload files smaller than 10 MiB.", n.Description)

	n = rejectionNotice(models.RejectTooLarge, upload.DefaultMaxSize)
	assert.Equal(t, "Please upload files smaller than 50MB.", n.Description)
}

func TestManager_RejectionKeepsPendingRun(t *testing.T) {
	h := newHarness(t, Options{})
	sess, _ := h.mgr.StartSession()
	_, err := h.mgr.SelectFile(sess.ID, smallClip())
	require.NoError(t, err)
	_, err = h.mgr.RunAnalysis(sess.ID)
	require.NoError(t, err)

	_, err = h.mgr.SelectFile(sess.ID, upload.Declaration{Name: "doc.pdf", MediaType: "application/pdf", Size: 10})
	require.Error(t, err)

	h.sched.FirePending()
	got, _ := h.mgr.GetSession(sess.ID)
	assert.Equal(t, models.DemoStateResolved, got.State)
	assert.Equal(t, "clip.mp4", got.Result.FileName)
}

func TestManager_ReselectDiscardsPendingRun(t *testing.T) {
	h := newHarness(t, Options{})
	sess, _ := h.mgr.StartSession()
	_, err := h.mgr.SelectFile(sess.ID, smallClip())
	require.NoError(t, err)
	_, err = h.mgr.RunAnalysis(sess.ID)
	require.NoError(t, err)

	snap, err := h.mgr.SelectFile(sess.ID, upload.Declaration{Name: "second.png", MediaType: "image/png", Size: 3 * upload.MiB})
	require.NoError(t, err)
	assert.Equal(t, models.DemoStateFileReady, snap.State)

	// The first timer was cancelled; even if it fires anyway its run is stale.
	assert.True(t, h.sched.Fire(0), "timer should have been stopped")

	got, _ := h.mgr.GetSession(sess.ID)
	assert.Equal(t, models.DemoStateFileReady, got.State)
	assert.Nil(t, got.Result)
	assert.Equal(t, "second.png", got.File.Name)
	assert.NotContains(t, h.sink.Titles(), "Analysis complete")
	assert.Empty(t, h.recorder.Runs())
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.AnalysesDiscarded))

	// Superseded upload metadata is released.
	assert.Equal(t, 1, h.store.Len())
	assert.Len(t, h.store.Deleted(), 1)
}

func TestManager_ReselectAfterResolve(t *testing.T) {
	h := newHarness(t, Options{})
	sess, _ := h.mgr.StartSession()
	_, _ = h.mgr.SelectFile(sess.ID, smallClip())
	_, _ = h.mgr.RunAnalysis(sess.ID)
	h.sched.FirePending()

	snap, err := h.mgr.SelectFile(sess.ID, smallClip())
	require.NoError(t, err)
	assert.Equal(t, models.DemoStateFileReady, snap.State)
	assert.Nil(t, snap.Result)

	result, err := h.mgr.Result(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestManager_DeleteCancelsRun(t *testing.T) {
	h := newHarness(t, Options{})
	sess, _ := h.mgr.StartSession()
	_, _ = h.mgr.SelectFile(sess.ID, smallClip())
	_, err := h.mgr.RunAnalysis(sess.ID)
	require.NoError(t, err)

	ch, cancel, err := h.mgr.Subscribe(sess.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, h.mgr.DeleteSession(sess.ID))
	assert.Zero(t, h.mgr.Count())
	assert.Zero(t, h.store.Len())

	_, open := <-ch
	assert.False(t, open, "subscription closes with the session")

	assert.True(t, h.sched.Fire(0))
	assert.Empty(t, h.recorder.Runs())

	assert.ErrorIs(t, h.mgr.DeleteSession(sess.ID), ErrSessionNotFound)
}

func TestManager_SessionDeletedDuringIntake(t *testing.T) {
	h := newHarness(t, Options{})
	sess, _ := h.mgr.StartSession()
	h.store.OnRegister = func() {
		require.NoError(t, h.mgr.DeleteSession(sess.ID))
	}

	_, err := h.mgr.SelectFile(sess.ID, smallClip())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, h.store.Len(), "registered file is released when the session is gone")
	assert.Len(t, h.store.Deleted(), 1)
	assert.Empty(t, h.sink.Titles())
}

func TestManager_UnknownSession(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.mgr.SelectFile("nope", smallClip())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.mgr.RunAnalysis("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.mgr.Result("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.mgr.Notifications("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = h.mgr.Subscribe("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, ok := h.mgr.GetSession("nope")
	assert.False(t, ok)
	assert.False(t, h.mgr.TouchSession("nope"))
	assert.Zero(t, h.store.Len(), "unknown sessions never register uploads")
}

func TestManager_Subscribe(t *testing.T) {
	h := newHarness(t, Options{})
	sess, _ := h.mgr.StartSession()

	ch, cancel, err := h.mgr.Subscribe(sess.ID)
	require.NoError(t, err)
	defer cancel()

	_, err = h.mgr.SelectFile(sess.ID, smallClip())
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, "File uploaded successfully", n.Title)
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}
}

func TestManager_Capacity(t *testing.T) {
	h := newHarness(t, Options{MaxSessions: 1})

	first, err := h.mgr.StartSession()
	require.NoError(t, err)
	_, _ = h.mgr.SelectFile(first.ID, smallClip())
	_, err = h.mgr.RunAnalysis(first.ID)
	require.NoError(t, err)

	_, err = h.mgr.StartSession()
	assert.ErrorIs(t, err, ErrTooManySessions, "processing sessions are never evicted")

	h.sched.FirePending()

	second, err := h.mgr.StartSession()
	require.NoError(t, err)
	assert.Equal(t, 1, h.mgr.Count())

	_, ok := h.mgr.GetSession(first.ID)
	assert.False(t, ok, "least recently used session is evicted")
	_, ok = h.mgr.GetSession(second.ID)
	assert.True(t, ok)
}

func TestManager_CleanupOldSessions(t *testing.T) {
	h := newHarness(t, Options{})

	idle, _ := h.mgr.StartSession()
	busy, _ := h.mgr.StartSession()
	_, _ = h.mgr.SelectFile(busy.ID, smallClip())
	_, err := h.mgr.RunAnalysis(busy.ID)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	fresh, _ := h.mgr.StartSession()

	h.clock.Advance(25 * time.Minute)
	removed := h.mgr.CleanupOldSessions(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, ok := h.mgr.GetSession(idle.ID)
	assert.False(t, ok)
	_, ok = h.mgr.GetSession(busy.ID)
	assert.True(t, ok, "processing sessions survive cleanup")
	_, ok = h.mgr.GetSession(fresh.ID)
	assert.True(t, ok)
}

func TestManager_RealTimer(t *testing.T) {
	uploads := upload.NewManager(upload.NewValidator(upload.DefaultConstraints()), testutil.NewMockStorage(), nil, nil)
	mgr := NewManager(uploads, classifier.New(testutil.FixedSource{Value: 0}), Options{ProcessingDelay: 20 * time.Millisecond})
	defer mgr.Close()

	assert.Equal(t, 20*time.Millisecond, mgr.ProcessingDelay())

	sess, err := mgr.StartSession()
	require.NoError(t, err)
	_, err = mgr.SelectFile(sess.ID, smallClip())
	require.NoError(t, err)
	_, err = mgr.RunAnalysis(sess.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, ok := mgr.GetSession(sess.ID)
		return ok && got.State == models.DemoStateResolved
	}, time.Second, 5*time.Millisecond)

	result, err := mgr.Result(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 88, result.Confidence)
}
