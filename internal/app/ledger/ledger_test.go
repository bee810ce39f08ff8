package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blobscribe/internal/app/model"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndGet(t *testing.T) {
	r := openTestRecorder(t)

	outcome := model.ProcessingOutcome{
		AudioPath:      "calls/a.wav",
		Success:        true,
		Status:         model.StatusDone,
		TranscriptPath: "Transcripts/formatted/calls_a.txt",
		FinishedAt:     time.Now().UTC(),
	}
	require.NoError(t, r.Record(outcome))

	got, err := r.Get("calls/a.wav")
	require.NoError(t, err)
	assert.Equal(t, outcome.AudioPath, got.AudioPath)
	assert.Equal(t, outcome.Status, got.Status)
	assert.True(t, got.Success)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	r := openTestRecorder(t)

	_, err := r.Get("ghost.wav")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordOverwritesSamePath(t *testing.T) {
	r := openTestRecorder(t)

	require.NoError(t, r.Record(model.ProcessingOutcome{AudioPath: "a.wav", Status: model.StatusFail}))
	require.NoError(t, r.Record(model.ProcessingOutcome{AudioPath: "a.wav", Status: model.StatusDone, Success: true}))

	got, err := r.Get("a.wav")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)

	all, err := r.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var r *Recorder

	assert.NoError(t, r.Record(model.ProcessingOutcome{AudioPath: "a.wav"}))
	_, err := r.Get("a.wav")
	assert.ErrorIs(t, err, ErrNotFound)
	all, err := r.All()
	assert.NoError(t, err)
	assert.Nil(t, all)
	assert.NoError(t, r.Close())
}

func TestRecentNewestFirstWithLimit(t *testing.T) {
	r := openTestRecorder(t)

	base := time.Now()
	for i, path := range []string{"a.wav", "b.wav", "c.wav"} {
		require.NoError(t, r.Record(model.ProcessingOutcome{
			AudioPath:  path,
			Status:     model.StatusDone,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := r.Recent(2)

	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c.wav", recent[0].AudioPath)
	assert.Equal(t, "b.wav", recent[1].AudioPath)

	all, err := r.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestConsumeRecords(t *testing.T) {
	r := openTestRecorder(t)

	r.Consume(model.ProcessingOutcome{AudioPath: "a.wav", Status: model.StatusFail})

	got, err := r.Get("a.wav")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFail, got.Status)
}
