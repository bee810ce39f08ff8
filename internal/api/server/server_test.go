package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blobscribe/internal/app/ledger"
	"blobscribe/internal/app/model"
)

func newTestServer(t *testing.T, tracker *Tracker, history *ledger.Recorder) *Server {
	t.Helper()
	return NewServer(Config{}, tracker, history, prometheus.NewRegistry(), zap.NewNop())
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, NewTracker(), nil)

	w := doGet(t, s, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestStatusIdle(t *testing.T) {
	s := newTestServer(t, NewTracker(), nil)

	w := doGet(t, s, "/api/v1/status")

	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.False(t, snap.Running)
	assert.Zero(t, snap.Total)
}

func TestStatusReflectsRunProgress(t *testing.T) {
	tracker := NewTracker()
	s := newTestServer(t, tracker, nil)

	tracker.BeginRun("run-1", 10)
	tracker.Consume(model.ProcessingOutcome{AudioPath: "a.wav", Success: true, Status: model.StatusDone})
	tracker.Consume(model.ProcessingOutcome{AudioPath: "b.wav", Status: model.StatusFail, Error: "boom"})
	tracker.Consume(model.ProcessingOutcome{AudioPath: "c.wav", Status: model.StatusRateLimited})

	w := doGet(t, s, "/api/v1/status")

	require.Equal(t, http.StatusOK, w.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 3, snap.Processed)
	assert.Equal(t, 1, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.RateLimited)
	require.NotNil(t, snap.StartedAt)
}

func TestFailuresListsNonSuccesses(t *testing.T) {
	tracker := NewTracker()
	s := newTestServer(t, tracker, nil)

	tracker.BeginRun("run-1", 3)
	tracker.Consume(model.ProcessingOutcome{AudioPath: "a.wav", Success: true, Status: model.StatusDone})
	tracker.Consume(model.ProcessingOutcome{AudioPath: "b.wav", Status: model.StatusFail, Error: "boom"})
	tracker.Consume(model.ProcessingOutcome{AudioPath: "c.wav", Status: model.StatusRateLimited})

	w := doGet(t, s, "/api/v1/failures")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		RunID    string                    `json:"run_id"`
		Count    int                       `json:"count"`
		Failures []model.ProcessingOutcome `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 2, body.Count)
}

func TestBeginRunResetsPreviousState(t *testing.T) {
	tracker := NewTracker()
	tracker.BeginRun("run-1", 2)
	tracker.Consume(model.ProcessingOutcome{AudioPath: "a.wav", Status: model.StatusFail})
	tracker.EndRun()

	tracker.BeginRun("run-2", 5)
	snap := tracker.Snapshot()

	assert.Equal(t, "run-2", snap.RunID)
	assert.Zero(t, snap.Processed)
	assert.Empty(t, snap.Failures)
	assert.Nil(t, snap.FinishedAt)
}

func TestHistoryWithoutLedger(t *testing.T) {
	s := newTestServer(t, NewTracker(), nil)

	w := doGet(t, s, "/api/v1/history")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHistoryReadsLedgerNewestFirst(t *testing.T) {
	recorder, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	defer recorder.Close()

	older := model.ProcessingOutcome{
		AudioPath:  "old.wav",
		Success:    true,
		Status:     model.StatusDone,
		FinishedAt: time.Now().Add(-time.Hour),
	}
	newer := model.ProcessingOutcome{
		AudioPath:  "new.wav",
		Status:     model.StatusFail,
		FinishedAt: time.Now(),
	}
	require.NoError(t, recorder.Record(older))
	require.NoError(t, recorder.Record(newer))

	s := newTestServer(t, NewTracker(), recorder)
	w := doGet(t, s, "/api/v1/history")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count    int                       `json:"count"`
		Outcomes []model.ProcessingOutcome `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "new.wav", body.Outcomes[0].AudioPath)
	assert.Equal(t, "old.wav", body.Outcomes[1].AudioPath)
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "blobscribe_test_total"})
	reg.MustRegister(counter)
	counter.Inc()

	s := NewServer(Config{}, NewTracker(), nil, reg, zap.NewNop())
	w := doGet(t, s, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blobscribe_test_total 1")
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, NewTracker(), nil)

	w := doGet(t, s, "/healthz")

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
