package voicegain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) (*Client, *[]time.Duration) {
	c := NewClient(Config{
		BaseURL:     baseURL,
		BearerToken: "test-token",
	}, zap.NewNop())

	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) {
		sleeps = append(sleeps, d)
	}
	return c, &sleeps
}

func submissionBody(sessionURL string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"sessions": []map[string]string{{"sessionUrl": sessionURL}},
	})
	return body
}

func TestSubmitSuccess(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/asr/transcribe/async", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write(submissionBody("https://api.example.com/session/1"))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	session, err := client.Submit(context.Background(), "https://blobs.example.com/a.wav")

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "https://api.example.com/session/1", session.URL)
	assert.Equal(t, "Bearer test-token", gotAuth)

	// request contract basics
	assert.Equal(t, "VoiceGain-Omega:2", gotPayload["modelName"])
	settings := gotPayload["settings"].(map[string]interface{})
	diarization := settings["asr"].(map[string]interface{})["diarization"].(map[string]interface{})
	assert.Equal(t, float64(2), diarization["minSpeakers"])
	assert.Equal(t, float64(3), diarization["maxSpeakers"])
	assert.Equal(t, false, settings["preemptible"])
	sessions := gotPayload["sessions"].([]interface{})
	assert.Equal(t, "OFF-LINE", sessions[0].(map[string]interface{})["asyncMode"])
}

func TestSubmitRetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(submissionBody("https://api.example.com/session/2"))
	}))
	defer server.Close()

	client, sleeps := newTestClient(server.URL)
	session, err := client.Submit(context.Background(), "https://blobs.example.com/a.wav")

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, int32(3), calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestSubmitGivesUpAfterThree429s(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	session, err := client.Submit(context.Background(), "https://blobs.example.com/a.wav")

	require.NoError(t, err, "exhausted retries are not an error")
	assert.Nil(t, session)
	assert.Equal(t, int32(3), calls)
}

func TestSubmitNon429FailureIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad audio url"))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	session, err := client.Submit(context.Background(), "https://blobs.example.com/a.wav")

	require.Error(t, err)
	assert.Nil(t, session)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "bad audio url")
}

func pollServer(t *testing.T, phases []string) (*httptest.Server, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		phase := phases[len(phases)-1]
		if int(n) <= len(phases) {
			phase = phases[n-1]
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"progress": map[string]string{"phase": phase},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestPollTerminatesOnDone(t *testing.T) {
	server, calls := pollServer(t, []string{"QUEUED", "RUNNING", "DONE"})

	client, sleeps := newTestClient(server.URL)
	phase, outcome, err := client.Poll(context.Background(), &Session{URL: server.URL}, 10, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "DONE", phase)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, int32(3), *calls)
	// sleep precedes every check, including the first
	assert.Len(t, *sleeps, 3)
}

func TestPollStopsImmediatelyOnError(t *testing.T) {
	server, calls := pollServer(t, []string{"QUEUED", "ERROR"})

	client, _ := newTestClient(server.URL)
	phase, outcome, err := client.Poll(context.Background(), &Session{URL: server.URL}, 10, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "ERROR", phase)
	assert.Equal(t, OutcomeFail, outcome)
	assert.Equal(t, int32(2), *calls)
}

func TestPollTimesOutAtCeiling(t *testing.T) {
	server, calls := pollServer(t, []string{"RUNNING"})

	client, _ := newTestClient(server.URL)
	_, outcome, err := client.Poll(context.Background(), &Session{URL: server.URL}, 5, time.Second)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, outcome)
	assert.Equal(t, int32(5), *calls)
}

func TestPollHTTPErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	_, _, err := client.Poll(context.Background(), &Session{URL: server.URL}, 5, time.Second)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFetchTranscriptObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/session/1/transcript", r.URL.Path)
		w.Write([]byte(`{"utterances":[{"speakerId":"1","start":0,"transcript":"hi"}]}`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	raw, err := client.FetchTranscript(context.Background(), &Session{URL: server.URL + "/session/1"})

	require.NoError(t, err)
	require.Len(t, raw.Utterances, 1)
	assert.Equal(t, "hi", raw.Utterances[0].Transcript)
}

func TestFetchTranscriptListTakesFirstElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"words":[{"speakerId":"1","text":"hi"}]},{"words":[]}]`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	raw, err := client.FetchTranscript(context.Background(), &Session{URL: server.URL})

	require.NoError(t, err)
	require.Len(t, raw.Words, 1)
	assert.Equal(t, "hi", raw.Words[0].Text)
}

func TestFetchTranscriptEmptyOrUnrecognizedPayload(t *testing.T) {
	for name, body := range map[string]string{
		"empty list": `[]`,
		"scalar":     `"nothing"`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			client, _ := newTestClient(server.URL)
			raw, err := client.FetchTranscript(context.Background(), &Session{URL: server.URL})

			require.NoError(t, err)
			assert.True(t, raw.Empty())
		})
	}
}
