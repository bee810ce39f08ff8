package transcript

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"blobscribe/internal/app/model"
)

func TestFormatUtterances(t *testing.T) {
	raw := model.RawTranscript{
		Utterances: []model.Utterance{
			{SpeakerID: "1", StartMs: 0, Transcript: "hi"},
		},
	}

	assert.Equal(t, "[0.00s] Speaker 1: hi", NewLocalFormatter().Format(raw))
}

func TestFormatUtterancesMultipleWithTimes(t *testing.T) {
	raw := model.RawTranscript{
		Utterances: []model.Utterance{
			{SpeakerID: "1", StartMs: 1500, Transcript: "hello there"},
			{SpeakerID: "2", StartMs: 3210, Transcript: ""},
			{SpeakerID: "2", StartMs: 4030, Transcript: "hi"},
		},
	}

	// empty-text utterances are skipped, order preserved
	want := "[1.50s] Speaker 1: hello there\n[4.03s] Speaker 2: hi"
	assert.Equal(t, want, NewLocalFormatter().Format(raw))
}

func TestFormatWordsGroupsSpeakerRuns(t *testing.T) {
	raw := model.RawTranscript{
		Words: []model.Word{
			{SpeakerID: "1", Text: "hi"},
			{SpeakerID: "1", Text: "there"},
			{SpeakerID: "2", Text: "bye"},
		},
	}

	assert.Equal(t, "Speaker 1: hi there\nSpeaker 2: bye", NewLocalFormatter().Format(raw))
}

func TestFormatWordsSkipsEmptyWithoutBreakingRun(t *testing.T) {
	raw := model.RawTranscript{
		Words: []model.Word{
			{SpeakerID: "1", Text: "hi"},
			{SpeakerID: "1", Text: "  "},
			{SpeakerID: "1", Text: "there"},
		},
	}

	assert.Equal(t, "Speaker 1: hi there", NewLocalFormatter().Format(raw))
}

func TestFormatWordsSpeakerReturnsStartNewRun(t *testing.T) {
	raw := model.RawTranscript{
		Words: []model.Word{
			{SpeakerID: "1", Text: "a"},
			{SpeakerID: "2", Text: "b"},
			{SpeakerID: "1", Text: "c"},
		},
	}

	assert.Equal(t, "Speaker 1: a\nSpeaker 2: b\nSpeaker 1: c", NewLocalFormatter().Format(raw))
}

func TestFormatEmptyTranscriptReturnsSentinel(t *testing.T) {
	assert.Equal(t, Sentinel, NewLocalFormatter().Format(model.RawTranscript{}))
}

func TestFormatStructuredButBlankReturnsSentinel(t *testing.T) {
	raw := model.RawTranscript{
		Utterances: []model.Utterance{{SpeakerID: "1", Transcript: ""}},
	}
	assert.Equal(t, Sentinel, NewLocalFormatter().Format(raw))

	raw = model.RawTranscript{
		Words: []model.Word{{SpeakerID: "1", Text: " "}},
	}
	assert.Equal(t, Sentinel, NewLocalFormatter().Format(raw))
}

func TestFormatUtterancesPreferredOverWords(t *testing.T) {
	raw := model.RawTranscript{
		Utterances: []model.Utterance{{SpeakerID: "1", StartMs: 0, Transcript: "hi"}},
		Words:      []model.Word{{SpeakerID: "9", Text: "ignored"}},
	}

	assert.Equal(t, "[0.00s] Speaker 1: hi", NewLocalFormatter().Format(raw))
}

func TestFormatMissingSpeakerLabelledUnknown(t *testing.T) {
	raw := model.RawTranscript{
		Utterances: []model.Utterance{{StartMs: 0, Transcript: "hi"}},
	}

	assert.Equal(t, "[0.00s] Speaker Unknown: hi", NewLocalFormatter().Format(raw))
}

func TestDoubleSpace(t *testing.T) {
	assert.Equal(t, "a\n\nb", DoubleSpace("a\nb"))
	assert.Equal(t, "a\n\nb", DoubleSpace("a\r\nb"))
	assert.Equal(t, "a", DoubleSpace("a"))
}

func TestHookFormatterUsesHookResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hook output"))
	}))
	defer server.Close()

	f := NewHookFormatter(server.URL, NewLocalFormatter(), zap.NewNop())
	got := f.Format(model.RawTranscript{
		Utterances: []model.Utterance{{SpeakerID: "1", Transcript: "hi"}},
	})

	assert.Equal(t, "hook output", got)
}

func TestHookFormatterFallsBackOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewHookFormatter(server.URL, NewLocalFormatter(), zap.NewNop())
	got := f.Format(model.RawTranscript{
		Utterances: []model.Utterance{{SpeakerID: "1", StartMs: 0, Transcript: "hi"}},
	})

	assert.Equal(t, "[0.00s] Speaker 1: hi", got)
}

func TestHookFormatterFallsBackWhenUnreachable(t *testing.T) {
	f := NewHookFormatter("http://127.0.0.1:1", NewLocalFormatter(), zap.NewNop())
	got := f.Format(model.RawTranscript{})

	assert.Equal(t, Sentinel, got)
}
