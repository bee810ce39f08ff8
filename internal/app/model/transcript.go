package model

// RawTranscript is the decoded JSON payload returned by the transcription
// service. Either Utterances or Words is populated; both empty means the
// service produced no transcribable content.
type RawTranscript struct {
	Utterances []Utterance            `json:"utterances,omitempty"`
	Words      []Word                 `json:"words,omitempty"`
	Extra      map[string]interface{} `json:"-"`
}

// Utterance is one continuous speech segment attributed to a single speaker.
type Utterance struct {
	SpeakerID  string `json:"speakerId"`
	StartMs    int64  `json:"start"`
	Transcript string `json:"transcript"`
}

// Word is one speaker-tagged token from the word-stream transcript shape.
type Word struct {
	SpeakerID string `json:"speakerId"`
	Text      string `json:"text"`
	StartMs   int64  `json:"start,omitempty"`
}

// Empty reports whether the transcript carries no structured content.
func (t RawTranscript) Empty() bool {
	return len(t.Utterances) == 0 && len(t.Words) == 0
}
