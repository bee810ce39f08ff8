package transcript

import (
	"fmt"
	"strings"

	"blobscribe/internal/app/model"
)

// Sentinel is returned whenever no transcribable content exists. Formatted
// output is never the empty string.
const Sentinel = "No transcript available - audio may be silent or transcription failed."

// Formatter turns a raw transcript into readable text. Implementations
// must never return the empty string.
type Formatter interface {
	Format(raw model.RawTranscript) string
}

// LocalFormatter renders a transcript one line per speaker turn.
type LocalFormatter struct{}

// NewLocalFormatter returns the default in-process formatter.
func NewLocalFormatter() *LocalFormatter {
	return &LocalFormatter{}
}

// Format prefers the utterance shape, falls back to grouping the word
// stream into speaker runs, and falls back to the sentinel when neither
// yields any lines.
func (f *LocalFormatter) Format(raw model.RawTranscript) string {
	var lines []string

	switch {
	case len(raw.Utterances) > 0:
		lines = formatUtterances(raw.Utterances)
	case len(raw.Words) > 0:
		lines = formatWords(raw.Words)
	}

	if len(lines) == 0 {
		return Sentinel
	}
	return strings.Join(lines, "\n")
}

func formatUtterances(utterances []model.Utterance) []string {
	var lines []string
	for _, u := range utterances {
		if u.Transcript == "" {
			continue
		}
		start := float64(u.StartMs) / 1000
		lines = append(lines, fmt.Sprintf("[%.2fs] Speaker %s: %s", start, speaker(u.SpeakerID), u.Transcript))
	}
	return lines
}

// formatWords groups consecutive words by unchanged speaker into runs.
// Empty-text words are skipped without breaking the current run.
func formatWords(words []model.Word) []string {
	var lines []string
	currentSpeaker := ""
	var current []string

	flush := func() {
		if len(current) > 0 {
			lines = append(lines, fmt.Sprintf("Speaker %s: %s", speaker(currentSpeaker), strings.Join(current, " ")))
			current = nil
		}
	}

	started := false
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		if !started || w.SpeakerID != currentSpeaker {
			flush()
			currentSpeaker = w.SpeakerID
			started = true
		}
		current = append(current, text)
	}
	flush()

	return lines
}

func speaker(id string) string {
	if id == "" {
		return "Unknown"
	}
	return id
}

// DoubleSpace inserts a blank line between every output line. Some
// downstream consumers want the airier layout; it is a persistence option,
// not part of the format contract.
func DoubleSpace(text string) string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.ReplaceAll(normalized, "\n", "\n\n")
}
