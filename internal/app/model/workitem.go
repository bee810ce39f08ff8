package model

// WorkItem identifies one audio asset discovered in the storage namespace.
// Items are keyed by their normalized Path; the orchestrator consumes each
// item exactly once per run.
type WorkItem struct {
	// Path is the object key inside the container, normalized to forward
	// slashes. Unique within one discovery run.
	Path string `json:"audiopath"`

	// SourceMetadata is the key of the metadata record that declared this
	// item, or empty when the item was matched by extension alone.
	SourceMetadata string `json:"source_metadata,omitempty"`

	// AudioURL is the externally reachable URL for the audio object. Left
	// empty at discovery time and resolved per attempt.
	AudioURL string `json:"audio_url,omitempty"`
}

// ResolvedURL reports whether the item already carries a usable URL.
func (w WorkItem) ResolvedURL() bool {
	return w.AudioURL != ""
}
