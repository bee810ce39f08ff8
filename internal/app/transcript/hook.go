package transcript

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"blobscribe/internal/app/model"
)

// HookFormatter consults an external formatting endpoint first and falls
// back to a local formatter on any non-200 response or transport failure.
type HookFormatter struct {
	url      string
	client   *http.Client
	fallback Formatter
	logger   *zap.Logger
}

// NewHookFormatter wraps fallback with an HTTP formatting hook at url.
func NewHookFormatter(url string, fallback Formatter, logger *zap.Logger) *HookFormatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookFormatter{
		url:      url,
		client:   &http.Client{Timeout: 30 * time.Second},
		fallback: fallback,
		logger:   logger,
	}
}

// Format POSTs the raw transcript JSON to the hook. A 200 response body is
// used verbatim; anything else falls through to the local formatter.
func (h *HookFormatter) Format(raw model.RawTranscript) string {
	body, err := json.Marshal(raw)
	if err != nil {
		return h.fallback.Format(raw)
	}

	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(body))
	if err != nil {
		h.logger.Warn("formatter hook unreachable, using local formatter",
			zap.String("url", h.url), zap.Error(err))
		return h.fallback.Format(raw)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Warn("formatter hook declined, using local formatter",
			zap.String("url", h.url), zap.Int("status", resp.StatusCode))
		return h.fallback.Format(raw)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil || len(text) == 0 {
		return h.fallback.Format(raw)
	}
	return string(text)
}
