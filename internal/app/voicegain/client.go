package voicegain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"blobscribe/internal/app/errors"
	"blobscribe/internal/app/model"
)

// Outcome classifies how a remote transcription session ended.
type Outcome string

const (
	OutcomeSuccess Outcome = ""
	OutcomeFail    Outcome = "fail"
	OutcomeTimeout Outcome = "timeout"
)

const (
	// DefaultBaseURL is the async transcription endpoint.
	DefaultBaseURL = "https://api.voicegain.ai/v1"

	// DefaultPollIterations and DefaultPollDelay give a 20-minute ceiling.
	DefaultPollIterations = 60
	DefaultPollDelay      = 20 * time.Second

	submitRetries = 3
)

// Config holds settings for the transcription API client.
type Config struct {
	BaseURL     string
	BearerToken string
	ModelName   string
	Timeout     time.Duration
}

// Session is the opaque handle for one remote transcription job.
type Session struct {
	URL string
}

// Client talks to the remote transcription API: submit a job for a URL,
// poll it to a terminal phase, fetch the finished transcript.
type Client struct {
	config Config
	client *http.Client
	logger *zap.Logger

	// sleep is replaced in tests to avoid real backoff waits
	sleep func(context.Context, time.Duration)
}

// NewClient creates a Client with defaults applied.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.ModelName == "" {
		config.ModelName = "VoiceGain-Omega:2"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
		sleep:  sleepContext,
	}
}

// submitResponse is the relevant slice of the submission reply.
type submitResponse struct {
	Sessions []struct {
		SessionURL string `json:"sessionUrl"`
	} `json:"sessions"`
}

// pollResponse is the relevant slice of the session status reply.
type pollResponse struct {
	Progress struct {
		Phase string `json:"phase"`
	} `json:"progress"`
}

// Submit submits a transcription job for audioURL. On HTTP 429 it retries
// up to three times with exponential backoff (1s, 2s, 4s); exhausting the
// retries returns (nil, nil), meaning "not submitted, safe to retry later".
// Any other non-2xx status is an error.
func (c *Client) Submit(ctx context.Context, audioURL string) (*Session, error) {
	body, err := json.Marshal(c.submitPayload(audioURL))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode submission payload")
	}

	endpoint := c.config.BaseURL + "/asr/transcribe/async"
	for attempt := 0; attempt < submitRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "failed to build submission request")
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "submission request failed")
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			if attempt < submitRetries-1 {
				wait := time.Duration(1<<attempt) * time.Second
				c.logger.Warn("rate limited on submission, backing off",
					zap.String("audio_url", audioURL),
					zap.Int("attempt", attempt+1),
					zap.Duration("wait", wait))
				c.sleep(ctx, wait)
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				continue
			}
			c.logger.Warn("rate limited on submission, giving up",
				zap.String("audio_url", audioURL),
				zap.Int("attempts", submitRetries))
			return nil, nil
		}

		session, err := decodeSubmission(resp)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return nil, nil
}

func decodeSubmission(resp *http.Response) (*Session, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read submission response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.RemoteStatus("submission", resp.StatusCode, string(data))
	}

	var decoded submitResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode submission response")
	}
	if len(decoded.Sessions) == 0 || decoded.Sessions[0].SessionURL == "" {
		return nil, errors.ErrNoSession
	}
	return &Session{URL: decoded.Sessions[0].SessionURL}, nil
}

// Poll watches the session until it reaches a terminal phase. Each
// iteration sleeps delay first, then checks: there is never a zero-wait
// first check. DONE ends with OutcomeSuccess, ERROR with OutcomeFail, and
// hitting maxIterations without either gives OutcomeTimeout.
func (c *Client) Poll(ctx context.Context, session *Session, maxIterations int, delay time.Duration) (string, Outcome, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultPollIterations
	}
	if delay <= 0 {
		delay = DefaultPollDelay
	}

	phase := ""
	for iteration := 1; iteration <= maxIterations; iteration++ {
		c.sleep(ctx, delay)
		if err := ctx.Err(); err != nil {
			return phase, OutcomeFail, err
		}

		status, err := c.fetchStatus(ctx, session)
		if err != nil {
			return phase, OutcomeFail, err
		}
		phase = status.Progress.Phase

		c.logger.Debug("polled session",
			zap.String("session_url", session.URL),
			zap.Int("iteration", iteration),
			zap.Int("max_iterations", maxIterations),
			zap.String("phase", phase))

		switch phase {
		case "DONE":
			return phase, OutcomeSuccess, nil
		case "ERROR":
			return phase, OutcomeFail, nil
		}
	}

	c.logger.Error("polling ceiling reached",
		zap.String("session_url", session.URL),
		zap.Int("max_iterations", maxIterations))
	return phase, OutcomeTimeout, nil
}

func (c *Client) fetchStatus(ctx context.Context, session *Session) (*pollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, session.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build status request")
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "status request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read status response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.RemoteStatus("status poll", resp.StatusCode, string(data))
	}

	var decoded pollResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode status response")
	}
	return &decoded, nil
}

// FetchTranscript retrieves the finished transcript. The service returns
// either a single object or a list of objects; a list takes its first
// element, and an empty or unrecognizable payload yields an empty
// transcript rather than an error.
func (c *Client) FetchTranscript(ctx context.Context, session *Session) (model.RawTranscript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, session.URL+"/transcript", nil)
	if err != nil {
		return model.RawTranscript{}, errors.Wrap(err, "failed to build transcript request")
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.RawTranscript{}, errors.Wrap(err, "transcript request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.RawTranscript{}, errors.Wrap(err, "failed to read transcript response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.RawTranscript{}, errors.RemoteStatus("transcript fetch", resp.StatusCode, string(data))
	}

	return decodeTranscript(data), nil
}

func decodeTranscript(data []byte) model.RawTranscript {
	var one model.RawTranscript
	if err := json.Unmarshal(data, &one); err == nil {
		return one
	}

	var many []model.RawTranscript
	if err := json.Unmarshal(data, &many); err == nil && len(many) > 0 {
		return many[0]
	}

	return model.RawTranscript{}
}

func (c *Client) submitPayload(audioURL string) map[string]interface{} {
	return map[string]interface{}{
		"modelName": c.config.ModelName,
		"audio": map[string]interface{}{
			"source": map[string]interface{}{
				"fromUrl": map[string]interface{}{"url": audioURL},
			},
		},
		"settings": map[string]interface{}{
			"asr": map[string]interface{}{
				"diarization": map[string]interface{}{
					"minSpeakers": 2,
					"maxSpeakers": 3,
				},
			},
			"formatters": []map[string]interface{}{
				{"type": "digits"},
				{"type": "basic", "parameters": map[string]interface{}{"enabled": "true"}},
				{"type": "enhanced", "parameters": map[string]interface{}{"CC": true, "EMAIL": "true"}},
				{"type": "profanity", "parameters": map[string]interface{}{"mask": "partial"}},
				{"type": "spelling", "parameters": map[string]interface{}{"lang": "en-US"}},
				{"type": "redact", "parameters": map[string]interface{}{
					"ADDRESS": "full", "CARDINAL": "full", "CC": "full",
					"DATE": "full", "EMAIL": "full", "EVENT": "full",
					"FAC": "full", "GPE": "full", "LANGUAGE": "full",
					"LAW": "full", "NORP": "full", "MONEY": "full",
					"ORDINAL": "full", "ORG": "full", "PERCENT": "full",
					"PERSON": "full", "PHONE": "full", "PRODUCT": "full",
					"QUANTITY": "full", "SSN": "full", "TIME": "full",
					"WORK_OF_ART": "full", "ZIP": "full",
				}},
				{"type": "regex", "parameters": map[string]interface{}{
					"mask": "full", "options": "IA",
					"pattern": "[1-9][0-9]{3}[ ]?[a-zA-Z]{2}",
				}},
				{"type": "regex", "parameters": map[string]interface{}{
					"mask": "full", "options": "IA",
					"pattern": `\d+\.`,
				}},
			},
			"preemptible": false,
		},
		"sessions": []map[string]interface{}{
			{
				"asyncMode": "OFF-LINE",
				"poll":      map[string]interface{}{"persist": 600000},
				"content": map[string]interface{}{
					"incremental": []string{"progress"},
					"full":        []string{"transcript", "words"},
				},
			},
		},
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	req.Header.Set("Accept", "application/json")
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
