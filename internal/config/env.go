package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Blob holds the object-store connection settings.
type Blob struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// VoiceGain holds the transcription API settings.
type VoiceGain struct {
	BaseURL string
	Token   string
	// AudioBaseURL and AccessToken construct publicly reachable audio URLs
	// when items carry only a path.
	AudioBaseURL string
	AccessToken  string
}

// Pipeline holds the discovery and batch-scheduling settings.
type Pipeline struct {
	SourcePrefix     string
	MaxFiles         int
	BatchSize        int
	MinBatchSize     int
	OutputFolder     string
	ArchiveFolder    string
	DoubleSpace      bool
	FormatterHookURL string
	LedgerPath       string
	PollIterations   int
	PollDelay        time.Duration
}

// Config is the full application configuration, loaded from the
// environment with optional .env overrides.
type Config struct {
	Blob          Blob
	VoiceGain     VoiceGain
	Pipeline      Pipeline
	DashboardAddr string
	Development   bool
}

// LoadEnv loads variables from a .env file if one exists nearby. Missing
// files are fine; system-wide environment variables may already be set.
func LoadEnv() error {
	envPaths := []string{
		".env",
		".env.local",
		"../.env",
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("error loading %s file: %w", envPath, err)
			}
			break
		}
	}

	return nil
}

// Load reads, defaults, and validates the full configuration. It fails
// fast: a missing credential surfaces here, not deep inside a run.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{
		Blob: Blob{
			Endpoint:  getenv("BLOB_ENDPOINT", ""),
			AccessKey: getenv("BLOB_ACCESS_KEY", ""),
			SecretKey: getenv("BLOB_SECRET_KEY", ""),
			Bucket:    getenv("BLOB_BUCKET", ""),
			UseSSL:    getenvBool("BLOB_USE_SSL", true),
		},
		VoiceGain: VoiceGain{
			BaseURL:      getenv("VOICEGAIN_API_URL", "https://api.voicegain.ai/v1"),
			Token:        getenv("VOICEGAIN_TOKEN", ""),
			AudioBaseURL: getenv("AUDIO_BASE_URL", ""),
			AccessToken:  getenv("ACCESS_TOKEN", ""),
		},
		Pipeline: Pipeline{
			SourcePrefix:     getenv("SOURCE_PREFIX", ""),
			MaxFiles:         getenvInt("MAX_FILES", 0),
			BatchSize:        getenvInt("BATCH_SIZE", 200),
			MinBatchSize:     getenvInt("MIN_BATCH_SIZE", 10),
			OutputFolder:     getenv("OUTPUT_FOLDER", "Transcripts"),
			ArchiveFolder:    getenv("ARCHIVE_FOLDER", "Archive"),
			DoubleSpace:      getenvBool("DOUBLE_SPACE", false),
			FormatterHookURL: getenv("FORMATTER_HOOK_URL", ""),
			LedgerPath:       getenv("LEDGER_PATH", ""),
			PollIterations:   getenvInt("POLL_ITERATIONS", 0),
			PollDelay:        time.Duration(getenvInt("POLL_DELAY_SECONDS", 0)) * time.Second,
		},
		DashboardAddr: getenv("DASHBOARD_ADDR", ":8080"),
		Development:   getenvBool("DEVELOPMENT", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for inconsistencies that would
// only surface mid-run otherwise.
func (c *Config) Validate() error {
	if c.Blob.Endpoint != "" {
		if c.Blob.AccessKey == "" || c.Blob.SecretKey == "" {
			return fmt.Errorf("BLOB_ENDPOINT is set but BLOB_ACCESS_KEY or BLOB_SECRET_KEY is missing")
		}
		if c.Blob.Bucket == "" {
			return fmt.Errorf("BLOB_ENDPOINT is set but BLOB_BUCKET is missing")
		}
	}
	if c.Pipeline.MaxFiles < 0 {
		return fmt.Errorf("MAX_FILES must not be negative, got %d", c.Pipeline.MaxFiles)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.MinBatchSize <= 0 {
		return fmt.Errorf("MIN_BATCH_SIZE must be positive, got %d", c.Pipeline.MinBatchSize)
	}
	if c.Pipeline.MinBatchSize > c.Pipeline.BatchSize {
		return fmt.Errorf("MIN_BATCH_SIZE (%d) must not exceed BATCH_SIZE (%d)",
			c.Pipeline.MinBatchSize, c.Pipeline.BatchSize)
	}
	return nil
}

// RequireVoiceGain validates the settings a transcription run cannot work
// without. The scan command has no use for them, so this is separate from
// Validate.
func (c *Config) RequireVoiceGain() error {
	if c.VoiceGain.Token == "" {
		return fmt.Errorf("transcription requires VOICEGAIN_TOKEN in environment or .env file")
	}
	return nil
}

// RequireBlob validates the settings any object-store operation needs.
func (c *Config) RequireBlob() error {
	if c.Blob.Endpoint == "" {
		return fmt.Errorf("object store access requires BLOB_ENDPOINT in environment or .env file")
	}
	return nil
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
