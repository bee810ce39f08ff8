package artifact

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"blobscribe/internal/app/blobstore"
	"blobscribe/internal/app/errors"
	"blobscribe/internal/app/model"
	"blobscribe/internal/app/transcript"
)

// audioExtensions are stripped (case-insensitively) from an identifier
// when deriving the artifact base name.
var audioExtensions = []string{".mp3", ".wav", ".m4a"}

// Config tunes artifact layout and archival behavior.
type Config struct {
	// OutputFolder is the folder receiving formatted/ and raw/ artifacts.
	OutputFolder string
	// ArchiveFolder receives source objects after successful processing.
	ArchiveFolder string
	// DoubleSpace inserts a blank line between formatted transcript lines.
	DoubleSpace bool
	// CopyWaitCeiling bounds how long an archival copy may stay pending.
	CopyWaitCeiling time.Duration
	// CopyPollInterval is the spacing between copy status checks.
	CopyPollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.OutputFolder == "" {
		c.OutputFolder = "Transcripts"
	}
	if c.ArchiveFolder == "" {
		c.ArchiveFolder = "Archive"
	}
	if c.CopyWaitCeiling <= 0 {
		c.CopyWaitCeiling = 30 * time.Second
	}
	if c.CopyPollInterval <= 0 {
		c.CopyPollInterval = 500 * time.Millisecond
	}
	return c
}

// Writer persists transcript artifacts and relocates processed sources.
// A Writer with no store configured is a documented no-op: Persist returns
// an empty path and no error.
type Writer struct {
	store  blobstore.Store
	config Config
	logger *zap.Logger

	sleep func(context.Context, time.Duration)
}

// NewWriter creates a Writer over store. store may be nil when no output
// backend is configured.
func NewWriter(store blobstore.Store, config Config, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:  store,
		config: config.withDefaults(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Persist writes the formatted transcript and the pretty-printed raw JSON
// to the output folder, overwriting any existing artifacts. It returns the
// formatted artifact's path.
func (w *Writer) Persist(ctx context.Context, formatted string, raw model.RawTranscript, identifier string) (string, error) {
	if w.store == nil {
		w.logger.Warn("no output backend configured, skipping transcript upload",
			zap.String("identifier", identifier))
		return "", nil
	}

	base := BaseName(identifier)
	formattedPath := w.config.OutputFolder + "/formatted/" + base + ".txt"
	rawPath := w.config.OutputFolder + "/raw/" + base + ".json"

	text := formatted
	if w.config.DoubleSpace {
		text = transcript.DoubleSpace(text)
	}
	if err := w.store.PutText(ctx, formattedPath, text); err != nil {
		return "", errors.Wrapf(err, "failed to save formatted transcript for %s", identifier)
	}
	w.logger.Info("formatted transcript saved", zap.String("path", formattedPath))

	rawJSON, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode raw transcript")
	}
	if err := w.store.PutBytes(ctx, rawPath, rawJSON, "application/json"); err != nil {
		return "", errors.Wrapf(err, "failed to save raw transcript for %s", identifier)
	}
	w.logger.Info("raw transcript saved", zap.String("path", rawPath))

	return formattedPath, nil
}

// Archive relocates a processed source object into the archive folder: copy
// first, poll the copy status up to the ceiling, delete the original only
// after the copy reports success. A failed or still-pending copy leaves the
// source untouched and returns an error the caller treats as a warning.
func (w *Writer) Archive(ctx context.Context, sourcePath string) (string, error) {
	if w.store == nil {
		return "", nil
	}

	exists, err := w.store.Exists(ctx, sourcePath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to check source %s", sourcePath)
	}
	if !exists {
		w.logger.Warn("source object missing, skipping archive",
			zap.String("source", sourcePath))
		return "", nil
	}

	parts := strings.Split(sourcePath, "/")
	dest := w.config.ArchiveFolder + "/" + parts[len(parts)-1]

	status, err := w.store.Copy(ctx, sourcePath, dest)
	if err != nil {
		return "", errors.Wrapf(err, "failed to copy %s to %s", sourcePath, dest)
	}

	waited := time.Duration(0)
	for status == blobstore.CopyPending && waited < w.config.CopyWaitCeiling {
		w.sleep(ctx, w.config.CopyPollInterval)
		waited += w.config.CopyPollInterval
		if status, err = w.store.CopyState(ctx, dest); err != nil {
			return "", errors.Wrapf(err, "failed to check copy status for %s", dest)
		}
	}

	if status != blobstore.CopySuccess {
		return "", errors.Newf("copy of %s did not complete: %s", sourcePath, status)
	}

	if err := w.store.Delete(ctx, sourcePath); err != nil {
		return "", errors.Wrapf(err, "copied but failed to delete source %s", sourcePath)
	}

	w.logger.Info("source archived",
		zap.String("source", sourcePath),
		zap.String("dest", dest))
	return dest, nil
}

// BaseName derives the artifact base name from an audio identifier: known
// audio extensions are stripped case-insensitively and path separators
// become underscores.
func BaseName(identifier string) string {
	base := identifier
	lower := strings.ToLower(identifier)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			base = identifier[:len(identifier)-len(ext)]
			break
		}
	}
	base = strings.ReplaceAll(base, "/", "_")
	return strings.ReplaceAll(base, "\\", "_")
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
