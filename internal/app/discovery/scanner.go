package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"blobscribe/internal/app/blobstore"
	"blobscribe/internal/app/errors"
	"blobscribe/internal/app/model"
)

// Defaults for what counts as audio, what counts as metadata, and which
// prefixes hold already-handled objects.
var (
	DefaultAudioExtensions    = []string{".wav", ".mp3", ".m4a"}
	DefaultMetadataExtensions = []string{".json"}
	DefaultExcludePrefixes    = []string{"Archive/", "Processed/", "Transcripts/"}
)

// Options tunes one discovery scan.
type Options struct {
	// Prefix restricts the scan to one folder of the container.
	Prefix string
	// ExcludePrefixes are keys never considered, regardless of extension.
	// These are the archive/processed/output locations, so a rerun never
	// picks up items that were already handled.
	ExcludePrefixes []string
	// AudioExtensions are the lowercased suffixes treated as audio.
	AudioExtensions []string
	// MetadataExtensions are the suffixes parsed as JSON work-item records.
	MetadataExtensions []string
	// MaxItems stops the scan early once that many items are found. Zero
	// means scan everything.
	MaxItems int
}

func (o Options) withDefaults() Options {
	if o.ExcludePrefixes == nil {
		o.ExcludePrefixes = DefaultExcludePrefixes
	}
	if len(o.AudioExtensions) == 0 {
		o.AudioExtensions = DefaultAudioExtensions
	}
	if len(o.MetadataExtensions) == 0 {
		o.MetadataExtensions = DefaultMetadataExtensions
	}
	return o
}

// Scanner lists candidate audio items from the storage namespace.
type Scanner struct {
	store  blobstore.Store
	logger *zap.Logger

	// progressEvery controls how often the scan logs progress.
	progressEvery int
}

// NewScanner creates a Scanner over the given store.
func NewScanner(store blobstore.Store, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{store: store, logger: logger, progressEvery: 10000}
}

// metadataRecord is the JSON shape accepted from metadata objects. A
// metadata object may hold one record or a list of records; anything
// without an audiopath is ignored.
type metadataRecord struct {
	AudioPath string `json:"audiopath"`
	AudioURL  string `json:"audio_url"`
}

// Discover scans the container and returns de-duplicated work items.
// Metadata-declared items take precedence over extension-matched ones;
// among metadata records for the same normalized path, the later record
// wins. A malformed metadata object is logged and skipped; a listing
// failure aborts the scan.
func (s *Scanner) Discover(ctx context.Context, opts Options) ([]model.WorkItem, error) {
	opts = opts.withDefaults()

	exists, err := s.store.ContainerExists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discovery listing failed")
	}
	if !exists {
		return nil, errors.ErrContainerNotFound
	}

	s.logger.Info("scanning container for audio items",
		zap.String("prefix", opts.Prefix),
		zap.Int("max_items", opts.MaxItems))

	items := make(map[string]model.WorkItem)
	var order []string
	scanned := 0
	lastLog := time.Now()

	walkErr := s.store.Walk(ctx, opts.Prefix, func(obj blobstore.ObjectInfo) bool {
		scanned++
		if scanned%s.progressEvery == 0 || time.Since(lastLog) >= 30*time.Second {
			s.logger.Info("scan progress",
				zap.Int("scanned", scanned),
				zap.Int("found", len(items)))
			lastLog = time.Now()
		}

		if keyExcluded(obj.Key, opts.ExcludePrefixes) {
			return true
		}

		lower := strings.ToLower(obj.Key)
		switch {
		case hasAnySuffix(lower, opts.MetadataExtensions):
			s.mergeMetadata(ctx, obj.Key, items, &order)
		case hasAnySuffix(lower, opts.AudioExtensions):
			key := normalizePath(obj.Key)
			if _, seen := items[key]; !seen {
				items[key] = model.WorkItem{Path: key}
				order = append(order, key)
			}
		}

		return opts.MaxItems == 0 || len(items) < opts.MaxItems
	})
	if walkErr != nil {
		return nil, errors.Wrap(walkErr, "discovery listing failed")
	}

	result := lo.Map(order, func(key string, _ int) model.WorkItem {
		return items[key]
	})
	if opts.MaxItems > 0 && len(result) > opts.MaxItems {
		result = result[:opts.MaxItems]
	}

	s.logger.Info("scan complete",
		zap.Int("scanned", scanned),
		zap.Int("found", len(result)))
	return result, nil
}

// mergeMetadata parses one metadata object and folds its records into the
// item map. Metadata always overwrites: a record for an already-seen path
// replaces the earlier item while keeping its original position.
func (s *Scanner) mergeMetadata(ctx context.Context, key string, items map[string]model.WorkItem, order *[]string) {
	text, err := s.store.GetText(ctx, key)
	if err != nil {
		s.logger.Warn("skipping unreadable metadata object",
			zap.String("key", key), zap.Error(err))
		return
	}

	records, err := decodeRecords(text)
	if err != nil {
		s.logger.Warn("skipping malformed metadata object",
			zap.String("key", key), zap.Error(err))
		return
	}

	for _, record := range records {
		if record.AudioPath == "" {
			continue
		}
		path := normalizePath(record.AudioPath)
		if _, seen := items[path]; !seen {
			*order = append(*order, path)
		}
		items[path] = model.WorkItem{
			Path:           path,
			SourceMetadata: key,
			AudioURL:       record.AudioURL,
		}
	}
}

// decodeRecords accepts a single record or a list of records.
func decodeRecords(text string) ([]metadataRecord, error) {
	var list []metadataRecord
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, nil
	}
	var one metadataRecord
	if err := json.Unmarshal([]byte(text), &one); err != nil {
		return nil, err
	}
	return []metadataRecord{one}, nil
}

func keyExcluded(key string, prefixes []string) bool {
	return lo.SomeBy(prefixes, func(p string) bool {
		return strings.HasPrefix(key, p)
	})
}

func hasAnySuffix(lower string, suffixes []string) bool {
	return lo.SomeBy(suffixes, func(ext string) bool {
		return strings.HasSuffix(lower, ext)
	})
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
