package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"blobscribe/internal/app/artifact"
	"blobscribe/internal/app/blobstore"
	"blobscribe/internal/app/discovery"
	"blobscribe/internal/app/errors"
	"blobscribe/internal/app/ledger"
	"blobscribe/internal/app/orchestrator"
	"blobscribe/internal/app/ratelimit"
	"blobscribe/internal/app/transcript"
	"blobscribe/internal/app/voicegain"
	"blobscribe/internal/config"
)

// Pipeline bundles the assembled components of one transcription run.
type Pipeline struct {
	Store        blobstore.Store
	Scanner      *discovery.Scanner
	Orchestrator *orchestrator.Orchestrator
	Ledger       *ledger.Recorder
	Registry     *prometheus.Registry
	Logger       *zap.Logger
}

// Close releases pipeline resources. Safe to call on a partially
// assembled pipeline.
func (p *Pipeline) Close() {
	if p.Ledger != nil {
		p.Ledger.Close()
	}
}

func provideStore(cfg *config.Config) (blobstore.Store, error) {
	store, err := blobstore.NewMinioStore(blobstore.MinioConfig{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		Bucket:    cfg.Blob.Bucket,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to object store")
	}
	return store, nil
}

func provideFormatter(cfg *config.Config, logger *zap.Logger) transcript.Formatter {
	local := transcript.NewLocalFormatter()
	if cfg.Pipeline.FormatterHookURL == "" {
		return local
	}
	return transcript.NewHookFormatter(cfg.Pipeline.FormatterHookURL, local, logger)
}

func provideLedger(cfg *config.Config, logger *zap.Logger) *ledger.Recorder {
	if cfg.Pipeline.LedgerPath == "" {
		return nil
	}
	recorder, err := ledger.Open(cfg.Pipeline.LedgerPath)
	if err != nil {
		logger.Warn("failed to open ledger, outcomes will not be persisted",
			zap.String("path", cfg.Pipeline.LedgerPath),
			zap.Error(err))
		return nil
	}
	return recorder
}

func provideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// InitializePipeline hand-wires the full dependency graph from loaded
// configuration. Extra sinks receive per-item outcomes alongside the
// ledger.
func InitializePipeline(cfg *config.Config, logger *zap.Logger, sinks ...orchestrator.OutcomeSink) (*Pipeline, error) {
	store, err := provideStore(cfg)
	if err != nil {
		return nil, err
	}

	client := voicegain.NewClient(voicegain.Config{
		BaseURL:     cfg.VoiceGain.BaseURL,
		BearerToken: cfg.VoiceGain.Token,
	}, logger)

	limiter := ratelimit.New(ratelimit.DefaultMaxPerWindow, ratelimit.DefaultWindow, logger)

	writer := artifact.NewWriter(store, artifact.Config{
		OutputFolder:  cfg.Pipeline.OutputFolder,
		ArchiveFolder: cfg.Pipeline.ArchiveFolder,
		DoubleSpace:   cfg.Pipeline.DoubleSpace,
	}, logger)

	// Explicit base URLs win; a private bucket without one falls back to
	// presigning each item against the store.
	var resolver orchestrator.URLResolver
	if cfg.VoiceGain.AudioBaseURL == "" {
		resolver = blobstore.NewPresignResolver(store, 0)
	}

	recorder := provideLedger(cfg, logger)
	if recorder != nil {
		sinks = append(sinks, recorder)
	}

	registry := provideRegistry()
	metrics := orchestrator.NewMetrics(registry)

	orch := orchestrator.New(
		client,
		limiter,
		provideFormatter(cfg, logger),
		writer,
		resolver,
		orchestrator.Config{
			BatchSize:      cfg.Pipeline.BatchSize,
			MinBatchSize:   cfg.Pipeline.MinBatchSize,
			PollIterations: cfg.Pipeline.PollIterations,
			PollDelay:      cfg.Pipeline.PollDelay,
			AudioBaseURL:   cfg.VoiceGain.AudioBaseURL,
			AccessToken:    cfg.VoiceGain.AccessToken,
		},
		metrics,
		logger,
		sinks...,
	)

	return &Pipeline{
		Store:        store,
		Scanner:      discovery.NewScanner(store, logger),
		Orchestrator: orch,
		Ledger:       recorder,
		Registry:     registry,
		Logger:       logger,
	}, nil
}
