// Package bootstrap provides dependency initialization for the thumbnail API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/thumbnail-api/internal/config"
	"github.com/maauso/thumbnail-api/internal/enhance"
	"github.com/maauso/thumbnail-api/internal/media"
	"github.com/maauso/thumbnail-api/internal/runpod"
	"github.com/maauso/thumbnail-api/internal/storage"
	"github.com/maauso/thumbnail-api/internal/thumbnail"
	"github.com/maauso/thumbnail-api/internal/upload"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Service *thumbnail.Service
	Storage storage.Storage
	Intake  *upload.Intake
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, publisher, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media tools
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath)
	prober := media.NewFFprobe(cfg.FFprobePath)
	execTimeout := time.Duration(cfg.ExecTimeoutSec) * time.Second

	// Initialize the enhancement stage
	enhancer, err := newEnhancer(cfg, processor, logger)
	if err != nil {
		return nil, err
	}
	stage := enhance.NewStage(enhancer, time.Duration(cfg.EnhanceTimeoutSec)*time.Second, logger)
	logger.Info("enhancement provider configured",
		slog.String("provider", stage.Provider()),
	)

	extractor := thumbnail.NewFrameExtractor(processor, logger,
		thumbnail.WithOffsets(cfg.FrameTimestamps),
		thumbnail.WithResolution(cfg.FrameWidth, cfg.FrameHeight),
		thumbnail.WithAttemptTimeout(execTimeout),
	)
	probe := thumbnail.NewMetadataProbe(prober, execTimeout, logger)
	assembler := thumbnail.NewResponseAssembler(publisher, logger)

	svc := thumbnail.NewService(extractor, probe, stage, assembler, logger)

	return &Dependencies{
		Service: svc,
		Storage: store,
		Intake:  upload.NewIntake(cfg.MaxUploadBytes(), logger),
	}, nil
}

// newEnhancer builds the enhancer for the configured provider.
func newEnhancer(cfg *config.Config, processor media.Processor, logger *slog.Logger) (enhance.Enhancer, error) {
	switch cfg.Provider() {
	case config.ProviderNone:
		return enhance.Noop{}, nil
	case config.ProviderOverlay:
		return enhance.NewOverlayEnhancer(processor, cfg.FrameWidth, cfg.FrameHeight, cfg.OverlayFontFile), nil
	case config.ProviderOpenAI:
		e, err := enhance.NewOpenAIEnhancer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIImageSize, processor, logger)
		if err != nil {
			return nil, fmt.Errorf("create OpenAI enhancer: %w", err)
		}
		return e, nil
	case config.ProviderRunPod:
		client, err := runpod.NewClient(cfg.RunPodAPIKey, cfg.RunPodEndpointID)
		if err != nil {
			return nil, fmt.Errorf("create RunPod client: %w", err)
		}
		return enhance.NewRunPodEnhancer(client, cfg.FrameWidth, cfg.FrameHeight, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider())
	}
}

// initStorage creates the appropriate storage backend based on configuration.
// The returned publisher is nil unless S3 is configured.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, thumbnail.Publisher, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil, nil
}
