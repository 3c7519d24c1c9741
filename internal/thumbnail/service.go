package thumbnail

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/thumbnail-api/internal/enhance"
	"github.com/maauso/thumbnail-api/internal/metrics"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// Enhancement is the best-effort stage run on the extracted frame.
type Enhancement interface {
	Apply(ctx context.Context, ws *storage.Workspace, framePath string, p enhance.Prompt) (string, bool)
}

// Request is one thumbnail job.
type Request struct {
	VideoPath   string
	Topic       string
	Description string
}

// Service runs the pipeline for one uploaded video.
type Service struct {
	extractor *FrameExtractor
	probe     *MetadataProbe
	enhancer  Enhancement
	assembler *ResponseAssembler
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(extractor *FrameExtractor, probe *MetadataProbe, enhancer Enhancement, assembler *ResponseAssembler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		probe:     probe,
		enhancer:  enhancer,
		assembler: assembler,
		logger:    logger,
	}
}

// Generate extracts a frame and probes metadata concurrently, runs the
// enhancement stage and assembles the payload. All files are created in ws.
func (s *Service) Generate(ctx context.Context, ws *storage.Workspace, req Request) (*Payload, error) {
	start := time.Now()

	var (
		frame    *Frame
		info     *VideoInfo
		probeErr error
	)

	// Only an extraction failure cancels the group, so when both fail the
	// extraction error is the one reported.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		frame, err = s.extractor.Extract(gctx, ws, req.VideoPath)
		return err
	})
	g.Go(func() error {
		info, probeErr = s.probe.Probe(gctx, req.VideoPath)
		return nil
	})
	err := g.Wait()
	if err == nil {
		err = probeErr
	}
	if err != nil {
		metrics.RecordPipeline("error", time.Since(start).Seconds())
		return nil, err
	}

	finalPath, enhanced := s.enhancer.Apply(ctx, ws, frame.Path, enhance.Prompt{
		Topic:       req.Topic,
		Description: req.Description,
	})

	payload, err := s.assembler.Assemble(ctx, ws, Assembly{
		FramePath:   frame.Path,
		FinalPath:   finalPath,
		VideoPath:   req.VideoPath,
		Info:        info,
		Topic:       req.Topic,
		Description: req.Description,
		Enhanced:    enhanced,
	})
	if err != nil {
		metrics.RecordPipeline("error", time.Since(start).Seconds())
		return nil, err
	}

	metrics.RecordPipeline("success", time.Since(start).Seconds())
	s.logger.Info("thumbnail generated",
		slog.String("workspace", ws.ID()),
		slog.String("offset", frame.Offset),
		slog.Int("attempts", len(frame.Attempts)),
		slog.Bool("enhanced", enhanced),
		slog.Duration("duration", time.Since(start)),
	)
	return payload, nil
}
