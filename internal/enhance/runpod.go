package enhance

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/maauso/thumbnail-api/internal/runpod"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// RunPodEnhancer sends the frame to a RunPod serverless endpoint. Jobs that
// outlive the runsync window are polled until they finish or ctx ends.
type RunPodEnhancer struct {
	client       runpod.Client
	width        int
	height       int
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewRunPodEnhancer creates a RunPodEnhancer requesting w x h images.
func NewRunPodEnhancer(client runpod.Client, w, h int, logger *slog.Logger) *RunPodEnhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunPodEnhancer{
		client:       client,
		width:        w,
		height:       h,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}
}

// Name returns "runpod".
func (e *RunPodEnhancer) Name() string { return NameRunPod }

// Enhance submits the frame and writes the returned image to ws.
func (e *RunPodEnhancer) Enhance(ctx context.Context, ws *storage.Workspace, framePath string, p Prompt) (string, error) {
	raw, err := os.ReadFile(framePath) // #nosec G304 - path is inside the request workspace
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}

	result, err := e.client.RunSync(ctx, base64.StdEncoding.EncodeToString(raw), runpod.EnhanceOptions{
		Prompt: p.Text(),
		Width:  e.width,
		Height: e.height,
	})
	if err != nil {
		return "", err
	}

	for !result.Status.IsTerminal() {
		e.logger.Debug("runpod job pending",
			slog.String("job_id", result.JobID),
			slog.String("status", string(result.Status)),
		)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("runpod job %s: %w", result.JobID, ctx.Err())
		case <-time.After(e.pollInterval):
		}
		if result, err = e.client.Poll(ctx, result.JobID); err != nil {
			return "", err
		}
	}

	if result.Status != runpod.StatusCompleted {
		return "", fmt.Errorf("runpod job %s %s: %s", result.JobID, result.Status, result.Error)
	}
	if result.ImageBase64 == "" {
		return "", ErrNoImageReturned
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		return "", fmt.Errorf("decode runpod image: %w", err)
	}

	ext := ".jpg"
	if http.DetectContentType(data) == "image/png" {
		ext = ".png"
	}
	dst := ws.Path(outputName("runpod", ext))
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return "", fmt.Errorf("write runpod image: %w", err)
	}
	return dst, nil
}
