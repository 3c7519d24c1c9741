package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/maauso/thumbnail-api/internal/media"
)

// VideoInfo is the metadata reported for an upload. Stream fields are nil
// when the file has no video stream.
type VideoInfo struct {
	Duration *float64 `json:"duration,omitempty"`
	Width    *int     `json:"width,omitempty"`
	Height   *int     `json:"height,omitempty"`
	FPS      *string  `json:"fps,omitempty"`
	Codec    *string  `json:"codec,omitempty"`
}

// MetadataProbe reads container and first-video-stream metadata.
type MetadataProbe struct {
	prober  media.Prober
	logger  *slog.Logger
	timeout time.Duration
}

// NewMetadataProbe creates a MetadataProbe. A zero timeout leaves the probe
// bounded only by the caller's context.
func NewMetadataProbe(prober media.Prober, timeout time.Duration, logger *slog.Logger) *MetadataProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataProbe{prober: prober, logger: logger, timeout: timeout}
}

// Probe returns the VideoInfo for videoPath. A missing video stream is not an
// error; failures of the probe itself wrap ErrProbeFailed, or ErrTimeout
// when the time bound was hit.
func (p *MetadataProbe) Probe(ctx context.Context, videoPath string) (*VideoInfo, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res, err := p.prober.ProbeVideo(ctx, videoPath)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: probe: %w", ErrTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("probe: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: empty probe result", ErrProbeFailed)
	}

	info := &VideoInfo{}
	if d, err := strconv.ParseFloat(res.Format.Duration, 64); err == nil {
		info.Duration = &d
	} else if res.Format.Duration != "" {
		p.logger.Debug("unparseable duration",
			slog.String("path", videoPath),
			slog.String("duration", res.Format.Duration),
		)
	}

	stream := res.FirstStream("video")
	if stream == nil {
		return info, nil
	}
	if stream.Width > 0 {
		info.Width = &stream.Width
	}
	if stream.Height > 0 {
		info.Height = &stream.Height
	}
	if stream.FrameRate != "" {
		info.FPS = &stream.FrameRate
	}
	if stream.CodecName != "" {
		info.Codec = &stream.CodecName
	}
	return info, nil
}
