// Package thumbnail implements the frame-extraction pipeline: pick a still
// frame from an uploaded video, read its metadata, run the optional
// enhancement stage and assemble the response payload.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/maauso/thumbnail-api/internal/media"
	"github.com/maauso/thumbnail-api/internal/metrics"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// Static errors surfaced by the pipeline.
var (
	// ErrExtractionFailed is returned when no candidate offset produced a non-empty frame.
	ErrExtractionFailed = errors.New("thumbnail: frame extraction failed")
	// ErrProbeFailed is returned when the metadata probe errors or returns unparseable data.
	ErrProbeFailed = errors.New("thumbnail: metadata probe failed")
	// ErrTimeout is returned when an external call exceeded its time bound.
	ErrTimeout = errors.New("thumbnail: external call timed out")
)

// DefaultOffsets are the candidate timestamps, in seconds, tried in order.
var DefaultOffsets = []string{"1", "3", "5"}

// Default frame-grab resolution.
const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480
)

// Outcome tags the result of a single frame-grab attempt.
type Outcome int

// Attempt outcomes.
const (
	OutcomeOK Outcome = iota
	OutcomeEmpty
	OutcomeFailed
	OutcomeTimeout
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return metrics.AttemptOK
	case OutcomeEmpty:
		return metrics.AttemptEmpty
	case OutcomeTimeout:
		return metrics.AttemptTimeout
	default:
		return metrics.AttemptFailed
	}
}

// Attempt records what happened at one candidate offset.
type Attempt struct {
	Index   int
	Offset  string
	Path    string
	Outcome Outcome
	Err     error
}

// Frame is the extracted still image chosen for a request.
type Frame struct {
	// Path is the non-empty image file inside the request workspace.
	Path string
	// Offset is the candidate timestamp that produced the frame.
	Offset string
	// Attempts lists every attempt made, the successful one last.
	Attempts []Attempt
}

// FrameExtractor tries candidate offsets in order and keeps the first
// attempt that leaves a non-empty image on disk.
type FrameExtractor struct {
	grabber        media.FrameGrabber
	logger         *slog.Logger
	offsets        []string
	width          int
	height         int
	attemptTimeout time.Duration
	now            func() time.Time
}

// ExtractorOption configures a FrameExtractor.
type ExtractorOption func(*FrameExtractor)

// WithOffsets sets the candidate offsets. Empty entries are ignored.
func WithOffsets(offsets []string) ExtractorOption {
	return func(e *FrameExtractor) {
		e.offsets = nil
		for _, o := range offsets {
			if o != "" {
				e.offsets = append(e.offsets, o)
			}
		}
	}
}

// WithResolution sets the frame-grab target size.
func WithResolution(w, h int) ExtractorOption {
	return func(e *FrameExtractor) {
		e.width = w
		e.height = h
	}
}

// WithAttemptTimeout bounds each frame-grab invocation. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) ExtractorOption {
	return func(e *FrameExtractor) {
		e.attemptTimeout = d
	}
}

// NewFrameExtractor creates a FrameExtractor with the default offsets and
// resolution.
func NewFrameExtractor(grabber media.FrameGrabber, logger *slog.Logger, opts ...ExtractorOption) *FrameExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &FrameExtractor{
		grabber: grabber,
		logger:  logger,
		offsets: DefaultOffsets,
		width:   DefaultFrameWidth,
		height:  DefaultFrameHeight,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the first valid frame. Offsets after the first success
// are never attempted. When every offset fails the error wraps
// ErrExtractionFailed, and also ErrTimeout if any attempt timed out.
func (e *FrameExtractor) Extract(ctx context.Context, ws *storage.Workspace, videoPath string) (*Frame, error) {
	var (
		attempts []Attempt
		timedOut bool
		lastErr  error
	)

	for i, offset := range e.offsets {
		if ctx.Err() != nil {
			break
		}

		a := e.attempt(ctx, ws, videoPath, i, offset)
		attempts = append(attempts, a)
		metrics.RecordFrameGrab(a.Outcome.String())

		if a.Outcome == OutcomeOK {
			e.logger.Info("frame extracted",
				slog.String("workspace", ws.ID()),
				slog.String("offset", offset),
				slog.Int("attempt", i+1),
			)
			return &Frame{Path: a.Path, Offset: offset, Attempts: attempts}, nil
		}

		if a.Outcome == OutcomeTimeout {
			timedOut = true
		}
		lastErr = a.Err
		e.logger.Warn("frame grab failed, trying next offset",
			slog.String("workspace", ws.ID()),
			slog.String("offset", offset),
			slog.Int("attempt", i+1),
			slog.String("outcome", a.Outcome.String()),
			slog.String("error", a.Err.Error()),
		)
	}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("extract frame: %w", err)
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: no candidate offsets", ErrExtractionFailed)
	}
	if timedOut {
		return nil, fmt.Errorf("%w after %d attempts (%w): %w", ErrExtractionFailed, len(attempts), ErrTimeout, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrExtractionFailed, len(attempts), lastErr)
}

var errEmptyFrame = errors.New("frame grab produced no output")

func (e *FrameExtractor) attempt(ctx context.Context, ws *storage.Workspace, videoPath string, index int, offset string) Attempt {
	a := Attempt{
		Index:  index,
		Offset: offset,
		Path:   ws.Path(e.frameName(index)),
	}

	actx := ctx
	if e.attemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		defer cancel()
	}

	if err := e.grabber.GrabFrame(actx, videoPath, a.Path, offset, e.width, e.height); err != nil {
		a.Outcome = OutcomeFailed
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			a.Outcome = OutcomeTimeout
		}
		a.Err = err
		_ = os.Remove(a.Path)
		return a
	}

	info, err := os.Stat(a.Path)
	if err != nil || info.Size() == 0 {
		a.Outcome = OutcomeEmpty
		a.Err = errEmptyFrame
		_ = os.Remove(a.Path)
		return a
	}

	a.Outcome = OutcomeOK
	return a
}

// frameName is unique per attempt: the index separates retries and the time
// and random components separate concurrent requests.
func (e *FrameExtractor) frameName(index int) string {
	return fmt.Sprintf("frame_%d_%d_%s.jpg", index, e.now().UnixNano(), uuid.NewString()[:8])
}
