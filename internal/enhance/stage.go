package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/maauso/thumbnail-api/internal/metrics"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// Stage runs an Enhancer on a best-effort basis.
type Stage struct {
	enhancer Enhancer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewStage creates a Stage. A nil enhancer behaves like Noop and a zero
// timeout leaves the stage bounded only by the caller's context.
func NewStage(enhancer Enhancer, timeout time.Duration, logger *slog.Logger) *Stage {
	if enhancer == nil {
		enhancer = Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{enhancer: enhancer, timeout: timeout, logger: logger}
}

// Provider returns the name of the wrapped enhancer.
func (s *Stage) Provider() string {
	return s.enhancer.Name()
}

// Apply returns the path of the image to serve and whether it differs from
// framePath. Any failure yields framePath and false.
func (s *Stage) Apply(ctx context.Context, ws *storage.Workspace, framePath string, p Prompt) (string, bool) {
	provider := s.enhancer.Name()

	if provider == NameNone || p.IsDefault() {
		metrics.RecordEnhancement(provider, metrics.EnhancementSkipped)
		s.logger.Debug("enhancement skipped",
			slog.String("provider", provider),
			slog.String("topic", p.Topic),
		)
		return framePath, false
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.run(ctx, ws, framePath, p)
	if err == nil {
		err = validOutput(out)
	}
	if err != nil {
		if out != "" && out != framePath {
			_ = os.Remove(out)
		}
		metrics.RecordEnhancement(provider, metrics.EnhancementFallback)
		s.logger.Warn("enhancement failed, using original frame",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return framePath, false
	}

	if out == framePath {
		metrics.RecordEnhancement(provider, metrics.EnhancementSkipped)
		return framePath, false
	}

	metrics.RecordEnhancement(provider, metrics.EnhancementApplied)
	s.logger.Info("thumbnail enhanced", slog.String("provider", provider))
	return out, true
}

func (s *Stage) run(ctx context.Context, ws *storage.Workspace, framePath string, p Prompt) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("enhancer panic recovered",
				slog.String("provider", s.enhancer.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			out, err = "", fmt.Errorf("%w: %v", ErrEnhancerPanic, r)
		}
	}()
	return s.enhancer.Enhance(ctx, ws, framePath, p)
}

func validOutput(path string) error {
	if path == "" {
		return ErrEmptyOutput
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s missing", ErrEmptyOutput, path)
		}
		return fmt.Errorf("stat enhanced image: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrEmptyOutput, path)
	}
	return nil
}
