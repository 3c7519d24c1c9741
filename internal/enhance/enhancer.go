// Package enhance provides the optional thumbnail enhancement stage. An
// Enhancer variant is chosen once at startup; Stage wraps it so that
// enhancement can only ever improve a request, never fail it.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maauso/thumbnail-api/internal/storage"
)

// DefaultTopic is the topic applied when a request leaves it empty.
const DefaultTopic = "Video Thumbnail"

// Provider names reported by Enhancer.Name.
const (
	NameNone    = "none"
	NameOpenAI  = "openai"
	NameRunPod  = "runpod"
	NameOverlay = "overlay"
)

// Static errors for enhancement variants.
var (
	// ErrEmptyOutput is returned when an enhancer reports success without a usable file.
	ErrEmptyOutput = errors.New("enhance: enhancer produced no output")
	// ErrNoImageReturned is returned when a remote service answers without an image.
	ErrNoImageReturned = errors.New("enhance: no image returned")
	// ErrEnhancerPanic is returned when an enhancer panics.
	ErrEnhancerPanic = errors.New("enhance: enhancer panicked")
)

// Prompt carries the text context of a request.
type Prompt struct {
	Topic       string
	Description string
}

// IsDefault reports whether the prompt carries no caller-supplied context.
func (p Prompt) IsDefault() bool {
	return p.Topic == DefaultTopic && p.Description == ""
}

// Text renders the instruction sent to image-generation services.
func (p Prompt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an engaging thumbnail for a video about \"%s\".", p.Topic)
	if d := strings.TrimSpace(p.Description); d != "" {
		fmt.Fprintf(&b, " The video is about: %s.", strings.TrimRight(d, "."))
	}
	b.WriteString(" Make it eye-catching and professional.")
	return b.String()
}

// Enhancer turns an extracted frame into an enhanced image.
type Enhancer interface {
	// Name identifies the variant in logs and metrics.
	Name() string

	// Enhance writes an enhanced image into ws and returns its path.
	Enhance(ctx context.Context, ws *storage.Workspace, framePath string, p Prompt) (string, error)
}

// Noop is the default Enhancer. It returns the frame unchanged.
type Noop struct{}

// Name returns "none".
func (Noop) Name() string { return NameNone }

// Enhance returns framePath.
func (Noop) Enhance(_ context.Context, _ *storage.Workspace, framePath string, _ Prompt) (string, error) {
	return framePath, nil
}

// outputName returns a unique file name for an enhancer's output.
func outputName(prefix, ext string) string {
	return fmt.Sprintf("%s_%d_%s%s", prefix, time.Now().UnixNano(), uuid.NewString()[:8], ext)
}
