package enhance

import (
	"context"
	"fmt"

	"github.com/maauso/thumbnail-api/internal/media"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// maxTitleRunes is the longest title drawn before truncation.
const maxTitleRunes = 25

// OverlayEnhancer draws the topic on a translucent banner with a play glyph.
// It runs locally through ffmpeg and needs no credentials.
type OverlayEnhancer struct {
	processor media.Processor
	width     int
	height    int
	fontFile  string
}

// NewOverlayEnhancer creates an OverlayEnhancer producing w x h images.
func NewOverlayEnhancer(processor media.Processor, w, h int, fontFile string) *OverlayEnhancer {
	return &OverlayEnhancer{processor: processor, width: w, height: h, fontFile: fontFile}
}

// Name returns "overlay".
func (e *OverlayEnhancer) Name() string { return NameOverlay }

// Enhance renders the overlay into a new JPEG inside ws.
func (e *OverlayEnhancer) Enhance(ctx context.Context, ws *storage.Workspace, framePath string, p Prompt) (string, error) {
	dst := ws.Path(outputName("overlay", ".jpg"))
	err := e.processor.RenderTitleOverlay(ctx, framePath, dst, media.OverlayOptions{
		Title:    truncateTitle(p.Topic, maxTitleRunes),
		Width:    e.width,
		Height:   e.height,
		FontFile: e.fontFile,
	})
	if err != nil {
		return "", fmt.Errorf("render overlay: %w", err)
	}
	return dst, nil
}

func truncateTitle(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
