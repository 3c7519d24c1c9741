// Package media provides image and video processing capabilities backed by
// the ffmpeg and ffprobe command-line tools.
package media

import "context"

// FrameGrabber extracts single still frames from a video.
type FrameGrabber interface {
	// GrabFrame seeks to offset (seconds, as accepted by ffmpeg -ss) and writes
	// one frame scaled to w x h to dst. A nil error does not guarantee that dst
	// is non-empty; callers must check the file.
	GrabFrame(ctx context.Context, videoPath, dst, offset string, w, h int) error
}

// Prober reports container and stream metadata without decoding frames.
type Prober interface {
	// ProbeVideo returns the parsed ffprobe format and stream data for path.
	ProbeVideo(ctx context.Context, path string) (*ProbeResult, error)
}

// Processor defines the image operations used by enhancement variants.
type Processor interface {
	// ResizeImageWithPadding resizes an image to the specified dimensions while
	// maintaining aspect ratio. Black padding is added to fill any remaining space.
	// The source image is read from src and the result is written to dst.
	ResizeImageWithPadding(ctx context.Context, src, dst string, w, h int) error

	// RenderTitleOverlay draws a translucent banner with title text and a
	// centered play glyph over the image at src, writing a w x h image to dst.
	RenderTitleOverlay(ctx context.Context, src, dst string, opts OverlayOptions) error
}
