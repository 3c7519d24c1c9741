package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrEmptyOffset is returned when a frame grab is requested without an offset.
	ErrEmptyOffset = errors.New("frame offset must not be empty")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// OverlayOptions configures RenderTitleOverlay.
type OverlayOptions struct {
	Title    string // Banner text, already truncated by the caller
	Width    int    // Output width in pixels
	Height   int    // Output height in pixels
	FontFile string // Optional font file; ffmpeg's default font when empty
}

// FFmpegProcessor implements FrameGrabber and Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

// GrabFrame writes a single JPEG frame taken at offset, scaled to w x h.
func (p *FFmpegProcessor) GrabFrame(ctx context.Context, videoPath, dst, offset string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}
	if strings.TrimSpace(offset) == "" {
		return ErrEmptyOffset
	}

	args := []string{
		"-y",          // Overwrite output file without asking
		"-ss", offset, // Seek before opening the input (fast seek)
		"-i", videoPath, // Input file
		"-frames:v", "1", // Output single frame
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-q:v", "2", // High JPEG quality
		dst,
	}

	return p.runFFmpeg(ctx, args)
}

// ResizeImageWithPadding resizes an image to the specified dimensions while
// maintaining aspect ratio. Black padding is added to fill any remaining space.
func (p *FFmpegProcessor) ResizeImageWithPadding(ctx context.Context, src, dst string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}

	// scale fits within w x h keeping aspect ratio, pad centers it on black
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black", w, h, w, h)

	args := []string{
		"-y",
		"-i", src,
		"-vf", filter,
		"-frames:v", "1",
		dst,
	}

	return p.runFFmpeg(ctx, args)
}

// RenderTitleOverlay draws a 60px translucent banner along the bottom edge with
// the title in it and a play glyph in the center. The title is read from a
// sidecar text file so it never needs filtergraph quoting.
func (p *FFmpegProcessor) RenderTitleOverlay(ctx context.Context, src, dst string, opts OverlayOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, opts.Width, opts.Height)
	}

	titleFile := dst + ".title.txt"
	if err := os.WriteFile(titleFile, []byte(opts.Title), 0600); err != nil {
		return fmt.Errorf("write overlay title: %w", err)
	}
	defer func() { _ = os.Remove(titleFile) }()

	font := ""
	if opts.FontFile != "" {
		font = ":fontfile=" + escapeFilterValue(opts.FontFile)
	}

	filters := []string{
		fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height),
		"drawbox=x=0:y=ih-60:w=iw:h=60:color=black@0.7:t=fill",
		fmt.Sprintf("drawtext=textfile=%s:expansion=none:fontsize=20:fontcolor=white:x=10:y=h-45:shadowcolor=black:shadowx=1:shadowy=1%s",
			escapeFilterValue(titleFile), font),
		fmt.Sprintf("drawtext=text='▶':fontsize=40:fontcolor=white@0.8:x=(w-text_w)/2:y=(h-text_h)/2:shadowcolor=black:shadowx=2:shadowy=2%s", font),
	}

	args := []string{
		"-y",
		"-i", src,
		"-vf", strings.Join(filters, ","),
		"-frames:v", "1",
		"-q:v", "2",
		dst,
	}

	return p.runFFmpeg(ctx, args)
}

// escapeFilterValue escapes characters that are special inside an ffmpeg
// filter option value.
func escapeFilterValue(s string) string {
	r := strings.NewReplacer(`\`, `\\\\`, `:`, `\\:`, `'`, `\\\'`, `,`, `\,`, `;`, `\;`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
