package enhance

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/maauso/thumbnail-api/internal/media"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// ErrUnsupportedImageSize is returned for sizes the image edit API rejects.
var ErrUnsupportedImageSize = errors.New("enhance: unsupported OpenAI image size")

// OpenAIEnhancer sends the frame and prompt to the OpenAI image edit API.
// The frame is padded to a square PNG first since the API accepts nothing else.
type OpenAIEnhancer struct {
	client    *openai.Client
	processor media.Processor
	size      string
	side      int
	logger    *slog.Logger
}

// NewOpenAIEnhancer creates an OpenAIEnhancer. baseURL may be empty to use
// the public API.
func NewOpenAIEnhancer(apiKey, baseURL, size string, processor media.Processor, logger *slog.Logger) (*OpenAIEnhancer, error) {
	side, err := squareSide(size)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIEnhancer{
		client:    openai.NewClientWithConfig(cfg),
		processor: processor,
		size:      size,
		side:      side,
		logger:    logger,
	}, nil
}

// Name returns "openai".
func (e *OpenAIEnhancer) Name() string { return NameOpenAI }

// Enhance pads the frame, requests an edit and writes the decoded PNG to ws.
func (e *OpenAIEnhancer) Enhance(ctx context.Context, ws *storage.Workspace, framePath string, p Prompt) (string, error) {
	src := ws.Path(outputName("openai_src", ".png"))
	if err := e.processor.ResizeImageWithPadding(ctx, framePath, src, e.side, e.side); err != nil {
		return "", fmt.Errorf("prepare image: %w", err)
	}
	defer func() { _ = os.Remove(src) }()

	f, err := os.Open(src) // #nosec G304 - path is inside the request workspace
	if err != nil {
		return "", fmt.Errorf("open prepared image: %w", err)
	}
	defer func() { _ = f.Close() }()

	prompt := p.Text()
	e.logger.Debug("requesting image edit", slog.String("prompt", prompt), slog.String("size", e.size))

	resp, err := e.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          f,
		Prompt:         prompt,
		N:              1,
		Size:           e.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai image edit: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", ErrNoImageReturned
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode openai image: %w", err)
	}

	dst := ws.Path(outputName("openai", ".png"))
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return "", fmt.Errorf("write openai image: %w", err)
	}
	return dst, nil
}

func squareSide(size string) (int, error) {
	switch size {
	case openai.CreateImageSize256x256, openai.CreateImageSize512x512, openai.CreateImageSize1024x1024:
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedImageSize, size)
	}
	side, _ := strconv.Atoi(size[:strings.IndexByte(size, 'x')])
	return side, nil
}
