package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/maauso/thumbnail-api/internal/storage"
)

// SuccessMessage is the message of every successful payload.
const SuccessMessage = "Thumbnail generated successfully"

// Publisher uploads the final image somewhere reachable and returns its URL.
type Publisher interface {
	UploadToS3(ctx context.Context, key, contentType string, data io.Reader) (string, error)
}

// Metadata is the metadata block of a Payload.
type Metadata struct {
	Topic       string     `json:"topic"`
	Description string     `json:"description"`
	VideoInfo   *VideoInfo `json:"videoInfo"`
	Enhanced    bool       `json:"enhanced"`
}

// Payload is the response body of a successful request.
type Payload struct {
	Message         string   `json:"message"`
	ThumbnailBase64 string   `json:"thumbnailBase64"`
	ThumbnailURL    string   `json:"thumbnailUrl,omitempty"`
	Metadata        Metadata `json:"metadata"`
}

// Assembly is everything the assembler needs for one request.
type Assembly struct {
	// FramePath is the extracted frame.
	FramePath string
	// FinalPath is the image to serve; equal to FramePath when not enhanced.
	FinalPath   string
	VideoPath   string
	Info        *VideoInfo
	Topic       string
	Description string
	Enhanced    bool
}

// ResponseAssembler encodes the final image, builds the Payload and removes
// the request's intermediate files.
type ResponseAssembler struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewResponseAssembler creates a ResponseAssembler. publisher may be nil.
func NewResponseAssembler(publisher Publisher, logger *slog.Logger) *ResponseAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseAssembler{publisher: publisher, logger: logger}
}

// Assemble reads FinalPath through the workspace, builds the payload and
// cleans up. Only reading the final image can fail, and cleanup runs either
// way; publishing and cleanup failures are logged.
func (a *ResponseAssembler) Assemble(ctx context.Context, ws *storage.Workspace, in Assembly) (*Payload, error) {
	data, err := readImage(ctx, ws, in.FinalPath)
	if err != nil {
		a.cleanup(ctx, ws, in)
		return nil, err
	}

	p := &Payload{
		Message:         SuccessMessage,
		ThumbnailBase64: base64.StdEncoding.EncodeToString(data),
		Metadata: Metadata{
			Topic:       in.Topic,
			Description: in.Description,
			VideoInfo:   in.Info,
			Enhanced:    in.Enhanced,
		},
	}
	if p.Metadata.VideoInfo == nil {
		p.Metadata.VideoInfo = &VideoInfo{}
	}

	if a.publisher != nil {
		p.ThumbnailURL = a.publish(ctx, ws.ID(), in.FinalPath, data)
	}

	a.cleanup(ctx, ws, in)
	return p, nil
}

func readImage(ctx context.Context, ws *storage.Workspace, path string) ([]byte, error) {
	rc, err := ws.LoadTemp(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	return data, nil
}

func (a *ResponseAssembler) publish(ctx context.Context, id, path string, data []byte) string {
	ext := filepath.Ext(path)
	contentType := "image/jpeg"
	if ext == ".png" {
		contentType = "image/png"
	}
	if ext == "" {
		ext = ".jpg"
	}

	url, err := a.publisher.UploadToS3(ctx, "thumbnails/"+id+ext, contentType, bytes.NewReader(data))
	if err != nil {
		a.logger.Warn("failed to publish thumbnail",
			slog.String("workspace", id),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}

func (a *ResponseAssembler) cleanup(ctx context.Context, ws *storage.Workspace, in Assembly) {
	paths := []string{in.FramePath}
	if in.FinalPath != in.FramePath {
		paths = append(paths, in.FinalPath)
	}
	if in.VideoPath != "" {
		paths = append(paths, in.VideoPath)
	}

	if err := ws.CleanupTemp(context.WithoutCancel(ctx), paths); err != nil {
		a.logger.Warn("cleanup failed",
			slog.String("workspace", ws.ID()),
			slog.String("error", err.Error()),
		)
	}
}
