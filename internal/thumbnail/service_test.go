package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/thumbnail-api/internal/enhance"
	"github.com/maauso/thumbnail-api/internal/media"
	"github.com/maauso/thumbnail-api/internal/storage"
)

func newTestService(grabber media.FrameGrabber, prober media.Prober, stage Enhancement) *Service {
	return NewService(
		NewFrameExtractor(grabber, nil),
		NewMetadataProbe(prober, time.Second, nil),
		stage,
		NewResponseAssembler(nil, nil),
		nil,
	)
}

func videoProbe() *media.ProbeResult {
	return &media.ProbeResult{
		Format:  media.FormatInfo{Duration: "4.0"},
		Streams: []media.StreamInfo{{CodecType: "video", CodecName: "h264", Width: 160, Height: 120, FrameRate: "25/1"}},
	}
}

func TestService_Generate(t *testing.T) {
	ws := newWorkspace(t)
	video := writeVideo(t, ws)

	grabber := new(mockGrabber)
	grabber.On("GrabFrame", mock.Anything, video, mock.Anything, "1", 640, 480).Return(errors.New("exit status 1"))
	grabber.On("GrabFrame", mock.Anything, video, mock.Anything, "3", 640, 480).Run(writesFrame(t, "frame at 3")).Return(nil)

	prober := new(mockProber)
	prober.On("ProbeVideo", mock.Anything, video).Return(videoProbe(), nil)

	svc := newTestService(grabber, prober, enhance.NewStage(enhance.Noop{}, time.Second, nil))
	p, err := svc.Generate(context.Background(), ws, Request{VideoPath: video, Topic: "Cats"})
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(p.ThumbnailBase64)
	require.NoError(t, err)
	assert.Equal(t, "frame at 3", string(decoded))
	assert.Equal(t, "Cats", p.Metadata.Topic)
	assert.Equal(t, "", p.Metadata.Description)
	assert.False(t, p.Metadata.Enhanced)
	assert.Equal(t, 160, *p.Metadata.VideoInfo.Width)

	assert.Empty(t, workspaceFiles(t, ws), "frame and upload are removed")
	grabber.AssertExpectations(t)
	prober.AssertExpectations(t)
}

// recordingEnhancer captures the prompt and writes a replacement image.
type recordingEnhancer struct {
	prompt *enhance.Prompt
}

func (r *recordingEnhancer) Name() string { return enhance.NameOverlay }

func (r *recordingEnhancer) Enhance(_ context.Context, ws *storage.Workspace, _ string, p enhance.Prompt) (string, error) {
	*r.prompt = p
	out := ws.Path("enhanced.jpg")
	return out, os.WriteFile(out, []byte("enhanced"), 0600)
}

func TestService_PassesPromptToEnhancement(t *testing.T) {
	ws := newWorkspace(t)
	video := writeVideo(t, ws)

	grabber := new(mockGrabber)
	grabber.On("GrabFrame", mock.Anything, video, mock.Anything, "1", 640, 480).Run(writesFrame(t, "frame")).Return(nil)
	prober := new(mockProber)
	prober.On("ProbeVideo", mock.Anything, video).Return(videoProbe(), nil)

	var got enhance.Prompt
	e := &recordingEnhancer{prompt: &got}
	svc := newTestService(grabber, prober, enhance.NewStage(e, time.Second, nil))

	p, err := svc.Generate(context.Background(), ws, Request{VideoPath: video, Topic: "Cats", Description: "kittens"})
	require.NoError(t, err)

	assert.Equal(t, enhance.Prompt{Topic: "Cats", Description: "kittens"}, got)
	assert.True(t, p.Metadata.Enhanced)
	decoded, _ := base64.StdEncoding.DecodeString(p.ThumbnailBase64)
	assert.Equal(t, "enhanced", string(decoded))
	assert.Empty(t, workspaceFiles(t, ws), "frame, enhanced image and upload are removed")
}

func TestService_Failures(t *testing.T) {
	tests := []struct {
		name      string
		grabErr   error
		grabRun   bool
		grabDelay time.Duration
		probeRes  *media.ProbeResult
		probeErr  error
		wantErr   error
		notErr    error
	}{
		{
			name:     "extraction exhausted",
			grabErr:  errors.New("exit status 1"),
			probeRes: videoProbe(),
			wantErr:  ErrExtractionFailed,
		},
		{
			name:     "probe failed",
			grabRun:  true,
			probeErr: fmt.Errorf("%w: exit status 1", media.ErrFFprobeExecution),
			wantErr:  ErrProbeFailed,
		},
		{
			name:      "not a video: extraction error wins over a faster probe error",
			grabErr:   errors.New("exit status 1"),
			grabDelay: 20 * time.Millisecond,
			probeErr:  fmt.Errorf("%w: invalid data", media.ErrFFprobeExecution),
			wantErr:   ErrExtractionFailed,
			notErr:    ErrProbeFailed,
		},
		{
			name:     "probe timed out",
			grabRun:  true,
			probeErr: fmt.Errorf("ffprobe cancelled: %w", context.DeadlineExceeded),
			wantErr:  ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t)
			video := writeVideo(t, ws)

			grabber := new(mockGrabber)
			call := grabber.On("GrabFrame", mock.Anything, video, mock.Anything, mock.Anything, 640, 480)
			if tt.grabRun {
				call.Run(writesFrame(t, "frame"))
			}
			call.After(tt.grabDelay).Return(tt.grabErr)

			prober := new(mockProber)
			prober.On("ProbeVideo", mock.Anything, video).Return(tt.probeRes, tt.probeErr)

			svc := newTestService(grabber, prober, enhance.NewStage(nil, time.Second, nil))
			p, err := svc.Generate(context.Background(), ws, Request{VideoPath: video, Topic: "Cats"})

			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.notErr != nil {
				assert.NotErrorIs(t, err, tt.notErr)
			}
		})
	}
}

func TestService_EndToEndWithFFmpeg(t *testing.T) {
	skipIfNoFFmpeg(t)

	ws := newWorkspace(t)
	video := createTestVideo(t, ws.TempDir(), "4")

	svc := NewService(
		NewFrameExtractor(media.NewFFmpegProcessor(""), nil, WithAttemptTimeout(30*time.Second)),
		NewMetadataProbe(media.NewFFprobe(""), 30*time.Second, nil),
		enhance.NewStage(enhance.Noop{}, time.Second, nil),
		NewResponseAssembler(nil, nil),
		nil,
	)

	p, err := svc.Generate(context.Background(), ws, Request{VideoPath: video, Topic: "Cats"})
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(p.ThumbnailBase64)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)

	require.NotNil(t, p.Metadata.VideoInfo.Duration)
	assert.InDelta(t, 4.0, *p.Metadata.VideoInfo.Duration, 0.2)
	assert.Equal(t, "h264", *p.Metadata.VideoInfo.Codec)
	assert.Empty(t, workspaceFiles(t, ws))
}
