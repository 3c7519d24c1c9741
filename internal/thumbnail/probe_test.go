package thumbnail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/thumbnail-api/internal/media"
)

func TestMetadataProbe_VideoStream(t *testing.T) {
	prober := new(mockProber)
	prober.On("ProbeVideo", mock.Anything, "in.mp4").Return(&media.ProbeResult{
		Format: media.FormatInfo{Duration: "12.480000"},
		Streams: []media.StreamInfo{
			{Index: 0, CodecType: "audio", CodecName: "aac"},
			{Index: 1, CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, FrameRate: "30000/1001"},
			{Index: 2, CodecType: "video", CodecName: "mjpeg", Width: 320, Height: 240, FrameRate: "90000/1"},
		},
	}, nil)

	info, err := NewMetadataProbe(prober, 0, nil).Probe(context.Background(), "in.mp4")
	require.NoError(t, err)

	require.NotNil(t, info.Duration)
	assert.InDelta(t, 12.48, *info.Duration, 1e-9)
	require.NotNil(t, info.Width)
	assert.Equal(t, 1920, *info.Width)
	assert.Equal(t, 1080, *info.Height)
	assert.Equal(t, "30000/1001", *info.FPS)
	assert.Equal(t, "h264", *info.Codec)
}

func TestMetadataProbe_NoVideoStream(t *testing.T) {
	prober := new(mockProber)
	prober.On("ProbeVideo", mock.Anything, "song.m4a").Return(&media.ProbeResult{
		Format:  media.FormatInfo{Duration: "2.5"},
		Streams: []media.StreamInfo{{CodecType: "audio", CodecName: "aac"}},
	}, nil)

	info, err := NewMetadataProbe(prober, 0, nil).Probe(context.Background(), "song.m4a")
	require.NoError(t, err)

	require.NotNil(t, info.Duration)
	assert.Equal(t, 2.5, *info.Duration)
	assert.Nil(t, info.Width)
	assert.Nil(t, info.Height)
	assert.Nil(t, info.FPS)
	assert.Nil(t, info.Codec)

	body, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, `{"duration":2.5}`, string(body))
}

func TestMetadataProbe_UnknownDuration(t *testing.T) {
	prober := new(mockProber)
	prober.On("ProbeVideo", mock.Anything, "live.ts").Return(&media.ProbeResult{
		Format:  media.FormatInfo{Duration: "N/A"},
		Streams: []media.StreamInfo{{CodecType: "video", CodecName: "mpeg2video", Width: 720, Height: 576}},
	}, nil)

	info, err := NewMetadataProbe(prober, 0, nil).Probe(context.Background(), "live.ts")
	require.NoError(t, err)

	assert.Nil(t, info.Duration)
	assert.Equal(t, 720, *info.Width)
	assert.Nil(t, info.FPS)
}

func TestMetadataProbe_Errors(t *testing.T) {
	tests := []struct {
		name    string
		result  *media.ProbeResult
		err     error
		wantErr error
	}{
		{
			name:    "ffprobe failed",
			err:     fmt.Errorf("%w: exit status 1, stderr: moov atom not found", media.ErrFFprobeExecution),
			wantErr: ErrProbeFailed,
		},
		{
			name:    "unparseable output",
			err:     errors.New("parse ffprobe output: unexpected end of JSON input"),
			wantErr: ErrProbeFailed,
		},
		{
			name:    "nil result",
			wantErr: ErrProbeFailed,
		},
		{
			name:    "deadline",
			err:     fmt.Errorf("ffprobe cancelled: %w", context.DeadlineExceeded),
			wantErr: ErrTimeout,
		},
		{
			name:    "cancelled",
			err:     fmt.Errorf("ffprobe cancelled: %w", context.Canceled),
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := new(mockProber)
			prober.On("ProbeVideo", mock.Anything, "in.mp4").Return(tt.result, tt.err)

			info, err := NewMetadataProbe(prober, 0, nil).Probe(context.Background(), "in.mp4")
			assert.Nil(t, info)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMetadataProbe_AppliesTimeout(t *testing.T) {
	prober := new(mockProber)
	prober.On("ProbeVideo", mock.Anything, "in.mp4").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, fmt.Errorf("ffprobe cancelled: %w", context.DeadlineExceeded))

	_, err := NewMetadataProbe(prober, 1, nil).Probe(context.Background(), "in.mp4")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMetadataProbe_RealFFprobe(t *testing.T) {
	skipIfNoFFmpeg(t)

	video := createTestVideo(t, t.TempDir(), "2")

	info, err := NewMetadataProbe(media.NewFFprobe(""), 0, nil).Probe(context.Background(), video)
	require.NoError(t, err)

	require.NotNil(t, info.Duration)
	assert.InDelta(t, 2.0, *info.Duration, 0.2)
	assert.Equal(t, 160, *info.Width)
	assert.Equal(t, 120, *info.Height)
	assert.Equal(t, "25/1", *info.FPS)
	assert.Equal(t, "h264", *info.Codec)
}
