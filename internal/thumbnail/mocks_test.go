package thumbnail

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/thumbnail-api/internal/media"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// mockGrabber is a mock implementation of media.FrameGrabber.
type mockGrabber struct {
	mock.Mock
}

func (m *mockGrabber) GrabFrame(ctx context.Context, videoPath, dst, offset string, w, h int) error {
	args := m.Called(ctx, videoPath, dst, offset, w, h)
	return args.Error(0)
}

// mockProber is a mock implementation of media.Prober.
type mockProber struct {
	mock.Mock
}

func (m *mockProber) ProbeVideo(ctx context.Context, path string) (*media.ProbeResult, error) {
	args := m.Called(ctx, path)
	res, _ := args.Get(0).(*media.ProbeResult)
	return res, args.Error(1)
}

// mockPublisher is a mock implementation of Publisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) UploadToS3(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	body, _ := io.ReadAll(data)
	args := m.Called(ctx, key, contentType, body)
	return args.String(0), args.Error(1)
}

// writesFrame makes a GrabFrame expectation write data to its dst argument.
// It may run on an errgroup goroutine, so it must not call FailNow.
func writesFrame(t *testing.T, data string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		assert.NoError(t, os.WriteFile(args.String(2), []byte(data), 0600))
	}
}

func newWorkspace(t *testing.T) *storage.Workspace {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ws, err := local.NewWorkspace(context.Background(), "req")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Release() })
	return ws
}

func writeVideo(t *testing.T, ws *storage.Workspace) string {
	t.Helper()
	path := ws.Path("upload.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0600))
	return path
}

func workspaceFiles(t *testing.T, ws *storage.Workspace) []string {
	t.Helper()
	entries, err := os.ReadDir(ws.TempDir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available, skipping test", bin)
		}
	}
}

// createTestVideo writes a short H.264 test pattern with a silent audio track.
func createTestVideo(t *testing.T, dir string, seconds string) string {
	t.Helper()
	path := filepath.Join(dir, "input.mp4")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=size=160x120:rate=25",
		"-f", "lavfi", "-i", "anullsrc=r=44100:cl=mono",
		"-t", seconds,
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\n%s", err, out)
	}
	return path
}
