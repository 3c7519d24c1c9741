package enhance

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/thumbnail-api/internal/storage"
)

// funcEnhancer adapts a function to the Enhancer interface.
type funcEnhancer struct {
	name  string
	calls int
	fn    func(ctx context.Context, ws *storage.Workspace, framePath string) (string, error)
}

func (f *funcEnhancer) Name() string { return f.name }

func (f *funcEnhancer) Enhance(ctx context.Context, ws *storage.Workspace, framePath string, _ Prompt) (string, error) {
	f.calls++
	return f.fn(ctx, ws, framePath)
}

func writesFile(data string) func(context.Context, *storage.Workspace, string) (string, error) {
	return func(_ context.Context, ws *storage.Workspace, _ string) (string, error) {
		out := ws.Path("enhanced.jpg")
		return out, os.WriteFile(out, []byte(data), 0600)
	}
}

func TestStage_NoCredentialSkips(t *testing.T) {
	ws := newWorkspace(t)
	frame := writeFrame(t, ws)

	stage := NewStage(nil, time.Second, nil)
	assert.Equal(t, NameNone, stage.Provider())

	out, enhanced := stage.Apply(context.Background(), ws, frame, Prompt{Topic: DefaultTopic})
	assert.Equal(t, frame, out)
	assert.False(t, enhanced)

	out, enhanced = stage.Apply(context.Background(), ws, frame, Prompt{Topic: "Cats", Description: "kittens"})
	assert.Equal(t, frame, out)
	assert.False(t, enhanced)
}

func TestStage_DefaultPromptSkipsConfiguredEnhancer(t *testing.T) {
	ws := newWorkspace(t)
	frame := writeFrame(t, ws)

	e := &funcEnhancer{name: NameOpenAI, fn: writesFile("enhanced")}
	out, enhanced := NewStage(e, time.Second, nil).Apply(context.Background(), ws, frame, Prompt{Topic: DefaultTopic})

	assert.Equal(t, frame, out)
	assert.False(t, enhanced)
	assert.Zero(t, e.calls)
}

func TestStage_Success(t *testing.T) {
	ws := newWorkspace(t)
	frame := writeFrame(t, ws)

	e := &funcEnhancer{name: NameOpenAI, fn: writesFile("enhanced")}
	out, enhanced := NewStage(e, time.Second, nil).Apply(context.Background(), ws, frame, Prompt{Topic: "Cats"})

	assert.True(t, enhanced)
	assert.Equal(t, ws.Path("enhanced.jpg"), out)
	assert.Equal(t, 1, e.calls)
}

func TestStage_ReturningInputIsNotEnhanced(t *testing.T) {
	ws := newWorkspace(t)
	frame := writeFrame(t, ws)

	e := &funcEnhancer{name: NameRunPod, fn: func(_ context.Context, _ *storage.Workspace, p string) (string, error) {
		return p, nil
	}}
	out, enhanced := NewStage(e, time.Second, nil).Apply(context.Background(), ws, frame, Prompt{Topic: "Cats"})

	assert.Equal(t, frame, out)
	assert.False(t, enhanced)
}

// The stage must hand back the original, existing frame whatever the enhancer does.
func TestStage_FaultsFallBack(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, ws *storage.Workspace, framePath string) (string, error)
	}{
		{
			name: "error",
			fn: func(context.Context, *storage.Workspace, string) (string, error) {
				return "", errors.New("401 unauthorized")
			},
		},
		{
			name: "error with partial output",
			fn: func(_ context.Context, ws *storage.Workspace, _ string) (string, error) {
				out := ws.Path("partial.jpg")
				_ = os.WriteFile(out, []byte("part"), 0600)
				return out, errors.New("connection reset")
			},
		},
		{
			name: "panic",
			fn: func(context.Context, *storage.Workspace, string) (string, error) {
				panic("nil map")
			},
		},
		{
			name: "empty path",
			fn: func(context.Context, *storage.Workspace, string) (string, error) {
				return "", nil
			},
		},
		{
			name: "missing file",
			fn: func(_ context.Context, ws *storage.Workspace, _ string) (string, error) {
				return ws.Path("never-written.jpg"), nil
			},
		},
		{
			name: "empty file",
			fn:   writesFile(""),
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, _ *storage.Workspace, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t)
			frame := writeFrame(t, ws)

			e := &funcEnhancer{name: NameOpenAI, fn: tt.fn}
			stage := NewStage(e, 50*time.Millisecond, nil)

			var (
				out      string
				enhanced bool
			)
			require.NotPanics(t, func() {
				out, enhanced = stage.Apply(context.Background(), ws, frame, Prompt{Topic: "Cats"})
			})

			assert.Equal(t, frame, out)
			assert.False(t, enhanced)
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "original frame", string(data))

			entries, err := os.ReadDir(ws.TempDir())
			require.NoError(t, err)
			assert.Len(t, entries, 1, "failed output should be removed")
		})
	}
}
