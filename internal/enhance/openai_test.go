package enhance

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIEnhancer_Size(t *testing.T) {
	e, err := NewOpenAIEnhancer("sk-test", "", "512x512", new(mockProcessor), nil)
	require.NoError(t, err)
	assert.Equal(t, 512, e.side)
	assert.Equal(t, NameOpenAI, e.Name())

	for _, size := range []string{"640x480", "1024", ""} {
		_, err := NewOpenAIEnhancer("sk-test", "", size, new(mockProcessor), nil)
		assert.ErrorIs(t, err, ErrUnsupportedImageSize, size)
	}
}

func TestOpenAIEnhancer_Enhance(t *testing.T) {
	enhancedPNG := []byte("\x89PNG\r\n\x1a\nenhanced")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/images/edits"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Contains(t, r.FormValue("prompt"), `"Cats"`)
		assert.Equal(t, "1024x1024", r.FormValue("size"))
		assert.Equal(t, "b64_json", r.FormValue("response_format"))

		if file, header, err := r.FormFile("image"); assert.NoError(t, err) {
			_ = file.Close()
			assert.Equal(t, ".png", filepath.Ext(header.Filename))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1700000000,"data":[{"b64_json":"` +
			base64.StdEncoding.EncodeToString(enhancedPNG) + `"}]}`))
	}))
	defer server.Close()

	ws := newWorkspace(t)
	frame := writeFrame(t, ws)

	proc := new(mockProcessor)
	proc.On("ResizeImageWithPadding", mock.Anything, frame, mock.AnythingOfType("string"), 1024, 1024).
		Run(writeArg(t, 2, []byte("padded png"))).Return(nil)

	e, err := NewOpenAIEnhancer("sk-test", server.URL+"/v1/", "1024x1024", proc, nil)
	require.NoError(t, err)

	out, err := e.Enhance(context.Background(), ws, frame, Prompt{Topic: "Cats"})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, enhancedPNG, data)
	assert.Equal(t, ".png", filepath.Ext(out))
	proc.AssertExpectations(t)

	entries, err := os.ReadDir(ws.TempDir())
	require.NoError(t, err)
	assert.Len(t, entries, 2, "padded source should be removed")
}

func TestOpenAIEnhancer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
		},
		{
			name:    "no images",
			status:  http.StatusOK,
			body:    `{"created":1700000000,"data":[]}`,
			wantErr: ErrNoImageReturned,
		},
		{
			name:   "bad base64",
			status: http.StatusOK,
			body:   `{"created":1700000000,"data":[{"b64_json":"%%%"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ws := newWorkspace(t)
			frame := writeFrame(t, ws)

			proc := new(mockProcessor)
			proc.On("ResizeImageWithPadding", mock.Anything, frame, mock.Anything, 256, 256).
				Run(writeArg(t, 2, []byte("padded png"))).Return(nil)

			e, err := NewOpenAIEnhancer("sk-test", server.URL, "256x256", proc, nil)
			require.NoError(t, err)

			_, err = e.Enhance(context.Background(), ws, frame, Prompt{Topic: "Cats"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIEnhancer_PrepareFails(t *testing.T) {
	ws := newWorkspace(t)
	frame := writeFrame(t, ws)

	proc := new(mockProcessor)
	proc.On("ResizeImageWithPadding", mock.Anything, frame, mock.Anything, 1024, 1024).
		Return(errors.New("ffmpeg missing"))

	e, err := NewOpenAIEnhancer("sk-test", "http://127.0.0.1:1", "1024x1024", proc, nil)
	require.NoError(t, err)

	_, err = e.Enhance(context.Background(), ws, frame, Prompt{Topic: "Cats"})
	assert.ErrorContains(t, err, "prepare image")
}
