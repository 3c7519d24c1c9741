package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/maauso/thumbnail-api/internal/storage"
	"github.com/maauso/thumbnail-api/internal/thumbnail"
	"github.com/maauso/thumbnail-api/internal/upload"
)

// statusClientClosedRequest is recorded when the client went away before a
// response could be written.
const statusClientClosedRequest = 499

// formOverhead is the body allowance on top of the video ceiling for
// multipart framing and text fields.
const formOverhead int64 = 1 << 20

// Generator runs the thumbnail pipeline.
type Generator interface {
	Generate(ctx context.Context, ws *storage.Workspace, req thumbnail.Request) (*thumbnail.Payload, error)
}

// Workspaces creates per-request scratch directories.
type Workspaces interface {
	NewWorkspace(ctx context.Context, id string) (*storage.Workspace, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	generator  Generator
	workspaces Workspaces
	intake     *upload.Intake
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(generator Generator, workspaces Workspaces, intake *upload.Intake, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if intake == nil {
		intake = upload.NewIntake(upload.DefaultMaxBytes, logger)
	}
	return &Handlers{
		generator:  generator,
		workspaces: workspaces,
		intake:     intake,
		logger:     logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GenerateThumbnail handles /api/thumbnail requests. Only POST is accepted;
// other verbs get a JSON 405.
func (h *Handlers) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	if err := upload.CheckMethod(r); err != nil {
		w.Header().Set("Allow", http.MethodPost)
		h.writeFailure(w, "", err)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	r.Body = http.MaxBytesReader(w, r.Body, h.intake.MaxBytes()+formOverhead)

	ws, err := h.workspaces.NewWorkspace(r.Context(), requestID)
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}
	defer func() {
		if err := ws.Release(); err != nil {
			h.logger.Warn("failed to release workspace",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
		}
	}()

	u, err := h.intake.Parse(r, ws)
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}

	h.logger.Info("thumbnail requested",
		slog.String("request_id", requestID),
		slog.String("topic", u.Fields.Topic),
		slog.String("filename", u.Video.Filename),
		slog.Int64("size", u.Video.Size),
	)

	payload, err := h.generator.Generate(r.Context(), ws, thumbnail.Request{
		VideoPath:   u.Video.Path,
		Topic:       u.Fields.Topic,
		Description: u.Fields.Description,
	})
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// writeFailure maps an error to its HTTP status and error body.
func (h *Handlers) writeFailure(w http.ResponseWriter, requestID string, err error) {
	var (
		status  int
		message string
		code    string
		details bool
	)

	switch {
	case errors.Is(err, upload.ErrUnsupportedMethod):
		status, message, code = http.StatusMethodNotAllowed, "Method not allowed", "METHOD_NOT_ALLOWED"
	case errors.Is(err, upload.ErrPayloadTooLarge):
		status, message, code = http.StatusRequestEntityTooLarge, "Video exceeds the upload size limit", "PAYLOAD_TOO_LARGE"
	case errors.Is(err, upload.ErrMissingVideo):
		status, message, code = http.StatusBadRequest, "No video uploaded", "MISSING_VIDEO"
	case errors.Is(err, upload.ErrInvalidFields):
		status, message, code = http.StatusBadRequest, "Invalid form fields", "VALIDATION_ERROR"
		var fe *upload.FieldsError
		if errors.As(err, &fe) {
			message = fe.Error()
		}
	case errors.Is(err, upload.ErrMalformedForm):
		status, message, code = http.StatusBadRequest, "Invalid multipart form", "INVALID_FORM"
	case errors.Is(err, thumbnail.ErrTimeout):
		status, message, code, details = http.StatusGatewayTimeout, "Timed out processing video", "TIMEOUT", true
	case errors.Is(err, context.Canceled):
		status, message, code = statusClientClosedRequest, "Request cancelled", "CLIENT_CLOSED"
	case errors.Is(err, thumbnail.ErrExtractionFailed):
		status, message, code, details = http.StatusInternalServerError, "Failed to extract video thumbnail", "EXTRACTION_FAILED", true
	case errors.Is(err, thumbnail.ErrProbeFailed):
		status, message, code, details = http.StatusInternalServerError, "Failed to read video metadata", "PROBE_FAILED", true
	default:
		status, message, code, details = http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", true
	}

	level := slog.LevelWarn
	switch {
	case status == statusClientClosedRequest:
		level = slog.LevelInfo
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	}
	h.logger.Log(context.Background(), level, "thumbnail request failed",
		slog.String("request_id", requestID),
		slog.Int("status", status),
		slog.String("code", code),
		slog.String("error", err.Error()),
	)

	resp := ErrorResponse{Error: message, Code: code}
	if details {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
