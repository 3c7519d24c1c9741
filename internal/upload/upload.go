// Package upload parses thumbnail requests: a multipart body carrying a video
// file and optional topic and description fields.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/thumbnail-api/internal/enhance"
	"github.com/maauso/thumbnail-api/internal/metrics"
	"github.com/maauso/thumbnail-api/internal/storage"
)

// Form field names.
const (
	FieldVideo       = "video"
	FieldTopic       = "topic"
	FieldDescription = "description"
)

// DefaultTopic is used when the topic field is absent or empty.
const DefaultTopic = enhance.DefaultTopic

// DefaultMaxBytes is the default upload ceiling (100 MiB).
const DefaultMaxBytes int64 = 100 << 20

// maxFieldBytes bounds each text field.
const maxFieldBytes = 64 << 10

// Static errors for request intake.
var (
	// ErrUnsupportedMethod is returned for any verb other than POST.
	ErrUnsupportedMethod = errors.New("upload: method not allowed")
	// ErrPayloadTooLarge is returned when the video exceeds the size ceiling.
	ErrPayloadTooLarge = errors.New("upload: payload too large")
	// ErrMissingVideo is returned when the body carries no video file.
	ErrMissingVideo = errors.New("upload: no video uploaded")
	// ErrMalformedForm is returned when the body is not a readable multipart form.
	ErrMalformedForm = errors.New("upload: malformed multipart form")
	// ErrInvalidFields is returned when topic or description fail validation.
	ErrInvalidFields = errors.New("upload: invalid form fields")
)

// Fields holds the optional text fields of a request.
type Fields struct {
	Topic       string `validate:"max=200"`
	Description string `validate:"max=2000"`
}

// FieldsError lists the text fields that failed validation, phrased for
// clients. It matches ErrInvalidFields.
type FieldsError struct {
	Problems []string
}

func (e *FieldsError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Is reports whether target is ErrInvalidFields.
func (e *FieldsError) Is(target error) bool {
	return target == ErrInvalidFields
}

// UploadedVideo is the uploaded file as stored in the request workspace.
type UploadedVideo struct {
	Path     string
	Filename string
	Size     int64
	MIMEType string
}

// Upload is a parsed request.
type Upload struct {
	Video  UploadedVideo
	Fields Fields
}

// Intake parses and validates uploads.
type Intake struct {
	maxBytes int64
	validate *validator.Validate
	logger   *slog.Logger
}

// NewIntake creates an Intake. A non-positive maxBytes selects DefaultMaxBytes.
func NewIntake(maxBytes int64, logger *slog.Logger) *Intake {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		maxBytes: maxBytes,
		validate: validator.New(),
		logger:   logger,
	}
}

// MaxBytes returns the upload ceiling.
func (in *Intake) MaxBytes() int64 {
	return in.maxBytes
}

// CheckMethod returns ErrUnsupportedMethod unless r is a POST.
func CheckMethod(r *http.Request) error {
	if r.Method != http.MethodPost {
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, r.Method)
	}
	return nil
}

// Parse streams the multipart body of r, writing the video into ws.
func (in *Intake) Parse(r *http.Request, ws *storage.Workspace) (*Upload, error) {
	if err := CheckMethod(r); err != nil {
		return nil, err
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedForm, err)
	}

	u := &Upload{}
	var seenVideo bool

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, in.classify(err)
		}

		switch name := part.FormName(); {
		case name == FieldVideo && part.FileName() != "" && !seenVideo:
			video, err := in.saveVideo(r, ws, part)
			if err != nil {
				return nil, err
			}
			if video != nil {
				u.Video = *video
				seenVideo = true
			}
		case name == FieldTopic:
			if u.Fields.Topic, err = readField(part); err != nil {
				return nil, in.classify(err)
			}
		case name == FieldDescription:
			if u.Fields.Description, err = readField(part); err != nil {
				return nil, in.classify(err)
			}
		default:
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, in.classify(err)
			}
		}
		_ = part.Close()
	}

	if !seenVideo {
		return nil, ErrMissingVideo
	}

	if u.Fields.Topic == "" {
		u.Fields.Topic = DefaultTopic
	}
	if err := in.validate.Struct(u.Fields); err != nil {
		return nil, fieldsError(err)
	}

	metrics.RecordUpload(u.Video.Size)
	in.logger.Debug("upload received",
		slog.String("workspace", ws.ID()),
		slog.String("filename", u.Video.Filename),
		slog.Int64("size", u.Video.Size),
		slog.String("mime_type", u.Video.MIMEType),
	)
	return u, nil
}

// saveVideo copies part into ws. It returns nil for an empty file.
func (in *Intake) saveVideo(r *http.Request, ws *storage.Workspace, part *multipart.Part) (*UploadedVideo, error) {
	lr := &io.LimitedReader{R: part, N: in.maxBytes + 1}

	path, err := ws.SaveTemp(r.Context(), part.FileName(), lr)
	if err != nil {
		if isBodyError(err) {
			return nil, in.classify(err)
		}
		return nil, fmt.Errorf("save upload: %w", err)
	}

	size := in.maxBytes + 1 - lr.N
	if size > in.maxBytes {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, in.maxBytes)
	}
	if size == 0 {
		_ = os.Remove(path)
		return nil, nil
	}

	mimeType := part.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if m, err := mimetype.DetectFile(path); err == nil {
			mimeType = m.String()
		}
	}

	return &UploadedVideo{
		Path:     path,
		Filename: part.FileName(),
		Size:     size,
		MIMEType: mimeType,
	}, nil
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(io.Discard, part); err != nil {
		return "", err
	}
	return string(b), nil
}

// fieldsError turns validator output into a FieldsError.
func fieldsError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidFields, err)
	}

	fe := &FieldsError{Problems: make([]string, 0, len(verrs))}
	for _, v := range verrs {
		name := strings.ToLower(v.Field())
		switch v.Tag() {
		case "max":
			fe.Problems = append(fe.Problems, fmt.Sprintf("%s must be at most %s characters", name, v.Param()))
		default:
			fe.Problems = append(fe.Problems, name+" is invalid")
		}
	}
	return fe
}

// classify maps body read errors to intake errors.
func (in *Intake) classify(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, in.maxBytes)
	}
	return fmt.Errorf("%w: %w", ErrMalformedForm, err)
}

func isBodyError(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, multipart.ErrMessageTooLarge)
}
