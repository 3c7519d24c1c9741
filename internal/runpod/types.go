// Package runpod provides an HTTP client for RunPod serverless image
// enhancement endpoints.
package runpod

// Status represents the status of a RunPod job.
type Status string

// RunPod job statuses aligned with the RunPod API.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusRunning    Status = "RUNNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// EnhanceOptions contains the parameters sent with an enhancement job.
type EnhanceOptions struct {
	Prompt string // Prompt text describing the desired thumbnail
	Width  int    // Output width in pixels
	Height int    // Output height in pixels
}

// DefaultEnhanceOptions returns the default options for an enhancement job.
func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		Prompt: "Make it eye-catching and professional.",
		Width:  640,
		Height: 480,
	}
}

// runRequest represents the request body for RunPod's /runsync endpoint.
type runRequest struct {
	Input runInput `json:"input"`
}

// runInput represents the input field in a RunPod run request.
type runInput struct {
	ImageBase64 string `json:"image_base64"`
	Prompt      string `json:"prompt"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// jobResponse is returned by both /runsync and /status.
type jobResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Output jobOutput `json:"output,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// jobOutput represents the output field in a job response.
type jobOutput struct {
	Image string `json:"image,omitempty"`
}

// Result contains the state of an enhancement job.
type Result struct {
	JobID       string
	Status      Status
	ImageBase64 string // Base64-encoded image (only set when Status is StatusCompleted)
	Error       string // Error message (only set when Status is StatusFailed)
}
