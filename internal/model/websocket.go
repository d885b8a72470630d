package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage is pushed on every job progress update.
type WSProgressMessage struct {
	Type          string    `json:"type"`
	JobID         string    `json:"jobId"`
	Status        JobStatus `json:"status"`
	Progress      int       `json:"progress"`
	CurrentAction string    `json:"currentAction,omitempty"`
}

// WSCompleteMessage is pushed once when a job completes.
type WSCompleteMessage struct {
	Type       string   `json:"type"`
	JobID      string   `json:"jobId"`
	AudioFiles []string `json:"audio_files"`
}

// WSErrorMessage is pushed once when a job fails.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError carries the failure code and message.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
