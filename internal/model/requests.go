package model

import "time"

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued bearer token.
type AuthResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// JobCreateRequest submits a new scrape-and-narrate job.
type JobCreateRequest struct {
	Handle         string `json:"handle" validate:"required,min=1,max=64"`
	MaxPosts       int    `json:"max_posts" validate:"required,min=1,max=100"`
	DescribeImages bool   `json:"describe_images"`
	VoiceID        string `json:"voice_id" validate:"required"`
}

// JobCreateResponse acknowledges an enqueued job.
type JobCreateResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse is the polling payload for a job.
type JobStatusResponse struct {
	JobID           string         `json:"jobId"`
	Status          JobStatus      `json:"status"`
	Message         string         `json:"message,omitempty"`
	Progress        int            `json:"progress"`
	ProgressDetails map[string]any `json:"progress_details"`
	AudioFiles      []string       `json:"audio_files"`
	Error           *string        `json:"error"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// JobSummary is one row of the job listing.
type JobSummary struct {
	JobID     string    `json:"jobId"`
	Handle    string    `json:"handle"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
}

// CredentialUpdateRequest sets one or more provider secrets. At least one
// recognized key must be supplied; unknown keys are rejected.
type CredentialUpdateRequest struct {
	Credentials map[string]string `json:"credentials" validate:"required,min=1"`
}

// CredentialStatusResponse reports which provider keys are set, never values.
type CredentialStatusResponse struct {
	Configured map[string]bool `json:"configured"`
}

// Voice is one entry of the speech provider's voice catalog.
type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Category    string `json:"category,omitempty"`
}

// VoiceListResponse is the proxied voice catalog.
type VoiceListResponse struct {
	Voices []Voice `json:"voices"`
}
