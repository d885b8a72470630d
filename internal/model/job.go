package model

import "time"

// JobStatus is the lifecycle state of a narration job.
type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusScraping        JobStatus = "scraping"
	JobStatusScraped         JobStatus = "scraped"
	JobStatusGeneratingAudio JobStatus = "generating_audio"
	JobStatusProcessing      JobStatus = "processing"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
)

// statusRank orders statuses so a job can never move backwards.
// JobStatusFailed is reachable from any non-terminal state.
var statusRank = map[JobStatus]int{
	JobStatusPending:         0,
	JobStatusScraping:        1,
	JobStatusScraped:         2,
	JobStatusGeneratingAudio: 3,
	JobStatusProcessing:      4,
	JobStatusCompleted:       5,
	JobStatusFailed:          5,
}

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one user-initiated scrape-and-narrate request.
// The worker is the only writer once the job leaves pending; handlers
// only ever read it back or delete it wholesale.
type Job struct {
	ID              string         `json:"job_id"`
	UserID          string         `json:"user_id"`
	Handle          string         `json:"handle"`
	MaxPosts        int            `json:"max_posts"`
	DescribeImages  bool           `json:"describe_images"`
	VoiceID         string         `json:"voice_id"`
	Status          JobStatus      `json:"status"`
	Message         string         `json:"message,omitempty"`
	Progress        int            `json:"progress"`
	ProgressDetails map[string]any `json:"progress_details,omitempty"`
	PostFile        string         `json:"post_file,omitempty"`
	AudioFiles      []string       `json:"audio_files"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ProgressDetail is a stage-specific progress payload. Implementations
// write their fields into the job's open progress_details mapping, which
// keeps the wire format forward compatible.
type ProgressDetail interface {
	apply(m map[string]any)
}

// ScrapingProgress reports which scrape strategy is being attempted.
type ScrapingProgress struct {
	Stage string
}

func (p ScrapingProgress) apply(m map[string]any) {
	m["stage"] = p.Stage
}

// ScrapedProgress reports how many posts the scrape produced.
type ScrapedProgress struct {
	PostCount int
}

func (p ScrapedProgress) apply(m map[string]any) {
	m["post_count"] = p.PostCount
}

// ProcessingProgress reports the position in the per-post loop.
type ProcessingProgress struct {
	CurrentPost   int
	TotalPosts    int
	CurrentAction string
}

func (p ProcessingProgress) apply(m map[string]any) {
	m["current_post"] = p.CurrentPost
	m["total_posts"] = p.TotalPosts
	m["current_action"] = p.CurrentAction
}

// SetStatus moves the job forward through its state machine. Backward
// transitions are ignored so a late write can never regress the status,
// and a terminal job never moves again. Entering scraping clears any
// stale error from a previous attempt.
func (j *Job) SetStatus(status JobStatus) {
	if j.Status.IsTerminal() {
		return
	}
	if statusRank[status] < statusRank[j.Status] {
		return
	}
	j.Status = status
	j.UpdatedAt = time.Now().UTC()

	switch status {
	case JobStatusScraping:
		j.Error = ""
		j.raiseProgress(10)
	case JobStatusScraped:
		j.raiseProgress(20)
	case JobStatusGeneratingAudio:
		j.raiseProgress(30)
	case JobStatusCompleted:
		j.Progress = 100
	}
}

// Fail marks the job failed and records the triggering error verbatim.
func (j *Job) Fail(err error) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.UpdatedAt = time.Now().UTC()
}

// ApplyProgress merges a stage payload into the progress_details mapping.
func (j *Job) ApplyProgress(d ProgressDetail) {
	if j.ProgressDetails == nil {
		j.ProgressDetails = make(map[string]any)
	}
	d.apply(j.ProgressDetails)
	j.UpdatedAt = time.Now().UTC()
}

// SetProgress raises the progress percentage. Progress is non-decreasing
// while a job is active, so lower values are dropped.
func (j *Job) SetProgress(pct int) {
	j.raiseProgress(pct)
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) raiseProgress(pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct > j.Progress {
		j.Progress = pct
	}
}

// AddAudioFile appends a produced audio file, preserving post order.
func (j *Job) AddAudioFile(path string) {
	for _, f := range j.AudioFiles {
		if f == path {
			return
		}
	}
	j.AudioFiles = append(j.AudioFiles, path)
	j.UpdatedAt = time.Now().UTC()
}
