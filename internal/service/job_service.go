package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/storage"
)

// TaskTypeNarrate is the asynq task type for the scrape-and-narrate job.
const TaskTypeNarrate = "job:narrate"

// QueueNarrate is the asynq queue jobs are enqueued on.
const QueueNarrate = "narrate"

// Enqueuer is the slice of asynq.Client the job service needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NarrateTaskPayload is the asynq task body; everything else lives in the
// persisted job record.
type NarrateTaskPayload struct {
	JobID string `json:"jobId"`
}

// NewNarrateTask builds the asynq task for a job.
func NewNarrateTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(NarrateTaskPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNarrate, data), nil
}

// JobService creates, reads and deletes jobs. The worker is the only
// mutator once a job is enqueued.
type JobService struct {
	store    *storage.Store
	enqueuer Enqueuer
}

func NewJobService(store *storage.Store, enqueuer Enqueuer) *JobService {
	return &JobService{store: store, enqueuer: enqueuer}
}

// Submit validates the request, persists a pending job and enqueues it.
// It returns as soon as the task is queued; scraping happens on a worker.
func (s *JobService) Submit(ctx context.Context, userID string, req *model.JobCreateRequest) (*model.Job, error) {
	now := time.Now().UTC()
	job := &model.Job{
		ID:             uuid.New().String(),
		UserID:         userID,
		Handle:         req.Handle,
		MaxPosts:       req.MaxPosts,
		DescribeImages: req.DescribeImages,
		VoiceID:        req.VoiceID,
		Status:         model.JobStatusPending,
		AudioFiles:     []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.SaveJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := NewNarrateTask(job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// TaskID mirrors the job id so the same job can never be in flight
	// twice; MaxRetry(0) because a failed job is never retried, the user
	// creates a new one instead.
	_, err = s.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(QueueNarrate),
		asynq.TaskID(job.ID),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return job, nil
}

// GetStatus returns the polling payload for a job. Reads never mutate.
// A job owned by someone else is indistinguishable from a missing one.
func (s *JobService) GetStatus(ctx context.Context, userID, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.getOwned(userID, jobID)
	if err != nil {
		return nil, err
	}

	var errText *string
	if job.Error != "" {
		errText = &job.Error
	}

	audioFiles := make([]string, 0, len(job.AudioFiles))
	for _, f := range job.AudioFiles {
		audioFiles = append(audioFiles, filepath.Base(f))
	}

	return &model.JobStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Message:         job.Message,
		Progress:        job.Progress,
		ProgressDetails: job.ProgressDetails,
		AudioFiles:      audioFiles,
		Error:           errText,
		UpdatedAt:       job.UpdatedAt,
	}, nil
}

// List returns the caller's jobs, newest first.
func (s *JobService) List(ctx context.Context, userID string) ([]model.JobSummary, error) {
	jobs, err := s.store.ListJobsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	summaries := make([]model.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, model.JobSummary{
			JobID:     job.ID,
			Handle:    job.Handle,
			Status:    job.Status,
			Progress:  job.Progress,
			CreatedAt: job.CreatedAt,
		})
	}
	return summaries, nil
}

// Delete removes the job record and all of its files as a unit.
func (s *JobService) Delete(ctx context.Context, userID, jobID string) error {
	job, err := s.getOwned(userID, jobID)
	if err != nil {
		return err
	}
	return s.store.DeleteJob(job)
}

// AudioFilePath resolves a download request to a path on disk. The
// filename must be one of the job's produced audio files.
func (s *JobService) AudioFilePath(ctx context.Context, userID, jobID, filename string) (string, error) {
	job, err := s.getOwned(userID, jobID)
	if err != nil {
		return "", err
	}

	for _, f := range job.AudioFiles {
		if filepath.Base(f) == filename {
			return filepath.Join(s.store.AudioDir(job.ID), filename), nil
		}
	}
	return "", storage.ErrNotFound
}

func (s *JobService) getOwned(userID, jobID string) (*model.Job, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return job, nil
}
