package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tweedhat/api/internal/model"
)

func (s *Store) jobPath(jobID string) string {
	return filepath.Join(s.dataDir, "jobs", jobID+".json")
}

// SaveJob persists a job record.
func (s *Store) SaveJob(job *model.Job) error {
	return s.writeJSON(s.jobPath(job.ID), job)
}

// GetJob loads a job record by id.
func (s *Store) GetJob(jobID string) (*model.Job, error) {
	var job model.Job
	if err := s.readJSON(s.jobPath(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobsByUser returns a user's jobs, newest first. There is no index;
// the jobs directory is scanned, which is fine at personal-use scale.
func (s *Store) ListJobsByUser(userID string) ([]*model.Job, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "jobs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	var jobs []*model.Job
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var job model.Job
		if err := s.readJSON(filepath.Join(s.dataDir, "jobs", entry.Name()), &job); err != nil {
			continue
		}
		if job.UserID == userID {
			jobs = append(jobs, &job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// DeleteJob removes the job record together with its posts artifact and
// audio directory. The record is removed last so a crash mid-delete leaves
// a findable job rather than orphaned files with no record.
func (s *Store) DeleteJob(job *model.Job) error {
	if job.PostFile != "" {
		if err := os.Remove(job.PostFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove posts artifact: %w", err)
		}
	}
	if err := os.RemoveAll(s.AudioDir(job.ID)); err != nil {
		return fmt.Errorf("failed to remove audio files: %w", err)
	}
	if err := os.Remove(s.jobPath(job.ID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove job record: %w", err)
	}
	return nil
}

// SavePostArchive writes the scraped-posts artifact and returns its path.
func (s *Store) SavePostArchive(jobID string, archive *model.PostArchive) (string, error) {
	path := filepath.Join(s.PostsDir(), jobID+".json")
	if err := s.writeJSON(path, archive); err != nil {
		return "", err
	}
	return path, nil
}
