package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tweedhat/api/internal/model"
)

func (s *Store) userPath(userID string) string {
	return filepath.Join(s.dataDir, "users", userID+".json")
}

// SaveUser persists a user record (account plus credentials).
func (s *Store) SaveUser(user *model.User) error {
	return s.writeJSON(s.userPath(user.ID), user)
}

// GetUser loads a user record by id.
func (s *Store) GetUser(userID string) (*model.User, error) {
	var user model.User
	if err := s.readJSON(s.userPath(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername scans the users directory for a matching username.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "users"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var user model.User
		if err := s.readJSON(filepath.Join(s.dataDir, "users", entry.Name()), &user); err != nil {
			continue
		}
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, ErrNotFound
}
