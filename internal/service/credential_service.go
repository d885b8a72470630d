package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/storage"
)

// ErrNoRecognizedKeys means a credential update supplied nothing usable.
var ErrNoRecognizedKeys = errors.New("no recognized credential keys supplied")

// CredentialService stores per-user third-party API keys and login data.
// Values are written as supplied and never read back out through the API.
type CredentialService struct {
	store *storage.Store
}

func NewCredentialService(store *storage.Store) *CredentialService {
	return &CredentialService{store: store}
}

// Update merges the supplied provider keys into the user's credential
// record. Unknown keys are rejected; an empty value clears the key.
func (s *CredentialService) Update(ctx context.Context, userID string, creds map[string]string) error {
	recognized := 0
	for key := range creds {
		known := false
		for _, k := range model.RecognizedCredentials {
			if key == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unrecognized credential key %q", key)
		}
		recognized++
	}
	if recognized == 0 {
		return ErrNoRecognizedKeys
	}

	user, err := s.store.GetUser(userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	if user.Credentials == nil {
		user.Credentials = make(map[string]string)
	}
	for key, value := range creds {
		if value == "" {
			delete(user.Credentials, key)
		} else {
			user.Credentials[key] = value
		}
	}

	if err := s.store.SaveUser(user); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Status reports which provider keys are configured, never their values.
func (s *CredentialService) Status(ctx context.Context, userID string) (*model.CredentialStatusResponse, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	configured := make(map[string]bool, len(model.RecognizedCredentials))
	for _, key := range model.RecognizedCredentials {
		configured[key] = user.Credential(key) != ""
	}
	return &model.CredentialStatusResponse{Configured: configured}, nil
}
