package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tweedhat/api/internal/client"
	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/storage"
)

// ErrSpeechKeyMissing means the caller has not stored a speech API key.
var ErrSpeechKeyMissing = errors.New("speech API key not configured")

// VoiceService proxies the speech provider's voice catalog, read-only,
// using the caller's stored key.
type VoiceService struct {
	store  *storage.Store
	voices client.VoiceLister
}

func NewVoiceService(store *storage.Store, voices client.VoiceLister) *VoiceService {
	return &VoiceService{store: store, voices: voices}
}

// List returns the provider's voice catalog for the calling user.
func (s *VoiceService) List(ctx context.Context, userID string) (*model.VoiceListResponse, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	apiKey := user.Credential(model.CredElevenLabsAPIKey)
	if apiKey == "" {
		return nil, ErrSpeechKeyMissing
	}

	voices, err := s.voices.ListVoices(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return &model.VoiceListResponse{Voices: voices}, nil
}
