package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tweedhat/api/internal/model"
)

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error)
}

// VoiceLister fetches the speech provider's voice catalog.
type VoiceLister interface {
	ListVoices(ctx context.Context, apiKey string) ([]model.Voice, error)
}

// SynthesisError is a speech API failure (invalid voice, quota, provider
// error). It aborts the enclosing job.
type SynthesisError struct {
	StatusCode int
	Message    string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed (status %d): %s", e.StatusCode, e.Message)
}

// ElevenLabsClient talks to the ElevenLabs text-to-speech API. API keys
// are per-user, so they are passed per call rather than held on the client.
type ElevenLabsClient struct {
	httpClient *http.Client
	baseURL    string
	modelID    string
}

// NewElevenLabsClient creates an ElevenLabs API client.
func NewElevenLabsClient(baseURL, modelID string, timeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		modelID:    modelID,
	}
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to audio bytes with the given voice.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error) {
	reqBody := synthesizeRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

type voicesResponse struct {
	Voices []struct {
		VoiceID    string `json:"voice_id"`
		Name       string `json:"name"`
		Category   string `json:"category"`
		PreviewURL string `json:"preview_url"`
		Labels     struct {
			Description string `json:"description"`
		} `json:"labels"`
	} `json:"voices"`
}

// ListVoices returns the provider's voice catalog.
func (c *ElevenLabsClient) ListVoices(ctx context.Context, apiKey string) ([]model.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice listing failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var vr voicesResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voices: %w", err)
	}

	voices := make([]model.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, model.Voice{
			VoiceID:     v.VoiceID,
			Name:        v.Name,
			Description: v.Labels.Description,
			PreviewURL:  v.PreviewURL,
			Category:    v.Category,
		})
	}
	return voices, nil
}
