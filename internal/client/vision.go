package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultImagePrompt is used when the caller does not supply a prompt.
const DefaultImagePrompt = "Describe this image in detail, focusing on the main subjects and any text visible in the image."

// VideoPreviewPrompt is used for preview frames extracted from videos.
const VideoPreviewPrompt = "This is a preview frame from a video in a post. Describe what you see in this frame and what the video might be about."

// Describer generates a text description of an image.
type Describer interface {
	Describe(ctx context.Context, apiKey, imageURL, prompt string) (string, error)
}

// DescribeError is a per-image vision failure (network, unsupported
// format, provider error). It never aborts the enclosing job.
type DescribeError struct {
	ImageURL string
	Err      error
}

func (e *DescribeError) Error() string {
	return fmt.Sprintf("failed to describe image %s: %v", e.ImageURL, e.Err)
}

func (e *DescribeError) Unwrap() error { return e.Err }

// VisionClient calls an OpenAI-compatible vision chat-completion
// endpoint with the image inlined as a base64 data URI. Images over the
// provider's size limit are downscaled before sending.
type VisionClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewVisionClient creates a vision API client.
func NewVisionClient(baseURL, model string, timeout time.Duration) *VisionClient {
	return &VisionClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      model,
	}
}

type visionContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Describe downloads the image and asks the vision model for a
// description. All failures are wrapped as DescribeError so the caller
// can treat them as per-image and non-fatal.
func (c *VisionClient) Describe(ctx context.Context, apiKey, imageURL, prompt string) (string, error) {
	if prompt == "" {
		prompt = DefaultImagePrompt
	}

	data, err := fetchImage(ctx, c.httpClient, imageURL)
	if err != nil {
		return "", &DescribeError{ImageURL: imageURL, Err: err}
	}
	if len(data) > maxImageBytes {
		data, err = shrinkImage(data)
		if err != nil {
			return "", &DescribeError{ImageURL: imageURL, Err: err}
		}
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	reqBody := visionRequest{
		Model: c.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &visionImageURL{URL: "data:image/jpeg;base64," + encoded}},
			},
		}},
		MaxTokens: 1024,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", &DescribeError{ImageURL: imageURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &DescribeError{ImageURL: imageURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &DescribeError{ImageURL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &DescribeError{ImageURL: imageURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &DescribeError{
			ImageURL: imageURL,
			Err:      fmt.Errorf("vision API error (status %d): %s", resp.StatusCode, string(respBody)),
		}
	}

	var vr visionResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return "", &DescribeError{ImageURL: imageURL, Err: err}
	}
	if len(vr.Choices) == 0 {
		return "", &DescribeError{ImageURL: imageURL, Err: fmt.Errorf("no choices in response")}
	}
	return vr.Choices[0].Message.Content, nil
}
