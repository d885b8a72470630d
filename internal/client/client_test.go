package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSynthesizeSendsKeyAndSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "el-key" {
			t.Errorf("missing api key header, got %q", r.Header.Get("xi-api-key"))
		}

		var body struct {
			Text          string `json:"text"`
			ModelID       string `json:"model_id"`
			VoiceSettings struct {
				Stability       float64 `json:"stability"`
				SimilarityBoost float64 `json:"similarity_boost"`
			} `json:"voice_settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body.Text != "hello" || body.ModelID != "eleven_multilingual_v2" {
			t.Errorf("unexpected body %+v", body)
		}
		if body.VoiceSettings.Stability != 0.5 || body.VoiceSettings.SimilarityBoost != 0.5 {
			t.Errorf("unexpected voice settings %+v", body.VoiceSettings)
		}

		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := NewElevenLabsClient(srv.URL, "eleven_multilingual_v2", 5*time.Second)
	audio, err := c.Synthesize(context.Background(), "el-key", "voice-1", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("unexpected audio %q", audio)
	}
}

func TestSynthesizeErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	c := NewElevenLabsClient(srv.URL, "eleven_multilingual_v2", 5*time.Second)
	_, err := c.Synthesize(context.Background(), "bad-key", "voice-1", "hello")

	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if synthErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong status code %d", synthErr.StatusCode)
	}
	if !strings.Contains(synthErr.Message, "invalid api key") {
		t.Errorf("provider detail lost: %q", synthErr.Message)
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "el-key" {
			t.Error("missing api key header")
		}
		w.Write([]byte(`{"voices":[
			{"voice_id":"v1","name":"Rachel","category":"premade","preview_url":"https://cdn.example.com/v1.mp3","labels":{"description":"calm"}},
			{"voice_id":"v2","name":"Sam","category":"cloned"}
		]}`))
	}))
	defer srv.Close()

	c := NewElevenLabsClient(srv.URL, "eleven_multilingual_v2", 5*time.Second)
	voices, err := c.ListVoices(context.Background(), "el-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].VoiceID != "v1" || voices[0].Name != "Rachel" || voices[0].Description != "calm" {
		t.Errorf("unexpected voice %+v", voices[0])
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDescribeInlinesImage(t *testing.T) {
	imageData := testPNG(t, 8, 8)

	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageData)
	}))
	defer imgSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer vi-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("unexpected model %s", req.Model)
		}
		content := req.Messages[0].Content
		if content[0].Text != DefaultImagePrompt {
			t.Errorf("expected default prompt, got %q", content[0].Text)
		}
		if !strings.HasPrefix(content[1].ImageURL.URL, "data:image/jpeg;base64,") {
			t.Errorf("image not inlined as data uri: %.40s", content[1].ImageURL.URL)
		}

		w.Write([]byte(`{"choices":[{"message":{"content":"a gradient test pattern"}}]}`))
	}))
	defer apiSrv.Close()

	c := NewVisionClient(apiSrv.URL, "gpt-4o", 5*time.Second)
	desc, err := c.Describe(context.Background(), "vi-key", imgSrv.URL+"/a.png", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc != "a gradient test pattern" {
		t.Errorf("unexpected description %q", desc)
	}
}

func TestDescribeWrapsFailures(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer imgSrv.Close()

	c := NewVisionClient("http://unused.invalid", "gpt-4o", 5*time.Second)
	_, err := c.Describe(context.Background(), "vi-key", imgSrv.URL+"/gone.png", "")

	var descErr *DescribeError
	if !errors.As(err, &descErr) {
		t.Fatalf("expected DescribeError, got %v", err)
	}
	if descErr.ImageURL != imgSrv.URL+"/gone.png" {
		t.Errorf("wrong image url %s", descErr.ImageURL)
	}
}

func TestShrinkImageHalvesDimensions(t *testing.T) {
	data := testPNG(t, 64, 32)

	out, err := shrinkImage(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
		t.Errorf("expected 32x16, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}
