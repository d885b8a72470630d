package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/tweedhat/api/internal/client"
	"github.com/tweedhat/api/internal/middleware"
	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/service"
	"github.com/tweedhat/api/internal/storage"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "t1", Queue: service.QueueNarrate}, nil
}

type fakeVoiceLister struct {
	voices []model.Voice
	err    error
}

func (f *fakeVoiceLister) ListVoices(ctx context.Context, apiKey string) ([]model.Voice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.voices, nil
}

type testEnv struct {
	app      *fiber.App
	store    *storage.Store
	auth     *middleware.AuthMiddleware
	enqueuer *fakeEnqueuer
	voices   *fakeVoiceLister
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret", time.Hour)
	validate := validator.New()
	enqueuer := &fakeEnqueuer{}
	voices := &fakeVoiceLister{voices: []model.Voice{{VoiceID: "v1", Name: "Rachel"}}}

	authHandler := NewAuthHandler(service.NewAuthService(store, auth), validate)
	jobHandler := NewJobHandler(service.NewJobService(store, enqueuer), validate)
	credHandler := NewCredentialHandler(service.NewCredentialService(store), validate)
	voiceHandler := NewVoiceHandler(service.NewVoiceService(store, voices))

	app := fiber.New()
	app.Post("/auth/register", authHandler.Register)
	app.Post("/auth/login", authHandler.Login)

	api := app.Group("/api", auth.Authenticate())
	api.Post("/jobs", jobHandler.Create)
	api.Get("/jobs", jobHandler.List)
	api.Get("/jobs/:jobId/status", jobHandler.Status)
	api.Get("/jobs/:jobId/download/:filename", jobHandler.Download)
	api.Delete("/jobs/:jobId", jobHandler.Delete)
	api.Put("/credentials", credHandler.Update)
	api.Get("/credentials", credHandler.Status)
	api.Get("/voices", voiceHandler.List)

	return &testEnv{app: app, store: store, auth: auth, enqueuer: enqueuer, voices: voices}
}

func (e *testEnv) createUser(t *testing.T, username string) (userID, token string) {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": username,
		"password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d", resp.StatusCode)
	}
	var auth model.AuthResponse
	decodeBody(t, resp, &auth)
	return auth.UserID, auth.Token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestApp(t)
	env.createUser(t, "alice")

	resp := env.request(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}
	var auth model.AuthResponse
	decodeBody(t, resp, &auth)
	if auth.Token == "" {
		t.Error("expected a token")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := setupTestApp(t)
	env.createUser(t, "alice")

	resp := env.request(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate username, got %d", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestApp(t)
	resp := env.request(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "al",
		"password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupTestApp(t)
	env.createUser(t, "alice")

	resp := env.request(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "alice",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := setupTestApp(t)
	resp := env.request(t, http.MethodGet, "/api/jobs", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestCreateJobEnqueues(t *testing.T) {
	env := setupTestApp(t)
	userID, token := env.createUser(t, "alice")

	resp := env.request(t, http.MethodPost, "/api/jobs", token, map[string]any{
		"handle":    "nasa",
		"max_posts": 10,
		"voice_id":  "v1",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var created model.JobCreateResponse
	decodeBody(t, resp, &created)
	if created.JobID == "" || created.Status != model.JobStatusPending {
		t.Errorf("unexpected response %+v", created)
	}

	if len(env.enqueuer.tasks) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(env.enqueuer.tasks))
	}
	if env.enqueuer.tasks[0].Type() != service.TaskTypeNarrate {
		t.Errorf("wrong task type %s", env.enqueuer.tasks[0].Type())
	}

	job, err := env.store.GetJob(created.JobID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if job.UserID != userID {
		t.Errorf("job owned by %s, want %s", job.UserID, userID)
	}
}

func TestCreateJobValidation(t *testing.T) {
	env := setupTestApp(t)
	_, token := env.createUser(t, "alice")

	cases := []map[string]any{
		{"max_posts": 10, "voice_id": "v1"},                    // missing handle
		{"handle": "nasa", "voice_id": "v1"},                   // missing max_posts
		{"handle": "nasa", "max_posts": 0, "voice_id": "v1"},   // below minimum
		{"handle": "nasa", "max_posts": 101, "voice_id": "v1"}, // above maximum
		{"handle": "nasa", "max_posts": 10},                    // missing voice_id
	}
	for i, body := range cases {
		resp := env.request(t, http.MethodPost, "/api/jobs", token, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, resp.StatusCode)
		}
	}
	if len(env.enqueuer.tasks) != 0 {
		t.Errorf("invalid requests must not enqueue, got %d tasks", len(env.enqueuer.tasks))
	}
}

func TestJobStatusNotFoundForOtherUser(t *testing.T) {
	env := setupTestApp(t)
	_, aliceToken := env.createUser(t, "alice")
	_, bobToken := env.createUser(t, "bob")

	resp := env.request(t, http.MethodPost, "/api/jobs", aliceToken, map[string]any{
		"handle": "nasa", "max_posts": 5, "voice_id": "v1",
	})
	var created model.JobCreateResponse
	decodeBody(t, resp, &created)

	resp = env.request(t, http.MethodGet, "/api/jobs/"+created.JobID+"/status", bobToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("another user's job must look missing, got %d", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/api/jobs/"+created.JobID+"/status", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner should see the job, got %d", resp.StatusCode)
	}
}

func TestJobStatusReflectsWorkerState(t *testing.T) {
	env := setupTestApp(t)
	userID, token := env.createUser(t, "alice")

	job := &model.Job{
		ID:         "j1",
		UserID:     userID,
		Handle:     "nasa",
		Status:     model.JobStatusProcessing,
		Message:    "synthesizing 2/3",
		Progress:   67,
		AudioFiles: []string{"/data/audio/j1/post_0_1.mp3", "/data/audio/j1/post_1_2.mp3"},
		UpdatedAt:  time.Now().UTC(),
	}
	if err := env.store.SaveJob(job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	resp := env.request(t, http.MethodGet, "/api/jobs/j1/status", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status model.JobStatusResponse
	decodeBody(t, resp, &status)
	if status.Status != model.JobStatusProcessing || status.Progress != 67 {
		t.Errorf("unexpected status %+v", status)
	}
	if status.Message != "synthesizing 2/3" {
		t.Errorf("unexpected status message %q", status.Message)
	}
	// Audio paths are exposed as bare filenames only.
	if len(status.AudioFiles) != 2 || status.AudioFiles[0] != "post_0_1.mp3" {
		t.Errorf("unexpected audio files %v", status.AudioFiles)
	}
	if status.Error != nil {
		t.Errorf("expected no error, got %v", *status.Error)
	}
}

func TestListJobs(t *testing.T) {
	env := setupTestApp(t)
	_, token := env.createUser(t, "alice")

	for _, handle := range []string{"nasa", "esa"} {
		env.request(t, http.MethodPost, "/api/jobs", token, map[string]any{
			"handle": handle, "max_posts": 5, "voice_id": "v1",
		})
	}

	resp := env.request(t, http.MethodGet, "/api/jobs", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Jobs []model.JobSummary `json:"jobs"`
	}
	decodeBody(t, resp, &body)
	if len(body.Jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(body.Jobs))
	}
}

func TestDownloadAudioFile(t *testing.T) {
	env := setupTestApp(t)
	userID, token := env.createUser(t, "alice")

	audioDir := env.store.AudioDir("j1")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		t.Fatalf("failed to create audio dir: %v", err)
	}
	audioPath := filepath.Join(audioDir, "post_0_1.mp3")
	if err := os.WriteFile(audioPath, []byte("mp3-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}

	job := &model.Job{
		ID:         "j1",
		UserID:     userID,
		Status:     model.JobStatusCompleted,
		AudioFiles: []string{audioPath},
	}
	if err := env.store.SaveJob(job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	resp := env.request(t, http.MethodGet, "/api/jobs/j1/download/post_0_1.mp3", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(data) != "mp3-bytes" {
		t.Errorf("unexpected payload %q", data)
	}

	// A filename outside the job's audio list is not served.
	resp = env.request(t, http.MethodGet, "/api/jobs/j1/download/other.mp3", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown filename, got %d", resp.StatusCode)
	}
}

func TestDeleteJobThenStatus404(t *testing.T) {
	env := setupTestApp(t)
	_, token := env.createUser(t, "alice")

	resp := env.request(t, http.MethodPost, "/api/jobs", token, map[string]any{
		"handle": "nasa", "max_posts": 5, "voice_id": "v1",
	})
	var created model.JobCreateResponse
	decodeBody(t, resp, &created)

	resp = env.request(t, http.MethodDelete, "/api/jobs/"+created.JobID, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/api/jobs/"+created.JobID+"/status", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}

	resp = env.request(t, http.MethodDelete, "/api/jobs/"+created.JobID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for double delete, got %d", resp.StatusCode)
	}
}

func TestCredentialUpdateAndStatus(t *testing.T) {
	env := setupTestApp(t)
	_, token := env.createUser(t, "alice")

	resp := env.request(t, http.MethodPut, "/api/credentials", token, map[string]any{
		"credentials": map[string]string{
			model.CredElevenLabsAPIKey: "el-key",
			model.CredVisionAPIKey:     "vi-key",
		},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/api/credentials", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status model.CredentialStatusResponse
	decodeBody(t, resp, &status)
	if !status.Configured[model.CredElevenLabsAPIKey] || !status.Configured[model.CredVisionAPIKey] {
		t.Errorf("expected keys configured: %v", status.Configured)
	}
	if status.Configured[model.CredScrapeEmail] {
		t.Errorf("unset key reported configured: %v", status.Configured)
	}

	// Clearing a key with an empty value.
	resp = env.request(t, http.MethodPut, "/api/credentials", token, map[string]any{
		"credentials": map[string]string{model.CredVisionAPIKey: ""},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = env.request(t, http.MethodGet, "/api/credentials", token, nil)
	decodeBody(t, resp, &status)
	if status.Configured[model.CredVisionAPIKey] {
		t.Error("cleared key still reported configured")
	}
}

func TestCredentialUpdateRejectsUnknownKeys(t *testing.T) {
	env := setupTestApp(t)
	_, token := env.createUser(t, "alice")

	resp := env.request(t, http.MethodPut, "/api/credentials", token, map[string]any{
		"credentials": map[string]string{"random_key": "value"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown key, got %d", resp.StatusCode)
	}
}

func TestVoicesRequireStoredKey(t *testing.T) {
	env := setupTestApp(t)
	_, token := env.createUser(t, "alice")

	resp := env.request(t, http.MethodGet, "/api/voices", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without a speech key, got %d", resp.StatusCode)
	}

	env.request(t, http.MethodPut, "/api/credentials", token, map[string]any{
		"credentials": map[string]string{model.CredElevenLabsAPIKey: "el-key"},
	})

	resp = env.request(t, http.MethodGet, "/api/voices", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body model.VoiceListResponse
	decodeBody(t, resp, &body)
	if len(body.Voices) != 1 || body.Voices[0].VoiceID != "v1" {
		t.Errorf("unexpected voices %+v", body.Voices)
	}
}

func TestVoicesUpstreamFailure(t *testing.T) {
	env := setupTestApp(t)
	_, token := env.createUser(t, "alice")
	env.request(t, http.MethodPut, "/api/credentials", token, map[string]any{
		"credentials": map[string]string{model.CredElevenLabsAPIKey: "el-key"},
	})

	env.voices.err = &client.SynthesisError{StatusCode: 500, Message: "provider down"}
	resp := env.request(t, http.MethodGet, "/api/voices", token, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 on upstream failure, got %d", resp.StatusCode)
	}
}
