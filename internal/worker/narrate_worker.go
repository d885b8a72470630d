package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tweedhat/api/internal/client"
	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/scraper"
	"github.com/tweedhat/api/internal/service"
	"github.com/tweedhat/api/internal/speech"
	"github.com/tweedhat/api/internal/storage"
)

// CredentialError means a required key was missing before any network
// call was attempted.
type CredentialError struct {
	Key string
}

func (e *CredentialError) Error() string {
	switch e.Key {
	case model.CredElevenLabsAPIKey:
		return "ElevenLabs API key not found"
	default:
		return fmt.Sprintf("credential %s not found", e.Key)
	}
}

// ProgressNotifier pushes live job updates to connected clients.
type ProgressNotifier interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, action string)
	BroadcastComplete(jobID string, audioFiles []string)
	BroadcastError(jobID, code, message string)
}

// NarrateWorker runs the scrape → describe → synthesize pipeline for one
// job per task. Collaborators are injected so tests can swap in fakes.
type NarrateWorker struct {
	store       *storage.Store
	scraper     scraper.Scraper
	describer   client.Describer
	synthesizer client.Synthesizer
	notifier    ProgressNotifier
}

// NewNarrateWorker creates a narrate worker.
func NewNarrateWorker(store *storage.Store, sc scraper.Scraper, describer client.Describer, synthesizer client.Synthesizer, notifier ProgressNotifier) *NarrateWorker {
	return &NarrateWorker{
		store:       store,
		scraper:     sc,
		describer:   describer,
		synthesizer: synthesizer,
		notifier:    notifier,
	}
}

// ProcessTask handles one narrate task. Job-level failures are recorded
// on the job and swallowed; returning an error would only make asynq
// retry work that is not idempotent.
func (w *NarrateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.NarrateTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	job, err := w.store.GetJob(payload.JobID)
	if err != nil {
		log.Printf("Job %s: not found, dropping task: %v", payload.JobID, err)
		return nil
	}
	if job.Status.IsTerminal() {
		log.Printf("Job %s: already %s, dropping task", job.ID, job.Status)
		return nil
	}

	log.Printf("Job %s: starting narration for @%s (max %d posts)", job.ID, job.Handle, job.MaxPosts)
	if err := w.run(ctx, job); err != nil {
		w.failJob(job, err)
		return nil
	}
	log.Printf("Job %s: completed with %d audio files", job.ID, len(job.AudioFiles))
	return nil
}

func (w *NarrateWorker) run(ctx context.Context, job *model.Job) error {
	user, err := w.store.GetUser(job.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", job.UserID, err)
	}

	// Required credential check happens before any network call.
	speechKey := user.Credential(model.CredElevenLabsAPIKey)
	if speechKey == "" {
		return &CredentialError{Key: model.CredElevenLabsAPIKey}
	}

	job.SetStatus(model.JobStatusScraping)
	job.ApplyProgress(model.ScrapingProgress{Stage: "scraping"})
	w.saveAndNotify(job, "scraping posts")

	var creds *scraper.Credentials
	if email := user.Credential(model.CredScrapeEmail); email != "" {
		creds = &scraper.Credentials{
			Email:    email,
			Password: user.Credential(model.CredScrapePassword),
		}
	}

	posts, err := w.scraper.Scrape(ctx, job.Handle, job.MaxPosts, creds)
	if err != nil {
		return err
	}
	log.Printf("Job %s: scraped %d posts from @%s", job.ID, len(posts), job.Handle)

	archive := &model.PostArchive{
		Handle:    job.Handle,
		ScrapedAt: time.Now().UTC().Format(time.RFC3339),
		Posts:     posts,
	}
	postFile, err := w.store.SavePostArchive(job.ID, archive)
	if err != nil {
		return fmt.Errorf("failed to save posts: %w", err)
	}
	job.PostFile = postFile

	job.SetStatus(model.JobStatusScraped)
	job.ApplyProgress(model.ScrapedProgress{PostCount: len(posts)})
	w.saveAndNotify(job, "scrape finished")

	// An empty profile is a successful, empty result.
	if len(posts) == 0 {
		job.SetStatus(model.JobStatusCompleted)
		job.Message = "no posts found"
		w.save(job)
		w.notifyComplete(job)
		return nil
	}

	job.SetStatus(model.JobStatusGeneratingAudio)
	w.saveAndNotify(job, "generating audio")

	audioDir := w.store.AudioDir(job.ID)
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audio dir: %w", err)
	}

	visionKey := user.Credential(model.CredVisionAPIKey)
	total := len(posts)

	for i, post := range posts {
		job.SetStatus(model.JobStatusProcessing)
		job.ApplyProgress(model.ProcessingProgress{
			CurrentPost:   i + 1,
			TotalPosts:    total,
			CurrentAction: "formatting",
		})
		w.saveAndNotify(job, fmt.Sprintf("processing post %d/%d", i+1, total))

		text := speech.FormatPost(post.Text, post.Timestamp, post.HasVideo, time.Now())

		if job.DescribeImages {
			job.ApplyProgress(model.ProcessingProgress{
				CurrentPost:   i + 1,
				TotalPosts:    total,
				CurrentAction: "describing_images",
			})
			w.saveAndNotify(job, fmt.Sprintf("describing images %d/%d", i+1, total))
			text += w.describeMedia(ctx, job, visionKey, post.MediaURLs)
		}

		job.ApplyProgress(model.ProcessingProgress{
			CurrentPost:   i + 1,
			TotalPosts:    total,
			CurrentAction: "synthesizing",
		})
		w.saveAndNotify(job, fmt.Sprintf("synthesizing %d/%d", i+1, total))

		audio, err := w.synthesizer.Synthesize(ctx, speechKey, job.VoiceID, text)
		if err != nil {
			// Already-written audio files stay; the job stops here.
			return err
		}

		filename := fmt.Sprintf("post_%d_%s.mp3", i, post.ID)
		path := filepath.Join(audioDir, filename)
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return fmt.Errorf("failed to write audio file: %w", err)
		}

		job.AddAudioFile(path)
		job.SetProgress(int(math.Round(100 * float64(i+1) / float64(total))))
		w.saveAndNotify(job, fmt.Sprintf("processed %d/%d", i+1, total))
	}

	job.SetStatus(model.JobStatusCompleted)
	job.Message = fmt.Sprintf("narrated %d posts", total)
	w.save(job)
	w.notifyComplete(job)
	return nil
}

// describeMedia asks the vision model about each image of a post.
// Failures here are per-image and never abort the job; the post just
// proceeds to synthesis without the description.
func (w *NarrateWorker) describeMedia(ctx context.Context, job *model.Job, visionKey string, mediaURLs []string) string {
	if len(mediaURLs) == 0 || w.describer == nil {
		return ""
	}
	if visionKey == "" {
		log.Printf("Job %s: vision API key not set, skipping image descriptions", job.ID)
		return ""
	}

	var previews, images []string
	for _, u := range mediaURLs {
		if rest, ok := strings.CutPrefix(u, "video_preview:"); ok {
			previews = append(previews, rest)
		} else if isImageURL(u) {
			images = append(images, u)
		}
	}

	var b strings.Builder
	for i, u := range previews {
		desc, err := w.describer.Describe(ctx, visionKey, u, client.VideoPreviewPrompt)
		if err != nil {
			log.Printf("Job %s: %v", job.ID, err)
			continue
		}
		if len(previews) > 1 {
			fmt.Fprintf(&b, " Video %d appears to show: %s", i+1, desc)
		} else {
			fmt.Fprintf(&b, " The video appears to show: %s", desc)
		}
	}
	for i, u := range images {
		desc, err := w.describer.Describe(ctx, visionKey, u, "")
		if err != nil {
			log.Printf("Job %s: %v", job.ID, err)
			continue
		}
		if len(images) > 1 {
			fmt.Fprintf(&b, " Image %d: %s", i+1, desc)
		} else {
			fmt.Fprintf(&b, " The image shows: %s", desc)
		}
	}
	return b.String()
}

func isImageURL(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+"?") {
			return true
		}
	}
	return false
}

func (w *NarrateWorker) failJob(job *model.Job, cause error) {
	log.Printf("Job %s: failed: %v", job.ID, cause)
	job.Fail(cause)
	w.save(job)
	if w.notifier != nil {
		w.notifier.BroadcastError(job.ID, "JOB_FAILED", cause.Error())
	}
}

func (w *NarrateWorker) save(job *model.Job) {
	if err := w.store.SaveJob(job); err != nil {
		log.Printf("Job %s: failed to persist update: %v", job.ID, err)
	}
}

func (w *NarrateWorker) saveAndNotify(job *model.Job, action string) {
	job.Message = action
	w.save(job)
	if w.notifier != nil {
		w.notifier.BroadcastProgress(job.ID, job.Progress, job.Status, action)
	}
}

func (w *NarrateWorker) notifyComplete(job *model.Job) {
	if w.notifier != nil {
		w.notifier.BroadcastComplete(job.ID, job.AudioFiles)
	}
}
