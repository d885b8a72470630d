package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tweedhat/api/internal/model"
)

// PrimaryStrategy fetches the primary site's public timeline JSON
// endpoint. When login credentials are supplied it authenticates first,
// which lifts the site's anonymous result cap. Each Fetch uses its own
// cookie jar so concurrent jobs never share session state.
type PrimaryStrategy struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewPrimaryStrategy creates the primary-site strategy.
func NewPrimaryStrategy(baseURL, userAgent string, timeout time.Duration) *PrimaryStrategy {
	return &PrimaryStrategy{baseURL: baseURL, userAgent: userAgent, timeout: timeout}
}

func (s *PrimaryStrategy) Name() string { return "primary" }

// timelineResponse is the shape of the timeline endpoint's payload.
type timelineResponse struct {
	Timeline []struct {
		ID        string `json:"id_str"`
		FullText  string `json:"full_text"`
		CreatedAt string `json:"created_at"`
		Entities  struct {
			Media []struct {
				MediaURL string `json:"media_url_https"`
				Type     string `json:"type"`
			} `json:"media"`
		} `json:"entities"`
		FavoriteCount int `json:"favorite_count"`
		RetweetCount  int `json:"retweet_count"`
		ReplyCount    int `json:"reply_count"`
	} `json:"timeline"`
}

func (s *PrimaryStrategy) Fetch(ctx context.Context, handle string, maxPosts int, creds *Credentials) ([]model.Post, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := &http.Client{Timeout: s.timeout, Jar: jar}

	if creds != nil && creds.Email != "" && creds.Password != "" {
		if err := s.login(ctx, client, creds); err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/timeline/profile/%s?limit=%d", s.baseURL, url.PathEscape(handle), maxPosts)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timeline: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrBlocked
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("timeline returned status %d", resp.StatusCode)
	}

	var tl timelineResponse
	if err := json.Unmarshal(body, &tl); err != nil {
		return nil, fmt.Errorf("failed to parse timeline: %w", err)
	}

	posts := make([]model.Post, 0, len(tl.Timeline))
	for i, item := range tl.Timeline {
		if len(posts) >= maxPosts {
			break
		}
		id := item.ID
		if id == "" {
			id = "unknown_" + strconv.Itoa(i)
		}
		post := model.Post{
			ID:        id,
			Text:      item.FullText,
			Timestamp: item.CreatedAt,
			Likes:     item.FavoriteCount,
			Reposts:   item.RetweetCount,
			Replies:   item.ReplyCount,
			Source:    "primary",
		}
		for _, m := range item.Entities.Media {
			if m.MediaURL == "" {
				continue
			}
			if m.Type == "video" || m.Type == "animated_gif" {
				post.HasVideo = true
				post.MediaURLs = append(post.MediaURLs, "video_preview:"+m.MediaURL)
			} else {
				post.MediaURLs = append(post.MediaURLs, m.MediaURL)
			}
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *PrimaryStrategy) login(ctx context.Context, client *http.Client, creds *Credentials) error {
	form := url.Values{}
	form.Set("email", creds.Email)
	form.Set("password", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/session", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("login returned status %d", resp.StatusCode)
	}
	return nil
}
