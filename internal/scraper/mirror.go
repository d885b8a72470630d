package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tweedhat/api/internal/model"
)

// MirrorStrategy scrapes a nitter-style mirror front end that serves the
// same public content as HTML, without authentication. Used as the
// fallback when the primary site blocks or fails.
type MirrorStrategy struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewMirrorStrategy creates the mirror-site strategy.
func NewMirrorStrategy(baseURL, userAgent string, timeout time.Duration) *MirrorStrategy {
	return &MirrorStrategy{baseURL: baseURL, userAgent: userAgent, timeout: timeout}
}

func (s *MirrorStrategy) Name() string { return "mirror" }

func (s *MirrorStrategy) Fetch(ctx context.Context, handle string, maxPosts int, _ *Credentials) ([]model.Post, error) {
	endpoint := s.baseURL + "/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	client := &http.Client{Timeout: s.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mirror timeline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrBlocked
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mirror returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mirror page: %w", err)
	}

	if findFirst(doc, "div", "error-panel") != nil {
		return nil, ErrBlocked
	}

	var posts []model.Post
	for i, item := range findAll(doc, "div", "timeline-item") {
		if len(posts) >= maxPosts {
			break
		}
		post := s.extractPost(item, i)
		if post.Text == "" && len(post.MediaURLs) == 0 {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *MirrorStrategy) extractPost(item *html.Node, index int) model.Post {
	post := model.Post{
		ID:     "unknown_" + strconv.Itoa(index),
		Source: "mirror",
	}

	if link := findFirst(item, "a", "tweet-link"); link != nil {
		if id := statusIDFromHref(attr(link, "href")); id != "" {
			post.ID = id
		}
	}
	if content := findFirst(item, "div", "tweet-content"); content != nil {
		post.Text = strings.TrimSpace(textContent(content))
	}
	if date := findFirst(item, "span", "tweet-date"); date != nil {
		if a := findFirst(date, "a", ""); a != nil {
			post.Timestamp = attr(a, "title")
		}
	}
	for _, img := range findAll(item, "a", "still-image") {
		if href := attr(img, "href"); href != "" {
			post.MediaURLs = append(post.MediaURLs, s.absoluteURL(href))
		}
	}
	if findFirst(item, "div", "video-container") != nil {
		post.HasVideo = true
	}

	stats := findAll(item, "span", "tweet-stat")
	counts := make([]int, 0, len(stats))
	for _, stat := range stats {
		n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(textContent(stat)), ",", ""))
		if err != nil {
			n = 0
		}
		counts = append(counts, n)
	}
	// Mirror stat order is comments, retweets, quotes, likes.
	if len(counts) > 0 {
		post.Replies = counts[0]
	}
	if len(counts) > 1 {
		post.Reposts = counts[1]
	}
	if len(counts) > 3 {
		post.Likes = counts[3]
	} else if len(counts) > 2 {
		post.Likes = counts[2]
	}
	return post
}

func (s *MirrorStrategy) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.baseURL + href
}

// statusIDFromHref pulls the numeric id from a "/user/status/123#m" link.
func statusIDFromHref(href string) string {
	idx := strings.LastIndex(href, "/status/")
	if idx < 0 {
		return ""
	}
	id := href[idx+len("/status/"):]
	if hash := strings.IndexByte(id, '#'); hash >= 0 {
		id = id[:hash]
	}
	return id
}

// HTML helpers. The mirror's markup varies between instances, so matching
// is by element name and class only, walking the whole subtree.

func hasClass(n *html.Node, class string) bool {
	if class == "" {
		return true
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func findAll(root *html.Node, element, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == element && hasClass(n, class) {
			out = append(out, n)
			return // do not descend into a match; items do not nest
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, element, class string) *html.Node {
	matches := findAll(root, element, class)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
