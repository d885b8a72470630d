// Package speech turns scraped posts into text that reads naturally when
// synthesized: URLs, hashtags and mentions are rendered speakably and
// video presence is announced rather than spelled out.
package speech

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	videoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)piped\S*`),
		regexp.MustCompile(`(?i)youtube\S*`),
		regexp.MustCompile(`(?i)youtu\.be\S*`),
		regexp.MustCompile(`(?i)vimeo\S*`),
		regexp.MustCompile(`(?i)video\S*`),
		regexp.MustCompile(`(?i)watch\?v=\S*`),
	}
	urlPattern   = regexp.MustCompile(`https?://\S+`)
	spacePattern = regexp.MustCompile(`\s+`)
	datePattern  = regexp.MustCompile(`^([A-Za-z]+ \d+, \d{4})`)
)

// FormatPost renders a post's text for synthesis. hasVideo should be true
// when the post carries video media; video-looking link text also counts.
func FormatPost(text, timestamp string, hasVideo bool, now time.Time) string {
	hasVideoText := false
	for _, p := range videoPatterns {
		if p.MatchString(text) {
			hasVideoText = true
			text = p.ReplaceAllString(text, "")
		}
	}

	text = urlPattern.ReplaceAllString(text, " there is a link ")
	text = strings.ReplaceAll(text, "#", " hashtag ")
	text = strings.ReplaceAll(text, "@", " at ")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))

	formatted := text
	if timestamp != "" {
		formatted = fmt.Sprintf("Post from %s: %s", TimeAgo(timestamp, now), text)
	}
	if hasVideo || hasVideoText {
		formatted += " There is a video in this post."
	}
	return formatted
}

// TimeAgo converts a mirror-style timestamp ("Jun 10, 2024 · 10:18 PM UTC")
// into a relative phrase. Unparseable timestamps are returned unchanged.
func TimeAgo(timestamp string, now time.Time) string {
	m := datePattern.FindStringSubmatch(timestamp)
	if m == nil {
		return timestamp
	}

	postDate, err := time.Parse("Jan 2, 2006", m[1])
	if err != nil {
		return timestamp
	}

	days := int(now.Sub(postDate).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
