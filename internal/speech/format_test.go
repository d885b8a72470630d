package speech

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, time.June, 12, 15, 0, 0, 0, time.UTC)

func TestFormatPostReplacesURLs(t *testing.T) {
	got := FormatPost("check this out https://example.com/a/b", "", false, testNow)
	if got != "check this out there is a link" {
		t.Errorf("got %q", got)
	}
}

func TestFormatPostSpeaksHashtagsAndMentions(t *testing.T) {
	got := FormatPost("big news from @nasa #space", "", false, testNow)
	if got != "big news from at nasa hashtag space" {
		t.Errorf("got %q", got)
	}
}

func TestFormatPostAnnouncesVideo(t *testing.T) {
	got := FormatPost("launch replay", "", true, testNow)
	if !strings.HasSuffix(got, " There is a video in this post.") {
		t.Errorf("missing video announcement: %q", got)
	}
}

func TestFormatPostDetectsVideoLinkText(t *testing.T) {
	got := FormatPost("watch it on youtube.com/xyz", "", false, testNow)
	if !strings.Contains(got, "There is a video in this post.") {
		t.Errorf("video link text not announced: %q", got)
	}
	if strings.Contains(got, "youtube") {
		t.Errorf("video link text not stripped: %q", got)
	}
}

func TestFormatPostPrefixesTimestamp(t *testing.T) {
	got := FormatPost("hello world", "Jun 10, 2024 · 10:18 PM UTC", false, testNow)
	if got != "Post from 2 days ago: hello world" {
		t.Errorf("got %q", got)
	}
}

func TestFormatPostCollapsesWhitespace(t *testing.T) {
	got := FormatPost("a \n\n b\t\tc", "", false, testNow)
	if got != "a b c" {
		t.Errorf("got %q", got)
	}
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		timestamp string
		want      string
	}{
		{"Jun 12, 2024 · 9:00 AM UTC", "today"},
		{"Jun 11, 2024 · 9:00 AM UTC", "yesterday"},
		{"Jun 2, 2024 · 9:00 AM UTC", "10 days ago"},
		{"not a date", "not a date"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TimeAgo(tt.timestamp, testNow); got != tt.want {
			t.Errorf("TimeAgo(%q) = %q, want %q", tt.timestamp, got, tt.want)
		}
	}
}
