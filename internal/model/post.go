package model

// Post is one scraped content item. Posts live only for the duration of
// a job (persisted as the job's posts artifact); audio file index N always
// corresponds to post index N, so order must survive the whole pipeline.
type Post struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Timestamp string   `json:"timestamp,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
	HasVideo  bool     `json:"has_video,omitempty"`
	Likes     int      `json:"likes"`
	Reposts   int      `json:"reposts"`
	Replies   int      `json:"replies"`
	Source    string   `json:"source,omitempty"`
}

// PostArchive is the on-disk artifact produced by a completed scrape.
type PostArchive struct {
	Handle    string `json:"handle"`
	ScrapedAt string `json:"scraped_at"`
	Posts     []Post `json:"posts"`
}
