package types

import (
	"strings"
	"time"
)

// RawPost is a text post as fetched from Reddit. It is never mutated after fetch.
type RawPost struct {
	RedditID    string    `json:"reddit_id"`
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	Permalink   string    `json:"permalink"`
	CreatedAt   time.Time `json:"created_at"`
	Upvotes     int       `json:"upvotes"`
	Comments    int       `json:"comments"`
	UpvoteRatio float64   `json:"upvote_ratio"`
	Awards      int       `json:"awards"`
}

// HoursOld returns the post age relative to now, floored at zero.
func (p RawPost) HoursOld(now time.Time) float64 {
	h := now.Sub(p.CreatedAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// WordCount is the whitespace token count of the body.
func (p RawPost) WordCount() int {
	return len(strings.Fields(p.Body))
}

// ScoredStory is a RawPost after scoring, as held by storage.
type ScoredStory struct {
	ID string `json:"id"`
	RawPost
	WordCount     int         `json:"word_count"`
	Sentiment     float64     `json:"sentiment"`
	ViralityScore float64     `json:"virality_score"`
	Status        StoryStatus `json:"status"`
	ScrapedAt     time.Time   `json:"scraped_at"`
}

// CleanedStory is the normalized view of a selected story. It is not persisted.
type CleanedStory struct {
	ID            string  `json:"id"`
	RedditID      string  `json:"reddit_id"`
	Title         string  `json:"title"`
	Body          string  `json:"body"`
	FullText      string  `json:"full_text"`
	WordCount     int     `json:"word_count"`
	CharCount     int     `json:"char_count"`
	ViralityScore float64 `json:"virality_score"`

	// SourceBody keeps the unnormalized body so paragraph-level
	// markers (TL;DR blocks, separators) survive until scripting.
	SourceBody string `json:"-"`
}

// VideoArtifact is one rendered video awaiting or past review.
type VideoArtifact struct {
	ID              string      `json:"id"`
	StoryID         string      `json:"story_id"`
	Path            string      `json:"path"`
	URL             string      `json:"url"`
	DurationSeconds float64     `json:"duration_seconds"`
	SizeBytes       int64       `json:"size_bytes"`
	Status          VideoStatus `json:"status"`
	ApprovedBy      string      `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time  `json:"approved_at,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// VideoListing is a video joined with the story fields the review surface shows.
type VideoListing struct {
	VideoArtifact
	RedditID      string  `json:"reddit_id"`
	StoryTitle    string  `json:"story_title"`
	StoryBody     string  `json:"story_body"`
	ViralityScore float64 `json:"virality_score"`
}

// Decision is a single reviewer verdict on a video.
type Decision struct {
	Status VideoStatus
	Actor  string
	Reason string
	At     time.Time
}

// PlatformPost tracks a video's state on a downstream platform.
type PlatformPost struct {
	ID          string             `json:"id"`
	VideoID     string             `json:"video_id"`
	Platform    string             `json:"platform"`
	Status      PlatformPostStatus `json:"status"`
	URL         string             `json:"url,omitempty"`
	Error       string             `json:"error,omitempty"`
	PublishedAt *time.Time         `json:"published_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// StoryResult records what happened to one story in a batch run.
type StoryResult struct {
	StoryID string  `json:"story_id"`
	Title   string  `json:"title"`
	VideoID string  `json:"video_id,omitempty"`
	Path    string  `json:"path,omitempty"`
	Seconds float64 `json:"duration_seconds,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// RunState tracks the full state of one batch run
type RunState struct {
	RunID       string        `json:"run_id"`
	StartedAt   string        `json:"started_at"`
	CompletedAt string        `json:"completed_at"`
	Scraped     int           `json:"scraped"`
	Selected    int           `json:"selected"`
	Results     []StoryResult `json:"results"`
	Error       string        `json:"error,omitempty"`
}

// Succeeded counts results without an error.
func (s *RunState) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Error == "" {
			n++
		}
	}
	return n
}
