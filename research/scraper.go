// Package research fetches, filters and scores Reddit stories and stores them for selection.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
	"reddit-shorts-pipeline/scoring"
	"reddit-shorts-pipeline/storage"
	"reddit-shorts-pipeline/types"
)

// Store is the slice of storage the scraper writes to.
type Store interface {
	InsertStory(ctx context.Context, s types.ScoredStory) error
}

// Scraper holds all scraping dependencies
type Scraper struct {
	cfg       config.RedditConfig
	source    Source
	store     Store
	scorer    *scoring.Scorer
	sentiment Analyzer
	logger    *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func New(cfg *config.Config, source Source, store Store, sentiment Analyzer, logger *slog.Logger) *Scraper {
	if sentiment == nil {
		sentiment = NewVaderAnalyzer()
	}
	return &Scraper{
		cfg:       cfg.Reddit,
		source:    source,
		store:     store,
		scorer:    scoring.New(cfg.Virality),
		sentiment: sentiment,
		logger:    logging.Component(logger, "research"),
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepCtx,
	}
}

// Fetch returns up to limit scored stories across the configured subreddits.
// It over-fetches twice the limit from each subreddit to leave room for the
// filters. limit <= 0 uses reddit.posts_per_run.
func (s *Scraper) Fetch(ctx context.Context, limit int) ([]types.ScoredStory, error) {
	if limit <= 0 {
		limit = s.cfg.PostsPerRun
	}

	var (
		stories []types.ScoredStory
		errs    []error
	)
	for _, sub := range s.cfg.Subreddits {
		if len(stories) >= limit {
			break
		}
		s.logger.Info("fetching top posts", "subreddit", sub, "limit", limit)

		posts, err := s.source.TopPosts(ctx, sub, limit*2)
		if err != nil {
			s.logger.Error("subreddit fetch failed", "subreddit", sub, "err", err)
			errs = append(errs, err)
			continue
		}

		for _, p := range posts {
			story, ok := s.accept(p)
			if !ok {
				continue
			}
			stories = append(stories, story)
			if len(stories) >= limit {
				break
			}
			if err := s.sleep(ctx, s.cfg.FetchDelay); err != nil {
				return stories, err
			}
		}
	}

	if len(stories) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	s.logger.Info("fetched valid stories", "count", len(stories))
	return stories, nil
}

// accept applies the ingestion filters and scores posts that pass.
func (s *Scraper) accept(p types.RawPost) (types.ScoredStory, bool) {
	if p.Body == "" || p.Body == "[removed]" || p.Body == "[deleted]" {
		return types.ScoredStory{}, false
	}
	now := s.now()
	hours := p.HoursOld(now)
	if hours < s.cfg.MinHoursOld {
		return types.ScoredStory{}, false
	}
	if p.Upvotes < s.cfg.MinUpvotes {
		return types.ScoredStory{}, false
	}
	words := p.WordCount()
	if s.cfg.MaxWords > 0 && words > s.cfg.MaxWords {
		s.logger.Debug("skipping long post", "reddit_id", p.RedditID, "words", words)
		return types.ScoredStory{}, false
	}

	sentiment := s.sentiment.Polarity(p.Body)
	score := s.scorer.Score(scoring.Metrics{
		Upvotes:     p.Upvotes,
		Comments:    p.Comments,
		UpvoteRatio: p.UpvoteRatio,
		Awards:      p.Awards,
		WordCount:   words,
		HoursOld:    hours,
		Sentiment:   sentiment,
	})

	return types.ScoredStory{
		ID:            uuid.NewString(),
		RawPost:       p,
		WordCount:     words,
		Sentiment:     sentiment,
		ViralityScore: score,
		Status:        types.StoryScraped,
		ScrapedAt:     now,
	}, true
}

// Save stores stories with status scraped and returns how many were written.
// Duplicates and per-story failures are logged and skipped.
func (s *Scraper) Save(ctx context.Context, stories []types.ScoredStory) (int, error) {
	saved := 0
	for i, story := range stories {
		err := s.store.InsertStory(ctx, story)
		switch {
		case err == nil:
			saved++
		case errors.Is(err, storage.ErrDuplicate):
			s.logger.Debug("story already stored", "reddit_id", story.RedditID)
		default:
			s.logger.Error("save story failed", "reddit_id", story.RedditID, "err", err)
		}

		if i < len(stories)-1 {
			if err := s.sleep(ctx, s.cfg.SaveDelay); err != nil {
				return saved, err
			}
		}
	}
	s.logger.Info("saved stories", "saved", saved, "total", len(stories))
	return saved, nil
}

// ScrapeAndSave fetches up to limit stories and stores them.
func (s *Scraper) ScrapeAndSave(ctx context.Context, limit int) (int, error) {
	s.logger.Info("starting reddit scrape")

	stories, err := s.Fetch(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(stories) == 0 {
		s.logger.Warn("no stories fetched")
		return 0, nil
	}
	return s.Save(ctx, stories)
}

// Check verifies that every configured subreddit is reachable.
func (s *Scraper) Check(ctx context.Context) error {
	var errs []error
	for _, sub := range s.cfg.Subreddits {
		if err := s.source.Ping(ctx, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
