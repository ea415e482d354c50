package research

import (
	"context"
	"fmt"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/types"
)

// Source lists candidate posts from one subreddit.
type Source interface {
	TopPosts(ctx context.Context, subreddit string, limit int) ([]types.RawPost, error)
	Ping(ctx context.Context, subreddit string) error
}

// RedditSource reads top-of-day posts through the Reddit API.
type RedditSource struct {
	client *reddit.Client
}

// NewRedditSource uses script-app credentials when a username and password are
// configured and falls back to the read-only client otherwise.
func NewRedditSource(cfg config.RedditConfig) (*RedditSource, error) {
	opts := []reddit.Opt{reddit.WithUserAgent(cfg.UserAgent)}

	var (
		client *reddit.Client
		err    error
	)
	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.Username != "" && cfg.Password != "" {
		client, err = reddit.NewClient(reddit.Credentials{
			ID:       cfg.ClientID,
			Secret:   cfg.ClientSecret,
			Username: cfg.Username,
			Password: cfg.Password,
		}, opts...)
	} else {
		client, err = reddit.NewReadonlyClient(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &RedditSource{client: client}, nil
}

func (s *RedditSource) TopPosts(ctx context.Context, subreddit string, limit int) ([]types.RawPost, error) {
	posts, _, err := s.client.Subreddit.TopPosts(ctx, subreddit, &reddit.ListPostOptions{
		ListOptions: reddit.ListOptions{Limit: limit},
		Time:        "day",
	})
	if err != nil {
		return nil, fmt.Errorf("r/%s top posts: %w", subreddit, err)
	}

	out := make([]types.RawPost, 0, len(posts))
	for _, p := range posts {
		if p == nil || !p.IsSelfPost {
			continue
		}
		out = append(out, postFromReddit(p))
	}
	return out, nil
}

func (s *RedditSource) Ping(ctx context.Context, subreddit string) error {
	if _, _, err := s.client.Subreddit.Get(ctx, subreddit); err != nil {
		return fmt.Errorf("reddit r/%s: %w", subreddit, err)
	}
	return nil
}

func postFromReddit(p *reddit.Post) types.RawPost {
	var created time.Time
	if p.Created != nil {
		created = p.Created.Time.UTC()
	}
	// the API client does not expose award counts
	return types.RawPost{
		RedditID:    p.ID,
		Subreddit:   p.SubredditName,
		Title:       p.Title,
		Body:        p.Body,
		Author:      p.Author,
		Permalink:   "https://reddit.com" + p.Permalink,
		CreatedAt:   created,
		Upvotes:     p.Score,
		Comments:    p.NumberOfComments,
		UpvoteRatio: float64(p.UpvoteRatio),
	}
}
