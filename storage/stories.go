package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"reddit-shorts-pipeline/types"
)

var storyColumns = []string{
	"id", "reddit_id", "subreddit", "title", "body", "author", "permalink", "created_utc",
	"upvotes", "comments", "upvote_ratio", "awards", "word_count", "sentiment",
	"virality_score", "status", "scraped_at",
}

// InsertStory stores a newly scraped story. A story whose reddit ID is already
// stored returns ErrDuplicate.
func (r *Repository) InsertStory(ctx context.Context, s types.ScoredStory) error {
	if s.Status == "" {
		s.Status = types.StoryScraped
	}
	if s.ScrapedAt.IsZero() {
		s.ScrapedAt = r.now()
	}
	now := formatTime(r.now())

	_, err := r.exec(ctx, r.sb.Insert("stories").
		Columns(append(storyColumns, "updated_at")...).
		Values(
			s.ID, s.RedditID, s.Subreddit, s.Title, s.Body, s.Author, s.Permalink, formatTime(s.CreatedAt),
			s.Upvotes, s.Comments, s.UpvoteRatio, s.Awards, s.WordCount, s.Sentiment,
			s.ViralityScore, string(s.Status), formatTime(s.ScrapedAt), now,
		))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: story %s", ErrDuplicate, s.RedditID)
		}
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

// StoriesByStatus returns stories in status ordered by virality score, highest
// first, ties in scrape order. limit <= 0 returns all.
func (r *Repository) StoriesByStatus(ctx context.Context, status types.StoryStatus, limit int) ([]types.ScoredStory, error) {
	q := r.sb.Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("virality_score DESC", "scraped_at ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	var out []types.ScoredStory
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *Repository) StoryByID(ctx context.Context, id string) (types.ScoredStory, error) {
	return r.storyByID(ctx, r.db, id)
}

func (r *Repository) storyByID(ctx context.Context, db dbtx, id string) (types.ScoredStory, error) {
	query, args, err := r.sb.Select(storyColumns...).From("stories").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return types.ScoredStory{}, fmt.Errorf("build query: %w", err)
	}
	s, err := scanStory(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.ScoredStory{}, fmt.Errorf("%w: story %s", ErrNotFound, id)
	}
	return s, err
}

// UpdateStoryStatus moves a story forward. Repeating the current status is a
// no-op; backwards moves return types.ErrInvalidTransition.
func (r *Repository) UpdateStoryStatus(ctx context.Context, id string, to types.StoryStatus) error {
	return r.updateStoryStatus(ctx, r.db, id, to)
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) updateStoryStatus(ctx context.Context, db dbtx, id string, to types.StoryStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", types.ErrInvalidTransition, to)
	}
	from := make([]string, 0, 4)
	for _, s := range types.Predecessors(to) {
		from = append(from, string(s))
	}

	query, args, err := r.sb.Update("stories").
		Set("status", string(to)).
		Set("updated_at", formatTime(r.now())).
		Where(sq.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update story status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	current, err := r.storyByID(ctx, db, id)
	if err != nil {
		return err
	}
	return types.CanAdvance(current.Status, to)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (types.ScoredStory, error) {
	var (
		s                  types.ScoredStory
		status             string
		created, scrapedAt string
	)
	err := row.Scan(
		&s.ID, &s.RedditID, &s.Subreddit, &s.Title, &s.Body, &s.Author, &s.Permalink, &created,
		&s.Upvotes, &s.Comments, &s.UpvoteRatio, &s.Awards, &s.WordCount, &s.Sentiment,
		&s.ViralityScore, &status, &scrapedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scan story: %w", err)
	}
	s.Status = types.StoryStatus(status)
	s.CreatedAt = parseTime(created)
	s.ScrapedAt = parseTime(scrapedAt)
	return s, nil
}
