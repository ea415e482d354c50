package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"reddit-shorts-pipeline/types"
)

// InsertPlatformPost records a pending post of an approved video. The ID is
// generated when empty and returned.
func (r *Repository) InsertPlatformPost(ctx context.Context, p types.PlatformPost) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = types.PostPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}

	_, err := r.exec(ctx, r.sb.Insert("platform_posts").
		Columns("id", "video_id", "platform", "status", "url", "error", "published_at", "created_at").
		Values(p.ID, p.VideoID, p.Platform, string(p.Status), p.URL, p.Error, nullTime(p.PublishedAt), formatTime(p.CreatedAt)))
	if err != nil {
		return "", fmt.Errorf("insert platform post: %w", err)
	}
	return p.ID, nil
}

// UpdatePlatformPostStatus sets the outcome of a post. detail is the public URL
// for published posts and the error message for failed ones.
func (r *Repository) UpdatePlatformPostStatus(ctx context.Context, id string, status types.PlatformPostStatus, detail string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown post status %q", types.ErrInvalidTransition, status)
	}

	q := r.sb.Update("platform_posts").Set("status", string(status)).Where(sq.Eq{"id": id})
	switch status {
	case types.PostPublished:
		q = q.Set("url", detail).Set("published_at", formatTime(r.now()))
	case types.PostFailed:
		q = q.Set("error", detail)
	}

	res, err := r.exec(ctx, q)
	if err != nil {
		return fmt.Errorf("update platform post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: platform post %s", ErrNotFound, id)
	}
	return nil
}

func (r *Repository) PlatformPostsByVideo(ctx context.Context, videoID string) ([]types.PlatformPost, error) {
	query, args, err := r.sb.
		Select("id", "video_id", "platform", "status", "url", "error", "published_at", "created_at").
		From("platform_posts").
		Where(sq.Eq{"video_id": videoID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query platform posts: %w", err)
	}
	defer rows.Close()

	var out []types.PlatformPost
	for rows.Next() {
		var (
			p         types.PlatformPost
			status    string
			published sql.NullString
			created   string
		)
		if err := rows.Scan(&p.ID, &p.VideoID, &p.Platform, &status, &p.URL, &p.Error, &published, &created); err != nil {
			return nil, fmt.Errorf("scan platform post: %w", err)
		}
		p.Status = types.PlatformPostStatus(status)
		p.PublishedAt = timePtr(published)
		p.CreatedAt = parseTime(created)
		out = append(out, p)
	}
	return out, rows.Err()
}
