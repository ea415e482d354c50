package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"reddit-shorts-pipeline/types"
)

var videoColumns = []string{
	"v.id", "v.story_id", "v.path", "v.url", "v.duration_seconds", "v.size_bytes",
	"v.status", "v.approved_by", "v.approved_at", "v.rejection_reason", "v.created_at",
}

func videoValues(v types.VideoArtifact) []any {
	return []any{
		v.ID, v.StoryID, v.Path, v.URL, v.DurationSeconds, v.SizeBytes,
		string(v.Status), v.ApprovedBy, nullTime(v.ApprovedAt), v.RejectionReason, formatTime(v.CreatedAt),
	}
}

func (r *Repository) prepareVideo(v *types.VideoArtifact) {
	if v.Status == "" {
		v.Status = types.VideoPending
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = r.now()
	}
}

// InsertVideo stores a video without touching its story.
func (r *Repository) InsertVideo(ctx context.Context, v types.VideoArtifact) error {
	r.prepareVideo(&v)
	return r.insertVideo(ctx, r.db, v)
}

func (r *Repository) insertVideo(ctx context.Context, db dbtx, v types.VideoArtifact) error {
	query, args, err := r.sb.Insert("videos").
		Columns("id", "story_id", "path", "url", "duration_seconds", "size_bytes",
			"status", "approved_by", "approved_at", "rejection_reason", "created_at").
		Values(videoValues(v)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: video %s", ErrDuplicate, v.ID)
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// RecordVideo inserts the video and moves its story to processed in one
// transaction. Either both writes land or neither does.
func (r *Repository) RecordVideo(ctx context.Context, v types.VideoArtifact) (err error) {
	r.prepareVideo(&v)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.insertVideo(ctx, tx, v); err != nil {
		return err
	}
	if err = r.updateStoryStatus(ctx, tx, v.StoryID, types.StoryProcessed); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repository) videoQuery() sq.SelectBuilder {
	cols := append(append([]string{}, videoColumns...), "s.reddit_id", "s.title", "s.body", "s.virality_score")
	return r.sb.Select(cols...).
		From("videos v").
		Join("stories s ON s.id = v.story_id")
}

// VideosByStatus lists videos in status joined with their story, newest first.
// limit <= 0 returns all.
func (r *Repository) VideosByStatus(ctx context.Context, status types.VideoStatus, limit int) ([]types.VideoListing, error) {
	q := r.videoQuery().
		Where(sq.Eq{"v.status": string(status)}).
		OrderBy("v.created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var out []types.VideoListing
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *Repository) VideoByID(ctx context.Context, id string) (types.VideoListing, error) {
	query, args, err := r.videoQuery().Where(sq.Eq{"v.id": id}).ToSql()
	if err != nil {
		return types.VideoListing{}, fmt.Errorf("build query: %w", err)
	}
	v, err := scanVideo(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.VideoListing{}, fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	return v, err
}

// DecideVideo applies a review decision to a pending video. Approval records
// the actor and time; rejection records the reason. A video that was already
// decided returns types.ErrInvalidTransition.
func (r *Repository) DecideVideo(ctx context.Context, id string, d types.Decision) error {
	if err := types.CanDecide(types.VideoPending, d.Status); err != nil {
		return err
	}
	if d.At.IsZero() {
		d.At = r.now()
	}

	q := r.sb.Update("videos").
		Set("status", string(d.Status)).
		Where(sq.Eq{"id": id, "status": string(types.VideoPending)})
	if d.Status == types.VideoApproved {
		q = q.Set("approved_by", d.Actor).Set("approved_at", formatTime(d.At))
	} else {
		q = q.Set("rejection_reason", d.Reason)
	}

	res, err := r.exec(ctx, q)
	if err != nil {
		return fmt.Errorf("decide video: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	current, err := r.VideoByID(ctx, id)
	if err != nil {
		return err
	}
	return types.CanDecide(current.Status, d.Status)
}

func scanVideo(row rowScanner) (types.VideoListing, error) {
	var (
		v          types.VideoListing
		status     string
		approvedAt sql.NullString
		createdAt  string
	)
	err := row.Scan(
		&v.ID, &v.StoryID, &v.Path, &v.URL, &v.DurationSeconds, &v.SizeBytes,
		&status, &v.ApprovedBy, &approvedAt, &v.RejectionReason, &createdAt,
		&v.RedditID, &v.StoryTitle, &v.StoryBody, &v.ViralityScore,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("scan video: %w", err)
	}
	v.Status = types.VideoStatus(status)
	v.ApprovedAt = timePtr(approvedAt)
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}
