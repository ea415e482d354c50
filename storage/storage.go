// Package storage persists stories, videos and platform posts in Postgres or SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"reddit-shorts-pipeline/config"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// timestamps are stored as fixed-width UTC text so they sort lexically on both drivers
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Repository is the single source of truth for story and video lifecycle state.
type Repository struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	driver string
	now    func() time.Time
}

// Open connects with the configured driver and migrates the schema.
func Open(ctx context.Context, cfg config.StorageConfig) (*Repository, error) {
	var driverName string
	switch cfg.Driver {
	case "postgres":
		driverName = "postgres"
	case "sqlite":
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// one writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}

	repo := New(db, cfg.Driver)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an existing handle. driver selects the placeholder style.
func New(db *sql.DB, driver string) *Repository {
	var format sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		format = sq.Dollar
	}
	return &Repository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", r.driver, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		reddit_id TEXT NOT NULL UNIQUE,
		subreddit TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		permalink TEXT NOT NULL DEFAULT '',
		created_utc TEXT NOT NULL,
		upvotes INTEGER NOT NULL DEFAULT 0,
		comments INTEGER NOT NULL DEFAULT 0,
		upvote_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
		awards INTEGER NOT NULL DEFAULT 0,
		word_count INTEGER NOT NULL DEFAULT 0,
		sentiment DOUBLE PRECISION NOT NULL DEFAULT 0,
		virality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		scraped_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stories_status_score ON stories (status, virality_score DESC)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		story_id TEXT NOT NULL REFERENCES stories(id),
		path TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		duration_seconds DOUBLE PRECISION NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_status ON videos (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS platform_posts (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL REFERENCES videos(id),
		platform TEXT NOT NULL,
		status TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		published_at TEXT,
		created_at TEXT NOT NULL
	)`,
}

// Migrate creates missing tables and indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

// isUniqueViolation recognizes unique constraint errors from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *Repository) exec(ctx context.Context, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.ExecContext(ctx, query, args...)
}
