// Package review lets a human approve or reject rendered videos, over HTTP or in a terminal.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
	"reddit-shorts-pipeline/types"
)

const DefaultRejectReason = "rejected by reviewer"

var ErrUnknownStatus = errors.New("unknown video status")

// Store is the storage port the review surface needs.
type Store interface {
	VideosByStatus(ctx context.Context, status types.VideoStatus, limit int) ([]types.VideoListing, error)
	VideoByID(ctx context.Context, id string) (types.VideoListing, error)
	DecideVideo(ctx context.Context, id string, d types.Decision) error
	Ping(ctx context.Context) error
}

// Service holds the decision rules shared by the dashboard and the CLI.
type Service struct {
	store  Store
	cfg    config.ReviewConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, cfg config.ReviewConfig, logger *slog.Logger) *Service {
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = "reviewer"
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logging.Component(logger, "review"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, status types.VideoStatus, limit int) ([]types.VideoListing, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	videos, err := s.store.VideosByStatus(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []types.VideoListing{}
	}
	return videos, nil
}

func (s *Service) Pending(ctx context.Context) ([]types.VideoListing, error) {
	return s.List(ctx, types.VideoPending, 0)
}

func (s *Service) Approved(ctx context.Context) ([]types.VideoListing, error) {
	return s.List(ctx, types.VideoApproved, 0)
}

func (s *Service) Get(ctx context.Context, id string) (types.VideoListing, error) {
	return s.store.VideoByID(ctx, id)
}

// Approve records actor and the current time. An empty actor uses the
// configured default reviewer.
func (s *Service) Approve(ctx context.Context, id, actor string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = s.cfg.DefaultActor
	}
	err := s.store.DecideVideo(ctx, id, types.Decision{Status: types.VideoApproved, Actor: actor, At: s.now()})
	if err != nil {
		return err
	}
	s.logger.Info("video approved", "video_id", id, "actor", actor)
	return nil
}

// Reject records a free-text reason, falling back to DefaultRejectReason.
func (s *Service) Reject(ctx context.Context, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectReason
	}
	err := s.store.DecideVideo(ctx, id, types.Decision{Status: types.VideoRejected, Reason: reason, At: s.now()})
	if err != nil {
		return err
	}
	s.logger.Info("video rejected", "video_id", id, "reason", reason)
	return nil
}

func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Truncate shortens text to the configured preview length on a rune boundary.
func (s *Service) Truncate(text string) string {
	return truncate(text, s.cfg.TruncateChars)
}

func truncate(text string, n int) string {
	r := []rune(text)
	if n <= 0 || len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
