// Package selector picks the highest scoring scraped stories and marks them selected.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"reddit-shorts-pipeline/logging"
	"reddit-shorts-pipeline/textclean"
	"reddit-shorts-pipeline/types"
)

// Store is the storage port the selector reads from and transitions through.
type Store interface {
	StoriesByStatus(ctx context.Context, status types.StoryStatus, limit int) ([]types.ScoredStory, error)
	StoryByID(ctx context.Context, id string) (types.ScoredStory, error)
	UpdateStoryStatus(ctx context.Context, id string, to types.StoryStatus) error
}

type Selector struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Selector {
	return &Selector{store: store, logger: logging.Component(logger, "selector")}
}

// SelectTop returns up to n cleaned stories, highest virality first, and moves
// each returned story to selected. Transitions are per story: when one fails the
// stories advanced so far are returned together with the error, and no story
// that is not returned is touched.
func (s *Selector) SelectTop(ctx context.Context, n int) ([]types.CleanedStory, error) {
	if n <= 0 {
		return []types.CleanedStory{}, nil
	}

	stories, err := s.store.StoriesByStatus(ctx, types.StoryScraped, 0)
	if err != nil {
		return nil, fmt.Errorf("list scraped stories: %w", err)
	}
	if len(stories) == 0 {
		s.logger.Info("no scraped stories to select")
		return []types.CleanedStory{}, nil
	}

	// storage already orders by score; the stable sort keeps its order for ties
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].ViralityScore > stories[j].ViralityScore
	})
	if len(stories) > n {
		stories = stories[:n]
	}

	out := make([]types.CleanedStory, 0, len(stories))
	for _, story := range stories {
		if err := s.store.UpdateStoryStatus(ctx, story.ID, types.StorySelected); err != nil {
			s.logger.Error("selection stopped", "story_id", story.ID, "advanced", len(out), "err", err)
			return out, fmt.Errorf("select story %s: %w", story.ID, err)
		}
		out = append(out, textclean.CleanStory(story))
		s.logger.Info("selected story", "story_id", story.ID, "score", story.ViralityScore, "title", story.Title)
	}
	return out, nil
}

// SelectByID moves one story to selected and returns its cleaned view.
// Selecting an already selected story is a no-op.
func (s *Selector) SelectByID(ctx context.Context, id string) (types.CleanedStory, error) {
	story, err := s.store.StoryByID(ctx, id)
	if err != nil {
		return types.CleanedStory{}, err
	}
	if err := s.store.UpdateStoryStatus(ctx, id, types.StorySelected); err != nil {
		return types.CleanedStory{}, fmt.Errorf("select story %s: %w", id, err)
	}
	return textclean.CleanStory(story), nil
}

// GetByID returns the cleaned view of one story without changing its status.
func (s *Selector) GetByID(ctx context.Context, id string) (types.CleanedStory, error) {
	story, err := s.store.StoryByID(ctx, id)
	if err != nil {
		return types.CleanedStory{}, err
	}
	return textclean.CleanStory(story), nil
}
