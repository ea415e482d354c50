package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reddit-shorts-pipeline/types"
)

type BatchOptions struct {
	Count       int
	Scrape      bool
	ScrapeLimit int // <= 0 uses reddit.posts_per_run
}

// RunBatch optionally scrapes, selects up to opts.Count stories and generates
// a video for each in turn. A failed story is recorded and skipped. The run
// state is saved to the logs directory whatever the outcome.
func (p *Pipeline) RunBatch(ctx context.Context, opts BatchOptions) (*types.RunState, error) {
	state := &types.RunState{
		RunID:     uuid.NewString()[:8],
		StartedAt: p.now().Format(time.RFC3339),
		Results:   []types.StoryResult{},
	}
	log := p.logger.With("run_id", state.RunID)
	log.Info("batch starting", "count", opts.Count, "scrape", opts.Scrape)

	defer func() {
		state.CompletedAt = p.now().Format(time.RFC3339)
		p.saveState(log, state)
	}()

	if opts.Scrape && p.deps.Scraper != nil {
		n, err := p.deps.Scraper.ScrapeAndSave(ctx, opts.ScrapeLimit)
		if err != nil {
			// stories from earlier scrapes can still be processed
			log.Error("scrape failed", "err", err)
		}
		state.Scraped = n
	}

	stories, err := p.deps.Selector.SelectTop(ctx, opts.Count)
	if err != nil {
		if len(stories) == 0 {
			state.Error = fmt.Sprintf("select: %v", err)
			return state, fmt.Errorf("select: %w", err)
		}
		log.Error("selection partially failed", "advanced", len(stories), "err", err)
	}
	state.Selected = len(stories)
	if len(stories) == 0 {
		log.Info("nothing to process")
		return state, nil
	}

	for i, story := range stories {
		if err := ctx.Err(); err != nil {
			state.Error = fmt.Sprintf("cancelled after %d of %d stories: %v", i, len(stories), err)
			return state, err
		}

		log.Info("processing story", "n", i+1, "of", len(stories), "story_id", story.ID, "title", story.Title)
		result := types.StoryResult{StoryID: story.ID, Title: story.Title}

		video, err := p.GenerateVideo(ctx, story)
		if err != nil {
			log.Error("story failed", "story_id", story.ID, "err", err)
			result.Error = err.Error()
		} else {
			result.VideoID = video.ID
			result.Path = video.Path
			result.Seconds = video.DurationSeconds
		}
		state.Results = append(state.Results, result)
	}

	log.Info("batch complete", "succeeded", state.Succeeded(), "failed", len(state.Results)-state.Succeeded())
	return state, nil
}

func (p *Pipeline) saveState(log *slog.Logger, state *types.RunState) {
	dir := p.cfg.Paths.Logs
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn("could not create logs dir", "dir", dir, "err", err)
		return
	}
	saveJSON(log, filepath.Join(dir, fmt.Sprintf("run_%s.json", state.RunID)), state)
}

func saveJSON(log *slog.Logger, path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn("could not marshal JSON", "path", path, "err", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn("could not save file", "path", path, "err", err)
	}
}
