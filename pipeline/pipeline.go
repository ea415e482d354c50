// Package pipeline runs stories through script, narration, render and storage in strict order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
	"reddit-shorts-pipeline/render"
	"reddit-shorts-pipeline/script"
	"reddit-shorts-pipeline/types"
)

var (
	ErrSynthesis   = errors.New("speech synthesis failed")
	ErrEmptyScript = errors.New("story produced an empty script")
)

type Scraper interface {
	ScrapeAndSave(ctx context.Context, limit int) (int, error)
}

type Selector interface {
	SelectTop(ctx context.Context, n int) ([]types.CleanedStory, error)
	SelectByID(ctx context.Context, id string) (types.CleanedStory, error)
}

type Enhancer interface {
	Enhance(ctx context.Context, script, title string) string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, outFile string) bool
}

type Assembler interface {
	Assemble(ctx context.Context, narrationPath, backgroundsDir string) (render.Result, error)
}

type ArtifactStore interface {
	Name() string
	Put(ctx context.Context, localPath string) (string, error)
}

// VideoStore persists a finished video and advances its story in one step.
type VideoStore interface {
	RecordVideo(ctx context.Context, v types.VideoArtifact) error
}

// Deps are the stage implementations. Scraper may be nil when runs never scrape.
type Deps struct {
	Scraper     Scraper
	Selector    Selector
	Enhancer    Enhancer
	Synthesizer Synthesizer
	Assembler   Assembler
	Artifacts   ArtifactStore
	Videos      VideoStore
}

type Pipeline struct {
	cfg    *config.Config
	shaper *script.Shaper
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		shaper: script.New(cfg.Script),
		deps:   deps,
		logger: logging.Component(logger, "pipeline"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// scriptRecord is written next to the narration for later inspection.
type scriptRecord struct {
	StoryID  string        `json:"story_id"`
	Title    string        `json:"title"`
	Shaped   script.Result `json:"shaped"`
	Final    string        `json:"final"`
	Enhanced bool          `json:"enhanced"`
	Trimmed  bool          `json:"trimmed"`
}

// GenerateVideo shapes, narrates and renders one story, then records the video
// as pending approval and the story as processed. Nothing is written to
// storage unless every stage succeeds.
func (p *Pipeline) GenerateVideo(ctx context.Context, story types.CleanedStory) (types.VideoArtifact, error) {
	log := p.logger.With("story_id", story.ID)
	maxSeconds := p.cfg.Script.MaxDurationSeconds

	body := story.SourceBody
	if body == "" {
		body = story.Body
	}
	shaped := p.shaper.Shape(body, story.Title, maxSeconds)
	if shaped.Script == "" {
		return types.VideoArtifact{}, fmt.Errorf("%w: %s", ErrEmptyScript, story.ID)
	}
	log.Info("script shaped", "words", shaped.WordCount, "estimated_seconds", shaped.EstimatedSeconds, "trimmed", shaped.Trimmed)

	final := p.deps.Enhancer.Enhance(ctx, shaped.Script, story.Title)
	final, trimmed := p.shaper.EnforceBudget(final, maxSeconds)
	if trimmed {
		log.Warn("enhanced script exceeded duration budget and was trimmed")
	}

	videoID := uuid.NewString()
	workDir := filepath.Join(p.cfg.Paths.Output, "work", videoID[:8])
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return types.VideoArtifact{}, fmt.Errorf("create work dir: %w", err)
	}
	saveJSON(log, filepath.Join(workDir, "script.json"), scriptRecord{
		StoryID:  story.ID,
		Title:    story.Title,
		Shaped:   shaped,
		Final:    final,
		Enhanced: final != shaped.Script,
		Trimmed:  shaped.Trimmed || trimmed,
	})

	narration := filepath.Join(workDir, "narration.mp3")
	if !p.deps.Synthesizer.Synthesize(ctx, final, narration) {
		return types.VideoArtifact{}, fmt.Errorf("%w: story %s", ErrSynthesis, story.ID)
	}

	rendered, err := p.deps.Assembler.Assemble(ctx, narration, p.cfg.Paths.Backgrounds)
	if err != nil {
		return types.VideoArtifact{}, fmt.Errorf("assemble: %w", err)
	}

	url, err := p.deps.Artifacts.Put(ctx, rendered.Path)
	if err != nil {
		log.Warn("artifact upload failed, keeping local path", "store", p.deps.Artifacts.Name(), "err", err)
		url = rendered.Path
	}

	video := types.VideoArtifact{
		ID:              videoID,
		StoryID:         story.ID,
		Path:            rendered.Path,
		URL:             url,
		DurationSeconds: rendered.Duration,
		SizeBytes:       rendered.SizeBytes,
		Status:          types.VideoPending,
		CreatedAt:       p.now(),
	}
	if err := p.deps.Videos.RecordVideo(ctx, video); err != nil {
		return types.VideoArtifact{}, fmt.Errorf("record video: %w", err)
	}

	log.Info("video pending approval", "video_id", video.ID, "path", video.Path, "duration_seconds", video.DurationSeconds)
	return video, nil
}

// GenerateByID selects one stored story and generates its video.
func (p *Pipeline) GenerateByID(ctx context.Context, storyID string) (types.VideoArtifact, error) {
	story, err := p.deps.Selector.SelectByID(ctx, storyID)
	if err != nil {
		return types.VideoArtifact{}, err
	}
	return p.GenerateVideo(ctx, story)
}
