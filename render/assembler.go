// Package render composites background footage and narration into a vertical short.
package render

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
	"reddit-shorts-pipeline/media"
	"reddit-shorts-pipeline/visuals"
)

// Result describes a rendered video.
type Result struct {
	Path       string       `json:"path"`
	Duration   float64      `json:"duration_seconds"`
	SizeBytes  int64        `json:"size_bytes"`
	Background string       `json:"background"`
	Plan       visuals.Plan `json:"plan"`
}

// Assembler renders the final video from a narration track and a background pool
type Assembler struct {
	cfg     config.VideoConfig
	outDir  string
	prober  media.Prober
	runner  media.Runner
	planner *visuals.Planner
	logger  *slog.Logger
}

func New(cfg *config.Config, prober media.Prober, runner media.Runner, planner *visuals.Planner, logger *slog.Logger) *Assembler {
	if planner == nil {
		planner = visuals.NewPlanner(cfg.Video.Seed)
	}
	return &Assembler{
		cfg:     cfg.Video,
		outDir:  cfg.Paths.Output,
		prober:  prober,
		runner:  runner,
		planner: planner,
		logger:  logging.Component(logger, "render"),
	}
}

// Assemble renders narrationPath over a clip from backgroundsDir. The output
// lasts exactly as long as the narration. On failure no output file is left.
func (a *Assembler) Assemble(ctx context.Context, narrationPath, backgroundsDir string) (Result, error) {
	out := filepath.Join(a.outDir, fmt.Sprintf("video_%s.mp4", uuid.NewString()[:8]))
	return a.AssembleTo(ctx, narrationPath, backgroundsDir, out)
}

func (a *Assembler) AssembleTo(ctx context.Context, narrationPath, backgroundsDir, out string) (Result, error) {
	narration, err := a.prober.Probe(ctx, narrationPath)
	if err != nil {
		return Result{}, fmt.Errorf("probe narration: %w", err)
	}

	clips, err := visuals.ListClips(backgroundsDir)
	if err != nil {
		return Result{}, err
	}
	clip := a.planner.Pick(clips)

	bg, err := a.prober.Probe(ctx, clip)
	if err != nil {
		return Result{}, fmt.Errorf("probe background %s: %w", filepath.Base(clip), err)
	}

	plan := a.planner.Plan(clip, bg.Duration, narration.Duration)
	crop := visuals.CropRect(bg.Width, bg.Height, a.cfg.Width, a.cfg.Height)
	a.logger.Info("rendering video",
		"background", filepath.Base(clip),
		"narration_seconds", narration.Duration,
		"clip_seconds", bg.Duration,
		"repeats", plan.Repeats,
		"offset", plan.Offset,
	)

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	start := time.Now()
	args := BuildArgs(a.cfg, Job{Plan: plan, Crop: crop, Narration: narrationPath, Output: out})
	if err := a.runner.Run(ctx, a.ffmpeg(), args...); err != nil {
		a.cleanup(out)
		return Result{}, fmt.Errorf("ffmpeg render: %w", err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		a.cleanup(out)
		return Result{}, errors.Join(errors.New("ffmpeg produced no output"), err)
	}

	a.logger.Info("video ready", "path", out, "size_bytes", info.Size(), "took", time.Since(start).Round(time.Millisecond))
	return Result{
		Path:       out,
		Duration:   narration.Duration,
		SizeBytes:  info.Size(),
		Background: clip,
		Plan:       plan,
	}, nil
}

func (a *Assembler) ffmpeg() string {
	if a.cfg.FFmpegPath != "" {
		return a.cfg.FFmpegPath
	}
	return "ffmpeg"
}

func (a *Assembler) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("could not remove partial output", "path", path, "err", err)
	}
}
