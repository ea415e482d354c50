package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"reddit-shorts-pipeline/artifacts"
	"reddit-shorts-pipeline/audio"
	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/enhance"
	"reddit-shorts-pipeline/logging"
	"reddit-shorts-pipeline/media"
	"reddit-shorts-pipeline/pipeline"
	"reddit-shorts-pipeline/render"
	"reddit-shorts-pipeline/research"
	"reddit-shorts-pipeline/review"
	"reddit-shorts-pipeline/scheduler"
	"reddit-shorts-pipeline/scoring"
	"reddit-shorts-pipeline/script"
	"reddit-shorts-pipeline/selector"
	"reddit-shorts-pipeline/storage"
	"reddit-shorts-pipeline/visuals"
)

const usage = `usage: shorts <command> [flags]

commands:
  scrape    fetch, score and store top Reddit stories
  select    mark the top scraped stories as selected
  generate  render a video for one story
  run       scrape, select and render a batch
  review    approve or reject pending videos in the terminal
  serve     start the review dashboard
  schedule  run batches on the configured cron schedule
  check     verify Reddit, database, backgrounds and TTS engines
  show      print a story's score breakdown, parts and hook ideas
  backgrounds  download the configured background clips
`

// app holds the wired components for one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	repo     *storage.Repository
	scraper  *research.Scraper
	selector *selector.Selector
	pipeline *pipeline.Pipeline
	reviews  *review.Service
	synth    *audio.Synthesizer
	enhancer *enhance.Enhancer
}

func main() {
	// Load .env (local dev only)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		fmt.Print(usage)
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "path to config.yaml")
	limit := fs.Int("limit", 0, "scrape: max stories to fetch (0 = reddit.posts_per_run)")
	n := fs.Int("n", 0, "select/run: number of stories (0 = schedule.story_count)")
	storyID := fs.String("story", "", "generate/show: story id (generate defaults to the top scraped story)")
	skipScrape := fs.Bool("skip-scrape", false, "run: process already scraped stories only")
	actor := fs.String("actor", "", "review: reviewer name recorded on approvals")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	if !cfg.WeightsBalanced() {
		logger.Warn("virality weights do not sum to 1.0", "sum", cfg.Virality.Weights.Sum())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.repo.Close()

	count := *n
	if count <= 0 {
		count = cfg.Schedule.StoryCount
	}

	switch cmd {
	case "scrape":
		err = a.scrape(ctx, *limit)
	case "select":
		err = a.selectTop(ctx, count)
	case "generate":
		err = a.generate(ctx, *storyID)
	case "run":
		err = a.run(ctx, count, !*skipScrape)
	case "review":
		err = a.review(ctx, *actor)
	case "serve":
		err = review.NewServer(a.reviews, cfg.Review, logger).Run(ctx)
	case "schedule":
		err = a.schedule(ctx)
	case "check":
		err = a.check(ctx)
	case "show":
		err = a.show(ctx, *storyID)
	case "backgrounds":
		err = a.backgrounds(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", cmd, "err", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("SHORTS_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	gin.SetMode(gin.ReleaseMode)

	// Ensure required dirs exist
	dirs := []string{cfg.Paths.Output, cfg.Paths.Logs}
	if cfg.Storage.Driver == "sqlite" {
		dirs = append(dirs, filepath.Dir(cfg.Storage.DSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	source, err := research.NewRedditSource(cfg.Reddit)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	store, err := artifacts.New(ctx, cfg.Artifacts, logger)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	runner := media.ExecRunner{}
	synth := audio.NewSynthesizer(cfg.TTS, runner, logger)
	scraper := research.New(cfg, source, repo, research.NewVaderAnalyzer(), logger)
	sel := selector.New(repo, logger)
	enhancer := enhance.New(cfg, logger)

	p := pipeline.New(cfg, pipeline.Deps{
		Scraper:     scraper,
		Selector:    sel,
		Enhancer:    enhancer,
		Synthesizer: synth,
		Assembler:   render.New(cfg, media.FFprobe{Bin: cfg.Video.FFprobePath}, runner, visuals.NewPlanner(cfg.Video.Seed), logger),
		Artifacts:   store,
		Videos:      repo,
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		scraper:  scraper,
		selector: sel,
		pipeline: p,
		reviews:  review.NewService(repo, cfg.Review, logger),
		synth:    synth,
		enhancer: enhancer,
	}, nil
}

func (a *app) scrape(ctx context.Context, limit int) error {
	saved, err := a.scraper.ScrapeAndSave(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d stories\n", saved)
	return nil
}

func (a *app) selectTop(ctx context.Context, n int) error {
	stories, err := a.selector.SelectTop(ctx, n)
	for i, s := range stories {
		fmt.Printf("%d. [%.2f] %s (%s, %d words)\n", i+1, s.ViralityScore, s.Title, s.ID, s.WordCount)
	}
	if len(stories) == 0 && err == nil {
		fmt.Println("No scraped stories available")
	}
	return err
}

func (a *app) generate(ctx context.Context, storyID string) error {
	if storyID == "" {
		stories, err := a.selector.SelectTop(ctx, 1)
		if err != nil {
			return err
		}
		if len(stories) == 0 {
			return errors.New("no scraped stories available")
		}
		video, err := a.pipeline.GenerateVideo(ctx, stories[0])
		if err != nil {
			return err
		}
		fmt.Printf("Video %s pending approval: %s\n", video.ID, video.URL)
		return nil
	}

	video, err := a.pipeline.GenerateByID(ctx, storyID)
	if err != nil {
		return err
	}
	fmt.Printf("Video %s pending approval: %s\n", video.ID, video.URL)
	return nil
}

func (a *app) run(ctx context.Context, n int, scrape bool) error {
	state, err := a.pipeline.RunBatch(ctx, pipeline.BatchOptions{Count: n, Scrape: scrape})
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: %d scraped, %d selected, %d videos generated\n",
		state.RunID, state.Scraped, state.Selected, state.Succeeded())
	return nil
}

func (a *app) review(ctx context.Context, actor string) error {
	_, err := a.reviews.RunCLI(ctx, os.Stdin, os.Stdout, actor)
	return err
}

func (a *app) schedule(ctx context.Context) error {
	sched, err := scheduler.New(a.cfg.Schedule.Timezone, 30*time.Minute, a.logger)
	if err != nil {
		return err
	}
	opts := pipeline.BatchOptions{Count: a.cfg.Schedule.StoryCount, Scrape: !a.cfg.Schedule.SkipScrape}
	err = sched.AddJob("batch", a.cfg.Schedule.Cron, func(ctx context.Context) error {
		_, err := a.pipeline.RunBatch(ctx, opts)
		return err
	})
	if err != nil {
		return err
	}

	sched.Start()
	for _, j := range sched.ListJobs() {
		a.logger.Info("next run", "job", j.Name, "at", j.NextRun)
	}
	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}

func (a *app) show(ctx context.Context, storyID string) error {
	if storyID == "" {
		return errors.New("show requires -story")
	}
	story, err := a.repo.StoryByID(ctx, storyID)
	if err != nil {
		return err
	}
	cleaned, err := a.selector.GetByID(ctx, storyID)
	if err != nil {
		return err
	}

	// score as of scrape time so the breakdown adds up to the stored score
	b := scoring.New(a.cfg.Virality).Breakdown(scoring.Metrics{
		Upvotes:     story.Upvotes,
		Comments:    story.Comments,
		UpvoteRatio: story.UpvoteRatio,
		Awards:      story.Awards,
		WordCount:   story.WordCount,
		HoursOld:    story.HoursOld(story.ScrapedAt),
		Sentiment:   story.Sentiment,
	})
	fmt.Printf("%s\n%s | r/%s | %s\n\n", story.Title, story.ID, story.Subreddit, story.Status)
	fmt.Printf("Virality %.2f\n", story.ViralityScore)
	fmt.Printf("  upvote velocity  %6.2f\n  comment velocity %6.2f\n  upvote ratio     %6.2f\n", b.UpvoteVelocity, b.CommentVelocity, b.UpvoteRatio)
	fmt.Printf("  awards           %6.2f\n  length           %6.2f\n  sentiment        %6.2f\n", b.Awards, b.Length, b.Sentiment)

	parts := script.New(a.cfg.Script).SplitParts(cleaned.SourceBody, 0)
	fmt.Printf("\n%d word(s), %d part(s)\n", cleaned.WordCount, len(parts))
	for _, p := range parts {
		fmt.Printf("  part %d/%d: %d words, %d paragraph(s)\n", p.Number, p.Total, p.WordCount, p.Paragraphs)
	}

	if a.enhancer.Enabled() {
		hooks := a.enhancer.HookOptions(ctx, cleaned.FullText, 3)
		fmt.Println("\nHook ideas:")
		for i, h := range hooks {
			fmt.Printf("  %d. %s\n", i+1, h)
		}
	}
	return nil
}

func (a *app) backgrounds(ctx context.Context) error {
	if len(a.cfg.Video.BackgroundSources) == 0 {
		fmt.Printf("No video.background_sources configured; add clips to %s manually\n", a.cfg.Paths.Backgrounds)
		return nil
	}
	results, err := visuals.NewDownloader(a.cfg.Paths.Backgrounds, a.logger).DownloadAll(ctx, a.cfg.Video.BackgroundSources)
	ready := 0
	for _, r := range results {
		if r.Err == nil {
			ready++
		}
	}
	fmt.Printf("%d/%d background clips ready in %s\n", ready, len(results), a.cfg.Paths.Backgrounds)
	return err
}

func (a *app) check(ctx context.Context) error {
	var errs []error
	report := func(name string, err error) {
		if err != nil {
			fmt.Printf("  ✗ %-12s %v\n", name, err)
			errs = append(errs, err)
			return
		}
		fmt.Printf("  ✓ %s\n", name)
	}

	fmt.Println("Checking connections...")
	report("database", a.repo.Ping(ctx))
	report("reddit", a.scraper.Check(ctx))

	clips, err := visuals.ListClips(a.cfg.Paths.Backgrounds)
	if err == nil {
		fmt.Printf("    %d background clip(s) in %s\n", len(clips), a.cfg.Paths.Backgrounds)
	}
	report("backgrounds", err)

	missing, err := a.synth.Check()
	if len(missing) > 0 && err == nil {
		fmt.Printf("    TTS engines not installed: %v\n", missing)
	}
	report("tts", err)

	return errors.Join(errs...)
}
