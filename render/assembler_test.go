package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/media"
	"reddit-shorts-pipeline/visuals"
)

type fakeProber map[string]media.Info

func (f fakeProber) Probe(_ context.Context, path string) (media.Info, error) {
	info, ok := f[filepath.Base(path)]
	if !ok {
		return media.Info{}, errors.New("no such media")
	}
	return info, nil
}

type fakeRunner struct {
	fail bool
	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.name, f.args = name, args
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("partial-or-complete"), 0o644); err != nil {
		return err
	}
	if f.fail {
		return errors.New("encoder crashed")
	}
	return nil
}

func setup(t *testing.T, clipNames ...string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	bg := filepath.Join(dir, "backgrounds")
	if err := os.MkdirAll(bg, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range clipNames {
		if err := os.WriteFile(filepath.Join(bg, name), []byte("clip"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.Default()
	cfg.Paths.Output = filepath.Join(dir, "out")
	return cfg, bg
}

func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestAssembleLoopsShortBackground(t *testing.T) {
	t.Parallel()

	cfg, bg := setup(t, "short.mp4")
	prober := fakeProber{
		"narration.mp3": {Duration: 25},
		"short.mp4":     {Duration: 10, Width: 1920, Height: 1080},
	}
	runner := &fakeRunner{}
	a := New(cfg, prober, runner, visuals.NewPlanner(1), nil)

	res, err := a.Assemble(context.Background(), "narration.mp3", bg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if res.Duration != 25 {
		t.Fatalf("duration = %v, want narration length 25", res.Duration)
	}
	if res.Plan.Repeats < 3 || res.Plan.Offset != 0 {
		t.Fatalf("unexpected plan %+v", res.Plan)
	}
	if got := argValue(runner.args, "-stream_loop"); got != "3" {
		t.Fatalf("-stream_loop = %q", got)
	}
	if slices.Contains(runner.args, "-ss") {
		t.Fatal("looped clip must not seek")
	}
	if got := argValue(runner.args, "-t"); got != "25.000" {
		t.Fatalf("-t = %q", got)
	}
	if res.SizeBytes == 0 || !strings.HasSuffix(res.Path, ".mp4") {
		t.Fatalf("unexpected result %+v", res)
	}
	if runner.name != "ffmpeg" {
		t.Fatalf("ran %q", runner.name)
	}
}

func TestAssembleSeeksLongBackground(t *testing.T) {
	t.Parallel()

	cfg, bg := setup(t, "long.mp4")
	prober := fakeProber{
		"narration.mp3": {Duration: 42.5},
		"long.mp4":      {Duration: 600, Width: 1080, Height: 1920},
	}
	runner := &fakeRunner{}
	a := New(cfg, prober, runner, visuals.NewPlanner(3), nil)

	res, err := a.Assemble(context.Background(), "narration.mp3", bg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if slices.Contains(runner.args, "-stream_loop") {
		t.Fatal("long clip must not loop")
	}
	if res.Plan.Offset < 0 || res.Plan.Offset > 600-42.5 {
		t.Fatalf("offset %v out of range", res.Plan.Offset)
	}
	if got := argValue(runner.args, "-t"); got != "42.500" {
		t.Fatalf("-t = %q", got)
	}
}

func TestAssembleNoBackgrounds(t *testing.T) {
	t.Parallel()

	cfg, bg := setup(t)
	a := New(cfg, fakeProber{"narration.mp3": {Duration: 5}}, &fakeRunner{}, nil, nil)
	if _, err := a.Assemble(context.Background(), "narration.mp3", bg); !errors.Is(err, visuals.ErrNoBackgrounds) {
		t.Fatalf("expected ErrNoBackgrounds, got %v", err)
	}
}

func TestAssembleRemovesPartialOutput(t *testing.T) {
	t.Parallel()

	cfg, bg := setup(t, "clip.mp4")
	prober := fakeProber{
		"narration.mp3": {Duration: 5},
		"clip.mp4":      {Duration: 30, Width: 1920, Height: 1080},
	}
	runner := &fakeRunner{fail: true}
	a := New(cfg, prober, runner, nil, nil)

	out := filepath.Join(cfg.Paths.Output, "fail.mp4")
	if _, err := a.AssembleTo(context.Background(), "narration.mp3", bg, out); err == nil {
		t.Fatal("expected render error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("partial output not removed: %v", err)
	}
}

func TestAssembleNarrationProbeFailure(t *testing.T) {
	t.Parallel()

	cfg, bg := setup(t, "clip.mp4")
	runner := &fakeRunner{}
	a := New(cfg, fakeProber{}, runner, nil, nil)
	if _, err := a.Assemble(context.Background(), "missing.mp3", bg); err == nil {
		t.Fatal("expected probe error")
	}
	if runner.args != nil {
		t.Fatal("ffmpeg must not run without narration")
	}
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Video
	args := BuildArgs(cfg, Job{
		Plan:      visuals.Plan{Clip: "bg.mp4", Repeats: 1, Offset: 12.3456, Duration: 30},
		Crop:      visuals.Crop{Width: 606, Height: 1080, X: 657},
		Narration: "n.mp3",
		Output:    "out.mp4",
	})

	checks := map[string]string{
		"-ss":      "12.346",
		"-t":       "30.000",
		"-r":       "30",
		"-c:v":     "libx264",
		"-c:a":     "aac",
		"-crf":     "23",
		"-pix_fmt": "yuv420p",
	}
	for flag, want := range checks {
		if got := argValue(args, flag); got != want {
			t.Fatalf("%s = %q, want %q", flag, got, want)
		}
	}
	vf := argValue(args, "-vf")
	if !strings.HasPrefix(vf, "crop=606:1080:657:0,scale=1080:1920") {
		t.Fatalf("-vf = %q", vf)
	}
	if slices.Index(args, "-ss") > slices.Index(args, "-i") {
		t.Fatal("-ss must precede the background input")
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output not last: %v", args)
	}
	if strings.Join(args, " ") != strings.Join(BuildArgs(cfg, Job{
		Plan:      visuals.Plan{Clip: "bg.mp4", Repeats: 1, Offset: 12.3456, Duration: 30},
		Crop:      visuals.Crop{Width: 606, Height: 1080, X: 657},
		Narration: "n.mp3",
		Output:    "out.mp4",
	}), " ") {
		t.Fatal("argument building must be deterministic")
	}

	unknown := argValue(BuildArgs(cfg, Job{Plan: visuals.Plan{Clip: "x", Repeats: 1, Duration: 1}, Output: "o"}), "-vf")
	if !strings.HasPrefix(unknown, "crop='min(iw,ih*1080/1920)'") {
		t.Fatalf("fallback crop filter = %q", unknown)
	}
}
