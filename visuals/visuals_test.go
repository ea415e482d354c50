package visuals

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestListClips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.MOV", "notes.txt", ".hidden.mp4", "_skip.mp4", "c.webm"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	clips, err := ListClips(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a.MOV", "b.mp4", "c.webm"}
	if len(clips) != len(want) {
		t.Fatalf("clips = %v", clips)
	}
	for i, name := range want {
		if filepath.Base(clips[i]) != name {
			t.Fatalf("clip %d = %s, want %s", i, clips[i], name)
		}
	}
}

func TestListClipsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := ListClips(t.TempDir()); !errors.Is(err, ErrNoBackgrounds) {
		t.Fatalf("expected ErrNoBackgrounds, got %v", err)
	}
	if _, err := ListClips(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrNoBackgrounds) {
		t.Fatalf("expected ErrNoBackgrounds for missing dir, got %v", err)
	}
}

func TestPlanLoopsShortClip(t *testing.T) {
	t.Parallel()

	p := NewPlanner(7)
	for i := 0; i < 20; i++ {
		plan := p.Plan("bg.mp4", 10, 25)
		if plan.Repeats < 3 || plan.Repeats != 4 {
			t.Fatalf("repeats = %d, want 4", plan.Repeats)
		}
		if plan.Loops() != 3 {
			t.Fatalf("loops = %d", plan.Loops())
		}
		if plan.Offset != 0 {
			t.Fatalf("offset = %v, want 0 for a looped clip", plan.Offset)
		}
		if float64(plan.Repeats)*10 < plan.Offset+plan.Duration {
			t.Fatal("window reads past the looped end")
		}
	}
}

func TestPlanOffsetWithinSlack(t *testing.T) {
	t.Parallel()

	p := NewPlanner(99)
	sawNonZero := false
	for i := 0; i < 200; i++ {
		plan := p.Plan("bg.mp4", 600, 45)
		if plan.Repeats != 1 {
			t.Fatalf("long clip should not loop: %+v", plan)
		}
		if plan.Offset < 0 || plan.Offset > 555 {
			t.Fatalf("offset %v outside [0, 555]", plan.Offset)
		}
		if plan.Offset > 0 {
			sawNonZero = true
		}
	}
	if !sawNonZero {
		t.Fatal("offset never varied")
	}

	exact := p.Plan("bg.mp4", 30, 30)
	if exact.Repeats != 1 || exact.Offset != 0 {
		t.Fatalf("equal lengths: %+v", exact)
	}
}

func TestPlannerSeedDeterministic(t *testing.T) {
	t.Parallel()

	clips := []string{"a", "b", "c", "d", "e"}
	a, b := NewPlanner(42), NewPlanner(42)
	for i := 0; i < 10; i++ {
		if a.Pick(clips) != b.Pick(clips) {
			t.Fatal("same seed picked different clips")
		}
		if a.Plan("x", 100, 20) != b.Plan("x", 100, 20) {
			t.Fatal("same seed planned different offsets")
		}
	}
	if NewPlanner(1).Pick(nil) != "" {
		t.Fatal("empty pool should pick nothing")
	}
}

func TestCropRect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		w, h int
		want Crop
	}{
		// landscape 16:9 keeps full height, crops width
		{1920, 1080, Crop{Width: 606, Height: 1080, X: 657, Y: 0}},
		// already 9:16
		{1080, 1920, Crop{Width: 1080, Height: 1920, X: 0, Y: 0}},
		// too tall, crops height
		{1080, 2400, Crop{Width: 1080, Height: 1920, X: 0, Y: 240}},
		// square
		{1000, 1000, Crop{Width: 562, Height: 1000, X: 219, Y: 0}},
	}
	for _, tc := range cases {
		got := CropRect(tc.w, tc.h, 1080, 1920)
		if got != tc.want {
			t.Fatalf("CropRect(%d, %d) = %+v, want %+v", tc.w, tc.h, got, tc.want)
		}
	}
}
