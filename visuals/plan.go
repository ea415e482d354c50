package visuals

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Plan describes how one background clip is cut to cover a narration.
type Plan struct {
	Clip     string  `json:"clip"`
	Repeats  int     `json:"repeats"` // total plays of the clip, 1 means no looping
	Offset   float64 `json:"offset"`  // seconds into the (looped) clip
	Duration float64 `json:"duration"`
}

// Loops is the -stream_loop count ffmpeg needs for the plan.
func (p Plan) Loops() int {
	return max(p.Repeats-1, 0)
}

// Crop is a centered crop rectangle in source pixels.
type Crop struct {
	Width  int
	Height int
	X      int
	Y      int
}

// Planner makes the random choices for background selection. A fixed seed
// reproduces the same choices for the same asset pool.
type Planner struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlanner seeds a planner. Seed 0 seeds from the clock.
func NewPlanner(seed int64) *Planner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Planner{rng: rand.New(rand.NewSource(seed))}
}

// Pick chooses one clip uniformly.
func (p *Planner) Pick(clips []string) string {
	if len(clips) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return clips[p.rng.Intn(len(clips))]
}

// Plan sizes the loop count and start offset for a clip of clipDur seconds
// covering target seconds. Clips shorter than target are looped
// ceil(target/clipDur)+1 times and always start at 0.
func (p *Planner) Plan(clip string, clipDur, target float64) Plan {
	plan := Plan{Clip: clip, Repeats: 1, Duration: target}
	if clipDur <= 0 || target <= 0 {
		return plan
	}
	if clipDur < target {
		plan.Repeats = int(math.Ceil(target/clipDur)) + 1
	}

	slack := math.Max(0, clipDur-target)
	if slack > 0 {
		p.mu.Lock()
		plan.Offset = math.Round(p.rng.Float64()*slack*1000) / 1000
		p.mu.Unlock()
	}
	return plan
}

// CropRect returns the largest centered rectangle of w x h with the aspect
// ratio of targetW x targetH. Dimensions are rounded down to even numbers for
// yuv420p output.
func CropRect(w, h, targetW, targetH int) Crop {
	if w <= 0 || h <= 0 || targetW <= 0 || targetH <= 0 {
		return Crop{Width: w, Height: h}
	}
	cw, ch := w, h
	// compare w/h with targetW/targetH without floating point
	if w*targetH > h*targetW {
		cw = h * targetW / targetH
	} else {
		ch = w * targetH / targetW
	}
	cw, ch = even(cw), even(ch)
	return Crop{
		Width:  cw,
		Height: ch,
		X:      (w - cw) / 2,
		Y:      (h - ch) / 2,
	}
}

func even(n int) int {
	if n%2 != 0 {
		n--
	}
	return max(n, 2)
}
