// Package scoring computes the virality heuristic used to rank scraped stories.
package scoring

import (
	"math"

	"reddit-shorts-pipeline/config"
)

const minHours = 0.1

// Metrics are the engagement inputs for one post.
type Metrics struct {
	Upvotes     int
	Comments    int
	UpvoteRatio float64
	Awards      int
	WordCount   int
	HoursOld    float64
	Sentiment   float64
}

// Components holds the weighted contribution of each term to the final score.
type Components struct {
	UpvoteVelocity  float64 `json:"upvote_velocity"`
	CommentVelocity float64 `json:"comment_velocity"`
	UpvoteRatio     float64 `json:"upvote_ratio"`
	Awards          float64 `json:"awards"`
	Length          float64 `json:"length"`
	Sentiment       float64 `json:"sentiment"`
}

func (c Components) Total() float64 {
	return c.UpvoteVelocity + c.CommentVelocity + c.UpvoteRatio + c.Awards + c.Length + c.Sentiment
}

type Scorer struct {
	cfg config.ViralityConfig
}

func New(cfg config.ViralityConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Default returns a scorer with the stock weights and bounds.
func Default() *Scorer {
	return New(config.Default().Virality)
}

// Score returns the virality score rounded to two decimals. It is never negative.
func (s *Scorer) Score(m Metrics) float64 {
	return round2(s.Breakdown(m).Total())
}

func (s *Scorer) Breakdown(m Metrics) Components {
	w := s.cfg.Weights
	hours := math.Max(m.HoursOld, minHours)

	upVel := math.Min(float64(max(m.Upvotes, 0))/hours, s.cfg.UpvoteVelocityCap)
	comVel := math.Min(float64(max(m.Comments, 0))/hours, s.cfg.CommentVelocityCap)
	ratio := clamp(m.UpvoteRatio, 0, 1)
	awards := math.Min(float64(max(m.Awards, 0))*10, s.cfg.AwardsCap)
	sentiment := math.Abs(clamp(m.Sentiment, -1, 1))

	return Components{
		UpvoteVelocity:  w.UpvoteVelocity * upVel,
		CommentVelocity: w.CommentVelocity * comVel,
		UpvoteRatio:     w.UpvoteRatio * ratio * 100,
		Awards:          w.Awards * awards,
		Length:          w.Length * s.LengthScore(m.WordCount) * 100,
		Sentiment:       w.Sentiment * sentiment * 100,
	}
}

// LengthScore is 1.0 inside the optimal band, rises linearly from 0 below it
// and decays linearly to 0 at ZeroAtWords above it.
func (s *Scorer) LengthScore(words int) float64 {
	lo, hi, zero := s.cfg.OptimalMinWords, s.cfg.OptimalMaxWords, s.cfg.ZeroAtWords
	switch {
	case words <= 0:
		return 0
	case words < lo:
		return float64(words) / float64(lo)
	case words <= hi:
		return 1
	default:
		return math.Max(0, 1-float64(words-hi)/float64(zero-hi))
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
