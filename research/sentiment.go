package research

import (
	"strings"

	"github.com/jonreiter/govader"
)

// Analyzer returns a polarity in [-1, 1].
type Analyzer interface {
	Polarity(text string) float64
}

// VaderAnalyzer scores polarity with the VADER lexicon.
type VaderAnalyzer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderAnalyzer() *VaderAnalyzer {
	return &VaderAnalyzer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderAnalyzer) Polarity(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return v.analyzer.PolarityScores(text).Compound
}
