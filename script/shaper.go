// Package script turns a cleaned story into a narration script with a hook-led intro.
package script

import (
	"math"
	"regexp"
	"strings"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/textclean"
)

var (
	tldrRe      = regexp.MustCompile(`(?is)\bTL;?\s?DR\b:?.*?(?:\n\s*\n|\z)`)
	separatorRe = regexp.MustCompile(`⸻+`)
	sentenceRe  = regexp.MustCompile(`[.!?]+\s+`)
)

// hookPatterns match dramatic openers, tried in order. Each pattern captures the
// sentence and requires whitespace or end of text after its terminal period.
var hookPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(After \d+ years[^.]+\.)(?:\s|$)`),
	regexp.MustCompile(`(?i)(I (?:just|never) (?:found out|discovered|learned)[^.]+\.)(?:\s|$)`),
	regexp.MustCompile(`(?i)(My (?:wife|husband|partner|girlfriend|boyfriend)[^.]+(?:cheated|left)[^.]*\.)(?:\s|$)`),
	regexp.MustCompile(`(?i)(Everything (?:changed|fell apart|was ruined)[^.]*\.)(?:\s|$)`),
}

// Result is a shaped script and the pieces it was built from.
type Result struct {
	Script           string  `json:"script"`
	Hook             string  `json:"hook"`
	Intro            string  `json:"intro"`
	WordCount        int     `json:"word_count"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
	Trimmed          bool    `json:"trimmed"`
}

// Shaper builds narration scripts sized to a spoken duration.
type Shaper struct {
	cfg config.ScriptConfig
}

func New(cfg config.ScriptConfig) *Shaper {
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 150
	}
	return &Shaper{cfg: cfg}
}

// Shape strips TL;DR blocks, extracts a hook, prepends an intro and trims the
// result to maxDurationSeconds. A non-positive maximum disables trimming.
// The title is not read aloud. A body that is not blank never yields an
// empty script: when nothing survives normalization the bare intro remains.
func (s *Shaper) Shape(body, title string, maxDurationSeconds int) Result {
	if strings.TrimSpace(body) == "" {
		return Result{}
	}
	clean := textclean.Normalize(StripMetadata(body))
	if clean == "" {
		intro := Intro("")
		text, trimmed := s.EnforceBudget(intro, maxDurationSeconds)
		words := len(strings.Fields(text))
		return Result{
			Script:           text,
			Intro:            intro,
			WordCount:        words,
			EstimatedSeconds: s.EstimateSeconds(words),
			Trimmed:          trimmed,
		}
	}

	hook, span := extractHook(clean)
	intro := Intro(hook)
	rest := strings.TrimSpace(strings.Replace(clean, span, "", 1))

	text := intro
	if rest != "" {
		text = intro + "\n\n" + rest
	}

	text, trimmed := s.EnforceBudget(text, maxDurationSeconds)
	words := len(strings.Fields(text))
	return Result{
		Script:           text,
		Hook:             hook,
		Intro:            intro,
		WordCount:        words,
		EstimatedSeconds: s.EstimateSeconds(words),
		Trimmed:          trimmed,
	}
}

// StripMetadata removes TL;DR blocks and decorative separators from a raw body.
func StripMetadata(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = tldrRe.ReplaceAllString(body, "\n\n")
	body = separatorRe.ReplaceAllString(body, "")
	return strings.TrimSpace(body)
}

// ExtractHook returns the first dramatic opener in text, or its first sentence.
func ExtractHook(text string) string {
	hook, _ := extractHook(text)
	return hook
}

// extractHook also returns the exact span of text the hook came from, which
// differs from the hook only when terminal punctuation had to be added.
func extractHook(text string) (hook, span string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	for _, re := range hookPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], m[1]
		}
	}
	span = firstSentence(text)
	return ensureTerminal(span), span
}

func firstSentence(text string) string {
	loc := sentenceRe.FindStringIndex(text)
	if loc == nil {
		return text
	}
	// keep the punctuation, drop the whitespace
	end := loc[0] + len(strings.TrimRight(text[loc[0]:loc[1]], " \t\n\r"))
	return text[:end]
}

func ensureTerminal(s string) string {
	if s == "" || strings.ContainsAny(s[len(s)-1:], ".!?") {
		return s
	}
	return s + "."
}

// Intro wraps a hook in an opener chosen by keywords in the hook.
func Intro(hook string) string {
	lower := strings.ToLower(hook)
	var opener string
	switch {
	case strings.Contains(lower, "after") && strings.Contains(lower, "year"):
		opener = "After all this time..."
	case strings.Contains(lower, "found out") || strings.Contains(lower, "discovered"):
		opener = "I just found out something devastating."
	case strings.Contains(lower, "cheated"):
		opener = "I never thought this would happen to me."
	default:
		opener = "You won't believe what just happened."
	}
	return strings.TrimSpace(opener + " " + hook)
}

// WordBudget is the number of words that fit in seconds of speech.
// It is never below one for a positive duration.
func (s *Shaper) WordBudget(seconds int) int {
	n := int(math.Floor(float64(seconds) / 60 * float64(s.cfg.WordsPerMinute)))
	return max(n, 1)
}

func (s *Shaper) EstimateSeconds(words int) float64 {
	return float64(words) / float64(s.cfg.WordsPerMinute) * 60
}

// EnforceBudget truncates text at a word boundary when its spoken estimate
// exceeds maxDurationSeconds. Truncated output is joined with single spaces.
func (s *Shaper) EnforceBudget(text string, maxDurationSeconds int) (string, bool) {
	if maxDurationSeconds <= 0 {
		return text, false
	}
	words := strings.Fields(text)
	budget := s.WordBudget(maxDurationSeconds)
	if len(words) <= budget {
		return text, false
	}
	return strings.Join(words[:budget], " "), true
}
