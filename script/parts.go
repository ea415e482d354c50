package script

import (
	"regexp"
	"strings"

	"reddit-shorts-pipeline/textclean"
)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// Part is one video's worth of a story split across several videos.
type Part struct {
	Script     string `json:"script"`
	Number     int    `json:"part_number"`
	Total      int    `json:"total_parts"`
	WordCount  int    `json:"word_count"`
	Hook       string `json:"hook,omitempty"`
	Paragraphs int    `json:"paragraphs"`
}

// SplitParts packs whole paragraphs into parts of at most maxWords words.
// The first part opens with the hook intro. A single paragraph longer than
// maxWords becomes its own part rather than being cut.
func (s *Shaper) SplitParts(body string, maxWords int) []Part {
	if maxWords <= 0 {
		maxWords = s.cfg.MaxWordsPerPart
	}

	var paras []string
	for _, p := range blankLineRe.Split(StripMetadata(body), -1) {
		if n := textclean.Normalize(p); n != "" {
			paras = append(paras, n)
		}
	}
	if len(paras) == 0 {
		return nil
	}

	hook, span := extractHook(strings.Join(paras, " "))
	for i, p := range paras {
		if strings.Contains(p, span) {
			paras[i] = strings.TrimSpace(strings.Replace(p, span, "", 1))
			break
		}
	}

	intro := Intro(hook)
	current := []string{intro}
	words := len(strings.Fields(intro))
	var parts []Part

	flush := func() {
		parts = append(parts, Part{
			Script:     strings.Join(current, "\n\n"),
			Number:     len(parts) + 1,
			WordCount:  words,
			Paragraphs: len(current),
		})
		current, words = nil, 0
	}

	for _, p := range paras {
		if p == "" {
			continue
		}
		n := len(strings.Fields(p))
		if words+n > maxWords && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		words += n
	}
	if len(current) > 0 {
		flush()
	}

	for i := range parts {
		parts[i].Total = len(parts)
	}
	parts[0].Hook = hook
	return parts
}
