// Package textclean turns raw Reddit markdown into text a speech engine can read.
package textclean

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"reddit-shorts-pipeline/types"
)

var (
	boldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe    = regexp.MustCompile(`\*(.+?)\*`)
	strikeRe    = regexp.MustCompile(`~~(.+?)~~`)
	codeRe      = regexp.MustCompile("`([^`]*)`")
	linkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	quoteRe     = regexp.MustCompile(`(?m)^[ \t]*>.*$`)
	headerRe    = regexp.MustCompile(`(?m)^[ \t]*#+[ \t]+`)
	paragraphRe = regexp.MustCompile(`\n\s*\n+`)
	urlRe       = regexp.MustCompile(`(?i)(?:https?\S+|www\.\S+)`)
	hostileRe   = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;'-]`)
	dotsRe      = regexp.MustCompile(`\.{2,}`)
	bangsRe     = regexp.MustCompile(`!{2,}`)
	questionsRe = regexp.MustCompile(`\?{2,}`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

type contraction struct {
	re   *regexp.Regexp
	with string
}

// Longer forms come first so "won't" is not caught by a shorter rule.
var contractions = buildContractions([][2]string{
	{"won't", "will not"},
	{"can't", "cannot"},
	{"shan't", "shall not"},
	{"don't", "do not"},
	{"doesn't", "does not"},
	{"didn't", "did not"},
	{"isn't", "is not"},
	{"aren't", "are not"},
	{"wasn't", "was not"},
	{"weren't", "were not"},
	{"haven't", "have not"},
	{"hasn't", "has not"},
	{"hadn't", "had not"},
	{"wouldn't", "would not"},
	{"shouldn't", "should not"},
	{"couldn't", "could not"},
	{"mustn't", "must not"},
	{"needn't", "need not"},
	{"i'm", "I am"},
	{"i've", "I have"},
	{"i'll", "I will"},
	{"i'd", "I would"},
	{"you're", "you are"},
	{"you've", "you have"},
	{"you'll", "you will"},
	{"you'd", "you would"},
	{"he's", "he is"},
	{"he'll", "he will"},
	{"he'd", "he would"},
	{"she's", "she is"},
	{"she'll", "she will"},
	{"she'd", "she would"},
	{"it's", "it is"},
	{"it'll", "it will"},
	{"we're", "we are"},
	{"we've", "we have"},
	{"we'll", "we will"},
	{"we'd", "we would"},
	{"they're", "they are"},
	{"they've", "they have"},
	{"they'll", "they will"},
	{"they'd", "they would"},
	{"that's", "that is"},
	{"there's", "there is"},
	{"what's", "what is"},
	{"let's", "let us"},
})

func buildContractions(pairs [][2]string) []contraction {
	out := make([]contraction, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, contraction{
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p[0]) + `\b`),
			with: p[1],
		})
	}
	return out
}

// Normalize strips markdown, URLs and characters that trip up speech engines,
// expands contractions and flattens paragraphs into sentences. It is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = linkRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = strikeRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")
	text = quoteRe.ReplaceAllString(text, "")
	text = headerRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.NewReplacer("’", "'", "‘", "'").Replace(text)
	text = paragraphRe.ReplaceAllString(text, ". ")
	text = strings.ReplaceAll(text, "\n", " ")

	text = hostileRe.ReplaceAllString(text, "")
	// stripping can reassemble a URL out of something like h:ttp
	text = urlRe.ReplaceAllString(text, "")

	for _, c := range contractions {
		text = c.re.ReplaceAllStringFunc(text, func(m string) string {
			return matchCase(m, c.with)
		})
	}

	text = dotsRe.ReplaceAllString(text, ".")
	text = bangsRe.ReplaceAllString(text, "!")
	text = questionsRe.ReplaceAllString(text, "?")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// matchCase capitalizes the replacement when the matched contraction started a sentence.
func matchCase(matched, replacement string) string {
	first, _ := utf8.DecodeRuneInString(matched)
	if !unicode.IsUpper(first) {
		return replacement
	}
	r, size := utf8.DecodeRuneInString(replacement)
	return string(unicode.ToUpper(r)) + replacement[size:]
}

// CleanStory builds the normalized view of a stored story.
func CleanStory(story types.ScoredStory) types.CleanedStory {
	title := Normalize(story.Title)
	body := Normalize(story.Body)
	full := title + ". " + body

	return types.CleanedStory{
		ID:            story.ID,
		RedditID:      story.RedditID,
		Title:         title,
		Body:          body,
		FullText:      full,
		WordCount:     len(strings.Fields(full)),
		CharCount:     utf8.RuneCountInString(full),
		ViralityScore: story.ViralityScore,
		SourceBody:    story.Body,
	}
}
