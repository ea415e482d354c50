package enhance

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const hookPrompt = `Generate %d different VIRAL hooks for this story. Each hook should:
- Be 1-2 sentences max
- Make people STOP scrolling
- Create curiosity/shock/emotion
- Work in first 3 seconds of video

STORY:
%s

OUTPUT FORMAT (one per line):
1. [hook]
2. [hook]
3. [hook]`

const hookStoryChars = 500

var numberedRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// HookOptions asks the provider for count alternative opening hooks.
// It returns an empty list when disabled or on any failure.
func (e *Enhancer) HookOptions(ctx context.Context, storyText string, count int) []string {
	if e.provider == nil || count <= 0 || strings.TrimSpace(storyText) == "" {
		return []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.provider.Complete(ctx, Request{
		Prompt:      fmt.Sprintf(hookPrompt, count, truncateRunes(storyText, hookStoryChars)),
		MaxTokens:   300,
		Temperature: e.cfg.HookTemperature,
	})
	if err != nil {
		e.logger.Error("hook generation failed", "provider", e.provider.Name(), "err", err)
		return []string{}
	}

	hooks := parseHooks(out.Text, count)
	e.logger.Info("generated hook options", "count", len(hooks), "input_tokens", out.InputTokens, "output_tokens", out.OutputTokens)
	return hooks
}

// parseHooks reads one hook per non-empty line, dropping list markers and
// wrapping quotes or brackets.
func parseHooks(text string, limit int) []string {
	hooks := []string{}
	for _, line := range strings.Split(cleanFences(text), "\n") {
		line = strings.TrimSpace(numberedRe.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"[]`)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hooks = append(hooks, line)
		if len(hooks) == limit {
			break
		}
	}
	return hooks
}

// cleanFences strips markdown fences if the model wraps its answer in ``` ... ```
func cleanFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
