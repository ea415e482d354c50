// Package enhance rewrites narration scripts with an LLM. Every failure falls
// back to the unenhanced script.
package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
)

const enhancePrompt = `You are a viral TikTok script writer. Transform this Reddit story into an engaging short-form video script.

ORIGINAL SCRIPT:
%s

YOUR TASK:
1. Create a POWERFUL hook in the first 3 seconds that makes people STOP scrolling
2. Use dramatic pacing - short punchy sentences for impact
3. Add natural pauses (use "..." for dramatic effect)
4. Build tension and emotional peaks
5. Use conversational language (contractions, informal tone)
6. Keep it under 300 words

RULES:
- NO meta-commentary ("let me tell you", "this is crazy")
- Start IMMEDIATELY with the hook
- Use first-person perspective
- Sound natural, like you're telling a friend
- Short sentences for TTS clarity

OUTPUT ONLY THE ENHANCED SCRIPT - NO EXPLANATIONS.`

// Request is a single-turn completion request.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion is the provider's text plus token usage.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Provider is a text-generation backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Enhancer rewrites scripts through an optional Provider.
type Enhancer struct {
	provider Provider
	cfg      config.EnhanceConfig
	logger   *slog.Logger
}

// New picks the provider named in cfg. A missing credential leaves the
// enhancer in pass-through mode.
func New(cfg *config.Config, logger *slog.Logger) *Enhancer {
	logger = logging.Component(logger, "enhance")
	key := cfg.EnhanceKey()

	var p Provider
	switch {
	case cfg.Enhance.Provider == "none" || cfg.Enhance.Provider == "":
	case key == "":
		logger.Warn("no API key for enhancement provider, running in pass-through mode", "provider", cfg.Enhance.Provider)
	case cfg.Enhance.Provider == "anthropic":
		p = NewAnthropicProvider(key, cfg.Enhance.Model)
	case cfg.Enhance.Provider == "groq":
		p = NewGroqProvider(cfg.Enhance.GroqURL, key, cfg.Enhance.Model, cfg.Enhance.Timeout)
	}
	return NewWithProvider(p, cfg.Enhance, logger)
}

// NewWithProvider builds an enhancer around p. A nil p means pass-through.
func NewWithProvider(p Provider, cfg config.EnhanceConfig, logger *slog.Logger) *Enhancer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if logger == nil {
		logger = logging.Component(nil, "enhance")
	}
	return &Enhancer{provider: p, cfg: cfg, logger: logger}
}

// Enabled reports whether a provider is configured.
func (e *Enhancer) Enabled() bool {
	return e.provider != nil
}

// Enhance returns a rewritten script, or script unchanged when enhancement is
// disabled or fails.
func (e *Enhancer) Enhance(ctx context.Context, script, title string) string {
	if e.provider == nil {
		e.logger.Info("enhancement disabled, returning original script")
		return script
	}
	if strings.TrimSpace(script) == "" {
		return script
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.provider.Complete(ctx, Request{
		Prompt:      fmt.Sprintf(enhancePrompt, script),
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		e.logger.Error("enhancement failed, falling back to original script", "provider", e.provider.Name(), "title", title, "err", err)
		return script
	}

	enhanced := strings.TrimSpace(out.Text)
	if enhanced == "" {
		e.logger.Warn("provider returned empty script, falling back to original", "provider", e.provider.Name())
		return script
	}

	e.logUsage(out, "words_before", len(strings.Fields(script)), "words_after", len(strings.Fields(enhanced)))
	return enhanced
}

// Cost estimates the dollar cost of a completion from the configured per-million-token prices.
func (e *Enhancer) Cost(c Completion) float64 {
	return float64(c.InputTokens)*e.cfg.InputCostPerMTok/1e6 + float64(c.OutputTokens)*e.cfg.OutputCostPerMTok/1e6
}

func (e *Enhancer) logUsage(c Completion, args ...any) {
	args = append(args,
		"provider", e.provider.Name(),
		"input_tokens", c.InputTokens,
		"output_tokens", c.OutputTokens,
		"cost_usd", fmt.Sprintf("%.4f", e.Cost(c)),
	)
	e.logger.Info("script enhanced", args...)
}
