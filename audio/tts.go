// Package audio synthesizes narration with external TTS engines.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
	"reddit-shorts-pipeline/media"
)

// Engine writes spoken text to an audio file.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text, outFile string) error
}

// GTTSEngine calls the gtts-cli binary (Google Translate TTS).
type GTTSEngine struct {
	Lang   string
	Runner media.Runner
}

func (g GTTSEngine) Name() string   { return "gtts" }
func (g GTTSEngine) Binary() string { return "gtts-cli" }

func (g GTTSEngine) Synthesize(ctx context.Context, text, outFile string) error {
	return g.Runner.Run(ctx, "gtts-cli", "--lang", g.Lang, "--output", outFile, text)
}

// EdgeTTSEngine calls edge-tts (free Microsoft TTS) with a named voice.
type EdgeTTSEngine struct {
	Voice  string
	Runner media.Runner
}

func (e EdgeTTSEngine) Name() string   { return "edge-tts" }
func (e EdgeTTSEngine) Binary() string { return "edge-tts" }

func (e EdgeTTSEngine) Synthesize(ctx context.Context, text, outFile string) error {
	return e.Runner.Run(ctx, "edge-tts", "--voice", e.Voice, "--text", text, "--write-media", outFile)
}

// CommandEngine calls a user-provided TTS command accepting
// --text "..." --output path/to/file.mp3
type CommandEngine struct {
	Command string
	Runner  media.Runner
}

func (c CommandEngine) Name() string { return "command" }

func (c CommandEngine) Binary() string {
	cmd := strings.TrimSpace(c.Command)
	if strings.HasSuffix(cmd, ".py") {
		return "python3"
	}
	return cmd
}

func (c CommandEngine) Synthesize(ctx context.Context, text, outFile string) error {
	cmd := strings.TrimSpace(c.Command)
	if cmd == "" {
		return fmt.Errorf("TTS_COMMAND not set")
	}
	if strings.HasSuffix(cmd, ".py") {
		return c.Runner.Run(ctx, "python3", cmd, "--text", text, "--output", outFile)
	}
	return c.Runner.Run(ctx, cmd, "--text", text, "--output", outFile)
}

// Synthesizer tries its engines in order until one produces audio.
type Synthesizer struct {
	engines []Engine
	timeout time.Duration
	logger  *slog.Logger
}

// NewSynthesizer builds the engine chain named in cfg.TTS.Engines.
func NewSynthesizer(cfg config.TTSConfig, runner media.Runner, logger *slog.Logger) *Synthesizer {
	logger = logging.Component(logger, "audio")
	var engines []Engine
	for _, name := range cfg.Engines {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "gtts":
			engines = append(engines, GTTSEngine{Lang: cfg.Lang, Runner: runner})
		case "edge-tts", "edge":
			engines = append(engines, EdgeTTSEngine{Voice: cfg.FallbackVoice, Runner: runner})
		case "command":
			engines = append(engines, CommandEngine{Command: cfg.Command, Runner: runner})
		default:
			logger.Warn("unknown TTS engine ignored", "engine", name)
		}
	}
	return NewWithEngines(engines, cfg.Timeout, logger)
}

func NewWithEngines(engines []Engine, timeout time.Duration, logger *slog.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.Component(nil, "audio")
	}
	return &Synthesizer{engines: engines, timeout: timeout, logger: logger}
}

// Engines returns the configured engine names in fallback order.
func (s *Synthesizer) Engines() []string {
	names := make([]string, 0, len(s.engines))
	for _, e := range s.engines {
		names = append(names, e.Name())
	}
	return names
}

// Check reports engines whose binary is not on PATH. It fails only when no
// engine at all is usable.
func (s *Synthesizer) Check() (missing []string, err error) {
	for _, e := range s.engines {
		b, ok := e.(interface{ Binary() string })
		if !ok {
			continue
		}
		if bin := b.Binary(); bin == "" {
			missing = append(missing, e.Name())
		} else if _, lookErr := exec.LookPath(bin); lookErr != nil {
			missing = append(missing, e.Name())
		}
	}
	if len(s.engines) == 0 || len(missing) == len(s.engines) {
		return missing, fmt.Errorf("no usable TTS engine among %v", s.Engines())
	}
	return missing, nil
}

// Synthesize writes narration for text to outFile. It reports success only
// when an engine produced a non-empty file and never returns an error.
func (s *Synthesizer) Synthesize(ctx context.Context, text, outFile string) bool {
	if strings.TrimSpace(text) == "" {
		s.logger.Error("refusing to synthesize empty text")
		return false
	}
	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		s.logger.Error("create audio dir", "err", err)
		return false
	}

	for i, engine := range s.engines {
		if ctx.Err() != nil {
			return false
		}
		if i > 0 {
			s.logger.Warn("falling back to secondary TTS engine", "engine", engine.Name())
		}
		if err := s.try(ctx, engine, text, outFile); err != nil {
			s.logger.Warn("TTS engine failed", "engine", engine.Name(), "err", err)
			_ = os.Remove(outFile)
			continue
		}
		s.logger.Info("narration generated", "engine", engine.Name(), "file", outFile, "words", len(strings.Fields(text)))
		return true
	}

	s.logger.Error("all TTS engines failed", "engines", s.Engines())
	return false
}

func (s *Synthesizer) try(ctx context.Context, engine Engine, text, outFile string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := engine.Synthesize(ctx, text, outFile); err != nil {
		return err
	}
	info, err := os.Stat(outFile)
	if err != nil {
		return fmt.Errorf("no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty output file")
	}
	return nil
}
