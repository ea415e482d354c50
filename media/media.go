// Package media wraps the ffmpeg and ffprobe binaries.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const stderrTail = 800

// Info is what the pipeline needs to know about a media file.
type Info struct {
	Duration float64 // seconds
	Width    int
	Height   int
}

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// Runner executes an external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec and folds the end of stderr into errors.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), stderrTail))
	}
	return nil
}

// FFprobe probes files with the ffprobe binary at Bin.
type FFprobe struct {
	Bin string
}

func (p FFprobe) Probe(ctx context.Context, path string) (Info, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	out, err := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbe(out)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// ParseProbe decodes ffprobe's JSON output. Duration comes from the container,
// falling back to the longest stream.
func ParseProbe(data []byte) (Info, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var (
		info    Info
		longest float64
	)
	info.Duration = parseSeconds(raw.Format.Duration)
	for _, s := range raw.Streams {
		if s.CodecType == "video" && info.Width == 0 {
			info.Width, info.Height = s.Width, s.Height
		}
		if d := parseSeconds(s.Duration); d > longest {
			longest = d
		}
	}
	if info.Duration == 0 {
		info.Duration = longest
	}
	if info.Duration <= 0 {
		return Info{}, fmt.Errorf("ffprobe reported no duration")
	}
	return info, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
