package render

import (
	"fmt"
	"strconv"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/visuals"
)

// Job is everything needed to build one ffmpeg invocation.
type Job struct {
	Plan      visuals.Plan
	Crop      visuals.Crop
	Narration string
	Output    string
}

// BuildArgs returns ffmpeg arguments that loop and seek the background, crop it
// to the target aspect, scale it to the exact resolution and mux the narration
// as the only audio track, cut to the plan's duration.
func BuildArgs(cfg config.VideoConfig, job Job) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	if loops := job.Plan.Loops(); loops > 0 {
		args = append(args, "-stream_loop", strconv.Itoa(loops))
	}
	if job.Plan.Offset > 0 {
		args = append(args, "-ss", seconds(job.Plan.Offset))
	}
	args = append(args,
		"-i", job.Plan.Clip,
		"-i", job.Narration,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", videoFilter(cfg, job.Crop),
		"-t", seconds(job.Plan.Duration),
		"-r", strconv.Itoa(cfg.FPS),
		"-c:v", cfg.VideoCodec,
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", cfg.AudioCodec,
		"-b:a", cfg.AudioBitrate,
		"-movflags", "+faststart", // optimize for web streaming
		job.Output,
	)
	return args
}

func videoFilter(cfg config.VideoConfig, c visuals.Crop) string {
	scale := fmt.Sprintf("scale=%d:%d:flags=lanczos,setsar=1,fps=%d", cfg.Width, cfg.Height, cfg.FPS)
	if c.Width <= 0 || c.Height <= 0 {
		// unknown source size: crop from the filter graph's own input dimensions
		return fmt.Sprintf("crop='min(iw,ih*%d/%d)':'min(ih,iw*%d/%d)',%s", cfg.Width, cfg.Height, cfg.Height, cfg.Width, scale)
	}
	return fmt.Sprintf("crop=%d:%d:%d:%d,%s", c.Width, c.Height, c.X, c.Y, scale)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
