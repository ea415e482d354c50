package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential marks a configured feature whose secret is absent from the environment.
var ErrMissingCredential = errors.New("missing credential")

type Config struct {
	Reddit    RedditConfig    `yaml:"reddit"`
	Virality  ViralityConfig  `yaml:"virality"`
	Script    ScriptConfig    `yaml:"script"`
	Enhance   EnhanceConfig   `yaml:"enhance"`
	TTS       TTSConfig       `yaml:"tts"`
	Video     VideoConfig     `yaml:"video"`
	Storage   StorageConfig   `yaml:"storage"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Review    ReviewConfig    `yaml:"review"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Logging   LoggingConfig   `yaml:"logging"`
	Paths     PathsConfig     `yaml:"paths"`
}

type RedditConfig struct {
	Subreddits  []string      `yaml:"subreddits"`
	PostsPerRun int           `yaml:"posts_per_run"`
	MinUpvotes  int           `yaml:"min_upvotes"`
	MinHoursOld float64       `yaml:"min_hours_old"`
	MaxWords    int           `yaml:"max_words"`
	FetchDelay  time.Duration `yaml:"fetch_delay"`
	SaveDelay   time.Duration `yaml:"save_delay"`

	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	Username     string `yaml:"-"`
	Password     string `yaml:"-"`
	UserAgent    string `yaml:"user_agent"`
}

// Weights are the virality score coefficients. They should sum to 1.0.
type Weights struct {
	UpvoteVelocity  float64 `yaml:"upvote_velocity"`
	CommentVelocity float64 `yaml:"comment_velocity"`
	UpvoteRatio     float64 `yaml:"upvote_ratio"`
	Awards          float64 `yaml:"awards"`
	Length          float64 `yaml:"length"`
	Sentiment       float64 `yaml:"sentiment"`
}

func (w Weights) Sum() float64 {
	return w.UpvoteVelocity + w.CommentVelocity + w.UpvoteRatio + w.Awards + w.Length + w.Sentiment
}

type ViralityConfig struct {
	Weights            Weights `yaml:"weights"`
	OptimalMinWords    int     `yaml:"optimal_min_words"`
	OptimalMaxWords    int     `yaml:"optimal_max_words"`
	ZeroAtWords        int     `yaml:"zero_at_words"`
	UpvoteVelocityCap  float64 `yaml:"upvote_velocity_cap"`
	CommentVelocityCap float64 `yaml:"comment_velocity_cap"`
	AwardsCap          float64 `yaml:"awards_cap"`
}

type ScriptConfig struct {
	MaxDurationSeconds int `yaml:"max_duration_seconds"`
	WordsPerMinute     int `yaml:"words_per_minute"`
	MaxWordsPerPart    int `yaml:"max_words_per_part"`
}

type EnhanceConfig struct {
	Provider          string        `yaml:"provider"` // anthropic | groq | none
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float64       `yaml:"temperature"`
	HookTemperature   float64       `yaml:"hook_temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	GroqURL           string        `yaml:"groq_url"`
	InputCostPerMTok  float64       `yaml:"input_cost_per_mtok"`
	OutputCostPerMTok float64       `yaml:"output_cost_per_mtok"`

	AnthropicAPIKey string `yaml:"-"`
	GroqAPIKey      string `yaml:"-"`
}

type TTSConfig struct {
	Engines       []string      `yaml:"engines"` // tried in order: gtts, edge-tts, command
	Lang          string        `yaml:"lang"`
	FallbackVoice string        `yaml:"fallback_voice"`
	Timeout       time.Duration `yaml:"timeout"`

	Command string `yaml:"-"`
}

type VideoConfig struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	FPS          int    `yaml:"fps"`
	VideoCodec   string `yaml:"video_codec"`
	AudioCodec   string `yaml:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate"`
	Preset       string `yaml:"preset"`
	CRF          int    `yaml:"crf"`
	Seed         int64  `yaml:"seed"` // 0 seeds from the clock
	FFmpegPath   string `yaml:"ffmpeg_path"`
	FFprobePath  string `yaml:"ffprobe_path"`

	// BackgroundSources are clips fetched into paths.backgrounds by the
	// backgrounds command.
	BackgroundSources []BackgroundSource `yaml:"background_sources"`
}

type BackgroundSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite
	DSN    string `yaml:"dsn"`
}

type ArtifactsConfig struct {
	Backend       string `yaml:"backend"` // local | drive
	DriveFolderID string `yaml:"drive_folder_id"`

	GoogleClientID     string `yaml:"-"`
	GoogleClientSecret string `yaml:"-"`
	GoogleRefreshToken string `yaml:"-"`
}

type ReviewConfig struct {
	Addr           string        `yaml:"addr"`
	DefaultActor   string        `yaml:"default_actor"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TruncateChars  int           `yaml:"truncate_chars"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type ScheduleConfig struct {
	Cron       string `yaml:"cron"`
	Timezone   string `yaml:"timezone"`
	StoryCount int    `yaml:"story_count"`
	SkipScrape bool   `yaml:"skip_scrape"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type PathsConfig struct {
	Backgrounds string `yaml:"backgrounds"`
	Output      string `yaml:"output"`
	Logs        string `yaml:"logs"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Reddit: RedditConfig{
			Subreddits:  []string{"AmItheAsshole", "relationship_advice", "TrueOffMyChest"},
			PostsPerRun: 25,
			MinUpvotes:  100,
			MinHoursOld: 1,
			MaxWords:    1500,
			FetchDelay:  time.Second,
			SaveDelay:   500 * time.Millisecond,
			UserAgent:   "reddit-shorts-pipeline/1.0",
		},
		Virality: ViralityConfig{
			Weights: Weights{
				UpvoteVelocity:  0.30,
				CommentVelocity: 0.25,
				UpvoteRatio:     0.15,
				Awards:          0.15,
				Length:          0.10,
				Sentiment:       0.05,
			},
			OptimalMinWords:    300,
			OptimalMaxWords:    800,
			ZeroAtWords:        1500,
			UpvoteVelocityCap:  100,
			CommentVelocityCap: 50,
			AwardsCap:          50,
		},
		Script: ScriptConfig{
			MaxDurationSeconds: 180,
			WordsPerMinute:     150,
			MaxWordsPerPart:    450,
		},
		Enhance: EnhanceConfig{
			Provider:          "anthropic",
			Model:             "claude-haiku-4-5-20251001",
			MaxTokens:         500,
			Temperature:       0.7,
			HookTemperature:   0.9,
			Timeout:           30 * time.Second,
			GroqURL:           "https://api.groq.com/openai/v1/chat/completions",
			InputCostPerMTok:  0.8,
			OutputCostPerMTok: 4,
		},
		TTS: TTSConfig{
			Engines:       []string{"gtts", "edge-tts"},
			Lang:          "en",
			FallbackVoice: "en-US-GuyNeural",
			Timeout:       2 * time.Minute,
		},
		Video: VideoConfig{
			Width:        1080,
			Height:       1920,
			FPS:          30,
			VideoCodec:   "libx264",
			AudioCodec:   "aac",
			AudioBitrate: "192k",
			Preset:       "medium",
			CRF:          23,
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "data/shorts.db",
		},
		Artifacts: ArtifactsConfig{
			Backend: "local",
		},
		Review: ReviewConfig{
			Addr:           ":8080",
			DefaultActor:   "reviewer",
			AllowedOrigins: []string{"*"},
			TruncateChars:  500,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Cron:       "0 9,18 * * *",
			Timezone:   "UTC",
			StoryCount: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Paths: PathsConfig{
			Backgrounds: "assets/backgrounds",
			Output:      "output",
			Logs:        "logs",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.Reddit.ClientID, "REDDIT_CLIENT_ID")
	set(&cfg.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	set(&cfg.Reddit.Username, "REDDIT_USERNAME")
	set(&cfg.Reddit.Password, "REDDIT_PASSWORD")
	set(&cfg.Reddit.UserAgent, "REDDIT_USER_AGENT")
	set(&cfg.Enhance.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	set(&cfg.Enhance.GroqAPIKey, "GROQ_API_KEY")
	set(&cfg.Enhance.Provider, "ENHANCE_PROVIDER")
	set(&cfg.TTS.Command, "TTS_COMMAND")
	set(&cfg.Storage.DSN, "DATABASE_URL")
	set(&cfg.Storage.Driver, "DATABASE_DRIVER")
	set(&cfg.Artifacts.GoogleClientID, "GOOGLE_CLIENT_ID")
	set(&cfg.Artifacts.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&cfg.Artifacts.GoogleRefreshToken, "GOOGLE_REFRESH_TOKEN")
	set(&cfg.Review.Addr, "REVIEW_ADDR")
	set(&cfg.Logging.Level, "LOG_LEVEL")

	if v := getenv("VIDEO_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Video.Seed = seed
		}
	}
}

// Validate reports configuration that would make the pipeline unusable.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Reddit.Subreddits) == 0 {
		errs = append(errs, errors.New("reddit.subreddits must not be empty"))
	}
	if c.Script.WordsPerMinute <= 0 {
		errs = append(errs, errors.New("script.words_per_minute must be positive"))
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		errs = append(errs, fmt.Errorf("video resolution %dx%d is invalid", c.Video.Width, c.Video.Height))
	}
	if c.Video.FPS <= 0 {
		errs = append(errs, errors.New("video.fps must be positive"))
	}
	if c.Virality.OptimalMinWords <= 0 || c.Virality.OptimalMaxWords < c.Virality.OptimalMinWords || c.Virality.ZeroAtWords <= c.Virality.OptimalMaxWords {
		errs = append(errs, errors.New("virality word bounds must satisfy 0 < min <= max < zero_at"))
	}

	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: storage dsn (DATABASE_URL)", ErrMissingCredential))
	}

	switch c.Enhance.Provider {
	case "anthropic", "groq", "none", "":
	default:
		errs = append(errs, fmt.Errorf("enhance.provider %q is not supported", c.Enhance.Provider))
	}

	switch c.Artifacts.Backend {
	case "local", "":
	case "drive":
		if c.Artifacts.GoogleClientID == "" || c.Artifacts.GoogleClientSecret == "" || c.Artifacts.GoogleRefreshToken == "" {
			errs = append(errs, fmt.Errorf("%w: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN are required for the drive backend", ErrMissingCredential))
		}
	default:
		errs = append(errs, fmt.Errorf("artifacts.backend %q is not supported", c.Artifacts.Backend))
	}

	return errors.Join(errs...)
}

// WeightsBalanced reports whether the virality weights sum to 1.0.
func (c *Config) WeightsBalanced() bool {
	return math.Abs(c.Virality.Weights.Sum()-1.0) <= 0.001
}

// EnhanceKey returns the credential for the configured enhancement provider.
func (c *Config) EnhanceKey() string {
	switch c.Enhance.Provider {
	case "anthropic":
		return c.Enhance.AnthropicAPIKey
	case "groq":
		return c.Enhance.GroqAPIKey
	}
	return ""
}
