package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "TREND_ILLUSTRATOR_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	youtubeAPIKeyEnv  = "YOUTUBE_API_KEY"
	summarizerKeyEnv  = "SUMMARIZER_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	imageBucketEnv    = "IMAGE_BUCKET"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Sources       []SourceConfig     `yaml:"sources"`
	YouTube       YouTubeConfig      `yaml:"youtube"`
	Summarizer    SummarizerConfig   `yaml:"summarizer"`
	Images        ImagesConfig       `yaml:"images"`
	Storage       StorageConfig      `yaml:"storage"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines how often the pipeline runs; zero disables the
// recurring schedule and the binary performs a single pass.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
}

// Interval resolves the configured minutes to a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// SourceConfig describes a single trending source with its strategy.
type SourceConfig struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Platform   string            `yaml:"platform"`
	Region     string            `yaml:"region"`
	URL        string            `yaml:"url"`
	MaxResults int               `yaml:"maxResults"`
	Options    map[string]string `yaml:"options"`
}

// YouTubeConfig carries Data API credentials shared by youtube sources.
type YouTubeConfig struct {
	APIKey string `yaml:"apiKey"`
}

// SummarizerConfig defines how to contact the OpenAI-compatible API.
type SummarizerConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// ImagesConfig bounds illustration generation.
type ImagesConfig struct {
	TopN              int    `yaml:"topN"`
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	MinBytes          int64  `yaml:"minBytes"`
	MaxRetries        int    `yaml:"maxRetries"`
	BaseDelaySeconds  int    `yaml:"baseDelaySeconds"`
	MaxDelaySeconds   int    `yaml:"maxDelaySeconds"`
	StoryDelaySeconds int    `yaml:"storyDelaySeconds"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds"`
	Force             bool   `yaml:"force"`
	BackendURL        string `yaml:"backendUrl"`
	Model             string `yaml:"model"`
}

// StorageConfig selects and parameterizes the artifact store backend.
type StorageConfig struct {
	Backend string             `yaml:"backend"`
	Local   LocalStorageConfig `yaml:"local"`
	S3      S3StorageConfig    `yaml:"s3"`
}

// LocalStorageConfig describes the flat image directory.
type LocalStorageConfig struct {
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"urlPrefix"`
}

// S3StorageConfig describes the object-storage bucket.
type S3StorageConfig struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(youtubeAPIKeyEnv); v != "" {
		c.YouTube.APIKey = v
	}

	if v := os.Getenv(summarizerKeyEnv); v != "" {
		c.Summarizer.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(imageBucketEnv); v != "" {
		c.Storage.S3.Bucket = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.IntervalMinutes != 0 {
		base.Scheduler = override.Scheduler
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	if override.YouTube.APIKey != "" {
		base.YouTube = override.YouTube
	}

	if override.Summarizer.Endpoint != "" {
		base.Summarizer.Endpoint = override.Summarizer.Endpoint
	}
	if override.Summarizer.Model != "" {
		base.Summarizer.Model = override.Summarizer.Model
	}
	if override.Summarizer.APIKey != "" {
		base.Summarizer.APIKey = override.Summarizer.APIKey
	}
	if override.Summarizer.SystemPrompt != "" {
		base.Summarizer.SystemPrompt = override.Summarizer.SystemPrompt
	}

	base.Images = mergeImages(base.Images, override.Images)

	if override.Storage.Backend != "" {
		base.Storage.Backend = override.Storage.Backend
	}
	if override.Storage.Local.Dir != "" {
		base.Storage.Local.Dir = override.Storage.Local.Dir
	}
	if override.Storage.Local.URLPrefix != "" {
		base.Storage.Local.URLPrefix = override.Storage.Local.URLPrefix
	}
	if override.Storage.S3.Bucket != "" {
		base.Storage.S3.Bucket = override.Storage.S3.Bucket
	}
	if override.Storage.S3.Region != "" {
		base.Storage.S3.Region = override.Storage.S3.Region
	}
	if override.Storage.S3.PublicBaseURL != "" {
		base.Storage.S3.PublicBaseURL = override.Storage.S3.PublicBaseURL
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func mergeImages(base, override ImagesConfig) ImagesConfig {
	if override.TopN != 0 {
		base.TopN = override.TopN
	}
	if override.Width != 0 {
		base.Width = override.Width
	}
	if override.Height != 0 {
		base.Height = override.Height
	}
	if override.MinBytes != 0 {
		base.MinBytes = override.MinBytes
	}
	if override.MaxRetries != 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.BaseDelaySeconds != 0 {
		base.BaseDelaySeconds = override.BaseDelaySeconds
	}
	if override.MaxDelaySeconds != 0 {
		base.MaxDelaySeconds = override.MaxDelaySeconds
	}
	if override.StoryDelaySeconds != 0 {
		base.StoryDelaySeconds = override.StoryDelaySeconds
	}
	if override.TimeoutSeconds != 0 {
		base.TimeoutSeconds = override.TimeoutSeconds
	}
	if override.BackendURL != "" {
		base.BackendURL = override.BackendURL
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	base.Force = base.Force || override.Force
	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{IntervalMinutes: 0},
		Summarizer: SummarizerConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKey:       "",
			SystemPrompt: "You write one-paragraph summaries of trending videos.",
		},
		Images: ImagesConfig{
			TopN:              3,
			Width:             1024,
			Height:            576,
			MinBytes:          15 * 1024,
			MaxRetries:        3,
			BaseDelaySeconds:  2,
			MaxDelaySeconds:   30,
			StoryDelaySeconds: 2,
			TimeoutSeconds:    60,
			BackendURL:        "https://image.pollinations.ai",
			Model:             "flux",
		},
		Storage: StorageConfig{
			Backend: "local",
			Local:   LocalStorageConfig{Dir: "data/images", URLPrefix: "/images"},
			S3:      S3StorageConfig{Region: "us-east-1"},
		},
		Sources: []SourceConfig{
			{
				Name:       "youtube-trending",
				Kind:       "youtube",
				Platform:   "youtube",
				Region:     "US",
				MaxResults: 25,
			},
		},
	}
}
