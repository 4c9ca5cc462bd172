package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "ZENPRESS_CONFIG"
	storePathEnv    = "ZENPRESS_DB"
	openAIKeyEnv    = "OPENAI_API_KEY"
	openAIModelEnv  = "OPENAI_MODEL"
	telegramBotEnv  = "TG_BOT_TOKEN"
	telegramChatEnv = "TG_CHAT_ID"
)

// Config holds all settings required across the application.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Feed      FeedConfig      `yaml:"feed"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Ranker    RankerConfig    `yaml:"ranker"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig locates the SQLite file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ArtifactsConfig describes the on-disk artifact directory and the
// optional external screenshot command.
type ArtifactsConfig struct {
	Dir           string `yaml:"dir"`
	ScreenshotCmd string `yaml:"screenshotCmd"`
}

// FeedConfig describes the single source feed and its declared priority
// used by the ranker.
type FeedConfig struct {
	Name     string  `yaml:"name"`
	URL      string  `yaml:"url"`
	Scanner  string  `yaml:"scanner"`
	Priority float64 `yaml:"priority"`
}

// FetcherConfig bounds outbound page requests.
type FetcherConfig struct {
	UserAgent         string  `yaml:"userAgent"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds"`
}

// Timeout resolves the request timeout with a sane floor.
func (f FetcherConfig) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// RankerConfig tunes the deterministic selection stage.
type RankerConfig struct {
	TopK          int     `yaml:"topK"`
	WindowHours   int     `yaml:"windowHours"`
	RecencyWeight float64 `yaml:"recencyWeight"`
}

// Window resolves the recency window as a duration.
func (r RankerConfig) Window() time.Duration {
	if r.WindowHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(r.WindowHours) * time.Hour
}

// OpenAIConfig defines how to contact the chat-completions API.
type OpenAIConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"apiKey"`
	SystemPrompt string  `yaml:"systemPrompt"`
	Temperature  float64 `yaml:"temperature"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines the daemon-mode cadence.
type SchedulerConfig struct {
	IntervalHours int `yaml:"intervalHours"`
}

// Interval resolves the run cadence, defaulting to daily.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.IntervalHours) * time.Hour
}

// LoggingConfig controls console output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. The file path comes from ZENPRESS_CONFIG or the explicit
// argument; an empty path with no env var yields the defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(storePathEnv); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv(telegramBotEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Telegram.ChatID = v
	}
}

// ValidateDraft checks everything the draft stage needs before any work
// starts; a missing key fails the whole run.
func (c Config) ValidateDraft() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, fmt.Errorf("OPENAI_API_KEY is not set (env or openai.apiKey)"))
	}
	if c.OpenAI.Model == "" {
		errs = append(errs, fmt.Errorf("openai.model is empty"))
	}
	if c.OpenAI.Endpoint == "" {
		errs = append(errs, fmt.Errorf("openai.endpoint is empty"))
	}
	return errors.Join(errs...)
}

// ValidateNotify checks the notify stage prerequisites.
func (c Config) ValidateNotify() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, fmt.Errorf("TG_BOT_TOKEN is not set (env or telegram.botToken)"))
	}
	if c.Telegram.ChatID == "" {
		errs = append(errs, fmt.Errorf("TG_CHAT_ID is not set (env or telegram.chatId)"))
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	return Config{
		Store:     StoreConfig{Path: "zenpress.db"},
		Artifacts: ArtifactsConfig{Dir: "artifacts"},
		Feed: FeedConfig{
			Name:     "habr",
			URL:      "https://habr.com/ru/feed/",
			Scanner:  "habr",
			Priority: 1,
		},
		Fetcher: FetcherConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) " +
				"Chrome/120.0.0.0 Safari/537.36",
			RequestsPerSecond: 1,
			TimeoutSeconds:    30,
		},
		Ranker: RankerConfig{
			TopK:          3,
			WindowHours:   48,
			RecencyWeight: 5,
		},
		OpenAI: OpenAIConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			Temperature: 0.6,
		},
		Scheduler: SchedulerConfig{IntervalHours: 24},
		Logging:   LoggingConfig{Level: "info"},
	}
}
