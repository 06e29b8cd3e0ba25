package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
	Providers Providers `yaml:"providers"`
	Quota     Quota     `yaml:"quota"`
	Engine    Engine    `yaml:"engine"`
	// Directory for JSONL state files (quota counters, conversation log)
	DataDir string `yaml:"data_dir" example:"data"`
}

type Providers struct {
	// Provider used for new conversations until switched
	Default string `yaml:"default" example:"together" validate:"required,oneof=openai together gemini"`
	// Per-call deadline for provider requests, seconds
	TimeoutSeconds int `yaml:"timeout_seconds" example:"30"`

	OpenAI   ModelConfig `yaml:"openai" validate:"required"`
	Together ModelConfig `yaml:"together" validate:"required"`
	Gemini   ModelConfig `yaml:"gemini" validate:"required"`
}

type ModelConfig struct {
	// Chat completions base url; point it at a credential-injecting proxy
	// when this process must not hold the provider key
	BaseURL string `yaml:"base_url" example:"https://api.together.xyz/v1"`
	// Provider API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model id
	Model string `yaml:"model" example:"meta-llama/Llama-3.1-70B-Instruct-Turbo"`
}

type Quota struct {
	// Messages allowed per user per day
	DailyLimit int `yaml:"daily_limit" example:"200"`
	// Minimum gap between two requests of the same user, seconds
	MinIntervalSeconds int `yaml:"min_interval_seconds" example:"2"`
}

type Engine struct {
	// Base delay between autonomous turns, milliseconds (jittered ±30%)
	TurnDelayMillis int `yaml:"turn_delay_millis" example:"4000"`
	// Hard cap on turns per autonomous conversation
	MaxTurns int `yaml:"max_turns" example:"50"`
	// Parallel autonomous conversations
	Workers int `yaml:"workers" example:"2"`
}

type Server struct {
	// Listen address of the HTTP API
	Listen string `yaml:"listen" example:":8080"`
	// Token required by admin endpoints
	AdminToken string `yaml:"admin_token"`
}

type Log struct {
	// Telegram alerting config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func (p Providers) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (q Quota) MinInterval() time.Duration {
	return time.Duration(q.MinIntervalSeconds) * time.Second
}

func (e Engine) TurnDelay() time.Duration {
	return time.Duration(e.TurnDelayMillis) * time.Millisecond
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	result.ApplyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Providers.Default == "" {
		c.Providers.Default = "together"
	}
	if c.Providers.TimeoutSeconds == 0 {
		c.Providers.TimeoutSeconds = 30
	}
	if c.Providers.OpenAI.Model == "" {
		c.Providers.OpenAI.Model = "gpt-4o"
	}
	if c.Providers.Together.Model == "" {
		c.Providers.Together.Model = "meta-llama/Llama-3.1-70B-Instruct-Turbo"
	}
	if c.Providers.Together.BaseURL == "" {
		c.Providers.Together.BaseURL = "https://api.together.xyz/v1"
	}
	if c.Providers.Gemini.Model == "" {
		c.Providers.Gemini.Model = "gemini-1.5-flash"
	}
	if c.Providers.Gemini.BaseURL == "" {
		c.Providers.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Quota.DailyLimit == 0 {
		c.Quota.DailyLimit = 200
	}
	if c.Quota.MinIntervalSeconds == 0 {
		c.Quota.MinIntervalSeconds = 2
	}
	if c.Engine.TurnDelayMillis == 0 {
		c.Engine.TurnDelayMillis = 4000
	}
	if c.Engine.MaxTurns == 0 {
		c.Engine.MaxTurns = 50
	}
	if c.Engine.Workers == 0 {
		c.Engine.Workers = 2
	}
}
