// Package config loads settings from the environment and an optional .env
// file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/user/docchat/internal/logx"
	pkgredis "github.com/user/docchat/pkg/redis"
)

type Config struct {
	Env           string        `envconfig:"APP_ENV" default:"development" json:"env"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info" json:"log_level"`
	DataDir       string        `envconfig:"DATA_DIR" json:"data_dir"`
	MaxConcurrent int64         `envconfig:"MAX_CONCURRENT" default:"4" json:"max_concurrent"`
	HTTPListen    string        `envconfig:"HTTP_LISTEN" default:":8080" json:"http_listen"`
	DocumentsFile string        `envconfig:"DOCUMENTS_FILE" json:"documents_file"`
	HistoryTTL    time.Duration `envconfig:"HISTORY_TTL" default:"720h" json:"history_ttl"`

	Assistant Assistant       `envconfig:"OPENAI" json:"assistant"`
	Run       Run             `envconfig:"RUN" json:"run"`
	WebSearch WebSearch       `envconfig:"WEB_SEARCH" json:"web_search"`
	Redis     pkgredis.Config `envconfig:"REDIS" json:"redis"`
}

// Assistant configures the assistant provider (OPENAI_*).
type Assistant struct {
	BaseURL           string        `envconfig:"BASE_URL" default:"https://api.openai.com/v1" json:"base_url"`
	APIKey            string        `envconfig:"API_KEY" json:"api_key"`
	AssistantID       string        `envconfig:"ASSISTANT_ID" json:"assistant_id"`
	Beta              string        `envconfig:"BETA" default:"assistants=v2" json:"beta"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" json:"request_timeout"`
	RequestsPerSecond float64       `envconfig:"REQUESTS_PER_SECOND" default:"0" json:"requests_per_second"`
	RetryAttempts     int           `envconfig:"RETRY_ATTEMPTS" default:"3" json:"retry_attempts"`
	RetryDelay        time.Duration `envconfig:"RETRY_DELAY" default:"1s" json:"retry_delay"`
}

// Run configures run polling (RUN_*).
type Run struct {
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"1s" json:"poll_interval"`
	ChatTimeout      time.Duration `envconfig:"CHAT_TIMEOUT" default:"60s" json:"chat_timeout"`
	ChecklistTimeout time.Duration `envconfig:"CHECKLIST_TIMEOUT" default:"120s" json:"checklist_timeout"`
	StreamMaxPolls   int           `envconfig:"STREAM_MAX_POLLS" default:"60" json:"stream_max_polls"`
}

// WebSearch configures the web fallback provider (WEB_SEARCH_*).
type WebSearch struct {
	BaseURL       string        `envconfig:"BASE_URL" default:"https://api.perplexity.ai" json:"base_url"`
	APIKey        string        `envconfig:"API_KEY" json:"api_key"`
	Model         string        `envconfig:"MODEL" default:"sonar-pro" json:"model"`
	MaxTokens     int           `envconfig:"MAX_TOKENS" default:"1000" json:"max_tokens"`
	Temperature   float32       `envconfig:"TEMPERATURE" default:"0.2" json:"temperature"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"30s" json:"timeout"`
	ContextTurns  int           `envconfig:"CONTEXT_TURNS" default:"3" json:"context_turns"`
	ContextTokens int           `envconfig:"CONTEXT_TOKENS" default:"1500" json:"context_tokens"`
	MaxCitations  int           `envconfig:"MAX_CITATIONS" default:"5" json:"max_citations"`
}

// Load reads envFile (when present) into the process environment and then
// decodes the environment. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
			logx.Warn().Str("file", envFile).Msg("env file not found, using environment only")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.WebSearch.APIKey == "" {
		cfg.WebSearch.APIKey = os.Getenv("PERPLEXITY_API_KEY")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(os.Getenv("HOME"), ".docchat")
	}
	return &cfg, nil
}
