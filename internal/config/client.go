package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	AIStreamTopic = "topic"
	AIStreamSSE   = "sse"
)

type ClientConfig struct {
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	WSURL      string `env:"WS_URL" envDefault:"ws://localhost:8080/ws/websocket"`

	SessionID string `env:"SESSION_ID,required,notEmpty"`
	UserID    string `env:"USER_ID,required,notEmpty"`
	UserName  string `env:"USER_NAME"`

	AuthToken     string `env:"AUTH_TOKEN"`
	AuthTokenFile string `env:"AUTH_TOKEN_FILE"`

	ReconnectDelay          time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`
	PollInterval            time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`
	TickInterval            time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	SubmitTimeout           time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"45s"`
	ComprehensionRetries    int           `env:"COMPREHENSION_RETRIES" envDefault:"5"`
	ComprehensionRetryDelay time.Duration `env:"COMPREHENSION_RETRY_DELAY" envDefault:"1s"`

	AIStreamMode string `env:"AI_STREAM_MODE" envDefault:"topic"`
	StatusAddr   string `env:"STATUS_ADDR"`
	StatusAPIKey string `env:"STATUS_API_KEY"`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.AIStreamMode = strings.ToLower(strings.TrimSpace(cfg.AIStreamMode))
	switch cfg.AIStreamMode {
	case AIStreamTopic, AIStreamSSE:
	default:
		return cfg, fmt.Errorf("AI_STREAM_MODE: unsupported value %q", cfg.AIStreamMode)
	}
	if cfg.ComprehensionRetries < 1 {
		cfg.ComprehensionRetries = 1
	}
	return cfg, nil
}
