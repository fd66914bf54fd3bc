package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	Lines     []string      `env:"BOT_LINES" envSeparator:"|" envDefault:"Once upon a time there was a quiet village.|The children found a map under the old bridge.|Everyone agreed to follow it at sunrise."`
	ThinkTime time.Duration `env:"BOT_THINK_TIME" envDefault:"2s"`

	// WaitingRoom is a content id; when set the bot joins its waiting room
	// before connecting.
	WaitingRoom  string `env:"BOT_WAITING_ROOM"`
	StartSession bool   `env:"BOT_START_SESSION" envDefault:"false"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
