package config

import "github.com/caarlos0/env/v11"

type MarkerConfig struct {
	Backend     string `env:"MARKER_BACKEND" envDefault:"file"`
	File        string `env:"MARKER_FILE" envDefault:"wordmaster-markers.json"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	RedisURL    string `env:"REDIS_URL"`
}

func LoadMarkers() (MarkerConfig, error) {
	var cfg MarkerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
