package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Client  ClientConfig
	Markers MarkerConfig
	Log     LogConfig
}

// LoadDotEnv reads .env from the working directory when present.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func LoadApp() (AppConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return AppConfig{}, err
	}
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	clientCfg, err := LoadClient()
	if err != nil {
		return AppConfig{}, err
	}
	markerCfg, err := LoadMarkers()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Client:  clientCfg,
		Markers: markerCfg,
		Log:     logCfg,
	}, nil
}
