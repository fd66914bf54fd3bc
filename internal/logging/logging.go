package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/config"
)

var (
	sinkMu sync.RWMutex
	sink   io.Writer = os.Stdout
)

// Init installs the global zerolog logger. Console output is always kept;
// when cfg.File is set, lines are also appended to a rotating file.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	output := console
	if path := strings.TrimSpace(cfg.File); path != "" {
		fw, err := newRotatingWriter(path, cfg.MaxMB)
		if err != nil {
			return err
		}
		output = zerolog.MultiLevelWriter(console, fw)
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger

	sinkMu.Lock()
	sink = output
	sinkMu.Unlock()
	return nil
}

// Writer returns the sink configured by Init, for handlers that log outside zerolog.
func Writer() io.Writer {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}
