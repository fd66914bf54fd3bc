package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/auth"
	"wordmaster-live/internal/config"
	"wordmaster-live/internal/markers"
	"wordmaster-live/internal/transport"
)

// Open wires a store to the live backend described by cfg. The returned
// cleanup closes the store and then the marker backend.
func Open(ctx context.Context, cfg config.AppConfig) (*Store, func(), error) {
	creds := auth.FromConfig(cfg.Client.AuthToken, cfg.Client.AuthTokenFile)

	mk, err := markers.Open(ctx, cfg.Markers)
	if err != nil {
		return nil, nil, fmt.Errorf("open quiz markers: %w", err)
	}

	var st *Store
	tr := transport.New(transport.Config{
		URL:            cfg.Client.WSURL,
		Credentials:    creds,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		OnWarning:      func(text string) { st.TransportWarning(text) },
		OnConnected:    func() { st.TransportConnected() },
	})
	st = New(ConfigFrom(cfg.Client), Deps{
		Transport: tr,
		API:       api.New(cfg.Client.APIBaseURL, cfg.Client.RequestTimeout, creds),
		Markers:   mk,
	})

	cleanup := func() {
		st.Close()
		if err := mk.Close(); err != nil {
			log.Warn().Err(err).Msg("quiz_markers_close_failed")
		}
	}
	return st, cleanup, nil
}
