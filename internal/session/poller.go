package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/game"
)

const refreshKey = "refresh"

// Refresh pulls the authoritative state and chat history and feeds both
// through the reducer. Concurrent callers share one request.
func (s *Store) Refresh(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	ch := s.flight.DoChan(refreshKey, func() (any, error) {
		return nil, s.refresh(s.ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		// Wait for the fetched state to land so callers read it back.
		return s.settle(ctx)
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

func (s *Store) refresh(ctx context.Context) error {
	start := time.Now()
	st, err := s.deps.API.FetchState(ctx, s.cfg.SessionID)
	if err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch state: %w", err)
	}
	s.Dispatch(game.StateRefreshed{State: st.ToGame()})

	history, err := s.deps.API.FetchHistory(ctx, s.cfg.SessionID)
	if err != nil {
		// State already landed; stale history is harmless until the next poll.
		log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Msg("history_fetch_failed")
	} else {
		s.Dispatch(game.HistoryLoaded{Messages: api.MessagesToGame(history)})
	}
	refreshTotal.WithLabelValues("ok").Inc()
	log.Debug().
		Str("session_id", s.cfg.SessionID).
		Dur("took", time.Since(start)).
		Int("messages", len(history)).
		Msg("session_refreshed")
	return nil
}

// refreshAsync is the fire-and-forget form used by effects and callbacks.
func (s *Store) refreshAsync(reason string) {
	s.goAsync(func() {
		_, err, shared := s.flight.Do(refreshKey, func() (any, error) {
			return nil, s.refresh(s.ctx)
		})
		if err != nil && !shared && s.ctx.Err() == nil {
			log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Str("reason", reason).Msg("refresh_failed")
		}
	})
}

// poll is the fallback for missed pushes. It stops once the game has ended;
// nothing after that comes from the full-state endpoint.
func (s *Store) poll() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.Snapshot().Phase.Finished() {
				log.Debug().Str("session_id", s.cfg.SessionID).Msg("poll_stopped")
				return
			}
			_, err, _ := s.flight.Do(refreshKey, func() (any, error) {
				return nil, s.refresh(s.ctx)
			})
			if err != nil && s.ctx.Err() == nil {
				log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Msg("poll_failed")
			}
		}
	}
}
