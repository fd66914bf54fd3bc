package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/config"
	"wordmaster-live/internal/game"
	"wordmaster-live/internal/logging"
	"wordmaster-live/internal/session"
	"wordmaster-live/internal/statusserver"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := session.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("session open failed")
	}
	defer cleanup()

	watch := st.Watch()
	if err := st.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("session start failed")
	}

	var server *http.Server
	if cfg.Client.StatusAddr != "" {
		r := statusserver.New(st, statusserver.Options{ControlKey: cfg.Client.StatusAPIKey})
		statusserver.LogRoutes(r)
		server = &http.Server{
			Addr:              cfg.Client.StatusAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      cfg.Client.RequestTimeout + cfg.Client.ComprehensionRetryDelay*time.Duration(cfg.Client.ComprehensionRetries) + 5*time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Client.StatusAddr).Msg("status server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	prev := st.Snapshot()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = server.Shutdown(shutdownCtx)
				cancel()
			}
			return
		case s, ok := <-watch:
			if !ok {
				return
			}
			logChanges(prev, s)
			prev = s
		}
	}
}

// logChanges reports what a participant would notice on screen.
func logChanges(prev, next game.Session) {
	if prev.Phase != next.Phase {
		log.Info().Str("phase", string(next.Phase)).Str("render", string(game.RenderTargetFor(next.Phase))).Msg("phase")
	}
	if prev.CurrentTurn != next.CurrentTurn || currentUser(prev) != currentUser(next) {
		ev := log.Info().Int("turn", next.CurrentTurn).Bool("my_turn", next.IsMyTurn())
		if next.CurrentPlayer != nil {
			ev = ev.Str("player", next.CurrentPlayer.Name)
		}
		ev.Msg("turn")
	}
	if next.StoryPrompt != prev.StoryPrompt && next.StoryPrompt != "" {
		log.Info().Str("prompt", next.StoryPrompt).Msg("story")
	}
	for _, m := range newMessages(prev.Messages, next.Messages) {
		log.Info().Str("from", m.SenderName).Str("grammar", string(m.GrammarStatus)).Bool("pending", m.IsOptimistic).Msg(m.Content)
	}
	if next.Alert != "" && next.Alert != prev.Alert {
		log.Warn().Str("alert", next.Alert).Msg("alert")
	}
	if next.Warning != prev.Warning {
		if next.Warning != "" {
			log.Warn().Str("warning", next.Warning).Msg("connection")
		} else {
			log.Info().Msg("connection restored")
		}
	}
	if next.Result != nil && prev.Result == nil {
		log.Info().Int("correct", next.Result.CorrectAnswers).Int("total", next.Result.TotalQuestions).Float64("percentage", next.Result.Percentage).Msg("comprehension result")
	}
}

func currentUser(s game.Session) string {
	if s.CurrentPlayer == nil {
		return ""
	}
	return s.CurrentPlayer.UserID
}

func newMessages(prev, next []game.Message) []game.Message {
	seen := make(map[string]struct{}, len(prev))
	for _, m := range prev {
		seen[m.ID] = struct{}{}
	}
	var out []game.Message
	for _, m := range next {
		if _, ok := seen[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}
