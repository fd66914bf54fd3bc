package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/auth"
	"wordmaster-live/internal/config"
	"wordmaster-live/internal/game"
	"wordmaster-live/internal/logging"
	"wordmaster-live/internal/session"
)

// bot plays one participant: it submits the next scripted line on each of its
// turns, then takes the comprehension quiz with random answers.
type bot struct {
	st        *session.Store
	cfg       config.BotConfig
	rnd       *rand.Rand
	next      int
	lastTurn  int
	proceeded bool
	answered  bool
}

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	botCfg, err := config.LoadBot()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prepare(ctx, cfg, botCfg); err != nil {
		log.Fatal().Err(err).Msg("pre-game setup failed")
	}

	st, cleanup, err := session.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("session open failed")
	}
	defer cleanup()

	b := &bot{st: st, cfg: botCfg, rnd: rand.New(rand.NewSource(time.Now().UnixNano())), lastTurn: -1}
	watch := st.Watch()
	if err := st.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("session start failed")
	}

	b.step(ctx, st.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-watch:
			if !ok {
				return
			}
			if done := b.step(ctx, s); done {
				log.Info().Msg("bot finished")
				return
			}
		}
	}
}

// prepare runs the optional lobby steps: joining a waiting room and starting
// the session when the bot plays host.
func prepare(ctx context.Context, cfg config.AppConfig, botCfg config.BotConfig) error {
	if botCfg.WaitingRoom == "" && !botCfg.StartSession {
		return nil
	}
	client := api.New(cfg.Client.APIBaseURL, cfg.Client.RequestTimeout, auth.FromConfig(cfg.Client.AuthToken, cfg.Client.AuthTokenFile))
	if botCfg.WaitingRoom != "" {
		if err := client.JoinWaitingRoom(ctx, botCfg.WaitingRoom); err != nil {
			return err
		}
		students, err := client.WaitingStudents(ctx, botCfg.WaitingRoom)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(students))
		for _, w := range students {
			names = append(names, w.DisplayName())
		}
		log.Info().Str("content_id", botCfg.WaitingRoom).Strs("students", names).Msg("joined waiting room")
	}
	if botCfg.StartSession {
		sum, err := client.StartSession(ctx, cfg.Client.SessionID)
		if err != nil {
			return err
		}
		log.Info().Str("session_id", sum.ID.String()).Str("status", sum.Status).Int("players", sum.PlayerCount).Msg("session started")
	}
	return nil
}

// step reacts to one snapshot and reports whether the bot is done.
func (b *bot) step(ctx context.Context, s game.Session) bool {
	switch {
	case s.CanSubmit() && s.CurrentTurn != b.lastTurn && !hasPending(s):
		b.lastTurn = s.CurrentTurn
		b.say(ctx)
	case s.Phase == game.PhaseCompleted && !b.proceeded:
		b.proceeded = true
		if err := b.st.Proceed(ctx); err != nil {
			log.Warn().Err(err).Msg("proceed failed")
		}
	case s.Phase == game.PhaseAwaitingComprehension:
		b.st.StartComprehension()
	case s.Phase == game.PhaseComprehensionInProgress && !b.answered:
		b.answered = true
		b.answer(ctx, s.Questions)
	case s.Phase == game.PhaseResults:
		for _, e := range s.RankedLeaderboard() {
			log.Info().Str("name", e.Name).Int("score", e.Score).Msg("final score")
		}
		return true
	}
	return false
}

func (b *bot) say(ctx context.Context) {
	if len(b.cfg.Lines) == 0 {
		return
	}
	select {
	case <-time.After(b.cfg.ThinkTime):
	case <-ctx.Done():
		return
	}
	line := b.cfg.Lines[b.next%len(b.cfg.Lines)]
	err := b.st.SubmitTurn(ctx, line)
	switch {
	case err == nil:
		b.next++
		log.Info().Str("line", line).Msg("submitted")
	case errors.Is(err, session.ErrNotYourTurn), errors.Is(err, session.ErrInvalidPhase):
		log.Debug().Err(err).Msg("turn moved on before submit")
	default:
		// Retry on the next snapshot.
		b.lastTurn = -1
		log.Warn().Err(err).Msg("submit failed")
	}
}

func (b *bot) answer(ctx context.Context, questions []game.Question) {
	answers := make([]game.Answer, 0, len(questions))
	for _, q := range questions {
		a := ""
		if len(q.Options) > 0 {
			a = q.Options[b.rnd.Intn(len(q.Options))]
		}
		answers = append(answers, game.Answer{QuestionID: q.ID, Answer: a})
	}
	if _, err := b.st.SubmitComprehension(ctx, answers); err != nil {
		b.answered = false
		log.Warn().Err(err).Msg("comprehension submit failed")
	}
}

func hasPending(s game.Session) bool {
	for _, m := range s.Messages {
		if m.IsOptimistic && m.SenderID == s.LocalUserID {
			return true
		}
	}
	return false
}
