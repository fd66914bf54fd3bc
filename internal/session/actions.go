package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/config"
	"wordmaster-live/internal/game"
)

type wordSubmission struct {
	Word            string `json:"word"`
	ClientMessageID string `json:"clientMessageId"`
}

// SubmitTurn posts the local participant's contribution. The optimistic
// message is visible before the publish is attempted; a failed publish or a
// confirmation that never arrives rolls it back into the compose box.
func (s *Store) SubmitTurn(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptySubmission
	}
	if s.closed() {
		return ErrClosed
	}
	snap := s.Snapshot()
	if !snap.Phase.InPlay() {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, snap.Phase)
	}
	if !snap.CanSubmit() {
		return ErrNotYourTurn
	}

	id := NewClientMessageID()
	s.Dispatch(game.LocalSubmitted{ClientMessageID: id, Content: content})

	err := s.deps.Transport.Publish(wordDestination(s.cfg.SessionID), wordSubmission{Word: content, ClientMessageID: id})
	if err != nil {
		submitTotal.WithLabelValues("error").Inc()
		s.Dispatch(game.SubmitFailed{ClientMessageID: id})
		log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Str("client_message_id", id).Msg("submit_publish_failed")
		if serr := s.settle(ctx); serr != nil {
			log.Debug().Err(serr).Msg("submit_settle_interrupted")
		}
		return fmt.Errorf("publish submission: %w", err)
	}
	submitTotal.WithLabelValues("sent").Inc()
	s.delayed.Enqueue(game.SubmitExpired{ClientMessageID: id}, s.cfg.SubmitTimeout)
	log.Debug().Str("session_id", s.cfg.SessionID).Str("client_message_id", id).Msg("submit_published")
	return s.settle(ctx)
}

// ClearAlert dismisses the one-time alert.
func (s *Store) ClearAlert() {
	s.Dispatch(game.AlertCleared{})
}

// Proceed leaves COMPLETED: to the quiz when questions are available, to
// RESULTS when the quiz was already taken or every fetch attempt came back
// empty.
func (s *Store) Proceed(ctx context.Context) error {
	if s.closed() {
		return ErrClosed
	}
	snap := s.Snapshot()
	if snap.Phase != game.PhaseCompleted {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, snap.Phase)
	}

	done, err := s.deps.Markers.Completed(ctx, s.cfg.SessionID, s.cfg.UserID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Msg("quiz_marker_lookup_failed")
	}
	if done {
		s.Dispatch(game.QuizAlreadyCompleted{})
		return s.settle(ctx)
	}

	for attempt := 1; attempt <= s.cfg.ComprehensionRetries; attempt++ {
		comprehensionAttempts.Inc()
		questions, err := s.deps.API.FetchQuestions(ctx, s.cfg.SessionID, s.cfg.UserID)
		if err == nil && len(questions) > 0 {
			s.Dispatch(game.ComprehensionLoaded{Questions: api.QuestionsToGame(questions)})
			return s.settle(ctx)
		}
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("questions", len(questions)).
			Str("session_id", s.cfg.SessionID).
			Msg("comprehension_fetch_empty")
		if attempt == s.cfg.ComprehensionRetries {
			break
		}
		if err := sleepCtx(ctx, s.done, s.cfg.ComprehensionRetryDelay); err != nil {
			return err
		}
	}

	log.Info().Str("session_id", s.cfg.SessionID).Msg("comprehension_unavailable")
	s.Dispatch(game.ComprehensionUnavailable{})
	return s.settle(ctx)
}

// StartComprehension marks the quiz as begun.
func (s *Store) StartComprehension() {
	s.Dispatch(game.ComprehensionStarted{})
}

// SubmitComprehension grades the answers and moves to RESULTS. A failed
// submission leaves the quiz open for another try.
func (s *Store) SubmitComprehension(ctx context.Context, answers []game.Answer) (game.ComprehensionResult, error) {
	if s.closed() {
		return game.ComprehensionResult{}, ErrClosed
	}
	snap := s.Snapshot()
	if snap.Phase != game.PhaseAwaitingComprehension && snap.Phase != game.PhaseComprehensionInProgress {
		return game.ComprehensionResult{}, fmt.Errorf("%w: %s", ErrInvalidPhase, snap.Phase)
	}

	body := api.ComprehensionSubmission{
		Questions: make([]api.QuestionDTO, 0, len(snap.Questions)),
		Answers:   make([]api.AnswerDTO, 0, len(answers)),
	}
	for _, q := range snap.Questions {
		body.Questions = append(body.Questions, api.QuestionDTO{
			ID:       api.FlexID(q.ID),
			Question: q.Text,
			Type:     q.Type,
			Options:  q.Options,
		})
	}
	for _, a := range answers {
		body.Answers = append(body.Answers, api.AnswerDTO{QuestionID: a.QuestionID, Answer: a.Answer})
	}

	res, err := s.deps.API.SubmitAnswers(ctx, s.cfg.SessionID, s.cfg.UserID, body)
	if err != nil {
		return game.ComprehensionResult{}, fmt.Errorf("submit answers: %w", err)
	}
	result := res.ToGame()
	s.Dispatch(game.ComprehensionSubmitted{Result: result})
	return result, s.settle(ctx)
}

// SubmitForAnalysis asks for AI feedback on text. It returns once the request
// is under way; feedback and failures arrive as events.
func (s *Store) SubmitForAnalysis(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptySubmission
	}
	if s.closed() {
		return ErrClosed
	}

	seq := s.analysisSeq.Add(1)
	s.Dispatch(game.AnalysisRequested{})
	s.delayed.Enqueue(analysisTimeout{seq: seq}, s.cfg.AnalysisTimeout)

	req := api.AnalysisRequest{Text: text, SessionID: s.cfg.SessionID}
	if s.cfg.AIStreamMode == config.AIStreamSSE {
		s.goAsync(func() { s.streamAnalysis(req) })
	} else {
		s.goAsync(func() { s.postAnalysis(req) })
	}
	return s.settle(ctx)
}

func (s *Store) postAnalysis(req api.AnalysisRequest) {
	if err := s.deps.API.SubmitAnalysis(s.ctx, s.cfg.SessionID, req); err != nil {
		log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Msg("analysis_submit_failed")
		s.Dispatch(game.AnalysisFailed{Reason: err.Error()})
	}
}

func (s *Store) streamAnalysis(req api.AnalysisRequest) {
	terminal := false
	err := s.deps.API.StreamAnalysis(s.ctx, req, func(m api.AIStreamMessage) {
		ev, ok := m.ToEvent()
		if !ok {
			return
		}
		switch ev.(type) {
		case game.AnalysisFinal, game.AnalysisFailed:
			terminal = true
		}
		s.Dispatch(ev)
	})
	if terminal {
		return
	}
	reason := "stream ended"
	if err != nil {
		reason = err.Error()
		log.Warn().Err(err).Str("session_id", s.cfg.SessionID).Msg("analysis_stream_failed")
	}
	s.Dispatch(game.AnalysisFailed{Reason: reason})
}

func sleepCtx(ctx context.Context, done <-chan struct{}, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrClosed
	}
}
