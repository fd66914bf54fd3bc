package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/game"
	"wordmaster-live/internal/game/viewmodel"
	"wordmaster-live/internal/session"
	"wordmaster-live/internal/transport"
)

// Session is the slice of *session.Store the routes drive.
type Session interface {
	Snapshot() game.Session
	SubmitTurn(ctx context.Context, content string) error
	Refresh(ctx context.Context) error
	Proceed(ctx context.Context) error
	StartComprehension()
	ClearAlert()
	SubmitComprehension(ctx context.Context, answers []game.Answer) (game.ComprehensionResult, error)
	SubmitForAnalysis(ctx context.Context, text string) error
}

type handlers struct {
	sess Session
}

func (h *handlers) health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := h.sess.Snapshot()
		body := map[string]any{"ok": snap.Warning == "", "phase": snap.Phase}
		if snap.Warning != "" {
			body["warning"] = snap.Warning
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (h *handlers) state() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, viewmodel.BuildSessionView(h.sess.Snapshot()))
	}
}

func (h *handlers) leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": viewmodel.BuildLeaderboard(h.sess.Snapshot())})
	}
}

func (h *handlers) submitTurn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.sess.SubmitTurn(r.Context(), body.Content); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func (h *handlers) refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.sess.Refresh(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewmodel.BuildSessionView(h.sess.Snapshot()))
	}
}

func (h *handlers) proceed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.sess.Proceed(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		snap := h.sess.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "phase": snap.Phase, "render": game.RenderTargetFor(snap.Phase)})
	}
}

func (h *handlers) startComprehension() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h.sess.StartComprehension()
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

// clearAlert dismisses the one-time alert once the participant has seen it.
func (h *handlers) clearAlert() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h.sess.ClearAlert()
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func (h *handlers) submitComprehension() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answers []struct {
				QuestionID string `json:"question_id"`
				Answer     string `json:"answer"`
			} `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		answers := make([]game.Answer, 0, len(body.Answers))
		for _, a := range body.Answers {
			answers = append(answers, game.Answer{QuestionID: a.QuestionID, Answer: a.Answer})
		}
		res, err := h.sess.SubmitComprehension(r.Context(), answers)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"correct_answers": res.CorrectAnswers,
			"total_questions": res.TotalQuestions,
			"percentage":      res.Percentage,
		})
	}
}

func (h *handlers) analysis() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.sess.SubmitForAnalysis(r.Context(), body.Text); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, session.ErrEmptySubmission):
		WriteHTTPError(w, http.StatusBadRequest, "empty_submission")
	case errors.Is(err, session.ErrNotYourTurn):
		WriteHTTPError(w, http.StatusConflict, "not_your_turn")
	case errors.Is(err, session.ErrInvalidPhase):
		WriteHTTPError(w, http.StatusConflict, "invalid_phase")
	case errors.Is(err, session.ErrClosed), errors.Is(err, transport.ErrClosed):
		WriteHTTPError(w, http.StatusServiceUnavailable, "session_closed")
	case errors.Is(err, transport.ErrNotConnected):
		WriteHTTPError(w, http.StatusServiceUnavailable, "not_connected")
	case errors.As(err, &statusErr):
		WriteHTTPError(w, http.StatusBadGateway, "upstream_error")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteHTTPError(w, http.StatusGatewayTimeout, "timeout")
	default:
		log.Error().Err(err).Msg("status_request_failed")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
