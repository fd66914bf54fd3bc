package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"wordmaster-live/internal/api"
	"wordmaster-live/internal/game"
)

var errUnknownPayload = errors.New("unknown_payload")

type decoder func(body []byte) ([]game.Event, error)

// topics maps every push destination of one session to its decoder.
func topics(sessionID string) map[string]decoder {
	base := "/topic/game/" + sessionID
	return map[string]decoder{
		base + "/turn":           decodeTurn,
		base + "/timer":          decodeTimer,
		base + "/status":         decodeStatus,
		base + "/scores":         decodeScores,
		base + "/players":        decodePlayers,
		base + "/updates":        decodeUpdates,
		base + "/chat":           decodeChat,
		"/topic/ai/" + sessionID: decodeAI,
		"/user/queue/responses":  decodePersonal,
		"/user/queue/score":      decodeScoreNotice,
	}
}

func wordDestination(sessionID string) string {
	return "/app/game/" + sessionID + "/word"
}

func (s *Store) subscribeAll() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for topic, decode := range topics(s.cfg.SessionID) {
		unsub := s.deps.Transport.Subscribe(topic, func(body []byte) {
			evs, err := decode(body)
			if err != nil {
				decodeErrors.WithLabelValues(topicLabel(topic, s.cfg.SessionID)).Inc()
				log.Debug().Err(err).Str("topic", topic).Msg("push_decode_failed")
				return
			}
			for _, ev := range evs {
				s.Dispatch(ev)
			}
		})
		s.unsubs = append(s.unsubs, unsub)
	}
}

// topicLabel drops the session id so metric cardinality stays fixed.
func topicLabel(topic, sessionID string) string {
	return strings.Replace(topic, "/"+sessionID, "", 1)
}

type turnPayload struct {
	TurnNumber    int        `json:"turnNumber"`
	PlayerID      api.FlexID `json:"playerId"`
	UserID        api.FlexID `json:"userId"`
	PlayerName    string     `json:"playerName"`
	RoleName      string     `json:"roleName"`
	TimeRemaining int        `json:"timeRemaining"`
}

func decodeTurn(body []byte) ([]game.Event, error) {
	var p turnPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return []game.Event{game.TurnChanged{
		TurnNumber:    p.TurnNumber,
		PlayerID:      p.PlayerID.String(),
		UserID:        p.UserID.String(),
		PlayerName:    p.PlayerName,
		Role:          p.RoleName,
		TimeRemaining: p.TimeRemaining,
	}}, nil
}

type timerPayload struct {
	TimeRemaining *int  `json:"timeRemaining"`
	Paused        *bool `json:"paused"`
}

func decodeTimer(body []byte) ([]game.Event, error) {
	var p timerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p.TimeRemaining == nil {
		return nil, errUnknownPayload
	}
	return []game.Event{game.TimerSnapshot{Remaining: *p.TimeRemaining, Paused: p.Paused}}, nil
}

type statusPayload struct {
	Event       string                    `json:"event"`
	Status      string                    `json:"status"`
	Leaderboard []api.LeaderboardEntryDTO `json:"leaderboard"`
}

func decodeStatus(body []byte) ([]game.Event, error) {
	var p statusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	switch p.Event {
	case "gameStarted":
		return []game.Event{game.GameStarted{}}, nil
	case "gameEnded":
		ev := game.GameEnded{}
		if p.Leaderboard != nil {
			ev.Leaderboard = api.LeaderboardToGame(p.Leaderboard)
		}
		return []game.Event{ev}, nil
	}
	if p.Status != "" {
		return []game.Event{game.RefreshRequested{Reason: "status"}}, nil
	}
	return nil, errUnknownPayload
}

// decodeScores accepts the bare leaderboard list or an object wrapping it.
func decodeScores(body []byte) ([]game.Event, error) {
	var entries []api.LeaderboardEntryDTO
	if isArray(body) {
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Leaderboard []api.LeaderboardEntryDTO `json:"leaderboard"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Leaderboard == nil {
			return []game.Event{game.RefreshRequested{Reason: "scores"}}, nil
		}
		entries = wrapped.Leaderboard
	}
	return []game.Event{game.ScoresUpdated{Leaderboard: api.LeaderboardToGame(entries)}}, nil
}

func decodePlayers(body []byte) ([]game.Event, error) {
	var players []api.PlayerDTO
	if err := json.Unmarshal(body, &players); err != nil {
		return nil, err
	}
	return []game.Event{game.RosterReplaced{Players: api.PlayersToGame(players)}}, nil
}

type updatePayload struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	TurnNumber int    `json:"turnNumber"`
	Cycle      int    `json:"cycle"`
	Message    string `json:"message"`
	PlayerName string `json:"playerName"`
	Success    *bool  `json:"success"`
	Word       string `json:"word"`
	Reason     string `json:"reason"`
}

func decodeUpdates(body []byte) ([]game.Event, error) {
	var p updatePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	switch p.Type {
	case "storyUpdate":
		return []game.Event{game.StoryUpdated{Prompt: p.Content, TurnNumber: p.TurnNumber}}, nil
	case "storyRefresh":
		return []game.Event{game.StoryUpdated{Prompt: p.Content, TurnNumber: p.TurnNumber}, game.RefreshRequested{Reason: "story_refresh"}}, nil
	case "cycleChange":
		return []game.Event{game.CycleChanged{Cycle: p.Cycle}}, nil
	case "exceptionalContribution":
		text := p.Message
		if p.PlayerName != "" && text != "" {
			text = p.PlayerName + ": " + text
		}
		return []game.Event{game.ContributionHighlighted{Text: text}}, nil
	case "gamePaused":
		return []game.Event{game.GamePaused{}}, nil
	case "gameResumed":
		return []game.Event{game.GameResumed{}}, nil
	case "submission_received":
		log.Debug().Msg("submission_received")
		return nil, nil
	case "":
		if p.Success != nil {
			return []game.Event{submissionAck(p)}, nil
		}
	}
	return nil, errUnknownPayload
}

func submissionAck(p updatePayload) game.SubmissionAcknowledged {
	reason := p.Reason
	if !*p.Success && reason == "" {
		reason = p.Message
	}
	return game.SubmissionAcknowledged{Success: *p.Success, Reason: reason, Word: p.Word}
}

func decodeChat(body []byte) ([]game.Event, error) {
	var m api.ChatMessageDTO
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return []game.Event{game.ChatReceived{Message: m.ToGame()}}, nil
}

func decodeAI(body []byte) ([]game.Event, error) {
	var m api.AIStreamMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	ev, ok := m.ToEvent()
	if !ok {
		return nil, errUnknownPayload
	}
	return []game.Event{ev}, nil
}

type personalPayload struct {
	Role     string `json:"role"`
	RoleName string `json:"roleName"`
	Success  *bool  `json:"success"`
	Word     string `json:"word"`
	Message  string `json:"message"`
	Reason   string `json:"reason"`
}

// decodePersonal handles direct replies on the user queue: role assignment
// and submission results.
func decodePersonal(body []byte) ([]game.Event, error) {
	var p personalPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	var out []game.Event
	if role := firstNonEmpty(p.RoleName, p.Role); role != "" {
		out = append(out, game.RoleAssigned{Role: role})
	}
	if p.Success != nil {
		out = append(out, submissionAck(updatePayload{Success: p.Success, Word: p.Word, Message: p.Message, Reason: p.Reason}))
	}
	if len(out) == 0 {
		return nil, errUnknownPayload
	}
	return out, nil
}

type scoreNoticePayload struct {
	Points     int    `json:"points"`
	Reason     string `json:"reason"`
	TotalScore int    `json:"totalScore"`
}

func decodeScoreNotice(body []byte) ([]game.Event, error) {
	var p scoreNoticePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return []game.Event{game.ScoreNoticed{Points: p.Points, Reason: p.Reason, TotalScore: p.TotalScore}}, nil
}

func isArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
