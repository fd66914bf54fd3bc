package viewmodel

import (
	"time"

	"wordmaster-live/internal/game"
)

type PlayerView struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsCurrent bool   `json:"is_current"`
}

type MessageView struct {
	ID              string `json:"id"`
	SenderID        string `json:"sender_id"`
	SenderName      string `json:"sender_name"`
	Content         string `json:"content"`
	TimestampMS     int64  `json:"timestamp_ms"`
	Status          string `json:"status"`
	GrammarStatus   string `json:"grammar_status"`
	GrammarFeedback string `json:"grammar_feedback,omitempty"`
	Pending         bool   `json:"pending"`
}

type LeaderboardView struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Score  int    `json:"score"`
}

type QuestionView struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

type TimerView struct {
	RemainingSeconds int   `json:"remaining_seconds"`
	Running          bool  `json:"running"`
	Paused           bool  `json:"paused"`
	LastSyncMS       int64 `json:"last_sync_ms"`
}

type SessionView struct {
	SessionID     string            `json:"session_id"`
	Phase         string            `json:"phase"`
	RenderTarget  string            `json:"render_target"`
	CurrentTurn   int               `json:"current_turn"`
	TotalTurns    int               `json:"total_turns"`
	Cycle         int               `json:"cycle"`
	StoryPrompt   string            `json:"story_prompt,omitempty"`
	IsMyTurn      bool              `json:"is_my_turn"`
	CanSubmit     bool              `json:"can_submit"`
	CurrentPlayer *PlayerView       `json:"current_player,omitempty"`
	Players       []PlayerView      `json:"players"`
	Messages      []MessageView     `json:"messages"`
	Leaderboard   []LeaderboardView `json:"leaderboard"`
	Timer         TimerView         `json:"timer"`
	AIBusy        bool              `json:"ai_busy"`
	Compose       string            `json:"compose,omitempty"`
	Alert         string            `json:"alert,omitempty"`
	Warning       string            `json:"warning,omitempty"`
	Role          string            `json:"role,omitempty"`
	QuestionCount int               `json:"question_count"`
	Questions     []QuestionView    `json:"questions,omitempty"`
	ResultPercent *float64          `json:"result_percent,omitempty"`
}

func BuildSessionView(s game.Session) SessionView {
	players := make([]PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, playerView(p, s.CurrentPlayer))
	}

	messages := make([]MessageView, 0, len(s.Messages))
	for _, m := range s.Messages {
		messages = append(messages, MessageView{
			ID:              m.ID,
			SenderID:        m.SenderID,
			SenderName:      m.SenderName,
			Content:         m.Content,
			TimestampMS:     unixMS(m.Timestamp),
			Status:          string(m.Status),
			GrammarStatus:   string(m.GrammarStatus),
			GrammarFeedback: m.GrammarFeedback,
			Pending:         m.IsOptimistic,
		})
	}

	out := SessionView{
		SessionID:    s.ID,
		Phase:        string(s.Phase),
		RenderTarget: string(game.RenderTargetFor(s.Phase)),
		CurrentTurn:  s.CurrentTurn,
		TotalTurns:   s.TotalTurns,
		Cycle:        s.Cycle,
		StoryPrompt:  s.StoryPrompt,
		IsMyTurn:     s.IsMyTurn(),
		CanSubmit:    s.CanSubmit(),
		Players:      players,
		Messages:     messages,
		Leaderboard:  BuildLeaderboard(s),
		Timer: TimerView{
			RemainingSeconds: s.Timer.Remaining,
			Running:          s.Timer.Running,
			Paused:           s.Timer.Paused,
			LastSyncMS:       unixMS(s.Timer.LastSyncAt),
		},
		AIBusy:        s.AIBusy,
		Compose:       s.Compose,
		Alert:         s.Alert,
		Warning:       s.Warning,
		Role:          s.Role,
		QuestionCount: len(s.Questions),
	}
	for _, q := range s.Questions {
		out.Questions = append(out.Questions, QuestionView{ID: q.ID, Type: q.Type, Text: q.Text, Options: q.Options})
	}
	if s.CurrentPlayer != nil {
		cp := playerView(*s.CurrentPlayer, s.CurrentPlayer)
		out.CurrentPlayer = &cp
	}
	if s.Result != nil {
		pct := s.Result.Percentage
		out.ResultPercent = &pct
	}
	return out
}

// BuildLeaderboard ranks entries by score; tied scores share a rank.
func BuildLeaderboard(s game.Session) []LeaderboardView {
	ranked := s.RankedLeaderboard()
	out := make([]LeaderboardView, 0, len(ranked))
	for i, e := range ranked {
		rank := i + 1
		if i > 0 && ranked[i-1].Score == e.Score {
			rank = out[i-1].Rank
		}
		out = append(out, LeaderboardView{Rank: rank, UserID: e.UserID, Name: e.Name, Role: e.Role, Score: e.Score})
	}
	return out
}

func playerView(p game.Player, current *game.Player) PlayerView {
	return PlayerView{
		UserID:    p.UserID,
		Name:      p.Name,
		Role:      p.Role,
		AvatarURL: p.AvatarURL,
		IsCurrent: current != nil && current.UserID != "" && current.UserID == p.UserID,
	}
}

func unixMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
