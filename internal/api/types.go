package api

import (
	"strings"

	"wordmaster-live/internal/game"
)

type PlayerDTO struct {
	ID             FlexID `json:"id"`
	UserID         FlexID `json:"userId"`
	PlayerName     string `json:"playerName"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	TotalScore     int    `json:"totalScore"`
	ProfilePicture string `json:"profilePicture"`
	Active         *bool  `json:"active"`
}

func (p PlayerDTO) ToGame() game.Player {
	name := p.PlayerName
	if name == "" {
		name = p.Name
	}
	return game.Player{
		UserID:    p.UserID.String(),
		PlayerID:  p.ID.String(),
		Name:      name,
		Role:      p.Role,
		AvatarURL: p.ProfilePicture,
		Score:     p.TotalScore,
	}
}

// PlayersToGame drops players the server flags inactive.
func PlayersToGame(in []PlayerDTO) []game.Player {
	out := make([]game.Player, 0, len(in))
	for _, p := range in {
		if p.Active != nil && !*p.Active {
			continue
		}
		out = append(out, p.ToGame())
	}
	return out
}

type CurrentPlayerDTO struct {
	ID     FlexID `json:"id"`
	UserID FlexID `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type LeaderboardEntryDTO struct {
	ID             FlexID `json:"id"`
	UserID         FlexID `json:"userId"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profilePicture"`
}

func LeaderboardToGame(in []LeaderboardEntryDTO) []game.LeaderboardEntry {
	out := make([]game.LeaderboardEntry, 0, len(in))
	for _, e := range in {
		userID := e.UserID.String()
		if userID == "" {
			userID = e.ID.String()
		}
		out = append(out, game.LeaderboardEntry{UserID: userID, Name: e.Name, Role: e.Role, Score: e.Score})
	}
	return out
}

type GameStateDTO struct {
	SessionID        FlexID                `json:"sessionId"`
	SessionCode      string                `json:"sessionCode"`
	Status           string                `json:"status"`
	CurrentTurn      int                   `json:"currentTurn"`
	TotalTurns       int                   `json:"totalTurns"`
	CurrentPlayer    *CurrentPlayerDTO     `json:"currentPlayer"`
	Players          []PlayerDTO           `json:"players"`
	TimeRemaining    *int                  `json:"timeRemaining"`
	Leaderboard      []LeaderboardEntryDTO `json:"leaderboard"`
	StoryPrompt      string                `json:"storyPrompt"`
	CurrentCycle     int                   `json:"currentCycle"`
	TimePerTurn      int                   `json:"timePerTurn"`
	TurnCyclesConfig int                   `json:"turnCyclesConfig"`
}

func (s GameStateDTO) ToGame() game.ServerState {
	out := game.ServerState{
		Status:         s.Status,
		CurrentTurn:    s.CurrentTurn,
		TotalTurns:     s.TotalTurns,
		SecondsPerTurn: s.TimePerTurn,
		TimeRemaining:  s.TimeRemaining,
		StoryPrompt:    s.StoryPrompt,
		Cycle:          s.CurrentCycle,
	}
	if s.CurrentPlayer != nil && (s.CurrentPlayer.ID != "" || s.CurrentPlayer.UserID != "") {
		out.CurrentPlayer = &game.Player{
			PlayerID: s.CurrentPlayer.ID.String(),
			UserID:   s.CurrentPlayer.UserID.String(),
			Name:     s.CurrentPlayer.Name,
			Role:     s.CurrentPlayer.Role,
		}
	}
	if s.Players != nil {
		out.Players = PlayersToGame(s.Players)
	}
	if s.Leaderboard != nil {
		out.Leaderboard = LeaderboardToGame(s.Leaderboard)
	}
	return out
}

type ChatMessageDTO struct {
	ID               FlexID   `json:"id"`
	ClientMessageID  string   `json:"clientMessageId"`
	SenderID         FlexID   `json:"senderId"`
	SenderName       string   `json:"senderName"`
	Content          string   `json:"content"`
	Timestamp        FlexTime `json:"timestamp"`
	GrammarStatus    string   `json:"grammarStatus"`
	GrammarFeedback  string   `json:"grammarFeedback"`
	ContainsWordBomb bool     `json:"containsWordBomb"`
	WordUsed         string   `json:"wordUsed"`
	Role             string   `json:"role"`
	Partial          bool     `json:"partial"`
	Final            bool     `json:"final"`
	Typing           bool     `json:"typing"`
}

func (m ChatMessageDTO) ToGame() game.Message {
	return game.Message{
		ID:              m.ID.String(),
		ClientMessageID: m.ClientMessageID,
		SenderID:        m.SenderID.String(),
		SenderName:      m.SenderName,
		Content:         m.Content,
		Timestamp:       m.Timestamp.Time,
		GrammarStatus:   grammarStatus(m.GrammarStatus),
		GrammarFeedback: m.GrammarFeedback,
		Partial:         m.Partial || m.Typing,
		Final:           m.Final,
	}
}

func MessagesToGame(in []ChatMessageDTO) []game.Message {
	out := make([]game.Message, 0, len(in))
	for _, m := range in {
		out = append(out, m.ToGame())
	}
	return out
}

func grammarStatus(raw string) game.GrammarStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PERFECT", "NO_ERRORS":
		return game.GrammarPerfect
	case "MINOR_ERRORS":
		return game.GrammarMinorErrors
	case "MAJOR_ERRORS":
		return game.GrammarMajorErrors
	case "":
		return ""
	default:
		return game.GrammarProcessing
	}
}

type QuestionDTO struct {
	ID       FlexID   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Options  []string `json:"options"`
}

func QuestionsToGame(in []QuestionDTO) []game.Question {
	out := make([]game.Question, 0, len(in))
	for _, q := range in {
		out = append(out, game.Question{
			ID:      q.ID.String(),
			Type:    q.Type,
			Text:    q.Question,
			Options: append([]string(nil), q.Options...),
		})
	}
	return out
}

type AnswerDTO struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type ComprehensionSubmission struct {
	Questions []QuestionDTO `json:"questions"`
	Answers   []AnswerDTO   `json:"answers"`
}

type ComprehensionResultDTO struct {
	CorrectAnswers int     `json:"correctAnswers"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     float64 `json:"percentage"`
}

func (r ComprehensionResultDTO) ToGame() game.ComprehensionResult {
	return game.ComprehensionResult{
		CorrectAnswers: r.CorrectAnswers,
		TotalQuestions: r.TotalQuestions,
		Percentage:     r.Percentage,
	}
}

type AIStreamMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	AIStreamPartial = "partial"
	AIStreamFinal   = "final"
	AIStreamError   = "error"
)

// ToEvent maps one stream frame onto the analysis lifecycle.
func (m AIStreamMessage) ToEvent() (game.Event, bool) {
	switch strings.ToLower(strings.TrimSpace(m.Type)) {
	case AIStreamPartial:
		return game.AnalysisPartial{Text: m.Text}, true
	case AIStreamFinal:
		return game.AnalysisFinal{Text: m.Text}, true
	case AIStreamError:
		return game.AnalysisFailed{Reason: m.Text}, true
	default:
		return nil, false
	}
}
