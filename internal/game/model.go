package game

import (
	"sort"
	"time"
)

type Phase string

const (
	PhaseWaitingToStart          Phase = "WAITING_TO_START"
	PhaseActive                  Phase = "ACTIVE"
	PhaseTurnInProgress          Phase = "TURN_IN_PROGRESS"
	PhaseWaitingForPlayer        Phase = "WAITING_FOR_PLAYER"
	PhaseCompleted               Phase = "COMPLETED"
	PhaseAwaitingComprehension   Phase = "AWAITING_COMPREHENSION"
	PhaseComprehensionInProgress Phase = "COMPREHENSION_IN_PROGRESS"
	PhaseResults                 Phase = "RESULTS"
)

type MessageStatus string

const (
	StatusProcessing MessageStatus = "PROCESSING"
	StatusConfirmed  MessageStatus = "CONFIRMED"
)

type GrammarStatus string

const (
	GrammarProcessing  GrammarStatus = "PROCESSING"
	GrammarPerfect     GrammarStatus = "PERFECT"
	GrammarMinorErrors GrammarStatus = "MINOR_ERRORS"
	GrammarMajorErrors GrammarStatus = "MAJOR_ERRORS"
)

func (g GrammarStatus) Terminal() bool {
	switch g {
	case GrammarPerfect, GrammarMinorErrors, GrammarMajorErrors:
		return true
	default:
		return false
	}
}

// Player is keyed by UserID. PlayerID is the server's per-session row id,
// which turn payloads use instead of the user id.
type Player struct {
	UserID    string
	PlayerID  string
	Name      string
	Role      string
	AvatarURL string
	Score     int
}

type Message struct {
	ID              string
	ClientMessageID string
	SenderID        string
	SenderName      string
	Content         string
	Timestamp       time.Time
	Status          MessageStatus
	GrammarStatus   GrammarStatus
	GrammarFeedback string
	IsOptimistic    bool

	// Wire hints, never stored as-is.
	Partial bool
	Final   bool
}

type LeaderboardEntry struct {
	UserID string
	Name   string
	Role   string
	Score  int
}

type TimerState struct {
	Remaining  int
	Running    bool
	Paused     bool
	LastSyncAt time.Time
	SyncSeq    uint64
}

type Question struct {
	ID      string
	Type    string
	Text    string
	Options []string
}

type Answer struct {
	QuestionID string
	Answer     string
}

type ComprehensionResult struct {
	CorrectAnswers int
	TotalQuestions int
	Percentage     float64
}

type ScoreNotice struct {
	Points     int
	Reason     string
	TotalScore int
	At         time.Time
}

type Session struct {
	ID            string
	LocalUserID   string
	LocalUserName string

	Phase          Phase
	CurrentTurn    int
	TotalTurns     int
	SecondsPerTurn int
	Cycle          int
	StoryPrompt    string
	Role           string

	Timer         TimerState
	CurrentPlayer *Player
	Players       []Player
	Messages      []Message
	Leaderboard   []LeaderboardEntry

	AIBusy  bool
	AIDraft string
	Compose string
	Alert   string
	Warning string

	Questions []Question
	Result    *ComprehensionResult
	LastScore ScoreNotice
}

func NewSession(id, localUserID, localUserName string) Session {
	return Session{
		ID:            id,
		LocalUserID:   localUserID,
		LocalUserName: localUserName,
		Phase:         PhaseWaitingToStart,
	}
}

func (s Session) SingleParticipant() bool {
	return len(s.Players) == 1
}

func (s Session) IsMyTurn() bool {
	if s.SingleParticipant() {
		return true
	}
	return s.CurrentPlayer != nil && s.CurrentPlayer.UserID != "" && s.CurrentPlayer.UserID == s.LocalUserID
}

func (s Session) CanSubmit() bool {
	return s.Phase.InPlay() && s.IsMyTurn()
}

func (s Session) PlayerByUserID(userID string) (Player, bool) {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return Player{}, false
}

// RankedLeaderboard orders by score descending; ties keep server order.
func (s Session) RankedLeaderboard() []LeaderboardEntry {
	out := append([]LeaderboardEntry(nil), s.Leaderboard...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s Session) Clone() Session {
	out := s
	if s.CurrentPlayer != nil {
		p := *s.CurrentPlayer
		out.CurrentPlayer = &p
	}
	out.Players = append([]Player(nil), s.Players...)
	out.Messages = append([]Message(nil), s.Messages...)
	out.Leaderboard = append([]LeaderboardEntry(nil), s.Leaderboard...)
	if s.Questions != nil {
		out.Questions = make([]Question, len(s.Questions))
		for i, q := range s.Questions {
			q.Options = append([]string(nil), q.Options...)
			out.Questions[i] = q
		}
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}

// dedupePlayers keeps the first occurrence of each UserID.
func dedupePlayers(in []Player) []Player {
	seen := make(map[string]struct{}, len(in))
	out := make([]Player, 0, len(in))
	for _, p := range in {
		key := p.UserID
		if key == "" {
			key = "pid:" + p.PlayerID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
