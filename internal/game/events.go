package game

// Event is any input to Reduce: push payloads, poll results, ticks and
// local actions all share this path.
type Event interface {
	Kind() string
}

type TurnChanged struct {
	TurnNumber    int
	PlayerID      string
	UserID        string
	PlayerName    string
	Role          string
	TimeRemaining int
}

// TimerSnapshot carries the server's remaining seconds. Paused is nil when
// the payload says nothing about pausing.
type TimerSnapshot struct {
	Remaining int
	Paused    *bool
}

type GameStarted struct{}

type GameEnded struct {
	Leaderboard []LeaderboardEntry
}

type ScoresUpdated struct {
	Leaderboard []LeaderboardEntry
}

type RosterReplaced struct {
	Players []Player
}

type StoryUpdated struct {
	Prompt     string
	TurnNumber int
}

type CycleChanged struct {
	Cycle int
}

type GamePaused struct{}

type GameResumed struct{}

type RefreshRequested struct {
	Reason string
}

type ChatReceived struct {
	Message Message
}

type ContributionHighlighted struct {
	Text string
}

// SubmissionAcknowledged is the server's reply to a word submission. Failed
// replies carry the submitted word rather than the client message id.
type SubmissionAcknowledged struct {
	Success bool
	Reason  string
	Word    string
}

type AnalysisRequested struct{}

type AnalysisPartial struct {
	Text string
}

type AnalysisFinal struct {
	Text string
}

type AnalysisFailed struct {
	Reason string
}

type RoleAssigned struct {
	Role string
}

type ScoreNoticed struct {
	Points     int
	Reason     string
	TotalScore int
}

// ServerState is a full authoritative snapshot. Nil slices and pointers mean
// the field was absent and must not overwrite local state.
type ServerState struct {
	Status         string
	CurrentTurn    int
	TotalTurns     int
	SecondsPerTurn int
	TimeRemaining  *int
	CurrentPlayer  *Player
	Players        []Player
	Leaderboard    []LeaderboardEntry
	StoryPrompt    string
	Cycle          int
}

type StateRefreshed struct {
	State ServerState
}

type HistoryLoaded struct {
	Messages []Message
}

type LeaderboardLoaded struct {
	Leaderboard []LeaderboardEntry
}

type LocalSubmitted struct {
	ClientMessageID string
	Content         string
}

type SubmitFailed struct {
	ClientMessageID string
	Reason          string
}

type SubmitExpired struct {
	ClientMessageID string
}

type Tick struct{}

type ComprehensionLoaded struct {
	Questions []Question
}

type ComprehensionUnavailable struct{}

type ComprehensionStarted struct{}

type ComprehensionSubmitted struct {
	Result ComprehensionResult
}

type QuizAlreadyCompleted struct{}

type TransportWarning struct {
	Text string
}

type TransportRecovered struct{}

type AlertCleared struct{}

func (TurnChanged) Kind() string              { return "turn_changed" }
func (TimerSnapshot) Kind() string            { return "timer_snapshot" }
func (GameStarted) Kind() string              { return "game_started" }
func (GameEnded) Kind() string                { return "game_ended" }
func (ScoresUpdated) Kind() string            { return "scores_updated" }
func (RosterReplaced) Kind() string           { return "roster_replaced" }
func (StoryUpdated) Kind() string             { return "story_updated" }
func (CycleChanged) Kind() string             { return "cycle_changed" }
func (GamePaused) Kind() string               { return "game_paused" }
func (GameResumed) Kind() string              { return "game_resumed" }
func (RefreshRequested) Kind() string         { return "refresh_requested" }
func (ChatReceived) Kind() string             { return "chat_received" }
func (ContributionHighlighted) Kind() string  { return "contribution_highlighted" }
func (SubmissionAcknowledged) Kind() string   { return "submission_acknowledged" }
func (AnalysisRequested) Kind() string        { return "analysis_requested" }
func (AnalysisPartial) Kind() string          { return "analysis_partial" }
func (AnalysisFinal) Kind() string            { return "analysis_final" }
func (AnalysisFailed) Kind() string           { return "analysis_failed" }
func (RoleAssigned) Kind() string             { return "role_assigned" }
func (ScoreNoticed) Kind() string             { return "score_noticed" }
func (StateRefreshed) Kind() string           { return "state_refreshed" }
func (HistoryLoaded) Kind() string            { return "history_loaded" }
func (LeaderboardLoaded) Kind() string        { return "leaderboard_loaded" }
func (LocalSubmitted) Kind() string           { return "local_submitted" }
func (SubmitFailed) Kind() string             { return "submit_failed" }
func (SubmitExpired) Kind() string            { return "submit_expired" }
func (Tick) Kind() string                     { return "tick" }
func (ComprehensionLoaded) Kind() string      { return "comprehension_loaded" }
func (ComprehensionUnavailable) Kind() string { return "comprehension_unavailable" }
func (ComprehensionStarted) Kind() string     { return "comprehension_started" }
func (ComprehensionSubmitted) Kind() string   { return "comprehension_submitted" }
func (QuizAlreadyCompleted) Kind() string     { return "quiz_already_completed" }
func (TransportWarning) Kind() string         { return "transport_warning" }
func (TransportRecovered) Kind() string       { return "transport_recovered" }
func (AlertCleared) Kind() string             { return "alert_cleared" }
