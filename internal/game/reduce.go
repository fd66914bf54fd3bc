package game

import "time"

// Effects are side effects the owner of the state must carry out after Reduce.
type Effects struct {
	RestartTimer      bool
	StopTimer         bool
	Refresh           bool
	FetchLeaderboard  bool
	PersistQuizMarker bool
}

func (e Effects) Any() bool {
	return e.RestartTimer || e.StopTimer || e.Refresh || e.FetchLeaderboard || e.PersistQuizMarker
}

const (
	submitFailedAlert  = "Your submission could not be delivered. Please try again."
	submitExpiredAlert = "Your submission was not confirmed in time. Please try again."
)

// Reduce applies one event to a copy of s. It never touches s itself.
func Reduce(s Session, ev Event, at time.Time) (Session, Effects) {
	next := s.Clone()
	var eff Effects

	switch e := ev.(type) {
	case TurnChanged:
		if next.Phase.Finished() {
			break
		}
		if e.TurnNumber > 0 {
			next.CurrentTurn = e.TurnNumber
		}
		next.CurrentPlayer = resolvePlayer(next.Players, e.PlayerID, e.UserID, e.PlayerName, e.Role)
		if next.CurrentPlayer != nil && next.CurrentPlayer.UserID == "" {
			eff.Refresh = true
		}
		if next.CurrentPlayer == nil {
			enter(&next, PhaseWaitingForPlayer, &eff)
		} else {
			enter(&next, PhaseTurnInProgress, &eff)
		}
		remaining := e.TimeRemaining
		if remaining <= 0 {
			remaining = next.SecondsPerTurn
		}
		syncTimer(&next, remaining, at, &eff)

	case TimerSnapshot:
		if next.Phase.Finished() {
			break
		}
		if e.Paused != nil {
			next.Timer.Paused = *e.Paused
		}
		syncTimer(&next, e.Remaining, at, &eff)

	case GameStarted:
		if next.Phase == PhaseWaitingToStart {
			enter(&next, PhaseActive, &eff)
		}
		eff.Refresh = true

	case GameEnded:
		if e.Leaderboard != nil {
			next.Leaderboard = append([]LeaderboardEntry(nil), e.Leaderboard...)
		}
		if !next.Phase.Finished() {
			enter(&next, PhaseCompleted, &eff)
		}

	case ScoresUpdated:
		next.Leaderboard = append([]LeaderboardEntry(nil), e.Leaderboard...)

	case LeaderboardLoaded:
		next.Leaderboard = append([]LeaderboardEntry(nil), e.Leaderboard...)

	case RosterReplaced:
		replaceRoster(&next, e.Players)

	case StoryUpdated:
		if e.Prompt != "" {
			next.StoryPrompt = e.Prompt
		}

	case CycleChanged:
		if e.Cycle > 0 {
			next.Cycle = e.Cycle
		}
		eff.Refresh = true

	case GamePaused:
		next.Timer.Paused = true
		next.Timer.Running = false
		eff.StopTimer = true

	case GameResumed:
		next.Timer.Paused = false
		if next.Phase.InPlay() && next.IsMyTurn() {
			next.Timer.Running = true
			eff.RestartTimer = true
		}
		eff.Refresh = true

	case RefreshRequested:
		eff.Refresh = true

	case ChatReceived:
		m := e.Message
		if m.Timestamp.IsZero() {
			m.Timestamp = at
		}
		var outcome MergeOutcome
		next.Messages, outcome = ApplyIncoming(next.Messages, m)
		if outcome == MergeMarker && IsSynthetic(m) {
			next.AIBusy = true
		}

	case ContributionHighlighted:
		if e.Text != "" {
			next.Alert = e.Text
		}

	case SubmissionAcknowledged:
		if e.Success {
			break
		}
		idx := latestOptimisticByContent(next.Messages, next.LocalUserID, e.Word)
		failOptimistic(&next, idx, reasonOr(e.Reason, submitFailedAlert))

	case AnalysisRequested, AnalysisPartial, AnalysisFinal, AnalysisFailed:
		reduceAnalysis(&next, ev, at)

	case RoleAssigned:
		next.Role = e.Role

	case ScoreNoticed:
		next.LastScore = ScoreNotice{Points: e.Points, Reason: e.Reason, TotalScore: e.TotalScore, At: at}
		eff.FetchLeaderboard = true

	case StateRefreshed:
		applyServerState(&next, e.State, at, &eff)

	case HistoryLoaded:
		for _, m := range e.Messages {
			if m.Timestamp.IsZero() {
				m.Timestamp = at
			}
			next.Messages, _ = ApplyIncoming(next.Messages, m)
		}

	case LocalSubmitted:
		if e.ClientMessageID == "" || hasClientMessage(next.Messages, e.ClientMessageID) {
			break
		}
		next.Messages = sortByTime(append(next.Messages, Message{
			ID:              e.ClientMessageID,
			ClientMessageID: e.ClientMessageID,
			SenderID:        next.LocalUserID,
			SenderName:      next.LocalUserName,
			Content:         e.Content,
			Timestamp:       at,
			Status:          StatusProcessing,
			GrammarStatus:   GrammarProcessing,
			IsOptimistic:    true,
		}))
		next.Compose = ""
		if next.SingleParticipant() && next.Phase.InPlay() {
			next.CurrentTurn++
			syncTimer(&next, next.SecondsPerTurn, at, &eff)
		}

	case SubmitFailed:
		failOptimistic(&next, optimisticIndex(next.Messages, e.ClientMessageID), reasonOr(e.Reason, submitFailedAlert))

	case SubmitExpired:
		failOptimistic(&next, optimisticIndex(next.Messages, e.ClientMessageID), submitExpiredAlert)

	case Tick:
		var refresh bool
		next.Timer, refresh = next.Timer.Tick(at)
		eff.Refresh = refresh

	case ComprehensionLoaded:
		if next.Phase == PhaseCompleted && len(e.Questions) > 0 {
			next.Questions = e.Questions
			enter(&next, PhaseAwaitingComprehension, &eff)
		}

	case ComprehensionUnavailable, QuizAlreadyCompleted:
		if next.Phase == PhaseCompleted {
			enter(&next, PhaseResults, &eff)
		}

	case ComprehensionStarted:
		enter(&next, PhaseComprehensionInProgress, &eff)

	case ComprehensionSubmitted:
		if next.Phase == PhaseAwaitingComprehension || next.Phase == PhaseComprehensionInProgress {
			r := e.Result
			next.Result = &r
			enter(&next, PhaseResults, &eff)
		}

	case TransportWarning:
		next.Warning = e.Text

	case TransportRecovered:
		next.Warning = ""

	case AlertCleared:
		next.Alert = ""
	}

	return next, eff
}

// enter moves to phase to when the edge is legal. Stopping play halts the
// timer and reaching RESULTS asks for the durable quiz marker.
func enter(s *Session, to Phase, eff *Effects) bool {
	if !CanTransition(s.Phase, to) {
		return false
	}
	if to == PhaseResults && s.Phase != PhaseResults {
		eff.PersistQuizMarker = true
	}
	s.Phase = to
	if to.Finished() {
		s.Timer.Running = false
		eff.StopTimer = true
	}
	return true
}

func syncTimer(s *Session, remaining int, at time.Time, eff *Effects) {
	running := s.Phase.InPlay() && s.IsMyTurn()
	s.Timer = s.Timer.Sync(remaining, running, at)
	if s.Timer.Running {
		eff.RestartTimer = true
	} else {
		eff.StopTimer = true
	}
}

func resolvePlayer(roster []Player, playerID, userID, name, role string) *Player {
	if playerID == "" && userID == "" {
		return nil
	}
	for _, p := range roster {
		if (playerID != "" && (p.PlayerID == playerID || p.UserID == playerID)) || (userID != "" && p.UserID == userID) {
			out := p
			return &out
		}
	}
	return &Player{UserID: userID, PlayerID: playerID, Name: name, Role: role}
}

func replaceRoster(s *Session, players []Player) {
	s.Players = dedupePlayers(players)
	if s.CurrentPlayer != nil {
		s.CurrentPlayer = resolvePlayer(s.Players, s.CurrentPlayer.PlayerID, s.CurrentPlayer.UserID, s.CurrentPlayer.Name, s.CurrentPlayer.Role)
	}
}

func applyServerState(s *Session, st ServerState, at time.Time, eff *Effects) {
	if st.Players != nil {
		replaceRoster(s, st.Players)
	}
	if st.Leaderboard != nil {
		s.Leaderboard = append([]LeaderboardEntry(nil), st.Leaderboard...)
	}
	if st.StoryPrompt != "" {
		s.StoryPrompt = st.StoryPrompt
	}
	if st.Cycle > 0 {
		s.Cycle = st.Cycle
	}
	if st.TotalTurns > 0 {
		s.TotalTurns = st.TotalTurns
	}
	if st.SecondsPerTurn > 0 {
		s.SecondsPerTurn = st.SecondsPerTurn
	}
	if s.Phase.Finished() {
		return
	}

	if phase, ok := PhaseFromStatus(st.Status); ok && phase != s.Phase {
		enter(s, phase, eff)
	}
	if s.Phase.Finished() {
		return
	}
	if st.CurrentTurn > 0 {
		s.CurrentTurn = st.CurrentTurn
	}
	if st.CurrentPlayer != nil {
		cp := st.CurrentPlayer
		s.CurrentPlayer = resolvePlayer(s.Players, cp.PlayerID, cp.UserID, cp.Name, cp.Role)
	}
	if st.TimeRemaining != nil && s.Phase.InPlay() {
		syncTimer(s, *st.TimeRemaining, at, eff)
	}
}

func hasClientMessage(list []Message, clientMessageID string) bool {
	for _, m := range list {
		if m.ID == clientMessageID || m.ClientMessageID == clientMessageID {
			return true
		}
	}
	return false
}

func optimisticIndex(list []Message, clientMessageID string) int {
	if clientMessageID == "" {
		return -1
	}
	for i, m := range list {
		if m.IsOptimistic && m.ID == clientMessageID {
			return i
		}
	}
	return -1
}

func latestOptimisticByContent(list []Message, senderID, content string) int {
	norm := Normalize(content)
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if m.IsOptimistic && m.SenderID == senderID && (norm == "" || Normalize(m.Content) == norm) {
			return i
		}
	}
	return -1
}

// failOptimistic drops an unconfirmed submission and hands its text back to
// the compose box. Already-confirmed messages are left alone.
func failOptimistic(s *Session, idx int, alert string) {
	if idx < 0 {
		return
	}
	m := s.Messages[idx]
	s.Messages = append(s.Messages[:idx:idx], s.Messages[idx+1:]...)
	s.Compose = m.Content
	s.Alert = alert
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
