package game

import "strings"

var transitions = map[Phase][]Phase{
	PhaseWaitingToStart:          {PhaseActive, PhaseTurnInProgress, PhaseWaitingForPlayer, PhaseCompleted},
	PhaseActive:                  {PhaseTurnInProgress, PhaseWaitingForPlayer, PhaseCompleted},
	PhaseTurnInProgress:          {PhaseActive, PhaseWaitingForPlayer, PhaseCompleted},
	PhaseWaitingForPlayer:        {PhaseActive, PhaseTurnInProgress, PhaseCompleted},
	PhaseCompleted:               {PhaseAwaitingComprehension, PhaseResults},
	PhaseAwaitingComprehension:   {PhaseComprehensionInProgress, PhaseResults},
	PhaseComprehensionInProgress: {PhaseResults},
}

func CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

func (p Phase) InPlay() bool {
	switch p {
	case PhaseActive, PhaseTurnInProgress, PhaseWaitingForPlayer:
		return true
	default:
		return false
	}
}

// Finished reports whether play is over (COMPLETED or any later phase).
func (p Phase) Finished() bool {
	switch p {
	case PhaseCompleted, PhaseAwaitingComprehension, PhaseComprehensionInProgress, PhaseResults:
		return true
	default:
		return false
	}
}

type RenderTarget string

const (
	RenderWaitingRoom   RenderTarget = "waiting_room"
	RenderGameplay      RenderTarget = "gameplay"
	RenderGameOver      RenderTarget = "game_over"
	RenderComprehension RenderTarget = "comprehension"
	RenderResults       RenderTarget = "results"
)

func RenderTargetFor(p Phase) RenderTarget {
	switch p {
	case PhaseWaitingToStart:
		return RenderWaitingRoom
	case PhaseCompleted:
		return RenderGameOver
	case PhaseAwaitingComprehension, PhaseComprehensionInProgress:
		return RenderComprehension
	case PhaseResults:
		return RenderResults
	default:
		return RenderGameplay
	}
}

// PhaseFromStatus maps a server session status onto a phase.
func PhaseFromStatus(status string) (Phase, bool) {
	switch Phase(strings.ToUpper(strings.TrimSpace(status))) {
	case "PENDING", PhaseWaitingToStart:
		return PhaseWaitingToStart, true
	case PhaseActive:
		return PhaseActive, true
	case PhaseTurnInProgress:
		return PhaseTurnInProgress, true
	case PhaseWaitingForPlayer:
		return PhaseWaitingForPlayer, true
	case PhaseCompleted:
		return PhaseCompleted, true
	default:
		return "", false
	}
}
