package game

import "testing"

func TestCanTransition(t *testing.T) {
	legal := [][2]Phase{
		{PhaseWaitingToStart, PhaseActive},
		{PhaseTurnInProgress, PhaseCompleted},
		{PhaseCompleted, PhaseAwaitingComprehension},
		{PhaseCompleted, PhaseResults},
		{PhaseAwaitingComprehension, PhaseComprehensionInProgress},
		{PhaseComprehensionInProgress, PhaseResults},
	}
	for _, e := range legal {
		if !CanTransition(e[0], e[1]) {
			t.Fatalf("CanTransition(%s, %s) = false, want true", e[0], e[1])
		}
	}
	illegal := [][2]Phase{
		{PhaseCompleted, PhaseActive},
		{PhaseResults, PhaseCompleted},
		{PhaseWaitingToStart, PhaseResults},
		{PhaseComprehensionInProgress, PhaseAwaitingComprehension},
	}
	for _, e := range illegal {
		if CanTransition(e[0], e[1]) {
			t.Fatalf("CanTransition(%s, %s) = true, want false", e[0], e[1])
		}
	}
}

func TestPhaseFromStatus(t *testing.T) {
	if p, ok := PhaseFromStatus("pending"); !ok || p != PhaseWaitingToStart {
		t.Fatalf("PhaseFromStatus(pending) = %s, %v", p, ok)
	}
	if p, ok := PhaseFromStatus("TURN_IN_PROGRESS"); !ok || p != PhaseTurnInProgress {
		t.Fatalf("PhaseFromStatus(TURN_IN_PROGRESS) = %s, %v", p, ok)
	}
	if _, ok := PhaseFromStatus("RESULTS"); ok {
		t.Fatal("client-only phase must not map from server status")
	}
}

func TestRenderTargetFor(t *testing.T) {
	if RenderTargetFor(PhaseWaitingToStart) != RenderWaitingRoom {
		t.Fatal("waiting phase should render the waiting room")
	}
	if RenderTargetFor(PhaseWaitingForPlayer) != RenderGameplay {
		t.Fatal("in-play phase should render gameplay")
	}
	if RenderTargetFor(PhaseComprehensionInProgress) != RenderComprehension {
		t.Fatal("quiz phase should render comprehension")
	}
}
