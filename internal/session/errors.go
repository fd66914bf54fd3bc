package session

import "errors"

var (
	ErrClosed          = errors.New("session_closed")
	ErrNotYourTurn     = errors.New("not_your_turn")
	ErrInvalidPhase    = errors.New("invalid_phase")
	ErrEmptySubmission = errors.New("empty_submission")
)
