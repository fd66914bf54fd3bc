package session

import (
	"time"

	"wordmaster-live/internal/game"
)

// delayQueue posts events back into the loop after a delay. Nothing is
// delivered once done is closed.
type delayQueue struct {
	out  chan<- game.Event
	done <-chan struct{}
}

func newDelayQueue(out chan<- game.Event, done <-chan struct{}) *delayQueue {
	return &delayQueue{out: out, done: done}
}

func (q *delayQueue) Enqueue(ev game.Event, delay time.Duration) *time.Timer {
	if delay < 0 {
		delay = 0
	}
	return time.AfterFunc(delay, func() {
		select {
		case <-q.done:
		case q.out <- ev:
		}
	})
}
