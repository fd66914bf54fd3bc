package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

// NewClientMessageID returns a sortable id for an optimistic message. The
// "opt-" prefix keeps it out of the server's id space.
func NewClientMessageID() string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return "opt-" + ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}
