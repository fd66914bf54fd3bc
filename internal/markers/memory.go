package markers

import (
	"context"
	"sync"
)

type Memory struct {
	mu   sync.RWMutex
	done map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{done: map[string]struct{}{}}
}

func (m *Memory) MarkCompleted(_ context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[key(sessionID, userID)] = struct{}{}
	return nil
}

func (m *Memory) Completed(_ context.Context, sessionID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.done[key(sessionID, userID)]
	return ok, nil
}

func (m *Memory) Close() error { return nil }
