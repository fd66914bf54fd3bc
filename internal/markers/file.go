package markers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// File keeps markers in a small JSON document, rewritten atomically on every
// new marker.
type File struct {
	path string

	mu   sync.Mutex
	done map[string]time.Time
}

type fileDoc struct {
	Completed map[string]time.Time `json:"completed"`
}

func NewFile(path string) (*File, error) {
	f := &File{path: path, done: map[string]time.Time{}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return f, nil
	}
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, v := range doc.Completed {
		f.done[k] = v
	}
	return f, nil
}

func (f *File) MarkCompleted(_ context.Context, sessionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(sessionID, userID)
	if _, ok := f.done[k]; ok {
		return nil
	}
	f.done[k] = time.Now().UTC()
	if err := f.flush(); err != nil {
		delete(f.done, k)
		return err
	}
	return nil
}

func (f *File) Completed(_ context.Context, sessionID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.done[key(sessionID, userID)]
	return ok, nil
}

func (f *File) Close() error { return nil }

func (f *File) flush() error {
	keys := make([]string, 0, len(f.done))
	for k := range f.done {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := fileDoc{Completed: make(map[string]time.Time, len(keys))}
	for _, k := range keys {
		doc.Completed[k] = f.done[k]
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".markers-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
