package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists usage counts keyed by service and period. A period the
// store has never seen reads as zero.
type Store interface {
	Get(service, period string) (int, error)
	Set(service, period string, count int) error
}

// MemoryStore is an in-process Store, used in tests and as a safe default
// when no quota file is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	counts map[string]int // key: period + "/" + service
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (m *MemoryStore) Get(service, period string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[period+"/"+service], nil
}

func (m *MemoryStore) Set(service, period string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[period+"/"+service] = count
	return nil
}

// fileState is the on-disk shape. Only the current month is kept; writing
// a count for a new month drops the old one.
type fileState struct {
	Month  string         `json:"month"`
	Counts map[string]int `json:"counts"`
}

// FileStore keeps counts in a small JSON file. Writes go through a temp
// file and rename so a crash never leaves a torn file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The parent directory is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get(service, period string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return 0, err
	}
	if state.Month != period {
		return 0, nil
	}
	return state.Counts[service], nil
}

func (f *FileStore) Set(service, period string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return err
	}
	if state.Month != period {
		state = fileState{Month: period, Counts: make(map[string]int)}
	}
	state.Counts[service] = count
	return f.save(state)
}

func (f *FileStore) load() (fileState, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return fileState{Counts: make(map[string]int)}, nil
	}
	if err != nil {
		return fileState{}, fmt.Errorf("read quota file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt file starts the month over rather than failing
		// every request.
		return fileState{Counts: make(map[string]int)}, nil
	}
	if state.Counts == nil {
		state.Counts = make(map[string]int)
	}
	return state, nil
}

func (f *FileStore) save(state fileState) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create quota dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quota state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write quota file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename quota file: %w", err)
	}
	return nil
}
