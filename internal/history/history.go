package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/types"
)

// LogKey is the name of the persisted question log.
const LogKey = "questionsHistory"

// DefaultMaxEntries bounds the log when no explicit bound is configured.
const DefaultMaxEntries = 100

// Backend persists named values. storage.KV satisfies it.
type Backend interface {
	GetValue(key string) ([]byte, error)
	PutValue(key string, value []byte) error
}

// Store is the question history log. Entries are keyed by exact question
// text; re-asking a question updates its entry in place.
type Store struct {
	backend    Backend
	maxEntries int
	now        func() time.Time

	mu sync.Mutex
}

// NewStore returns a store over backend holding at most maxEntries entries.
// A non-positive maxEntries selects DefaultMaxEntries.
func NewStore(backend Backend, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{backend: backend, maxEntries: maxEntries, now: time.Now}
}

// Load returns the persisted log. A missing or unreadable log is empty.
func (s *Store) Load() []types.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() []types.HistoryEntry {
	raw, err := s.backend.GetValue(LogKey)
	if err != nil {
		applog.Error("history.load", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var entries []types.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		applog.Error("history.parse", err)
		return nil
	}
	return entries
}

// Record inserts question with answersCount, or updates the count and date of
// the entry already holding that exact question. The full log is persisted.
func (s *Store) Record(question string, answersCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	now := s.now()
	found := false
	for i := range entries {
		if entries[i].Question == question {
			entries[i].AnswersCount = answersCount
			entries[i].Date = now
			found = true
			break
		}
	}
	if !found {
		if over := len(entries) + 1 - s.maxEntries; over > 0 {
			entries = entries[over:]
		}
		entries = append(entries, types.HistoryEntry{
			ID:           nextID(entries),
			Question:     question,
			AnswersCount: answersCount,
			Date:         now,
		})
	}
	applog.Info("history.record", "answers", answersCount, "updated", found)
	s.persist(entries)
}

// Persist writes entries as the full log.
func (s *Store) Persist(entries []types.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist(entries)
}

func (s *Store) persist(entries []types.HistoryEntry) {
	if entries == nil {
		entries = []types.HistoryEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		applog.Error("history.marshal", err)
		return
	}
	if err := s.backend.PutValue(LogKey, raw); err != nil {
		applog.Error("history.persist", err)
	}
}

// Clear empties the log.
func (s *Store) Clear() {
	s.Persist(nil)
}

// nextID is len+1, bumped past the largest surviving id so ids stay unique
// after eviction.
func nextID(entries []types.HistoryEntry) int {
	id := len(entries) + 1
	for _, e := range entries {
		if e.ID >= id {
			id = e.ID + 1
		}
	}
	return id
}

// MemoryBackend is an in-memory Backend.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (m *MemoryBackend) GetValue(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) PutValue(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}
