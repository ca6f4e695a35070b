package submission

import (
	"sort"
	"sync"

	"github.com/YuminosukeSato/housepricer/pkg/log"
)

// Store keeps submission tables per client session so concurrent users never
// see each other's artifacts.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Table
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]map[string]*Table)}
}

// Session is a view of one session's tables.
type Session struct {
	store *Store
	id    string
}

// Session returns the view for id. Nothing is allocated until Put.
func (s *Store) Session(id string) *Session {
	return &Session{store: s, id: id}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Put stores t under its label, replacing an earlier table of that label.
func (s *Session) Put(t *Table) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	tables, ok := s.store.sessions[s.id]
	if !ok {
		tables = make(map[string]*Table)
		s.store.sessions[s.id] = tables
	}
	tables[t.Label] = t
	log.GetLoggerWithName("submission").Debug("Submission stored",
		log.SessionKey, s.id,
		log.LabelKey, t.Label,
	)
}

// Get returns the table stored under label.
func (s *Session) Get(label string) (*Table, bool) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	t, ok := s.store.sessions[s.id][label]
	return t, ok
}

// Labels returns the stored labels in sorted order.
func (s *Session) Labels() []string {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	labels := make([]string, 0, len(s.store.sessions[s.id]))
	for l := range s.store.sessions[s.id] {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Drop removes every table of session id.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of sessions holding at least one table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
