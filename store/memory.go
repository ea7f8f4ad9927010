package store

import (
	"sync"

	"github.com/curriculagg/curricula-grade/report"
)

type memoryStore struct {
	store map[string]memoryReport
	mu    sync.RWMutex
}

type memoryReport struct {
	name    string
	content []byte
}

// NewMemory creates an in-memory store. Reports are kept encoded so callers
// never share a mutable report with the store.
func NewMemory() Store {
	return &memoryStore{
		store: make(map[string]memoryReport),
	}
}

func (s *memoryStore) Add(name string, r *report.AssignmentReport) (string, error) {
	b, err := encode(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := generateUniqueID(func(id string) bool {
		_, ok := s.store[id]
		return ok
	})
	if err != nil {
		return "", err
	}
	s.store[id] = memoryReport{name: name, content: b}
	return id, nil
}

func (s *memoryStore) Get(id string) (string, *report.AssignmentReport, error) {
	s.mu.RLock()
	f, ok := s.store[id]
	s.mu.RUnlock()

	if !ok {
		return "", nil, ErrNotFound
	}
	r, err := decode(f.content)
	if err != nil {
		return "", nil, err
	}
	return f.name, r, nil
}

func (s *memoryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.store[id]
	delete(s.store, id)
	return ok
}

func (s *memoryStore) List() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]string, len(s.store))
	for id, f := range s.store {
		names[id] = f.name
	}
	return names
}
