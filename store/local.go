package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/curriculagg/curricula-grade/report"
)

const suffix = ".report.json"

type localStore struct {
	dir  string            // directory holding <id>.report.json
	name map[string]string // id to name mapping if exists
	mu   sync.RWMutex
}

// NewLocal creates a store writing reports into dir
func NewLocal(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &localStore{
		dir:  filepath.Clean(dir),
		name: make(map[string]string),
	}, nil
}

func (s *localStore) path(id string) string {
	return filepath.Join(s.dir, report.FileName(id))
}

func (s *localStore) Add(name string, r *report.AssignmentReport) (string, error) {
	b, err := encode(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for range 50 {
		id, err := generateID()
		if err != nil {
			return "", err
		}
		f, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		_, err = f.Write(b)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(f.Name())
			return "", err
		}
		s.name[id] = name
		return id, nil
	}
	return "", errUniqueIDNotGenerated
}

func (s *localStore) Get(id string) (string, *report.AssignmentReport, error) {
	if !validID(id) {
		return "", nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	r, err := decode(b)
	if err != nil {
		return "", nil, fmt.Errorf("report %s: %w", id, err)
	}
	name, ok := s.name[id]
	if !ok {
		name = id
	}
	return name, r, nil
}

func (s *localStore) Remove(id string) bool {
	if !validID(id) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.name, id)
	return os.Remove(s.path(id)) == nil
}

func (s *localStore) List() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fi, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	names := make(map[string]string, len(fi))
	for _, f := range fi {
		id, ok := strings.CutSuffix(f.Name(), suffix)
		if !ok || f.IsDir() {
			continue
		}
		names[id] = s.name[id]
	}
	return names
}

// validID rejects ids that would escape the report directory
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
