// Package resource provides the named value pool threaded through one grading
// run of one problem.
package resource

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/curriculagg/curricula-grade/result"
)

// Reserved pool entries, present before any task runs
const (
	KeySubmission = "submission"
	KeyContext    = "context"
	KeyResources  = "resources"
)

// IsReserved reports whether key is managed by the pool itself
func IsReserved(key string) bool {
	return key == KeySubmission || key == KeyContext || key == KeyResources
}

// Submission describes the student work under grading
type Submission struct {
	Path string `json:"path"`
}

// Join joins path elements onto the submission root
func (s Submission) Join(elem ...string) string {
	return filepath.Join(append([]string{s.Path}, elem...)...)
}

// Context holds the options of one run
type Context struct {
	Problem string            `json:"problem,omitempty"`
	Tags    []string          `json:"tags,omitempty"`
	Tasks   []string          `json:"tasks,omitempty"`
	Phases  []string          `json:"phases,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// Pool is a guarded mapping from resource name to value.
// Each non reserved key is owned by the first task that publishes it.
type Pool struct {
	mu     sync.RWMutex
	values map[string]any
	owners map[string]string
}

// NewPool creates a pool with the reserved entries populated
func NewPool(sub Submission, ctx Context) *Pool {
	p := &Pool{
		values: make(map[string]any),
		owners: make(map[string]string),
	}
	p.values[KeySubmission] = sub
	p.values[KeyContext] = ctx
	p.values[KeyResources] = p
	return p
}

// Get returns the value of key
func (p *Pool) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.values[key]
	return v, ok
}

// Submission returns the reserved submission entry
func (p *Pool) Submission() Submission {
	v, _ := p.Get(KeySubmission)
	return v.(Submission)
}

// Context returns the reserved context entry
func (p *Pool) Context() Context {
	v, _ := p.Get(KeyContext)
	return v.(Context)
}

// Publish inserts key on behalf of owner. Publishing a reserved key or a key
// owned by another task is a configuration error.
func (p *Pool) Publish(owner, key string, value any) error {
	if IsReserved(key) {
		return &CollisionError{Key: key, Owner: owner, Other: "pool"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if o, ok := p.owners[key]; ok && o != owner {
		return &CollisionError{Key: key, Owner: owner, Other: o}
	}
	p.values[key] = value
	p.owners[key] = owner
	return nil
}

// Owner returns the task that published key
func (p *Pool) Owner(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	o, ok := p.owners[key]
	return o, ok
}

// Keys returns all keys in sorted order
func (p *Pool) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Sorted(maps.Keys(p.values))
}

// Snapshot returns a copy of all entries
func (p *Pool) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return maps.Clone(p.values)
}

// Resolve looks up every name for owner; the first absent name fails with
// MissingResourceError
func (p *Pool) Resolve(owner string, names []string) (*Inputs, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	values := make(map[string]any, len(names))
	for _, n := range names {
		v, ok := p.values[n]
		if !ok {
			return nil, &MissingResourceError{Name: n}
		}
		values[n] = v
	}
	return &Inputs{owner: owner, pool: p, values: values}, nil
}

// CollisionError is returned when two tasks publish the same key
type CollisionError struct {
	Key   string
	Owner string
	Other string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("resource %q published by %q is already owned by %q", e.Key, e.Owner, e.Other)
}

func (e *CollisionError) Unwrap() error {
	return result.ErrConfiguration
}

// MissingResourceError is returned when a declared input is absent
type MissingResourceError struct {
	Name string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("missing resource %q", e.Name)
}
