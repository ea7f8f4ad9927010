package resource

import (
	"fmt"
	"sync"
)

// Inputs is the view of the pool handed to one unit of work: the declared
// inputs resolved before invocation plus publishing rights for new keys
type Inputs struct {
	owner  string
	pool   *Pool
	values map[string]any

	mu  sync.Mutex
	err error
}

// NewInputs creates inputs for owner from plain values, mostly for tests
func NewInputs(owner string, pool *Pool, values map[string]any) *Inputs {
	return &Inputs{owner: owner, pool: pool, values: values}
}

// Lookup returns a declared input
func (in *Inputs) Lookup(name string) (any, bool) {
	v, ok := in.values[name]
	return v, ok
}

// Get returns a declared input, nil if not declared
func (in *Inputs) Get(name string) any {
	return in.values[name]
}

// Owner returns the name of the task owning these inputs
func (in *Inputs) Owner() string {
	return in.owner
}

// Pool returns the underlying pool
func (in *Inputs) Pool() *Pool {
	return in.pool
}

// Submission returns the submission under grading
func (in *Inputs) Submission() Submission {
	return in.pool.Submission()
}

// Context returns the run context
func (in *Inputs) Context() Context {
	return in.pool.Context()
}

// Publish makes value visible to dependents under key
func (in *Inputs) Publish(key string, value any) error {
	err := in.pool.Publish(in.owner, key, value)
	if err != nil {
		in.mu.Lock()
		if in.err == nil {
			in.err = err
		}
		in.mu.Unlock()
	}
	return err
}

// Err returns the first failed publish, even if the unit of work ignored it
func (in *Inputs) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

// Value returns a declared input converted to T
func Value[T any](in *Inputs, name string) (T, error) {
	var zero T
	v, ok := in.Lookup(name)
	if !ok {
		return zero, &MissingResourceError{Name: name}
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resource %q has type %T, want %T", name, v, zero)
	}
	return t, nil
}
