package task

import (
	"errors"
	"fmt"

	"github.com/curriculagg/curricula-grade/result"
)

// Registry is the ordered collection of task descriptors for one problem.
// Descriptors are immutable once registered.
type Registry struct {
	tasks  []*Descriptor
	byName map[string]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// DuplicateNameError is returned when a task name is registered twice
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate task name %q", e.Name)
}

func (e *DuplicateNameError) Unwrap() error {
	return result.ErrConfiguration
}

var (
	errEmptyName = fmt.Errorf("%w: task name is empty", result.ErrConfiguration)
	errNoRun     = errors.New("task has no unit of work")
)

// Register appends d to the registry. A zero weight is normalized to 1.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errEmptyName
	}
	if _, ok := r.byName[d.Name]; ok {
		return &DuplicateNameError{Name: d.Name}
	}
	if d.Run == nil {
		return fmt.Errorf("%w: %q: %w", result.ErrConfiguration, d.Name, errNoRun)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("task %q: %w", d.Name, &result.InvalidKindError{Kind: string(d.Kind)})
	}
	if d.Phase < PhaseSetup || d.Phase > PhaseTeardown {
		return fmt.Errorf("%w: task %q has invalid phase %d", result.ErrConfiguration, d.Name, d.Phase)
	}
	if d.Weight == 0 {
		d.Weight = 1
	}
	r.byName[d.Name] = len(r.tasks)
	r.tasks = append(r.tasks, &d)
	return nil
}

// MustRegister registers d and panics on error
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor by name
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.tasks[i], true
}

// Index returns the registration index of name, -1 if absent
func (r *Registry) Index(name string) int {
	i, ok := r.byName[name]
	if !ok {
		return -1
	}
	return i
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	return len(r.tasks)
}

// Tasks returns all descriptors in registration order
func (r *Registry) Tasks() []*Descriptor {
	return append([]*Descriptor(nil), r.tasks...)
}

// Phase returns the descriptors of phase p in registration order
func (r *Registry) Phase(p Phase) []*Descriptor {
	var rt []*Descriptor
	for _, d := range r.tasks {
		if d.Phase == p {
			rt = append(rt, d)
		}
	}
	return rt
}

// Tagged returns the descriptors carrying tag in registration order
func (r *Registry) Tagged(tag string) []*Descriptor {
	var rt []*Descriptor
	for _, d := range r.tasks {
		if d.HasTag(tag) {
			rt = append(rt, d)
		}
	}
	return rt
}

// Weight returns the total weight of graded tasks
func (r *Registry) Weight() float64 {
	var w float64
	for _, d := range r.tasks {
		if d.Graded {
			w += d.Weight
		}
	}
	return w
}
