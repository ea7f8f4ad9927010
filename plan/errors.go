package plan

import (
	"fmt"
	"strings"

	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

// CyclicDependencyError names every task on one dependency cycle; the first
// name is repeated at the end
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error {
	return result.ErrConfiguration
}

// UnknownDependencyError is returned when a dependency name is not registered
type UnknownDependencyError struct {
	Task    string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.Task, e.Missing)
}

func (e *UnknownDependencyError) Unwrap() error {
	return result.ErrConfiguration
}

// PhaseOrderError is returned when a task depends on a task of a later phase
type PhaseOrderError struct {
	Task       string
	Phase      task.Phase
	Dependency string
	DepPhase   task.Phase
}

func (e *PhaseOrderError) Error() string {
	return fmt.Sprintf("%s task %q depends on %s task %q", e.Phase, e.Task, e.DepPhase, e.Dependency)
}

func (e *PhaseOrderError) Unwrap() error {
	return result.ErrConfiguration
}

// OutputCollisionError is returned when two tasks declare the same output key
// or an output shadows a reserved pool entry
type OutputCollisionError struct {
	Key   string
	Tasks []string
}

func (e *OutputCollisionError) Error() string {
	if len(e.Tasks) == 1 {
		return fmt.Sprintf("task %q declares reserved output %q", e.Tasks[0], e.Key)
	}
	return fmt.Sprintf("output %q declared by %s", e.Key, strings.Join(e.Tasks, ", "))
}

func (e *OutputCollisionError) Unwrap() error {
	return result.ErrConfiguration
}
