// Package task declares grading tasks and the registry holding them for one
// problem.
package task

import (
	"context"
	"slices"
	"time"

	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
)

// Func is the unit of work of a task. It may return a result of the task's
// kind, nil for a default passing result, or an error which is recorded as a
// runtime fault (a *result.Error keeps its own kind).
type Func func(ctx context.Context, in *resource.Inputs) (*result.Result, error)

// Descriptor describes one registered task
type Descriptor struct {
	Name        string
	Description string
	Phase       Phase
	Tags        []string

	// Passing lists tasks that must have passed, Complete lists tasks that
	// must have run to conclusion regardless of their verdict
	Passing  []string
	Complete []string

	Graded bool
	Weight float64
	Kind   result.Kind

	// Inputs are resolved from the pool before Run is called, Outputs are
	// the new keys the task publishes
	Inputs  []string
	Outputs []string

	Timeout time.Duration
	Run     Func
}

// Dependencies returns the passing and complete dependencies, deduplicated,
// in declaration order
func (d *Descriptor) Dependencies() []string {
	deps := make([]string, 0, len(d.Passing)+len(d.Complete))
	for _, n := range slices.Concat(d.Passing, d.Complete) {
		if !slices.Contains(deps, n) {
			deps = append(deps, n)
		}
	}
	return deps
}

// HasTag reports whether any of tags is set on the task
func (d *Descriptor) HasTag(tags ...string) bool {
	for _, t := range tags {
		if slices.Contains(d.Tags, t) {
			return true
		}
	}
	return false
}
