package grader

import (
	"fmt"
	"strings"

	"github.com/curriculagg/curricula-grade/plan"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

// Filter decides which tasks a run context selects. A nil set means the
// corresponding option was not given.
type Filter struct {
	tags   []string
	tasks  map[string]bool
	phases map[task.Phase]bool
}

// NewFilter builds the filter of ctx for one plan. Items written as
// "problem:name" apply only when problem matches ctx.Problem. Selected task
// names pull in their transitive dependencies.
func NewFilter(p *plan.Plan, ctx resource.Context) (*Filter, error) {
	f := new(Filter)
	if len(ctx.Tags) > 0 {
		f.tags = problemSpecific(ctx.Tags, ctx.Problem)
		if f.tags == nil {
			f.tags = []string{}
		}
	}
	if len(ctx.Tasks) > 0 {
		f.tasks = p.Closure(problemSpecific(ctx.Tasks, ctx.Problem))
	}
	if len(ctx.Phases) > 0 {
		f.phases = make(map[task.Phase]bool)
		for _, s := range ctx.Phases {
			ph, err := task.ParsePhase(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", result.ErrConfiguration, err)
			}
			f.phases[ph] = true
		}
	}
	return f, nil
}

// Allow reports whether d is selected, with the reason if it is not
func (f *Filter) Allow(d *task.Descriptor) (bool, string) {
	if f.tags != nil && !d.HasTag(f.tags...) {
		return false, fmt.Sprintf("tags %v do not match filter %v", d.Tags, f.tags)
	}
	if f.tasks != nil && !f.tasks[d.Name] {
		return false, "task not selected"
	}
	if f.phases != nil && !f.phases[d.Phase] {
		return false, fmt.Sprintf("phase %s not selected", d.Phase)
	}
	return true, ""
}

// problemSpecific keeps bare items and items prefixed by "problem:", with the
// prefix removed
func problemSpecific(items []string, problem string) []string {
	var rt []string
	for _, item := range items {
		prefix, name, ok := strings.Cut(item, ":")
		if !ok {
			rt = append(rt, item)
		} else if prefix == problem {
			rt = append(rt, name)
		}
	}
	return rt
}
