// Package plan validates a task registry and orders its tasks for execution.
//
// Validation runs once before any task executes so that structural errors
// (unknown dependencies, cycles, forward phase dependencies and output key
// collisions) are reported up front.
package plan

import (
	"container/heap"
	"slices"

	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/task"
)

// Plan is the validated, phase ordered sequence of tasks of one registry
type Plan struct {
	registry   *task.Registry
	phases     [][]*task.Descriptor
	dependents map[string][]string
}

// Build validates r and computes a stable topological order per phase,
// ties broken by registration order
func Build(r *task.Registry) (*Plan, error) {
	tasks := r.Tasks()

	// dangling edges
	for _, d := range tasks {
		for _, dep := range d.Dependencies() {
			if _, ok := r.Lookup(dep); !ok {
				return nil, &UnknownDependencyError{Task: d.Name, Missing: dep}
			}
		}
	}

	if cycle := findCycle(r, tasks); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	for _, d := range tasks {
		for _, dep := range d.Dependencies() {
			dd, _ := r.Lookup(dep)
			if dd.Phase > d.Phase {
				return nil, &PhaseOrderError{Task: d.Name, Phase: d.Phase, Dependency: dep, DepPhase: dd.Phase}
			}
		}
	}

	if err := checkOutputs(tasks); err != nil {
		return nil, err
	}

	p := &Plan{
		registry:   r,
		phases:     make([][]*task.Descriptor, len(task.Phases)),
		dependents: make(map[string][]string),
	}
	for _, d := range tasks {
		for _, dep := range d.Dependencies() {
			p.dependents[dep] = append(p.dependents[dep], d.Name)
		}
	}
	for _, ph := range task.Phases {
		p.phases[ph] = topoOrder(r, r.Phase(ph))
	}
	return p, nil
}

// Registry returns the registry the plan was built from
func (p *Plan) Registry() *task.Registry {
	return p.registry
}

// Phase returns the ordered tasks of ph
func (p *Plan) Phase(ph task.Phase) []*task.Descriptor {
	return p.phases[ph]
}

// Tasks returns all tasks in plan order
func (p *Plan) Tasks() []*task.Descriptor {
	return slices.Concat(p.phases...)
}

// Dependents returns the tasks directly depending on name
func (p *Plan) Dependents(name string) []string {
	return p.dependents[name]
}

// Closure returns names together with all of their transitive dependencies.
// Unknown names are ignored.
func (p *Plan) Closure(names []string) map[string]bool {
	rt := make(map[string]bool)
	var visit func(string)
	visit = func(n string) {
		if rt[n] {
			return
		}
		d, ok := p.registry.Lookup(n)
		if !ok {
			return
		}
		rt[n] = true
		for _, dep := range d.Dependencies() {
			visit(dep)
		}
	}
	for _, n := range names {
		visit(n)
	}
	return rt
}

func checkOutputs(tasks []*task.Descriptor) error {
	owner := make(map[string]string)
	for _, d := range tasks {
		for _, k := range d.Outputs {
			if resource.IsReserved(k) {
				return &OutputCollisionError{Key: k, Tasks: []string{d.Name}}
			}
			if o, ok := owner[k]; ok && o != d.Name {
				return &OutputCollisionError{Key: k, Tasks: []string{o, d.Name}}
			}
			owner[k] = d.Name
		}
	}
	return nil
}

// findCycle runs a depth first traversal over dependency edges in registration
// order with a recursion stack and returns the first cycle found
func findCycle(r *task.Registry, tasks []*task.Descriptor) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(tasks))
	var stack []string
	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		color[name] = gray
		stack = append(stack, name)
		d, _ := r.Lookup(name)
		for _, dep := range d.Dependencies() {
			switch color[dep] {
			case white:
				if dfs(dep) {
					return true
				}
			case gray:
				// back edge name -> dep closes the cycle dep ... name -> dep
				i := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[i:]), dep)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, d := range tasks {
		if color[d.Name] == white && dfs(d.Name) {
			return cycle
		}
	}
	return nil
}

type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder orders the tasks of one phase. Dependencies on earlier phases
// are already satisfied and do not count towards the in-degree.
func topoOrder(r *task.Registry, tasks []*task.Descriptor) []*task.Descriptor {
	inPhase := make(map[string]bool, len(tasks))
	for _, d := range tasks {
		inPhase[d.Name] = true
	}
	indeg := make(map[int]int, len(tasks))
	outgoing := make(map[int][]int, len(tasks))
	ready := &indexHeap{}
	for _, d := range tasks {
		i := r.Index(d.Name)
		for _, dep := range d.Dependencies() {
			if inPhase[dep] {
				indeg[i]++
				j := r.Index(dep)
				outgoing[j] = append(outgoing[j], i)
			}
		}
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	all := r.Tasks()
	out := make([]*task.Descriptor, 0, len(tasks))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		out = append(out, all[i])
		for _, j := range outgoing[i] {
			indeg[j]--
			if indeg[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}
	return out
}
