// Package step provides ready made units of work for grading tasks: file
// checks, builds, output comparison, memory checks and cleanup.
package step

import (
	"context"
	"slices"
	"time"

	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/runner"
)

// Program locates an executable published in the pool and how to run it
type Program struct {
	// Executable is the pool key holding the executable path
	Executable string
	Args       []string
	Stdin      []byte
	Timeout    time.Duration
	TTY        bool
}

// run runs the program, prefixed by wrapper (such as valgrind) if given
func (p Program) run(ctx context.Context, in *resource.Inputs, wrapper ...string) (*runner.Runtime, error) {
	exe, err := resource.Value[string](in, p.Executable)
	if err != nil {
		return nil, err
	}
	args := slices.Concat(wrapper, []string{exe}, p.Args)
	return runner.Run(ctx, runner.Cmd{
		Args:    args,
		Dir:     in.Submission().Path,
		Stdin:   p.Stdin,
		Timeout: p.Timeout,
		TTY:     p.TTY,
	})
}

// fromRuntime converts a failed runtime into a result: programs that could not
// run or timed out are incomplete, other failures are complete but not passing
func fromRuntime(kind result.Kind, rt *runner.Runtime) *result.Result {
	e := rt.Check()
	var r *result.Result
	switch {
	case e == nil:
		r = result.New(kind, true)
	case e.Kind == result.ErrorKindFailure:
		r = result.New(kind, false)
		r.Error = e
	default:
		r = &result.Result{Kind: kind, Error: e}
	}
	return r.Detail("runtime", rt.Dump())
}
