package manifest

import (
	"context"
	"slices"
	"time"

	"github.com/curriculagg/curricula-grade/grader"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/runner"
	"github.com/curriculagg/curricula-grade/step"
	"github.com/curriculagg/curricula-grade/task"
)

// Compile builds one registry per problem, in manifest order
func (a *Assignment) Compile() ([]grader.Problem, error) {
	rt := make([]grader.Problem, 0, len(a.Problems))
	seen := make(map[string]bool)
	for _, p := range a.Problems {
		if p.Name == "" {
			return nil, &Error{Err: errNoName}
		}
		if seen[p.Name] {
			return nil, &Error{Problem: p.Name, Err: errDuplicate}
		}
		seen[p.Name] = true

		r := task.NewRegistry()
		for _, t := range p.Tasks {
			d, err := t.descriptor()
			if err == nil {
				err = r.Register(d)
			}
			if err != nil {
				return nil, &Error{Problem: p.Name, Task: t.Name, Err: err}
			}
		}
		rt = append(rt, grader.Problem{Name: p.Name, Registry: r})
	}
	return rt, nil
}

func (t *Task) descriptor() (task.Descriptor, error) {
	d := task.Descriptor{
		Name:        t.Name,
		Description: t.Description,
		Tags:        t.Tags,
		Passing:     t.Passing,
		Complete:    t.Complete,
		Graded:      t.Graded == nil || *t.Graded,
		Weight:      t.Weight,
		Inputs:      t.Inputs,
	}
	var err error
	if t.Timeout != "" {
		if d.Timeout, err = time.ParseDuration(t.Timeout); err != nil {
			return d, err
		}
	}
	kind, err := t.bindStep(&d)
	if err != nil {
		return d, err
	}

	d.Kind = kind
	if t.Kind != "" {
		if d.Kind, err = result.ParseKind(t.Kind); err != nil {
			return d, err
		}
		if d.Kind != kind {
			d.Run = relabel(d.Run, d.Kind)
		}
	}
	d.Phase = defaultPhase(d.Kind)
	if t.Phase != "" {
		if d.Phase, err = task.ParsePhase(t.Phase); err != nil {
			return d, err
		}
	}
	return d, nil
}

// bindStep sets the unit of work of d from the single step block, adding
// the pool keys the step reads and publishes. It returns the natural kind of
// the step.
func (t *Task) bindStep(d *task.Descriptor) (result.Kind, error) {
	n := 0
	for _, set := range []bool{t.File != "", t.Dir != "", t.Build != nil, t.Output != nil,
		t.ExitCode != nil, t.Valgrind != nil, len(t.Remove) > 0} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return "", errNoStep
	case n > 1:
		return "", errManySteps
	}

	switch {
	case t.File != "":
		d.Run = step.FileExists(t.File)
		return result.KindCheck, nil

	case t.Dir != "":
		d.Run = step.DirExists(t.Dir)
		return result.KindCheck, nil

	case t.Build != nil:
		cmd, err := runner.Split(t.Build.Command)
		if err != nil {
			return "", err
		}
		if t.Build.Publish != "" {
			d.Outputs = append(d.Outputs, t.Build.Publish)
		}
		d.Run = step.Build(step.BuildOptions{
			Command:  cmd,
			Timeout:  d.Timeout,
			Artifact: t.Build.Artifact,
			Publish:  t.Build.Publish,
		})
		return result.KindBuild, nil

	case t.Output != nil:
		p, err := t.Output.program(d)
		if err != nil {
			return "", err
		}
		d.Run = step.Output(step.OutputOptions{
			Program:   p,
			Stdout:    t.Output.Stdout,
			Lines:     t.Output.StdoutLines,
			Unordered: t.Output.Unordered,
		})
		return result.KindCorrectness, nil

	case t.ExitCode != nil:
		p, err := t.ExitCode.program(d)
		if err != nil {
			return "", err
		}
		d.Run = step.ExitCode(step.ExitCodeOptions{Program: p, Code: t.ExitCode.Code})
		return result.KindCorrectness, nil

	case t.Valgrind != nil:
		p, err := t.Valgrind.program(d)
		if err != nil {
			return "", err
		}
		var wrapper []string
		if t.Valgrind.Command != "" {
			if wrapper, err = runner.Split(t.Valgrind.Command); err != nil {
				return "", err
			}
		}
		d.Run = step.Valgrind(step.MemoryOptions{Program: p, Valgrind: wrapper})
		return result.KindMemory, nil
	}

	d.Run = step.Remove(t.Remove...)
	return result.KindCleanup, nil
}

// relabel reports the results of run under kind, so a step can grade a task
// declared with another kind than the step's own
func relabel(run task.Func, kind result.Kind) task.Func {
	return func(ctx context.Context, in *resource.Inputs) (*result.Result, error) {
		r, err := run(ctx, in)
		if r != nil {
			r.Kind = kind
		}
		return r, err
	}
}

// program converts p and declares its executable as an input of d
func (p *Program) program(d *task.Descriptor) (step.Program, error) {
	if p.Executable == "" {
		return step.Program{}, errNoExecutable
	}
	args, err := runner.Split(p.Args)
	if err != nil {
		return step.Program{}, err
	}
	if !slices.Contains(d.Inputs, p.Executable) {
		d.Inputs = append(d.Inputs, p.Executable)
	}
	rt := step.Program{
		Executable: p.Executable,
		Args:       args,
		Timeout:    d.Timeout,
		TTY:        p.TTY,
	}
	if p.Stdin != "" {
		rt.Stdin = []byte(p.Stdin)
	}
	return rt, nil
}

func defaultPhase(k result.Kind) task.Phase {
	switch k {
	case result.KindCorrectness, result.KindComplexity, result.KindMemory:
		return task.PhaseTest
	case result.KindCleanup:
		return task.PhaseTeardown
	}
	return task.PhaseSetup
}
