package step

import (
	"context"
	"fmt"
	"strings"

	"github.com/curriculagg/curricula-grade/pkg/diff"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

// OutputOptions configures an output comparison step. Exactly one of Stdout
// and Lines should be set.
type OutputOptions struct {
	Program
	Stdout    *string
	Lines     []string
	Unordered bool
}

// Output runs a program and compares its stdout with the expected output
func Output(opts OutputOptions) task.Func {
	return func(ctx context.Context, in *resource.Inputs) (*result.Result, error) {
		rt, err := opts.run(ctx, in)
		if err != nil {
			return nil, err
		}
		if e := rt.Check(); e != nil && e.Kind != result.ErrorKindFailure {
			return fromRuntime(result.KindCorrectness, rt), nil
		}

		var expected any
		switch {
		case opts.Stdout != nil:
			expected = *opts.Stdout
			err = diff.Bytes([]byte(*opts.Stdout), rt.Stdout)
		case opts.Unordered:
			expected = opts.Lines
			err = diff.Unordered(opts.Lines, diff.AsLines(rt.Stdout))
		default:
			expected = opts.Lines
			err = diff.Lines(opts.Lines, diff.AsLines(rt.Stdout))
		}
		r := result.New(result.KindCorrectness, err == nil).Detail("runtime", rt.Dump())
		if err != nil {
			r.Error = &result.Error{Kind: result.ErrorKindFailure, Message: "output does not match"}
			if m, ok := err.(*diff.Mismatch); ok && m.Line > 0 {
				r.Error.Location = fmt.Sprintf("line %d", m.Line)
			}
			r.Error.Suggestion = strings.TrimSpace(err.Error())
			r.Expected = result.Plain(expected)
			r.Actual = string(rt.Stdout)
		}
		return r, nil
	}
}

// ExitCodeOptions configures an exit code step
type ExitCodeOptions struct {
	Program
	Code int
}

// ExitCode runs a program and compares its exit status
func ExitCode(opts ExitCodeOptions) task.Func {
	return func(ctx context.Context, in *resource.Inputs) (*result.Result, error) {
		rt, err := opts.run(ctx, in)
		if err != nil {
			return nil, err
		}
		if rt.Raised != "" || rt.TimedOut {
			return fromRuntime(result.KindCorrectness, rt), nil
		}
		r := result.New(result.KindCorrectness, rt.Code == opts.Code).Detail("runtime", rt.Dump())
		if !r.Passing {
			r.Error = result.NewError(result.ErrorKindFailure,
				fmt.Sprintf("expected exit status %d, got %d", opts.Code, rt.Code))
			r.Expected = result.Plain(opts.Code)
			r.Actual = result.Plain(rt.Code)
		}
		return r, nil
	}
}
