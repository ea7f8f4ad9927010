package step

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/runner"
	"github.com/curriculagg/curricula-grade/task"
)

// BuildOptions configures a build step
type BuildOptions struct {
	Command []string
	Timeout time.Duration

	// Artifact is the path of the built file relative to the submission.
	// When Publish is set its absolute path is published under that key.
	Artifact string
	Publish  string
}

// Build runs a compiler in the submission directory
func Build(opts BuildOptions) task.Func {
	return func(ctx context.Context, in *resource.Inputs) (*result.Result, error) {
		rt, err := runner.Run(ctx, runner.Cmd{
			Args:    opts.Command,
			Dir:     in.Submission().Path,
			Timeout: opts.Timeout,
		})
		if err != nil {
			return nil, err
		}
		r := fromRuntime(result.KindBuild, rt)
		if !r.Passing {
			if r.Error.Kind == result.ErrorKindFailure && len(rt.Stderr) > 0 {
				r.Error.Traceback = string(rt.Stderr)
				r.Error.Suggestion = "fix the compiler errors"
			}
			return r, nil
		}
		if opts.Artifact == "" {
			return r, nil
		}
		artifact := in.Submission().Join(opts.Artifact)
		if _, err := os.Stat(artifact); err != nil {
			return result.Fail(result.KindBuild, "build produced no %q", opts.Artifact).
				Detail("runtime", rt.Dump()), nil
		}
		if opts.Publish != "" {
			if err := in.Publish(opts.Publish, artifact); err != nil {
				return nil, fmt.Errorf("publish artifact: %w", err)
			}
		}
		return r.Messagef("built %s", opts.Artifact), nil
	}
}
