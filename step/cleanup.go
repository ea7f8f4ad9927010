package step

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

// Remove deletes paths relative to the submission; missing paths are ignored
func Remove(paths ...string) task.Func {
	return func(_ context.Context, in *resource.Inputs) (*result.Result, error) {
		r := result.New(result.KindCleanup, true)
		for _, p := range paths {
			full := in.Submission().Join(p)
			if _, err := os.Lstat(full); errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err := os.RemoveAll(full); err != nil {
				return nil, err
			}
			r.Messagef("removed %s", p)
		}
		return r, nil
	}
}
