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

// FileExists checks that path, relative to the submission, is a regular file
func FileExists(path string) task.Func {
	return exists(path, false)
}

// DirExists checks that path, relative to the submission, is a directory
func DirExists(path string) task.Func {
	return exists(path, true)
}

func exists(path string, dir bool) task.Func {
	return func(_ context.Context, in *resource.Inputs) (*result.Result, error) {
		p := in.Submission().Join(path)
		fi, err := os.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r := result.Fail(result.KindCheck, "%q not found", path)
			r.Error.Suggestion = "make sure the file is named correctly and submitted"
			return r, nil
		case err != nil:
			return nil, err
		case fi.IsDir() != dir:
			want := "a file"
			if dir {
				want = "a directory"
			}
			return result.Fail(result.KindCheck, "%q is not %s", path, want), nil
		}
		return result.New(result.KindCheck, true).Messagef("found %s", path), nil
	}
}
