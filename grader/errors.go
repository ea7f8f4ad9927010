package grader

import (
	"fmt"

	"github.com/curriculagg/curricula-grade/result"
)

// ResultTypeMismatchError is returned when a unit of work returns a result of
// another kind than declared
type ResultTypeMismatchError struct {
	Task string
	Want result.Kind
	Got  result.Kind
}

func (e *ResultTypeMismatchError) Error() string {
	return fmt.Sprintf("task %q returned a %s result, declared %s", e.Task, e.Got, e.Want)
}

func (e *ResultTypeMismatchError) Unwrap() error {
	return result.ErrConfiguration
}
