package manifest

import (
	"errors"
	"fmt"

	"github.com/curriculagg/curricula-grade/result"
)

// Error is returned for a manifest that cannot be decoded or compiled
type Error struct {
	Problem string
	Task    string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Task != "":
		return fmt.Sprintf("problem %q task %q: %v", e.Problem, e.Task, e.Err)
	case e.Problem != "":
		return fmt.Sprintf("problem %q: %v", e.Problem, e.Err)
	}
	return e.Err.Error()
}

// Unwrap makes every manifest error a configuration error
func (e *Error) Unwrap() []error {
	return []error{result.ErrConfiguration, e.Err}
}

var (
	errNoStep       = errors.New("task declares no step")
	errManySteps    = errors.New("task declares more than one step")
	errNoName       = errors.New("problem has no name")
	errDuplicate    = errors.New("duplicate problem")
	errNoExecutable = errors.New("program has no executable")
)
