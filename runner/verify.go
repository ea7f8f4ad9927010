package runner

import (
	"fmt"
	"time"

	"github.com/curriculagg/curricula-grade/result"
)

// Succeeded reports whether the program ran, did not time out and exited 0
func (r *Runtime) Succeeded() bool {
	return r.Raised == "" && !r.TimedOut && r.Code == 0
}

// Check describes why the program did not succeed, nil if it did
func (r *Runtime) Check() *result.Error {
	switch {
	case r.Raised != "":
		return &result.Error{
			Kind:      result.ErrorKindRuntimeFault,
			Message:   "failed to run " + r.name(),
			Traceback: r.Raised,
		}
	case r.TimedOut:
		return &result.Error{
			Kind:       result.ErrorKindTimeout,
			Message:    fmt.Sprintf("%s timed out after %v", r.name(), r.Elapsed.Round(time.Millisecond)),
			Suggestion: "check for infinite loops or blocking reads",
		}
	case r.Code != 0:
		return &result.Error{
			Kind:    result.ErrorKindFailure,
			Message: fmt.Sprintf("%s exited with status %d", r.name(), r.Code),
		}
	}
	return nil
}

// Dump returns a JSON compatible description for result details
func (r *Runtime) Dump() map[string]any {
	d := map[string]any{
		"args":      r.Args,
		"code":      r.Code,
		"stdout":    string(r.Stdout),
		"stderr":    string(r.Stderr),
		"elapsed":   r.Elapsed.Seconds(),
		"timed_out": r.TimedOut,
	}
	if r.Raised != "" {
		d["raised"] = r.Raised
	}
	if r.Truncated {
		d["truncated"] = true
	}
	return d
}

func (r *Runtime) name() string {
	if len(r.Args) == 0 {
		return "program"
	}
	return r.Args[0]
}
