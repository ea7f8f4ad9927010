// Package result defines the outcome records produced by grading tasks
// and their JSON mapping.
package result

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Result is the outcome of exactly one task execution
type Result struct {
	TaskName string         `json:"task_name"`
	Kind     Kind           `json:"kind"`
	Graded   bool           `json:"graded"`
	Weight   float64        `json:"weight,omitempty"`
	Complete bool           `json:"complete"`
	Passing  bool           `json:"passing"`
	Score    *Score         `json:"score,omitempty"`
	Error    *Error         `json:"error,omitempty"`
	Messages []string       `json:"messages"`
	Details  map[string]any `json:"details"`

	// correctness
	Expected any `json:"expected,omitempty"`
	Actual   any `json:"actual,omitempty"`

	// memory
	ErrorCount   *int `json:"error_count,omitempty"`
	LeakedBlocks *int `json:"leaked_blocks,omitempty"`
	LeakedBytes  *int `json:"leaked_bytes,omitempty"`
}

// New creates a complete result with the given passing state
func New(kind Kind, passing bool) *Result {
	return &Result{Kind: kind, Complete: true, Passing: passing}
}

// Default is synthesized when a unit of work returns no result
func Default(kind Kind) *Result {
	return New(kind, true)
}

// Fail creates a complete result judged wrong
func Fail(kind Kind, format string, args ...any) *Result {
	r := New(kind, false)
	r.Error = NewError(ErrorKindFailure, fmt.Sprintf(format, args...))
	return r
}

// Incomplete creates a result for a unit of work that did not run to conclusion
func Incomplete(kind Kind, errKind ErrorKind, message string) *Result {
	return &Result{
		Kind:  kind,
		Error: NewError(errKind, message),
	}
}

// Skipped reports whether the unit of work was never invoked
func (r *Result) Skipped() bool {
	return r.Error != nil && r.Error.Kind.Skipped()
}

// Messagef appends a message to the result
func (r *Result) Messagef(format string, args ...any) *Result {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
	return r
}

// Detail sets a diagnostic detail, stored as its JSON form
func (r *Result) Detail(key string, value any) *Result {
	if r.Details == nil {
		r.Details = make(map[string]any)
	}
	r.Details[key] = Plain(value)
	return r
}

// Plain returns v as it reads back from JSON: numbers become float64,
// slices []any and structs or maps map[string]any. Values that cannot be
// encoded are kept as their string form.
func Plain(v any) any {
	switch v.(type) {
	case nil, bool, float64, string:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var rt any
	if err := json.Unmarshal(b, &rt); err != nil {
		return fmt.Sprint(v)
	}
	return rt
}

// Normalize enforces that a result which did not complete is not passing
// and carries an error. Details, expected and actual are converted to their
// JSON form so the result reads back unchanged from a report.
func (r *Result) Normalize() {
	for k, v := range r.Details {
		r.Details[k] = Plain(v)
	}
	r.Expected = Plain(r.Expected)
	r.Actual = Plain(r.Actual)
	if r.Complete {
		return
	}
	r.Passing = false
	if r.Error == nil {
		r.Error = NewError(ErrorKindFailure, "task did not complete")
	}
}

// Clone returns a copy that shares no slices or maps with r
func (r *Result) Clone() *Result {
	c := *r
	if r.Score != nil {
		s := *r.Score
		c.Score = &s
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	c.Messages = slices.Clone(r.Messages)
	c.Details = maps.Clone(r.Details)
	return &c
}

// Thin returns a copy without diagnostics: details, expected / actual
// and error location / traceback are dropped
func (r *Result) Thin() *Result {
	c := r.Clone()
	c.Details = nil
	c.Expected = nil
	c.Actual = nil
	if c.Error != nil {
		c.Error.Location = ""
		c.Error.Traceback = ""
	}
	return c
}
