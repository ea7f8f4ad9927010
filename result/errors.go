package result

import "errors"

// ErrConfiguration is wrapped by every error caused by a broken registry,
// manifest or resource pool usage rather than by the submission
var ErrConfiguration = errors.New("configuration error")

// Error is the structured description attached to a result that did not pass.
// It implements error so a unit of work may return it directly.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Location   string    `json:"location,omitempty"`
	Traceback  string    `json:"traceback,omitempty"`
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// NewError creates error with kind and message
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
