package result

import (
	"fmt"
)

// ErrorKind classifies why a task did not pass
type ErrorKind int

// Defines error kinds recorded on results
const (
	// not initialized kind (as error)
	ErrorKindInvalid ErrorKind = iota

	// unit of work ran and judged the submission wrong
	ErrorKindFailure

	// skipped
	ErrorKindDependencyFailed
	ErrorKindFiltered
	ErrorKindCancelled

	// task local configuration bug
	ErrorKindMissingResource

	// raised by the unit of work
	ErrorKindRuntimeFault
	ErrorKindTimeout

	// fatal for the run
	ErrorKindConfiguration
)

var errorKindToString = []string{
	"INVALID",
	"FAILURE",
	"DEPENDENCY_FAILED",
	"FILTERED",
	"CANCELLED",
	"MISSING_RESOURCE",
	"RUNTIME_FAULT",
	"TIMEOUT",
	"CONFIGURATION",
}

// stringToErrorKind map string to corresponding ErrorKind
var stringToErrorKind = make(map[string]ErrorKind)

func (k ErrorKind) String() string {
	ki := int(k)
	if ki < 0 || ki >= len(errorKindToString) {
		return errorKindToString[0]
	}
	return errorKindToString[ki]
}

// Skipped reports whether the kind means the unit of work was never invoked
func (k ErrorKind) Skipped() bool {
	switch k {
	case ErrorKindDependencyFailed, ErrorKindFiltered, ErrorKindCancelled:
		return true
	}
	return false
}

// StringToErrorKind convert string to ErrorKind
func StringToErrorKind(s string) (ErrorKind, error) {
	v, ok := stringToErrorKind[s]
	if !ok || v == ErrorKindInvalid {
		return 0, fmt.Errorf("invalid error kind: %s", s)
	}
	return v, nil
}

// MarshalJSON encodes the kind as its string name
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return []byte("\"" + k.String() + "\""), nil
}

// UnmarshalJSON decodes the kind from its string name
func (k *ErrorKind) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid error kind: %s", b)
	}
	v, err := StringToErrorKind(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func init() {
	for i, v := range errorKindToString {
		stringToErrorKind[v] = ErrorKind(i)
	}
}
