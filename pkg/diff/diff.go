// Package diff compares program output with expected output and reports the
// first difference.
//
// Compare ignores white space at the end of lines and at the end of file.
package diff

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"slices"
	"unicode"
)

// Mismatch describes the first line where expected and actual differ.
// Line is 1 based; 0 means the difference is not tied to a line.
type Mismatch struct {
	Line     int
	Expected string
	Actual   string
	Reason   string
}

func (m *Mismatch) Error() string {
	if m.Reason != "" {
		return m.Reason
	}
	return fmt.Sprintf("at line %d,\nexpected: %v\nactual: %v", m.Line, m.Expected, m.Actual)
}

// Compare compares actual with expected.
// If they are the same except space at line / file ending, nil is returned,
// otherwise the returned error is a *Mismatch or a read error.
func Compare(expected, actual io.Reader) error {
	expScan := bufio.NewScanner(expected)
	actScan := bufio.NewScanner(actual)

	for line := 1; ; line++ {
		exp, hasExp := scanTrimRight(expScan)
		act, hasAct := scanTrimRight(actScan)

		// EOF at the same time
		if !hasExp && !hasAct {
			return scanErr(expScan, actScan)
		}
		if exp != act {
			return &Mismatch{Line: line, Expected: exp, Actual: act}
		}
		if hasExp && hasAct {
			continue
		}
		// one side ended, the rest of the other must be blank
		if m := verifyEOFSpace("actual", line, actScan); m != nil {
			return m
		}
		if m := verifyEOFSpace("expected", line, expScan); m != nil {
			return m
		}
		return scanErr(expScan, actScan)
	}
}

// Bytes compares two outputs with the rules of Compare
func Bytes(expected, actual []byte) error {
	return Compare(bytes.NewReader(expected), bytes.NewReader(actual))
}

// AsLines strips surrounding white space and splits by newline
func AsLines(b []byte) []string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	parts := bytes.Split(b, []byte("\n"))
	rt := make([]string, len(parts))
	for i, p := range parts {
		rt[i] = string(bytes.TrimRight(p, "\r"))
	}
	return rt
}

// Lines checks ordered equality of two line lists
func Lines(expected, actual []string) error {
	n := max(len(expected), len(actual))
	for i := 0; i < n; i++ {
		var exp, act string
		if i < len(expected) {
			exp = expected[i]
		}
		if i < len(actual) {
			act = actual[i]
		}
		if i >= len(expected) || i >= len(actual) || exp != act {
			return &Mismatch{Line: i + 1, Expected: exp, Actual: act}
		}
	}
	return nil
}

// Unordered checks equality of two line lists ignoring order
func Unordered(expected, actual []string) error {
	exp := slices.Sorted(slices.Values(expected))
	act := slices.Sorted(slices.Values(actual))
	if err := Lines(exp, act); err != nil {
		m := err.(*Mismatch)
		return &Mismatch{
			Expected: m.Expected,
			Actual:   m.Actual,
			Reason:   fmt.Sprintf("lines differ ignoring order: expected %q, got %q", m.Expected, m.Actual),
		}
	}
	return nil
}

// Any returns nil if actual matches one of the expected line lists
func Any(expected [][]string, actual []string) error {
	var first error
	for _, e := range expected {
		err := Lines(e, actual)
		if err == nil {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func scanTrimRight(sc *bufio.Scanner) (string, bool) {
	if sc.Scan() {
		return trimRight(sc), true
	}
	return "", false
}

func verifyEOFSpace(name string, line int, sc *bufio.Scanner) *Mismatch {
	for sc.Scan() {
		line++
		if v := trimRight(sc); v != "" {
			m := &Mismatch{Line: line, Reason: fmt.Sprintf("%v have more content at line %d: %v", name, line, v)}
			if name == "actual" {
				m.Actual = v
			} else {
				m.Expected = v
			}
			return m
		}
	}
	return nil
}

func scanErr(scs ...*bufio.Scanner) error {
	for _, sc := range scs {
		if err := sc.Err(); err != nil {
			return err
		}
	}
	return nil
}

func trimRight(sc *bufio.Scanner) string {
	return string(bytes.TrimRightFunc(sc.Bytes(), unicode.IsSpace))
}
