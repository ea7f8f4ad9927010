package report

import (
	"encoding/json"
	"io"
	"path/filepath"
)

// AssignmentReport maps problem identifier to problem report, in
// registration order
type AssignmentReport struct {
	order    []string
	problems map[string]*ProblemReport
}

// NewAssignmentReport creates an empty assignment report
func NewAssignmentReport() *AssignmentReport {
	return &AssignmentReport{problems: make(map[string]*ProblemReport)}
}

// Add records the report of a problem, replacing an existing one in place
func (a *AssignmentReport) Add(problem string, p *ProblemReport) {
	if _, ok := a.problems[problem]; !ok {
		a.order = append(a.order, problem)
	}
	a.problems[problem] = p
}

// Get returns the report of a problem
func (a *AssignmentReport) Get(problem string) (*ProblemReport, bool) {
	p, ok := a.problems[problem]
	return p, ok
}

// Problems returns problem identifiers in order
func (a *AssignmentReport) Problems() []string {
	return append([]string(nil), a.order...)
}

// Partial is true if any problem report is partial
func (a *AssignmentReport) Partial() bool {
	for _, p := range a.problems {
		if p.Partial() {
			return true
		}
	}
	return false
}

// Thin returns a copy with thin problem reports
func (a *AssignmentReport) Thin() *AssignmentReport {
	c := NewAssignmentReport()
	for _, n := range a.order {
		c.Add(n, a.problems[n].Thin())
	}
	return c
}

type assignmentJSON struct {
	Partial  bool            `json:"partial"`
	Problems json.RawMessage `json:"problems"`
}

// MarshalJSON encodes the report keeping problem order
func (a *AssignmentReport) MarshalJSON() ([]byte, error) {
	problems, err := encodeObject(a.order, func(n string) *ProblemReport { return a.problems[n] })
	if err != nil {
		return nil, err
	}
	return json.Marshal(assignmentJSON{Partial: a.Partial(), Problems: problems})
}

// UnmarshalJSON decodes the report
func (a *AssignmentReport) UnmarshalJSON(data []byte) error {
	var aj assignmentJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	*a = *NewAssignmentReport()
	return decodeObject(aj.Problems, func(name string, p *ProblemReport) {
		if p == nil {
			p = NewProblemReport()
		}
		a.Add(name, p)
	})
}

// Dump writes the report as indented JSON
func Dump(w io.Writer, a *AssignmentReport, thin bool) error {
	if thin {
		a = a.Thin()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// Load reads a report written by Dump
func Load(r io.Reader) (*AssignmentReport, error) {
	a := NewAssignmentReport()
	if err := json.NewDecoder(r).Decode(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Amend merges update into existing: task results of update replace those
// of existing per problem and new problems are appended. existing is modified
// and returned.
func Amend(existing, update *AssignmentReport) *AssignmentReport {
	for _, n := range update.order {
		np := update.problems[n]
		ep, ok := existing.problems[n]
		if !ok {
			existing.Add(n, np)
			continue
		}
		if np.Error != nil {
			ep.Error = np.Error
		}
		for _, r := range np.Results() {
			ep.Add(r)
		}
	}
	return existing
}

// FileName returns the report file name for a graded target path
func FileName(target string) string {
	return filepath.Base(filepath.Clean(target)) + ".report.json"
}
