// Package report folds task results into problem and assignment reports and
// maps them to the persisted JSON document.
package report

import (
	"encoding/json"

	"github.com/curriculagg/curricula-grade/result"
)

// ProblemReport maps task name to result for one problem, in plan order
type ProblemReport struct {
	// Error is set when the problem could not be graded at all
	Error *result.Error

	order   []string
	results map[string]*result.Result
}

// NewProblemReport creates an empty problem report
func NewProblemReport() *ProblemReport {
	return &ProblemReport{results: make(map[string]*result.Result)}
}

// Failed creates a report describing a problem that could not be run
func Failed(err error) *ProblemReport {
	p := NewProblemReport()
	p.Error = result.NewError(result.ErrorKindConfiguration, err.Error())
	return p
}

// Add records r under its task name. Adding an existing name replaces the
// result in place.
func (p *ProblemReport) Add(r *result.Result) {
	if _, ok := p.results[r.TaskName]; !ok {
		p.order = append(p.order, r.TaskName)
	}
	p.results[r.TaskName] = r
}

// Get returns the result of a task
func (p *ProblemReport) Get(name string) (*result.Result, bool) {
	r, ok := p.results[name]
	return r, ok
}

// Len returns the number of results
func (p *ProblemReport) Len() int {
	return len(p.order)
}

// Names returns task names in order
func (p *ProblemReport) Names() []string {
	return append([]string(nil), p.order...)
}

// Results returns results in order
func (p *ProblemReport) Results() []*result.Result {
	rt := make([]*result.Result, 0, len(p.order))
	for _, n := range p.order {
		rt = append(rt, p.results[n])
	}
	return rt
}

// Partial is true if the problem failed to run or any graded task did not pass
func (p *ProblemReport) Partial() bool {
	if p.Error != nil {
		return true
	}
	for _, r := range p.results {
		if r.Graded && !r.Passing {
			return true
		}
	}
	return false
}

// Score returns the passing graded weight over the total graded weight
func (p *ProblemReport) Score() result.Score {
	var s result.Score
	for _, r := range p.results {
		if !r.Graded {
			continue
		}
		w := r.Weight
		if w == 0 {
			w = 1
		}
		s.Denominator += w
		if r.Passing {
			s.Numerator += w
		}
	}
	return s
}

// Thin returns a copy with thin results
func (p *ProblemReport) Thin() *ProblemReport {
	c := NewProblemReport()
	if p.Error != nil {
		e := *p.Error
		e.Traceback, e.Location = "", ""
		c.Error = &e
	}
	for _, r := range p.Results() {
		c.Add(r.Thin())
	}
	return c
}

type problemJSON struct {
	Partial bool            `json:"partial"`
	Score   result.Score    `json:"score"`
	Error   *result.Error   `json:"error,omitempty"`
	Results json.RawMessage `json:"results"`
}

// MarshalJSON encodes the report keeping result order
func (p *ProblemReport) MarshalJSON() ([]byte, error) {
	results, err := encodeObject(p.order, func(n string) *result.Result { return p.results[n] })
	if err != nil {
		return nil, err
	}
	return json.Marshal(problemJSON{
		Partial: p.Partial(),
		Score:   p.Score(),
		Error:   p.Error,
		Results: results,
	})
}

// UnmarshalJSON decodes the report; partial and score are recomputed
func (p *ProblemReport) UnmarshalJSON(data []byte) error {
	var pj problemJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	*p = *NewProblemReport()
	p.Error = pj.Error
	return decodeObject(pj.Results, func(name string, r *result.Result) {
		if r == nil {
			return
		}
		r.TaskName = name
		p.Add(r)
	})
}
