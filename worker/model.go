package worker

import (
	"fmt"
	"time"

	"github.com/curriculagg/curricula-grade/grader"
	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/resource"
)

// Request defines single grading request
type Request struct {
	RequestID  string
	Submission string
	Context    resource.Context

	// OnResult is called after every recorded task result of this request
	OnResult grader.Observer
}

// Response defines worker response for single request. Report is set
// whenever grading started, even when Error is set.
type Response struct {
	RequestID string
	Report    *report.AssignmentReport
	Elapsed   time.Duration
	Error     error
}

func (r Response) String() string {
	partial := "-"
	if r.Report != nil {
		partial = fmt.Sprint(r.Report.Partial())
	}
	return fmt.Sprintf("{RequestID:%s Partial:%s Elapsed:%v Error:%v}", r.RequestID, partial, r.Elapsed, r.Error)
}
