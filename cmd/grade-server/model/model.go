// Package model defines the JSON documents of the grading service.
package model

import (
	"github.com/google/uuid"

	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/worker"
)

// Request defines a grading request
type Request struct {
	RequestID  string            `json:"requestId"`
	Submission string            `json:"submission"`
	Tags       []string          `json:"tags,omitempty"`
	Tasks      []string          `json:"tasks,omitempty"`
	Phases     []string          `json:"phases,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
	Thin       bool              `json:"thin,omitempty"`
}

// Response defines the result of a grading request
type Response struct {
	RequestID string                   `json:"requestId"`
	ReportID  string                   `json:"reportId,omitempty"`
	Partial   bool                     `json:"partial"`
	Report    *report.AssignmentReport `json:"report,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Event is one message of a streamed grading request
type Event struct {
	Type     string         `json:"type"` // result, response
	Problem  string         `json:"problem,omitempty"`
	Result   *result.Result `json:"result,omitempty"`
	Response *Response      `json:"response,omitempty"`
}

// ConvertRequest converts the json request to a worker request, assigning a
// request id when none is given
func ConvertRequest(r *Request) *worker.Request {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	return &worker.Request{
		RequestID:  r.RequestID,
		Submission: r.Submission,
		Context: resource.Context{
			Tags:    r.Tags,
			Tasks:   r.Tasks,
			Phases:  r.Phases,
			Options: r.Options,
		},
	}
}

// ConvertResponse converts the worker response, stripping diagnostics when
// thin is set
func ConvertResponse(rt worker.Response, reportID string, thin bool) Response {
	ret := Response{
		RequestID: rt.RequestID,
		ReportID:  reportID,
		Report:    rt.Report,
	}
	if rt.Report != nil {
		ret.Partial = rt.Report.Partial()
		if thin {
			ret.Report = rt.Report.Thin()
		}
	}
	if rt.Error != nil {
		ret.Error = rt.Error.Error()
	}
	return ret
}
