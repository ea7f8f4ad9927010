package restexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/curriculagg/curricula-grade/cmd/grade-server/model"
	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/store"
	"github.com/curriculagg/curricula-grade/worker"
)

// mockWorker is a mock implementation of the worker.Worker interface
type mockWorker struct {
	worker.Worker
	// The report to send back when Submit is called
	Report *report.AssignmentReport
	Error  error

	requests []*worker.Request
}

func (m *mockWorker) Submit(_ context.Context, req *worker.Request) <-chan worker.Response {
	m.requests = append(m.requests, req)
	ch := make(chan worker.Response, 1)
	ch <- worker.Response{RequestID: req.RequestID, Report: m.Report, Error: m.Error}
	return ch
}

func sampleReport(passing bool) *report.AssignmentReport {
	r := result.New(result.KindCorrectness, passing)
	r.TaskName = "run"
	r.Graded = true
	r.Details = map[string]any{"stdout": "hi"}
	p := report.NewProblemReport()
	p.Add(r)
	a := report.NewAssignmentReport()
	a.Add("hello", p)
	return a
}

func newRouter(t *testing.T, w worker.Worker, s store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewGradeHandle(w, s, zaptest.NewLogger(t)).Register(r)
	NewReportHandle(s).Register(r)
	return r
}

func do(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleGrade(t *testing.T) {
	mw := &mockWorker{Report: sampleReport(false)}
	s := store.NewMemory()
	r := newRouter(t, mw, s)

	rec := do(r, http.MethodPost, "/grade", model.Request{RequestID: "r1", Submission: "/subs/alice", Tags: []string{"sample"}, Thin: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		RequestID string          `json:"requestId"`
		ReportID  string          `json:"reportId"`
		Partial   bool            `json:"partial"`
		Report    json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID != "r1" || !resp.Partial || resp.ReportID == "" {
		t.Errorf("response = %+v", resp)
	}
	if bytes.Contains(resp.Report, []byte(`"stdout"`)) {
		t.Errorf("thin report kept details: %s", resp.Report)
	}
	if len(mw.requests) != 1 || mw.requests[0].Context.Tags[0] != "sample" {
		t.Errorf("requests = %+v", mw.requests)
	}

	// stored report is retrievable
	rec = do(r, http.MethodGet, "/report/"+resp.ReportID, nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"stdout"`)) {
		t.Errorf("get report = %d %s", rec.Code, rec.Body)
	}
	rec = do(r, http.MethodGet, "/report/"+resp.ReportID+"?thin=true", nil)
	if rec.Code != http.StatusOK || bytes.Contains(rec.Body.Bytes(), []byte(`"stdout"`)) {
		t.Errorf("get thin report = %d %s", rec.Code, rec.Body)
	}
	rec = do(r, http.MethodGet, "/report", nil)
	var list map[string]string
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list[resp.ReportID] != "r1" {
		t.Errorf("list = %v", list)
	}
	if rec = do(r, http.MethodDelete, "/report/"+resp.ReportID, nil); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec = do(r, http.MethodDelete, "/report/"+resp.ReportID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
	if rec = do(r, http.MethodGet, "/report/"+resp.ReportID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d", rec.Code)
	}
}

func TestHandleGradeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		err    error
		status int
	}{
		{"bad json", "not an object", nil, http.StatusBadRequest},
		{"no submission", model.Request{}, nil, http.StatusBadRequest},
		{"not allowed", model.Request{Submission: "/etc"}, fmt.Errorf("%w: /etc", worker.ErrSubmissionNotAllowed), http.StatusForbidden},
		{"missing", model.Request{Submission: "/nope"}, fmt.Errorf("submission: %w", fs.ErrNotExist), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, &mockWorker{Error: tt.err}, store.NewMemory())
			if rec := do(r, http.MethodPost, "/grade", tt.body); rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}
}
