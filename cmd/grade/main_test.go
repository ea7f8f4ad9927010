package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/curriculagg/curricula-grade/cmd/grade/config"
	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/result"
)

func problemReport(name string, passing bool) *report.ProblemReport {
	r := result.New(result.KindCorrectness, passing)
	r.TaskName = name
	r.Graded = true
	p := report.NewProblemReport()
	p.Add(r)
	return p
}

func TestReportPath(t *testing.T) {
	tests := []struct {
		conf config.Config
		want string
	}{
		{config.Config{ReportDir: "out"}, filepath.Join("out", "alice.report.json")},
		{config.Config{Report: "r.json", ReportDir: "out"}, "r.json"},
		{config.Config{Report: "-"}, ""},
	}
	for _, tt := range tests {
		if got := reportPath(&tt.conf, "/subs/alice/"); got != tt.want {
			t.Errorf("reportPath(%+v) = %q, want %q", tt.conf, got, tt.want)
		}
	}
}

func TestWriteReportAmend(t *testing.T) {
	logger = zaptest.NewLogger(t)
	dir := t.TempDir()
	conf := &config.Config{ReportDir: dir}

	first := report.NewAssignmentReport()
	first.Add("p1", problemReport("a", false))
	if err := writeReport(conf, "alice", first); err != nil {
		t.Fatalf("write: %v", err)
	}

	second := report.NewAssignmentReport()
	second.Add("p2", problemReport("b", true))
	conf.Amend = true
	if err := writeReport(conf, "alice", second); err != nil {
		t.Fatalf("amend: %v", err)
	}

	p := filepath.Join(dir, "alice.report.json")
	got, err := loadReport(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ps := got.Problems(); len(ps) != 2 || ps[0] != "p1" || ps[1] != "p2" {
		t.Errorf("problems = %v", ps)
	}
	if !got.Partial() {
		t.Error("amended report keeps the failing problem")
	}
	fi, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v", fi.Mode())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("leftover files: %v", entries)
	}
}
