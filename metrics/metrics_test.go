package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		r    *result.Result
		want string
	}{
		{result.New(result.KindCheck, true), "passed"},
		{result.Fail(result.KindCheck, "missing"), "failed"},
		{result.Incomplete(result.KindBuild, result.ErrorKindTimeout, "slow"), "timeout"},
		{result.Incomplete(result.KindBuild, result.ErrorKindDependencyFailed, "check"), "dependency_failed"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.r); got != tt.want {
			t.Errorf("Outcome(%+v) = %q, want %q", tt.r.Error, got, tt.want)
		}
	}
}

func counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if v, ok := labels[l.GetName()]; ok && v != l.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserveTask(t *testing.T) {
	d := &task.Descriptor{Name: "run", Kind: result.KindMemory}
	labels := map[string]string{"kind": "memory", "outcome": "failed"}
	before := counter(t, Namespace+"_task_total", labels)
	ObserveTask("p", d, result.Fail(result.KindMemory, "leak"), 10*time.Millisecond)
	ObserveTask("p", d, result.New(result.KindMemory, true), time.Millisecond)
	if got := counter(t, Namespace+"_task_total", labels); got != before+1 {
		t.Errorf("failed count = %v, want %v", got, before+1)
	}

	ObserveGrade(true, time.Second)
	if got := counter(t, Namespace+"_grade_total", map[string]string{"partial": "true"}); got < 1 {
		t.Errorf("grade count = %v", got)
	}
}
