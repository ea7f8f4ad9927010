// Package metrics exposes grading outcomes as prometheus collectors.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

// Namespace prefixes every collector of the module
const Namespace = "curricula_grade"

var (
	// 1ms -> 60s
	timeBuckets = []float64{
		0.001, 0.005, 0.010, 0.025, 0.050, 0.1, 0.25, 0.5,
		1.0, 2.5, 5, 10, 30, 60,
	}

	metricsSummaryQuantile = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

	taskCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "task_total",
		Help:      "Number of recorded task results by kind and outcome",
	}, []string{"kind", "outcome"})

	taskTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "task_time_seconds",
		Help:      "Histogram for the task execution time",
		Buckets:   timeBuckets,
	}, []string{"kind"})

	taskTimeSummary = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  Namespace,
		Name:       "task_time",
		Help:       "Summary for the task execution time",
		Objectives: metricsSummaryQuantile,
	}, []string{"kind"})

	gradeCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "grade_total",
		Help:      "Number of graded submissions by partial flag",
	}, []string{"partial"})

	gradeTimeHist = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "grade_time_seconds",
		Help:      "Histogram for the time to grade a submission",
		Buckets:   timeBuckets,
	})
)

func init() {
	prometheus.MustRegister(taskCount)
	prometheus.MustRegister(taskTimeHist, taskTimeSummary)
	prometheus.MustRegister(gradeCount, gradeTimeHist)
}

// Outcome names the label a result is counted under: "passed", "failed",
// or the lower case error kind for results that did not complete
func Outcome(r *result.Result) string {
	switch {
	case r.Passing:
		return "passed"
	case r.Error == nil || r.Error.Kind == result.ErrorKindFailure:
		return "failed"
	}
	return strings.ToLower(r.Error.Kind.String())
}

// ObserveTask records one task result. Its signature matches the engine
// observer hook.
func ObserveTask(_ string, d *task.Descriptor, r *result.Result, elapsed time.Duration) {
	kind := string(d.Kind)
	taskCount.WithLabelValues(kind, Outcome(r)).Inc()
	if r.Skipped() {
		return
	}
	s := elapsed.Seconds()
	taskTimeHist.WithLabelValues(kind).Observe(s)
	taskTimeSummary.WithLabelValues(kind).Observe(s)
}

// ObserveGrade records one graded submission
func ObserveGrade(partial bool, elapsed time.Duration) {
	label := "false"
	if partial {
		label = "true"
	}
	gradeCount.WithLabelValues(label).Inc()
	gradeTimeHist.Observe(elapsed.Seconds())
}
