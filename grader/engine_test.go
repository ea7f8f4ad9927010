package grader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/curriculagg/curricula-grade/plan"
	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

func pass(context.Context, *resource.Inputs) (*result.Result, error) {
	return nil, nil
}

func failing(kind result.Kind) task.Func {
	return func(context.Context, *resource.Inputs) (*result.Result, error) {
		return result.Fail(kind, "wrong"), nil
	}
}

func runRegistry(t *testing.T, conf Config, r *task.Registry, rc resource.Context) (*report.ProblemReport, error) {
	t.Helper()
	p, err := plan.Build(r)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if conf.Logger == nil {
		conf.Logger = zaptest.NewLogger(t)
	}
	if rc.Problem == "" {
		rc.Problem = "p"
	}
	return New(conf).Run(context.Background(), p, resource.NewPool(resource.Submission{Path: t.TempDir()}, rc))
}

func mustGet(t *testing.T, rp *report.ProblemReport, name string) *result.Result {
	t.Helper()
	r, ok := rp.Get(name)
	if !ok {
		t.Fatalf("no result for %q", name)
	}
	return r
}

func errorKind(r *result.Result) result.ErrorKind {
	if r.Error == nil {
		return result.ErrorKindInvalid
	}
	return r.Error.Kind
}

func TestRunAllPassing(t *testing.T) {
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "a", Kind: result.KindSetup, Run: pass})
	r.MustRegister(task.Descriptor{Name: "b", Kind: result.KindCorrectness, Phase: task.PhaseTest, Passing: []string{"a"}, Graded: true, Run: pass})
	r.MustRegister(task.Descriptor{Name: "c", Kind: result.KindCleanup, Phase: task.PhaseTeardown, Run: pass})

	rp, err := runRegistry(t, Config{}, r, resource.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rp.Partial() {
		t.Error("report should not be partial")
	}
	if got := rp.Names(); fmt.Sprint(got) != "[a b c]" {
		t.Errorf("names = %v", got)
	}
	b := mustGet(t, rp, "b")
	if !b.Complete || !b.Passing || !b.Graded || b.Weight != 1 || b.TaskName != "b" {
		t.Errorf("b = %+v", b)
	}
}

func TestRunDependencyFailed(t *testing.T) {
	var invoked atomic.Int32
	counting := func(context.Context, *resource.Inputs) (*result.Result, error) {
		invoked.Add(1)
		return nil, nil
	}
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "check", Kind: result.KindCheck, Run: failing(result.KindCheck)})
	r.MustRegister(task.Descriptor{Name: "build", Kind: result.KindBuild, Passing: []string{"check"}, Run: counting})
	r.MustRegister(task.Descriptor{Name: "run", Kind: result.KindCorrectness, Phase: task.PhaseTest, Passing: []string{"build"}, Graded: true, Run: counting})
	r.MustRegister(task.Descriptor{Name: "other", Kind: result.KindCorrectness, Phase: task.PhaseTest, Graded: true, Run: pass})

	rp, err := runRegistry(t, Config{}, r, resource.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if invoked.Load() != 0 {
		t.Errorf("dependents invoked %d times", invoked.Load())
	}
	for _, name := range []string{"build", "run"} {
		res := mustGet(t, rp, name)
		if errorKind(res) != result.ErrorKindDependencyFailed || res.Complete || res.Passing {
			t.Errorf("%s = %+v", name, res)
		}
	}
	if !mustGet(t, rp, "other").Passing {
		t.Error("unrelated task should pass")
	}
	if !rp.Partial() {
		t.Error("report should be partial")
	}
}

func TestRunCompleteDependency(t *testing.T) {
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "a", Kind: result.KindCorrectness, Phase: task.PhaseTest, Graded: true, Run: failing(result.KindCorrectness)})
	r.MustRegister(task.Descriptor{Name: "b", Kind: result.KindCleanup, Phase: task.PhaseTeardown, Complete: []string{"a"}, Run: pass})

	rp, _ := runRegistry(t, Config{}, r, resource.Context{})
	if b := mustGet(t, rp, "b"); !b.Passing {
		t.Errorf("b should run after a completed, got %+v", b)
	}
}

func TestRunPanicIsolated(t *testing.T) {
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "boom", Kind: result.KindCorrectness, Phase: task.PhaseTest, Graded: true,
		Run: func(context.Context, *resource.Inputs) (*result.Result, error) {
			panic("index out of range")
		}})
	r.MustRegister(task.Descriptor{Name: "sibling", Kind: result.KindCorrectness, Phase: task.PhaseTest, Graded: true, Run: pass})

	rp, err := runRegistry(t, Config{}, r, resource.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	boom := mustGet(t, rp, "boom")
	if errorKind(boom) != result.ErrorKindRuntimeFault || boom.Error.Traceback == "" {
		t.Errorf("boom = %+v", boom.Error)
	}
	if !mustGet(t, rp, "sibling").Passing {
		t.Error("sibling should pass")
	}
}

func TestRunErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want result.ErrorKind
	}{
		{"plain", errors.New("oops"), result.ErrorKindRuntimeFault},
		{"result error", result.NewError(result.ErrorKindFailure, "bad"), result.ErrorKindFailure},
		{"missing", &resource.MissingResourceError{Name: "x"}, result.ErrorKindMissingResource},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), result.ErrorKindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := task.NewRegistry()
			r.MustRegister(task.Descriptor{Name: "t", Kind: result.KindCorrectness, Phase: task.PhaseTest,
				Run: func(context.Context, *resource.Inputs) (*result.Result, error) {
					return nil, tt.err
				}})
			rp, err := runRegistry(t, Config{}, r, resource.Context{})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			res := mustGet(t, rp, "t")
			if errorKind(res) != tt.want || res.Complete || res.Passing {
				t.Errorf("result = %+v, want %v", res, tt.want)
			}
		})
	}
}

func TestRunMissingResource(t *testing.T) {
	var invoked bool
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "run", Kind: result.KindCorrectness, Phase: task.PhaseTest, Inputs: []string{"binary"},
		Run: func(context.Context, *resource.Inputs) (*result.Result, error) {
			invoked = true
			return nil, nil
		}})
	rp, err := runRegistry(t, Config{}, r, resource.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if invoked {
		t.Error("task should not be invoked")
	}
	if res := mustGet(t, rp, "run"); errorKind(res) != result.ErrorKindMissingResource {
		t.Errorf("result = %+v", res)
	}
}

func TestRunTimeout(t *testing.T) {
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "slow", Kind: result.KindCorrectness, Phase: task.PhaseTest, Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context, _ *resource.Inputs) (*result.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}})
	r.MustRegister(task.Descriptor{Name: "stuck", Kind: result.KindCorrectness, Phase: task.PhaseTest,
		Run: func(context.Context, *resource.Inputs) (*result.Result, error) {
			time.Sleep(time.Second)
			return nil, nil
		}})
	start := time.Now()
	rp, err := runRegistry(t, Config{DefaultTimeout: 20 * time.Millisecond}, r, resource.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{"slow", "stuck"} {
		if res := mustGet(t, rp, name); errorKind(res) != result.ErrorKindTimeout {
			t.Errorf("%s = %+v", name, res)
		}
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("timeout did not stop waiting for the task")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var finished atomic.Bool
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "first", Kind: result.KindSetup,
		Run: func(context.Context, *resource.Inputs) (*result.Result, error) {
			cancel()
			time.Sleep(10 * time.Millisecond)
			finished.Store(true)
			return nil, nil
		}})
	r.MustRegister(task.Descriptor{Name: "second", Kind: result.KindCorrectness, Phase: task.PhaseTest, Run: pass})

	p, err := plan.Build(r)
	if err != nil {
		t.Fatal(err)
	}
	pool := resource.NewPool(resource.Submission{}, resource.Context{Problem: "p"})
	rp, err := New(Config{Logger: zaptest.NewLogger(t)}).Run(ctx, p, pool)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if first := mustGet(t, rp, "first"); !first.Passing || !finished.Load() {
		t.Errorf("in-flight task should finish, got %+v", first)
	}
	if second := mustGet(t, rp, "second"); errorKind(second) != result.ErrorKindCancelled {
		t.Errorf("second = %+v", second)
	}
}

func TestRunResultTypeMismatch(t *testing.T) {
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "build", Kind: result.KindBuild,
		Run: func(context.Context, *resource.Inputs) (*result.Result, error) {
			return result.New(result.KindCheck, true), nil
		}})
	r.MustRegister(task.Descriptor{Name: "run", Kind: result.KindCorrectness, Phase: task.PhaseTest, Run: pass})

	rp, err := runRegistry(t, Config{}, r, resource.Context{})
	var mismatch *ResultTypeMismatchError
	if !errors.As(err, &mismatch) || !errors.Is(err, result.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
	if rp.Error == nil || !rp.Partial() {
		t.Error("report should carry the error")
	}
	if res := mustGet(t, rp, "build"); errorKind(res) != result.ErrorKindConfiguration {
		t.Errorf("build = %+v", res)
	}
	if res := mustGet(t, rp, "run"); errorKind(res) != result.ErrorKindCancelled {
		t.Errorf("run = %+v", res)
	}
}

func TestRunPublishCollision(t *testing.T) {
	publish := func(ctx context.Context, in *resource.Inputs) (*result.Result, error) {
		in.Publish("binary", "a.out")
		return nil, nil
	}
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "one", Kind: result.KindBuild, Outputs: []string{"binary"}, Run: publish})
	r.MustRegister(task.Descriptor{Name: "two", Kind: result.KindBuild, Passing: []string{"one"}, Run: publish})

	_, err := runRegistry(t, Config{}, r, resource.Context{})
	var collision *resource.CollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunFilter(t *testing.T) {
	newRegistry := func() *task.Registry {
		r := task.NewRegistry()
		r.MustRegister(task.Descriptor{Name: "build", Kind: result.KindBuild, Tags: []string{"build"}, Run: pass})
		r.MustRegister(task.Descriptor{Name: "small", Kind: result.KindCorrectness, Phase: task.PhaseTest, Tags: []string{"sample"}, Passing: []string{"build"}, Run: pass})
		r.MustRegister(task.Descriptor{Name: "large", Kind: result.KindCorrectness, Phase: task.PhaseTest, Passing: []string{"build"}, Run: pass})
		r.MustRegister(task.Descriptor{Name: "clean", Kind: result.KindCleanup, Phase: task.PhaseTeardown, Run: pass})
		return r
	}
	tests := []struct {
		name     string
		ctx      resource.Context
		filtered []string
	}{
		{"none", resource.Context{}, nil},
		{"tags", resource.Context{Tags: []string{"build", "sample"}}, []string{"large", "clean"}},
		{"tasks closure", resource.Context{Tasks: []string{"small"}}, []string{"large", "clean"}},
		{"problem prefix", resource.Context{Tasks: []string{"p:large"}}, []string{"small", "clean"}},
		{"other problem", resource.Context{Tasks: []string{"q:large"}}, []string{"build", "small", "large", "clean"}},
		{"phases", resource.Context{Phases: []string{"setup", "teardown"}}, []string{"small", "large"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, err := runRegistry(t, Config{}, newRegistry(), tt.ctx)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			var filtered []string
			for _, res := range rp.Results() {
				if errorKind(res) == result.ErrorKindFiltered {
					filtered = append(filtered, res.TaskName)
				} else if !res.Passing {
					t.Errorf("%s = %+v", res.TaskName, res)
				}
			}
			if fmt.Sprint(filtered) != fmt.Sprint(tt.filtered) {
				t.Errorf("filtered = %v, want %v", filtered, tt.filtered)
			}
		})
	}
}

func TestRunInvalidPhaseFilter(t *testing.T) {
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "a", Kind: result.KindSetup, Run: pass})
	rp, err := runRegistry(t, Config{}, r, resource.Context{Phases: []string{"deploy"}})
	if !errors.Is(err, result.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
	if rp.Error == nil {
		t.Error("report should carry the error")
	}
}

func TestRunParallelRespectsDependencies(t *testing.T) {
	var (
		mu      sync.Mutex
		done    = make(map[string]bool)
		running atomic.Int32
		peak    atomic.Int32
	)
	work := func(deps ...string) task.Func {
		return func(_ context.Context, in *resource.Inputs) (*result.Result, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			mu.Lock()
			for _, d := range deps {
				if !done[d] {
					mu.Unlock()
					return result.Fail(result.KindCorrectness, "%s ran before %s", in.Owner(), d), nil
				}
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			done[in.Owner()] = true
			mu.Unlock()
			return nil, nil
		}
	}
	r := task.NewRegistry()
	for i := range 6 {
		name := fmt.Sprintf("t%d", i)
		var deps []string
		if i%2 == 1 {
			deps = []string{fmt.Sprintf("t%d", i-1)}
		}
		r.MustRegister(task.Descriptor{Name: name, Kind: result.KindCorrectness, Phase: task.PhaseTest, Passing: deps, Graded: true, Run: work(deps...)})
	}
	rp, err := runRegistry(t, Config{Parallelism: 3}, r, resource.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, res := range rp.Results() {
		if !res.Passing {
			t.Errorf("%s = %+v", res.TaskName, res.Error)
		}
	}
	if peak.Load() > 3 {
		t.Errorf("peak parallelism = %d", peak.Load())
	}
}

func TestRunFailFast(t *testing.T) {
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "a", Kind: result.KindCorrectness, Phase: task.PhaseTest, Graded: true, Run: failing(result.KindCorrectness)})
	r.MustRegister(task.Descriptor{Name: "b", Kind: result.KindCorrectness, Phase: task.PhaseTest, Graded: true, Run: pass})

	rp, err := runRegistry(t, Config{FailFast: true}, r, resource.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res := mustGet(t, rp, "b"); errorKind(res) != result.ErrorKindCancelled {
		t.Errorf("b = %+v", res)
	}

	rp, _ = runRegistry(t, Config{}, r, resource.Context{})
	if res := mustGet(t, rp, "b"); !res.Passing {
		t.Errorf("without fail fast b = %+v", res)
	}
}

func TestRunObserver(t *testing.T) {
	var seen []string
	r := task.NewRegistry()
	r.MustRegister(task.Descriptor{Name: "a", Kind: result.KindSetup, Run: pass})
	r.MustRegister(task.Descriptor{Name: "b", Kind: result.KindSetup, Passing: []string{"a"}, Run: pass})
	_, err := runRegistry(t, Config{Observer: func(problem string, d *task.Descriptor, r *result.Result, _ time.Duration) {
		seen = append(seen, problem+"/"+d.Name)
	}}, r, resource.Context{})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(seen) != "[p/a p/b]" {
		t.Errorf("seen = %v", seen)
	}
}

func TestGradeInvalidProblem(t *testing.T) {
	good := task.NewRegistry()
	good.MustRegister(task.Descriptor{Name: "a", Kind: result.KindSetup, Run: pass})
	bad := task.NewRegistry()
	bad.MustRegister(task.Descriptor{Name: "a", Kind: result.KindSetup, Passing: []string{"ghost"}, Run: pass})

	e := New(Config{Logger: zaptest.NewLogger(t)})
	a, err := e.Grade(context.Background(), []Problem{{"good", good}, {"bad", bad}}, resource.Submission{}, resource.Context{})
	if !errors.Is(err, result.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
	if fmt.Sprint(a.Problems()) != "[good bad]" {
		t.Errorf("problems = %v", a.Problems())
	}
	if g, _ := a.Get("good"); g.Partial() {
		t.Error("good should not be partial")
	}
	if b, _ := a.Get("bad"); !b.Partial() || b.Error == nil {
		t.Error("bad should be partial")
	}
}
