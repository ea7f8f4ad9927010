// Package grader executes a validated plan against a resource pool and
// assembles the results into reports.
package grader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/curriculagg/curricula-grade/plan"
	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

const tracerName = "github.com/curriculagg/curricula-grade/grader"

// Observer is called after the result of every task is recorded
type Observer func(problem string, d *task.Descriptor, r *result.Result, elapsed time.Duration)

// Config defines engine configuration
type Config struct {
	// Parallelism bounds how many tasks of one phase run at once (default 1)
	Parallelism int

	// DefaultTimeout applies to tasks without their own timeout, 0 for none
	DefaultTimeout time.Duration

	// FailFast cancels the remaining tasks after the first graded failure
	FailFast bool

	Logger   *zap.Logger
	Observer Observer
}

// Engine drives plans to completion
type Engine struct {
	parallelism    int
	defaultTimeout time.Duration
	failFast       bool
	logger         *zap.Logger
	observer       Observer
}

// New creates new engine
func New(conf Config) *Engine {
	e := &Engine{
		parallelism:    conf.Parallelism,
		defaultTimeout: conf.DefaultTimeout,
		failFast:       conf.FailFast,
		logger:         conf.Logger,
		observer:       conf.Observer,
	}
	if e.parallelism <= 0 {
		e.parallelism = 1
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// run holds the state of one problem run. results is only accessed by the
// scheduling goroutine.
type run struct {
	*Engine
	plan    *plan.Plan
	pool    *resource.Pool
	filter  *Filter
	problem string
	results map[string]*result.Result
	cancel  context.CancelCauseFunc
	err     error
}

type finished struct {
	d       *task.Descriptor
	r       *result.Result
	elapsed time.Duration
	fatal   error
}

// Run executes every task of p, phase by phase. The returned report is never
// nil. The error is set when a configuration error stopped the run; the
// report then describes it.
func (e *Engine) Run(ctx context.Context, p *plan.Plan, pool *resource.Pool) (*report.ProblemReport, error) {
	problem := pool.Context().Problem
	ctx, span := otel.Tracer(tracerName).Start(ctx, "problem",
		trace.WithAttributes(attribute.String("problem.name", problem)))
	defer span.End()

	filter, err := NewFilter(p, pool.Context())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return report.Failed(err), err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r := &run{
		Engine:  e,
		plan:    p,
		pool:    pool,
		filter:  filter,
		problem: problem,
		results: make(map[string]*result.Result),
		cancel:  cancel,
	}
	e.logger.Info("grading started", zap.String("problem", problem), zap.Int("tasks", len(p.Tasks())))
	for _, ph := range task.Phases {
		r.runPhase(ctx, ph)
	}

	rp := report.NewProblemReport()
	for _, d := range p.Tasks() {
		rp.Add(r.results[d.Name])
	}
	if r.err != nil {
		rp.Error = result.NewError(result.ErrorKindConfiguration, r.err.Error())
		span.SetStatus(codes.Error, r.err.Error())
	}
	span.SetAttributes(attribute.Bool("problem.partial", rp.Partial()))
	e.logger.Info("grading finished", zap.String("problem", problem), zap.Bool("partial", rp.Partial()), zap.Error(r.err))
	return rp, r.err
}

// runPhase dispatches the tasks of ph in plan order as soon as all of their
// dependencies have recorded a result, with at most parallelism in flight
func (r *run) runPhase(ctx context.Context, ph task.Phase) {
	pending := slices.Clone(r.plan.Phase(ph))
	done := make(chan finished, len(pending))

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	running := 0
	for len(pending) > 0 || running > 0 {
		for i := 0; i < len(pending) && running < r.parallelism; {
			d := pending[i]
			if !r.ready(d) {
				i++
				continue
			}
			pending = slices.Delete(pending, i, i+1)
			if skip := r.gate(ctx, d); skip != nil {
				r.record(finished{d: d, r: skip})
				i = 0
				continue
			}
			in, err := r.pool.Resolve(d.Name, d.Inputs)
			if err != nil {
				r.record(finished{d: d, r: result.Incomplete(d.Kind, result.ErrorKindMissingResource, err.Error())})
				i = 0
				continue
			}
			running++
			g.Go(func() error {
				done <- r.execute(ctx, d, in)
				return nil
			})
		}
		if running == 0 {
			// unreachable for a validated plan
			for _, d := range pending {
				r.record(finished{d: d, r: result.Incomplete(d.Kind, result.ErrorKindDependencyFailed, "dependencies never recorded")})
			}
			break
		}
		r.record(<-done)
		running--
	}
	g.Wait()
}

func (r *run) ready(d *task.Descriptor) bool {
	for _, dep := range d.Dependencies() {
		if _, ok := r.results[dep]; !ok {
			return false
		}
	}
	return true
}

// gate returns the skip result of d, nil if d should run
func (r *run) gate(ctx context.Context, d *task.Descriptor) *result.Result {
	if ctx.Err() != nil {
		return result.Incomplete(d.Kind, result.ErrorKindCancelled, "run cancelled: "+context.Cause(ctx).Error())
	}
	for _, dep := range d.Passing {
		if res, ok := r.results[dep]; !ok || !res.Passing {
			return result.Incomplete(d.Kind, result.ErrorKindDependencyFailed, fmt.Sprintf("dependency %q did not pass", dep))
		}
	}
	for _, dep := range d.Complete {
		if res, ok := r.results[dep]; !ok || !res.Complete {
			return result.Incomplete(d.Kind, result.ErrorKindDependencyFailed, fmt.Sprintf("dependency %q did not complete", dep))
		}
	}
	if ok, reason := r.filter.Allow(d); !ok {
		return result.Incomplete(d.Kind, result.ErrorKindFiltered, reason)
	}
	return nil
}

type outcome struct {
	r     *result.Result
	err   error
	panic any
	stack []byte
}

// execute invokes the unit of work of d. In-flight tasks are not interrupted
// by cancellation of the run, only by their own timeout.
func (r *run) execute(ctx context.Context, d *task.Descriptor, in *resource.Inputs) finished {
	start := time.Now()
	tctx := context.WithoutCancel(ctx)
	timeout := d.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, timeout)
		defer cancel()
	}
	tctx, span := otel.Tracer(tracerName).Start(tctx, "task", trace.WithAttributes(
		attribute.String("problem.name", r.problem),
		attribute.String("task.name", d.Name),
		attribute.String("task.phase", d.Phase.String()),
		attribute.String("task.kind", string(d.Kind)),
	))
	defer span.End()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- outcome{panic: p, stack: debug.Stack()}
			}
		}()
		res, err := d.Run(tctx, in)
		ch <- outcome{r: res, err: err}
	}()

	var f finished
	select {
	case o := <-ch:
		f = classify(d, in, o)
	case <-tctx.Done():
		f = finished{d: d, r: result.Incomplete(d.Kind, result.ErrorKindTimeout, fmt.Sprintf("task exceeded its timeout of %v", timeout))}
	}
	f.elapsed = time.Since(start)
	if f.r.Error != nil {
		span.SetStatus(codes.Error, f.r.Error.Error())
	}
	return f
}

// classify turns the outcome of a unit of work into a normalized result
func classify(d *task.Descriptor, in *resource.Inputs, o outcome) finished {
	f := finished{d: d}
	var re *result.Error
	var me *resource.MissingResourceError
	switch {
	case o.panic != nil:
		f.r = result.Incomplete(d.Kind, result.ErrorKindRuntimeFault, fmt.Sprint(o.panic))
		f.r.Error.Traceback = string(o.stack)
		return f
	case o.err == nil:
	case errors.Is(o.err, result.ErrConfiguration):
		f.fatal = o.err
	case errors.As(o.err, &re) && re.Kind != result.ErrorKindInvalid:
		e := *re
		f.r = &result.Result{Kind: d.Kind, Error: &e}
		return f
	case errors.As(o.err, &me):
		f.r = result.Incomplete(d.Kind, result.ErrorKindMissingResource, me.Error())
		return f
	case errors.Is(o.err, context.DeadlineExceeded):
		f.r = result.Incomplete(d.Kind, result.ErrorKindTimeout, o.err.Error())
		return f
	default:
		f.r = result.Incomplete(d.Kind, result.ErrorKindRuntimeFault, o.err.Error())
		return f
	}

	if f.fatal == nil {
		f.fatal = in.Err()
	}
	if f.fatal == nil && o.r != nil && o.r.Kind != "" && o.r.Kind != d.Kind {
		f.fatal = &ResultTypeMismatchError{Task: d.Name, Want: d.Kind, Got: o.r.Kind}
	}
	if f.fatal != nil {
		f.r = result.Incomplete(d.Kind, result.ErrorKindConfiguration, f.fatal.Error())
		return f
	}

	if o.r == nil {
		f.r = result.Default(d.Kind)
		return f
	}
	f.r = o.r.Clone()
	f.r.Kind = d.Kind
	f.r.Normalize()
	return f
}

// record stores the result of f and applies its effect on the run
func (r *run) record(f finished) {
	res := f.r
	res.TaskName = f.d.Name
	res.Graded = f.d.Graded
	res.Weight = f.d.Weight
	r.results[f.d.Name] = res

	if f.fatal != nil && r.err == nil {
		r.err = f.fatal
		r.cancel(f.fatal)
	}
	if r.failFast && f.d.Graded && !res.Passing && !res.Skipped() {
		r.cancel(fmt.Errorf("task %q failed", f.d.Name))
	}

	fields := []zap.Field{
		zap.String("problem", r.problem),
		zap.String("task", f.d.Name),
		zap.Bool("complete", res.Complete),
		zap.Bool("passing", res.Passing),
		zap.Duration("elapsed", f.elapsed),
	}
	if res.Error != nil {
		fields = append(fields, zap.Stringer("errorKind", res.Error.Kind), zap.String("error", res.Error.Message))
	}
	r.logger.Debug("task recorded", fields...)
	if r.observer != nil {
		r.observer(r.problem, f.d, res, f.elapsed)
	}
}
