// Package worker queues grading requests and runs them with bounded
// parallelism.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/curriculagg/curricula-grade/grader"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

const maxWaiting = 512

// ErrSubmissionNotAllowed is returned for a submission outside of the
// configured prefixes
var ErrSubmissionNotAllowed = errors.New("submission path is not allowed")

// Config defines worker configuration
type Config struct {
	Problems    []grader.Problem
	Parallelism int

	// Engine options applied to every request
	TaskParallelism int
	TaskTimeout     time.Duration
	FailFast        bool

	// Timeout bounds a whole request, 0 for none
	Timeout time.Duration

	// SrcPrefix restricts submissions to these directories when set
	SrcPrefix []string

	Logger        *zap.Logger
	TaskObserver  grader.Observer
	GradeObserver func(Response)
}

// Worker defines interface for the grading queue
type Worker interface {
	Start()
	Submit(context.Context, *Request) <-chan Response
	Execute(context.Context, *Request) <-chan Response
	Shutdown()
}

type worker struct {
	problems    []grader.Problem
	parallelism int

	taskParallelism int
	taskTimeout     time.Duration
	failFast        bool
	timeout         time.Duration
	srcPrefix       []string

	logger        *zap.Logger
	taskObserver  grader.Observer
	gradeObserver func(Response)

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workCh    chan workRequest
	done      chan struct{}
}

type workRequest struct {
	*Request
	context.Context
	resultCh chan<- Response
}

// New creates new worker
func New(conf Config) Worker {
	w := &worker{
		problems:        conf.Problems,
		parallelism:     conf.Parallelism,
		taskParallelism: conf.TaskParallelism,
		taskTimeout:     conf.TaskTimeout,
		failFast:        conf.FailFast,
		timeout:         conf.Timeout,
		srcPrefix:       conf.SrcPrefix,
		logger:          conf.Logger,
		taskObserver:    conf.TaskObserver,
		gradeObserver:   conf.GradeObserver,
	}
	if w.parallelism <= 0 {
		w.parallelism = 1
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start starts worker loops with given parallelism
func (w *worker) Start() {
	w.startOnce.Do(func() {
		w.workCh = make(chan workRequest, maxWaiting)
		w.done = make(chan struct{})
		w.wg.Add(w.parallelism)
		for range w.parallelism {
			go w.loop()
		}
	})
}

// Submit queues a single request. The response reports the context error if
// ctx is done before the request is queued.
func (w *worker) Submit(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	select {
	case w.workCh <- workRequest{Request: req, Context: ctx, resultCh: ch}:
	case <-ctx.Done():
		ch <- Response{RequestID: req.RequestID, Error: ctx.Err()}
	}
	return ch
}

// Execute grades the request in new goroutine (bypass the parallelism limit)
func (w *worker) Execute(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.workDoGrade(workRequest{Request: req, Context: ctx, resultCh: ch})
	}()
	return ch
}

// Shutdown waits all worker to finish
func (w *worker) Shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req, ok := <-w.workCh:
			if !ok {
				return
			}
			w.workDoGrade(req)
		case <-w.done:
			return
		}
	}
}

func (w *worker) workDoGrade(req workRequest) {
	start := time.Now()
	rt := w.grade(req.Context, req.Request)
	rt.RequestID = req.RequestID
	rt.Elapsed = time.Since(start)
	w.logger.Info("request graded", zap.String("requestId", req.RequestID), zap.Stringer("response", rt))
	if w.gradeObserver != nil {
		w.gradeObserver(rt)
	}
	req.resultCh <- rt
}

func (w *worker) grade(ctx context.Context, req *Request) (rt Response) {
	sub, err := w.submission(req.Submission)
	if err != nil {
		rt.Error = err
		return
	}
	if err := ctx.Err(); err != nil {
		rt.Error = err
		return
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	e := grader.New(grader.Config{
		Parallelism:    w.taskParallelism,
		DefaultTimeout: w.taskTimeout,
		FailFast:       w.failFast,
		Logger:         w.logger.With(zap.String("requestId", req.RequestID)),
		Observer:       w.observer(req.OnResult),
	})
	rt.Report, rt.Error = e.Grade(ctx, w.problems, sub, req.Context)
	return
}

func (w *worker) observer(onResult grader.Observer) grader.Observer {
	if onResult == nil {
		return w.taskObserver
	}
	if w.taskObserver == nil {
		return onResult
	}
	return func(problem string, d *task.Descriptor, r *result.Result, elapsed time.Duration) {
		w.taskObserver(problem, d, r, elapsed)
		onResult(problem, d, r, elapsed)
	}
}

// submission validates the requested path against the allowed prefixes
func (w *worker) submission(path string) (resource.Submission, error) {
	if path == "" {
		return resource.Submission{}, fmt.Errorf("submission path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return resource.Submission{}, err
	}
	if len(w.srcPrefix) > 0 && !underPrefix(abs, w.srcPrefix) {
		return resource.Submission{}, fmt.Errorf("%w: %s", ErrSubmissionNotAllowed, path)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return resource.Submission{}, fmt.Errorf("submission: %w", err)
	}
	if !fi.IsDir() {
		return resource.Submission{}, fmt.Errorf("submission %s is not a directory", path)
	}
	return resource.Submission{Path: abs}, nil
}

func underPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = filepath.Clean(p)
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
