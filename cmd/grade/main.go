// Command grade grades one submission against an assignment manifest and
// writes the report. It exits 0 when every graded task passed, 1 when the
// report is partial and 2 when grading could not be carried out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/curriculagg/curricula-grade/cmd/grade/config"
	"github.com/curriculagg/curricula-grade/cmd/grade/version"
	"github.com/curriculagg/curricula-grade/grader"
	"github.com/curriculagg/curricula-grade/manifest"
	"github.com/curriculagg/curricula-grade/report"
	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

const (
	exitPassed  = 0
	exitPartial = 1
	exitFailed  = 2
)

var logger *zap.Logger

func main() {
	conf := loadConf()
	if conf.Version {
		fmt.Println(version.Version)
		return
	}
	initLogger(conf)
	code := run(conf)
	logger.Sync()
	os.Exit(code)
}

func loadConf() *config.Config {
	var conf config.Config
	if err := conf.Load(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalln("load config failed ", err)
	}
	return &conf
}

func initLogger(conf *config.Config) {
	if conf.Silent {
		logger = zap.NewNop()
		return
	}

	var err error
	if conf.Release {
		logger, err = zap.NewProduction()
	} else {
		config := zap.NewDevelopmentConfig()
		if term.IsTerminal(int(os.Stderr.Fd())) {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		if !conf.EnableDebug {
			config.Level.SetLevel(zap.InfoLevel)
		}
		logger, err = config.Build()
	}
	if err != nil {
		log.Fatalln("init logger failed ", err)
	}
}

func run(conf *config.Config) int {
	if ce := logger.Check(zap.DebugLevel, "Config loaded"); ce != nil {
		ce.Write(zap.String("config", fmt.Sprintf("%+v", conf)))
	}

	a, err := manifest.Load(conf.Manifest)
	if err != nil {
		logger.Error("load manifest failed", zap.Error(err))
		return exitFailed
	}
	problems, err := a.Compile()
	if err != nil {
		logger.Error("compile manifest failed", zap.Error(err))
		return exitFailed
	}
	sub, err := filepath.Abs(conf.Submission)
	if err != nil {
		logger.Error("resolve submission failed", zap.Error(err))
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Timeout)
		defer cancel()
	}

	e := grader.New(grader.Config{
		Parallelism:    conf.Parallelism,
		DefaultTimeout: conf.TaskTimeout,
		FailFast:       conf.FailFast,
		Logger:         logger,
		Observer:       logResult,
	})
	logger.Info("Grading", zap.String("assignment", a.Title), zap.String("submission", sub), zap.Int("problems", len(problems)))
	start := time.Now()
	rp, gradeErr := e.Grade(ctx, problems, resource.Submission{Path: sub}, resource.Context{
		Tags:   conf.Tags,
		Tasks:  conf.Tasks,
		Phases: conf.Phases,
	})
	logger.Info("Graded", zap.Bool("partial", rp.Partial()), zap.Duration("elapsed", time.Since(start)))

	if err := writeReport(conf, sub, rp); err != nil {
		logger.Error("write report failed", zap.Error(err))
		return exitFailed
	}
	switch {
	case errors.Is(gradeErr, result.ErrConfiguration):
		logger.Error("invalid assignment", zap.Error(gradeErr))
		return exitFailed
	case gradeErr != nil:
		logger.Error("grading stopped", zap.Error(gradeErr))
		return exitFailed
	case rp.Partial():
		return exitPartial
	}
	return exitPassed
}

func logResult(problem string, _ *task.Descriptor, r *result.Result, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("problem", problem),
		zap.String("task", r.TaskName),
		zap.Bool("passing", r.Passing),
		zap.Duration("elapsed", elapsed),
	}
	if r.Error != nil {
		fields = append(fields, zap.Stringer("errorKind", r.Error.Kind), zap.String("message", r.Error.Message))
	}
	logger.Info("Task", fields...)
}

// reportPath returns the report destination, "" for stdout
func reportPath(conf *config.Config, sub string) string {
	switch conf.Report {
	case "-":
		return ""
	case "":
		return filepath.Join(conf.ReportDir, report.FileName(sub))
	}
	return conf.Report
}

func writeReport(conf *config.Config, sub string, rp *report.AssignmentReport) error {
	p := reportPath(conf, sub)
	if p == "" {
		return report.Dump(os.Stdout, rp, conf.Thin)
	}
	if conf.Amend {
		existing, err := loadReport(p)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return err
		default:
			rp = report.Amend(existing, rp)
		}
	}

	// the previous report survives an interrupted write
	f, err := os.CreateTemp(filepath.Dir(p), ".report-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}
	if err := report.Dump(f, rp, conf.Thin); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return err
	}
	logger.Info("Report written", zap.String("path", p))
	return nil
}

func loadReport(p string) (*report.AssignmentReport, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rp, err := report.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load existing report %s: %w", p, err)
	}
	return rp, nil
}
