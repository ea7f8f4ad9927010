// Command grade-server grades submissions on request over http and keeps
// their reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/curriculagg/curricula-grade/cmd/grade-server/config"
	restexecutor "github.com/curriculagg/curricula-grade/cmd/grade-server/rest_executor"
	wsexecutor "github.com/curriculagg/curricula-grade/cmd/grade-server/ws_executor"
	"github.com/curriculagg/curricula-grade/cmd/grade/version"
	"github.com/curriculagg/curricula-grade/grader"
	"github.com/curriculagg/curricula-grade/manifest"
	"github.com/curriculagg/curricula-grade/metrics"
	"github.com/curriculagg/curricula-grade/store"
	"github.com/curriculagg/curricula-grade/worker"
)

var logger *zap.Logger

func main() {
	conf := loadConf()
	if conf.Version {
		fmt.Println(version.Version)
		return
	}
	initLogger(conf)
	defer logger.Sync()
	if ce := logger.Check(zap.InfoLevel, "Config loaded"); ce != nil {
		ce.Write(zap.String("config", fmt.Sprintf("%+v", conf)))
	}

	problems := loadProblems(conf)
	st, stCleanUp := newStore(conf)
	work := newWorker(conf, problems)
	work.Start()
	logger.Info("Worker started",
		zap.Int("parallelism", conf.Parallelism),
		zap.Int("problems", len(problems)),
		zap.Strings("srcPrefix", conf.SrcPrefix))

	servers := []initFunc{
		initTracer(conf),
		cleanUpWorker(work),
		cleanUpStore(stCleanUp),
		initHTTPServer(conf, work, st),
		initMonitorHTTPServer(conf),
	}

	// Gracefully shutdown, with signal / HTTP server / Monitor HTTP server
	sig := make(chan os.Signal, 1+len(servers))

	stops := []stopFunc{}
	for _, s := range servers {
		start, stop := s()
		if start != nil {
			go func() {
				start()
				sig <- os.Interrupt
			}()
		}
		if stop != nil {
			stops = append(stops, stop)
		}
	}

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Shutting Down...")

	ctx, cancel := context.WithTimeout(context.TODO(), time.Second*3)
	defer cancel()

	var eg errgroup.Group
	for _, s := range stops {
		eg.Go(func() error {
			return s(ctx)
		})
	}

	go func() {
		logger.Info("Shutdown Finished", zap.Error(eg.Wait()))
		cancel()
	}()
	<-ctx.Done()
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

type (
	stopFunc func(ctx context.Context) error
	initFunc func() (start func(), cleanUp stopFunc)
)

func cleanUpWorker(work worker.Worker) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		return nil, func(ctx context.Context) error {
			work.Shutdown()
			logger.Info("Worker shutdown")
			return nil
		}
	}
}

func cleanUpStore(stCleanUp func()) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		if stCleanUp == nil {
			return nil, nil
		}
		return nil, func(ctx context.Context) error {
			stCleanUp()
			logger.Info("Report store closed")
			return nil
		}
	}
}

func initHTTPServer(conf *config.Config, work worker.Worker, st store.Store) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		r := initHTTPMux(conf, work, st)
		srv := http.Server{
			Addr:    conf.HTTPAddr,
			Handler: otelhttp.NewHandler(r, serviceName),
		}

		return func() {
				logger.Info("Starting http server", zap.String("addr", conf.HTTPAddr))
				if err := srv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
					logger.Info("Http server stopped", zap.Error(err))
				} else {
					logger.Error("Http server stopped", zap.Error(err))
				}
			}, func(ctx context.Context) error {
				logger.Info("Http server shutting down")
				return srv.Shutdown(ctx)
			}
	}
}

func initMonitorHTTPServer(conf *config.Config) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		mr := initMonitorHTTPMux(conf)
		if mr == nil {
			return nil, nil
		}
		msrv := http.Server{
			Addr:    conf.MonitorAddr,
			Handler: mr,
		}
		return func() {
				logger.Info("Starting monitoring http server", zap.String("addr", conf.MonitorAddr))
				logger.Info("Monitoring http server stopped", zap.Error(msrv.ListenAndServe()))
			}, func(ctx context.Context) error {
				logger.Info("Monitoring http server shutdown")
				return msrv.Shutdown(ctx)
			}
	}
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
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !conf.EnableDebug {
			config.Level.SetLevel(zap.InfoLevel)
		}
		logger, err = config.Build()
	}
	if err != nil {
		log.Fatalln("init logger failed ", err)
	}
}

func initHTTPMux(conf *config.Config, work worker.Worker, st store.Store) http.Handler {
	if conf.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(ginzap.Ginzap(logger, "", false))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	// Metrics Handle
	if conf.EnableMetrics {
		initGinMetrics(r)
	}

	// Version handle
	r.GET("/version", handleVersion)

	// Add auth token
	if conf.AuthToken != "" {
		r.Use(tokenAuth(conf.AuthToken))
		logger.Info("Attach token auth")
	}

	// Rest Handle
	restexecutor.NewGradeHandle(work, st, logger).Register(r)
	restexecutor.NewReportHandle(st).Register(r)

	// WebSocket Handle
	wsexecutor.New(work, st, logger).Register(r)

	return r
}

func initMonitorHTTPMux(conf *config.Config) http.Handler {
	if !conf.EnableMetrics && !conf.EnableDebug {
		return nil
	}
	mux := http.NewServeMux()
	if conf.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	if conf.EnableDebug {
		initDebugRoute(mux)
	}
	return mux
}

func initDebugRoute(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func initGinMetrics(r *gin.Engine) {
	p := ginprometheus.NewWithConfig(ginprometheus.Config{
		Subsystem:          "gin",
		DisableBodyReading: true,
	})
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	r.Use(p.HandlerFunc())
}

func tokenAuth(token string) gin.HandlerFunc {
	const bearer = "Bearer "
	return func(c *gin.Context) {
		reqToken := c.GetHeader("Authorization")
		if strings.HasPrefix(reqToken, bearer) && reqToken[len(bearer):] == token {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

func handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"buildVersion": version.Version,
		"goVersion":    runtime.Version(),
		"platform":     runtime.GOARCH,
		"os":           runtime.GOOS,
	})
}

func loadProblems(conf *config.Config) []grader.Problem {
	a, err := manifest.Load(conf.Manifest)
	if err != nil {
		logger.Fatal("load manifest failed", zap.Error(err))
	}
	problems, err := a.Compile()
	if err != nil {
		logger.Fatal("compile manifest failed", zap.Error(err))
	}
	logger.Info("Manifest loaded", zap.String("title", a.Title), zap.String("path", conf.Manifest))
	return problems
}

func newStore(conf *config.Config) (store.Store, func()) {
	const timeoutCheckInterval = 15 * time.Second
	var cleanUps []func()

	var st store.Store
	if conf.Dir == "" {
		st = store.NewMemory()
	} else {
		var err error
		if st, err = store.NewLocal(conf.Dir); err != nil {
			logger.Fatal("create report store failed", zap.Error(err))
		}
	}
	if conf.EnableMetrics {
		st = store.NewMetrics(st, metrics.Namespace, prometheus.DefaultRegisterer)
	}
	if conf.Dir != "" && conf.CacheSize > 0 {
		c, err := store.NewCached(st, conf.CacheSize)
		if err != nil {
			logger.Fatal("create report cache failed", zap.Error(err))
		}
		cleanUps = append(cleanUps, c.Close)
		st = c
	}
	if conf.ReportTimeout > 0 {
		t := store.NewTimeout(st, conf.ReportTimeout, timeoutCheckInterval)
		cleanUps = append(cleanUps, t.Close)
		st = t
	}
	return st, func() {
		for _, f := range cleanUps {
			f()
		}
	}
}

func newWorker(conf *config.Config, problems []grader.Problem) worker.Worker {
	wc := worker.Config{
		Problems:        problems,
		Parallelism:     conf.Parallelism,
		TaskParallelism: conf.TaskParallelism,
		TaskTimeout:     conf.TaskTimeout,
		FailFast:        conf.FailFast,
		Timeout:         conf.Timeout,
		SrcPrefix:       conf.SrcPrefix,
		Logger:          logger,
	}
	if conf.EnableMetrics {
		wc.TaskObserver = metrics.ObserveTask
		wc.GradeObserver = gradeObserve
	}
	return worker.New(wc)
}

func gradeObserve(rt worker.Response) {
	metrics.ObserveGrade(rt.Report == nil || rt.Report.Partial(), rt.Elapsed)
}
