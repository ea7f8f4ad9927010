package config

import (
	"os"
	"runtime"
	"time"

	"github.com/koding/multiconfig"
)

// Config defines grading server configuration
type Config struct {
	// assignment
	Manifest  string   `flagUsage:"specifies the assignment manifest" default:"grade.yaml"`
	SrcPrefix []string `flagUsage:"restricts submissions to these directories (comma separated)"`

	// worker
	Parallelism     int           `flagUsage:"control the # of submissions graded at once (default equal to number of cpu)"`
	TaskParallelism int           `flagUsage:"control the # of tasks running at once within a phase" default:"1"`
	Timeout         time.Duration `flagUsage:"specifies timeout for grading one submission (0 for none)"`
	TaskTimeout     time.Duration `flagUsage:"specifies default timeout for each task" default:"30s"`
	FailFast        bool          `flagUsage:"stop grading a submission after the first graded failure"`

	// report store
	Dir           string        `flagUsage:"specifies directory to store reports (in memory by default)"`
	ReportTimeout time.Duration `flagUsage:"specifies timeout for stored reports (0 keeps them)"`
	CacheSize     int64         `flagUsage:"specifies the report read cache size in bytes (0 disables it)" default:"67108864"`

	// server config
	HTTPAddr      string `flagUsage:"specifies the http binding address" default:":5060"`
	MonitorAddr   string `flagUsage:"specifies the metrics binding address" default:":5062"`
	AuthToken     string `flagUsage:"bearer token auth for REST / WebSocket"`
	EnableDebug   bool   `flagUsage:"enable debug endpoint"`
	EnableMetrics bool   `flagUsage:"enable promethus metrics endpoint"`

	// tracing
	OTLPEndpoint string `flagUsage:"export traces to this OTLP gRPC endpoint (disabled when empty)"`
	OTLPInsecure bool   `flagUsage:"connect to the OTLP endpoint without TLS"`

	// logger config
	Release bool `flagUsage:"release level of logs"`
	Silent  bool `flagUsage:"do not print logs"`

	// show version and exit
	Version bool `flagUsage:"show version and exit"`
}

// Load loads config from flag & environment variables
func (c *Config) Load() error {
	cl := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{
			Prefix:    "CG",
			CamelCase: true,
		},
		&multiconfig.FlagLoader{
			CamelCase: true,
			EnvPrefix: "CG",
		},
	)
	if os.Getpid() == 1 {
		c.Release = true
	}
	if err := cl.Load(c); err != nil {
		return err
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	return nil
}
