package config

import (
	"os"
	"time"

	"github.com/koding/multiconfig"
)

// Config defines grade command configuration
type Config struct {
	// assignment
	Manifest   string   `flagUsage:"specifies the assignment manifest" default:"grade.yaml"`
	Submission string   `flagUsage:"specifies the submission directory to grade" default:"."`
	Tags       []string `flagUsage:"only run tasks with one of these tags (problem:tag for a single problem)"`
	Tasks      []string `flagUsage:"only run these tasks and their dependencies (problem:task for a single problem)"`
	Phases     []string `flagUsage:"only run tasks in these phases (setup, test, teardown)"`

	// report
	Report    string `flagUsage:"specifies the report file, - for stdout (default <report-dir>/<submission>.report.json)"`
	ReportDir string `flagUsage:"specifies the directory for the default report file" default:"."`
	Amend     bool   `flagUsage:"merge results into the existing report instead of replacing it"`
	Thin      bool   `flagUsage:"omit details, expected / actual output and tracebacks from the report"`

	// engine
	Parallelism int           `flagUsage:"control the # of tasks running at once within a phase" default:"1"`
	Timeout     time.Duration `flagUsage:"specifies timeout for the whole run (0 for none)"`
	TaskTimeout time.Duration `flagUsage:"specifies default timeout for each task (0 for none)"`
	FailFast    bool          `flagUsage:"stop after the first graded failure"`

	// logger config
	Release     bool `flagUsage:"release level of logs"`
	Silent      bool `flagUsage:"do not print logs"`
	EnableDebug bool `flagUsage:"enable debug level logs"`

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
	if os.Getenv("CI") != "" {
		c.Release = true
	}
	return cl.Load(c)
}
