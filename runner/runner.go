// Package runner runs external programs for units of work: compilers,
// student executables and diagnostic tools. It captures the exit code,
// output and elapsed time and enforces a timeout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/google/shlex"
)

const maxOutput = 4 << 20 // 4M

// waitDelay bounds how long Wait blocks on output pipes after a kill
const waitDelay = time.Second

var errNoArgs = errors.New("runner: empty command")

// Cmd defines a program to run
type Cmd struct {
	Args    []string
	Dir     string
	Env     []string
	Stdin   []byte
	Timeout time.Duration

	// OutputLimit caps captured stdout and stderr each, 4M by default
	OutputLimit int64

	// TTY runs the program on a pseudo terminal; stdout and stderr are merged
	TTY bool
}

// Runtime is the outcome of one program run
type Runtime struct {
	Args     []string
	Code     int
	Stdout   []byte
	Stderr   []byte
	Elapsed  time.Duration
	TimedOut bool

	// Raised is set when the program could not be run at all
	Raised string

	// Truncated is set when output exceeded the limit
	Truncated bool
}

// Split splits a shell like command line into arguments
func Split(command string) ([]string, error) {
	return shlex.Split(command)
}

// Run runs c until it exits, the timeout elapses or ctx is done. The returned
// error is only set when c is invalid; failures of the program are described
// by the Runtime.
func Run(ctx context.Context, c Cmd) (*Runtime, error) {
	if len(c.Args) == 0 {
		return nil, errNoArgs
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	limit := c.OutputLimit
	if limit <= 0 {
		limit = maxOutput
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	cmd.WaitDelay = waitDelay

	rt := &Runtime{Args: c.Args}
	start := time.Now()
	var err error
	if c.TTY {
		err = runTTY(cmd, c.Stdin, limit, rt)
	} else {
		err = runPipe(cmd, c.Stdin, limit, rt)
	}
	rt.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		rt.TimedOut = true
		rt.Code = -1
		return rt, nil
	}
	var ee *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &ee):
		rt.Code = ee.ExitCode()
	default:
		rt.Code = -1
		rt.Raised = err.Error()
	}
	return rt, nil
}

func runPipe(cmd *exec.Cmd, stdin []byte, limit int64, rt *Runtime) error {
	stdout := &limitedBuffer{limit: limit}
	stderr := &limitedBuffer{limit: limit}
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)

	err := cmd.Run()
	rt.Stdout = stdout.Bytes()
	rt.Stderr = stderr.Bytes()
	rt.Truncated = stdout.truncated || stderr.truncated
	return err
}

// limitedBuffer keeps the first limit bytes and discards the rest
type limitedBuffer struct {
	bytes.Buffer
	limit     int64
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if left := b.limit - int64(b.Len()); int64(n) > left {
		b.truncated = true
		if left <= 0 {
			return n, nil
		}
		p = p[:left]
	}
	b.Buffer.Write(p)
	return n, nil
}
