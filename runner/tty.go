//go:build !windows

package runner

import (
	"bytes"
	"io"
	"os/exec"

	"github.com/creack/pty"
)

// runTTY runs cmd with a pseudo terminal as its controlling terminal.
// pty.Start puts the program in a new session, so killGroup reaches every
// process started from it.
func runTTY(cmd *exec.Cmd, stdin []byte, limit int64, rt *Runtime) error {
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
	f, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	out := &limitedBuffer{limit: limit}
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		// the read ends with EIO once the program and its children exit
		io.Copy(out, f)
	}()
	if len(stdin) > 0 {
		go io.Copy(f, bytes.NewReader(stdin))
	}

	<-copied
	err = cmd.Wait()
	rt.Stdout = out.Bytes()
	rt.Truncated = out.truncated
	return err
}
