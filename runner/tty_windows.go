package runner

import (
	"errors"
	"os/exec"
)

func runTTY(*exec.Cmd, []byte, int64, *Runtime) error {
	return errors.New("runner: tty is not supported on windows")
}
