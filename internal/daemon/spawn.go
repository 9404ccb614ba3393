package daemon

import (
	"fmt"
	"os"
	"os/exec"
)

// Spawn starts `<executable> run <args...>` as a detached background process
// and returns its PID. An empty executable means the running binary.
func Spawn(executable string, args ...string) (int, error) {
	if executable == "" {
		var err error
		executable, err = os.Executable()
		if err != nil {
			return 0, fmt.Errorf("failed to get executable path: %w", err)
		}
	}

	cmd := exec.Command(executable, append([]string{"run"}, args...)...)
	cmd.SysProcAttr = detachAttr()

	// No stdin/stdout/stderr - fully detached, the daemon logs to its file
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid

	// Don't wait for it; release so no zombie is kept on our side.
	_ = cmd.Process.Release()
	return pid, nil
}
