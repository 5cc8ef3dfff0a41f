//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
	"time"
)

// setGracefulCancel makes cmd's context-cancellation send SIGTERM first,
// giving the process grace to exit before exec.Cmd's WaitDelay escalates to
// SIGKILL, per §5/§9's "destructor issues SIGTERM-then-SIGKILL; never rely
// on the parent dying to reap children."
func setGracefulCancel(cmd *exec.Cmd, grace time.Duration) {
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = grace
}
