//go:build windows

package sandbox

import (
	"os/exec"
	"time"
)

// setGracefulCancel is a no-op on Windows: os.Process.Signal there only
// supports os.Kill, so there is no SIGTERM to send ahead of the default
// hard kill on context cancellation.
func setGracefulCancel(cmd *exec.Cmd, grace time.Duration) {}
