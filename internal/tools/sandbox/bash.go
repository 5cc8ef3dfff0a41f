package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"time"

	"github.com/chitti-ai/chitti/internal/tools"
)

// killGrace is how long a timed-out command gets to exit after SIGTERM
// before bashTool escalates to SIGKILL, per §5/§9's "destructor issues
// SIGTERM-then-SIGKILL; never rely on the parent dying to reap children."
const killGrace = 3 * time.Second

// DefaultTimeoutSeconds and DefaultMaxOutputBytes mirror §6's
// tools.bash.timeout / tools.bash.max_output_bytes defaults.
const (
	DefaultTimeoutSeconds = 30
	DefaultMaxOutputBytes = 1 << 20 // 1 MiB
)

type bashArgs struct {
	Command string `json:"command" desc:"the shell command to execute"`
	Timeout int    `json:"timeout,omitempty" desc:"timeout in seconds; 0 falls back to tools.bash.timeout, then a 30s default"`
}

// bashResult is the structured value §4.3 names: separate stdout/stderr,
// exit code, and a single truncation flag that is set when either stream
// hit its byte cap.
type bashResult struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated"`
}

// limitedBuffer caps writes to maxBytes and records whether any bytes were
// dropped, generalizing the teacher's unbounded CombinedOutput capture
// (sdk/tools/sandbox/sandbox.go bashTool) into the separate-stream,
// byte-capped capture §4.3 requires.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if l.max <= 0 || l.buf.Len() >= l.max {
		if len(p) > 0 {
			l.truncated = true
		}
		return len(p), nil
	}
	remaining := l.max - l.buf.Len()
	if len(p) > remaining {
		l.buf.Write(p[:remaining])
		l.truncated = true
		return len(p), nil
	}
	l.buf.Write(p)
	return len(p), nil
}

// bashTool executes a command in a non-interactive subshell. It is
// intentionally NOT sandbox-path-confined: §4.3 says bash gets "no
// environment sanitization beyond what the host OS imposes," so it runs in
// the daemon's CWD at startup rather than through Sandbox.Resolve.
func bashTool() tools.Tool {
	return tools.Func[bashArgs]("bash", "Execute a shell command in a non-interactive subshell and return separated stdout/stderr", func(ctx context.Context, a bashArgs, deps *tools.Container) (any, error) {
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = tools.GetOr(deps, ctx, TimeoutKey, DefaultTimeoutSeconds)
			if timeout <= 0 {
				timeout = DefaultTimeoutSeconds
			}
		}
		maxBytes := tools.GetOr(deps, ctx, MaxOutputBytesKey, DefaultMaxOutputBytes)
		if maxBytes <= 0 {
			maxBytes = DefaultMaxOutputBytes
		}

		shell, shellArg := defaultShell()
		cctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()

		cmd := exec.CommandContext(cctx, shell, shellArg, a.Command)
		if s, err := tools.Get(deps, ctx, Key); err == nil {
			cmd.Dir = s.WorkingDir
		}
		setGracefulCancel(cmd, killGrace)

		var stdout, stderr limitedBuffer
		stdout.max = maxBytes
		stderr.max = maxBytes
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, &tools.TimeoutError{Seconds: timeout}
		}

		exitCode := 0
		if runErr != nil {
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				return nil, &tools.InternalError{Reason: runErr.Error()}
			}
		}

		// A non-zero exit is a normal, model-observable outcome, not a Go
		// error: the brain needs stdout/stderr/exit_code back regardless of
		// success, per §4.3's structured {stdout,stderr,exit_code,truncated}.
		res := bashResult{
			Stdout:    stdout.buf.String(),
			Stderr:    stderr.buf.String(),
			ExitCode:  exitCode,
			Truncated: stdout.truncated || stderr.truncated,
		}
		return res, nil
	})
}

// MaxOutputBytesKey lets the daemon wire tools.bash.max_output_bytes from
// configuration without a package-level global.
var MaxOutputBytesKey = tools.Dep[int]("bash_max_output_bytes")

// TimeoutKey lets the daemon wire tools.bash.timeout (seconds) from
// configuration as the default when the model omits the per-call timeout
// arg. A model-supplied timeout arg still takes precedence.
var TimeoutKey = tools.Dep[int]("bash_timeout_seconds")

func defaultShell() (exe, arg string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	if _, err := exec.LookPath("bash"); err == nil {
		return "bash", "-lc"
	}
	return "sh", "-lc"
}
