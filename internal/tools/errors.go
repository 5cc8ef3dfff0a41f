package tools

import "fmt"

// Error is the closed Tool error taxonomy of §4.3. Every variant is
// recoverable at the brain level: the Registry always folds it into a
// well-formed FunctionResult rather than surfacing it as a transport
// failure.
type Error interface {
	error
	toolError()
}

type UnknownError struct{ Name string }

func (e *UnknownError) Error() string { return fmt.Sprintf("tool: unknown tool %q", e.Name) }
func (*UnknownError) toolError()      {}

type BadArgsError struct{ Reason string }

func (e *BadArgsError) Error() string { return fmt.Sprintf("tool: bad arguments: %s", e.Reason) }
func (*BadArgsError) toolError()      {}

type DeniedError struct{ Detail string }

func (e *DeniedError) Error() string { return fmt.Sprintf("tool: denied: %s", e.Detail) }
func (*DeniedError) toolError()      {}

type TimeoutError struct{ Seconds int }

func (e *TimeoutError) Error() string { return fmt.Sprintf("tool: timed out after %ds", e.Seconds) }
func (*TimeoutError) toolError()      {}

type FailedError struct {
	ExitCode int
	Stderr   string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("tool: failed (exit %d): %s", e.ExitCode, e.Stderr)
}
func (*FailedError) toolError() {}

type InternalError struct{ Reason string }

func (e *InternalError) Error() string { return fmt.Sprintf("tool: internal error: %s", e.Reason) }
func (*InternalError) toolError()      {}

// TaskCompleteError signals explicit task completion (the "done tool"
// pattern, kept from sdk/tools/task_complete.go): Registry.Dispatch detects
// it via errors.As and folds it into a {"done": true, "message": ...}
// FunctionResult instead of the {"error": ...} shape denialResult produces,
// and Conductor.runTurn watches for that shape to end the turn early — a
// control-flow sentinel distinct from the taxonomy above, which all round-
// trip back to the brain as ordinary tool errors.
type TaskCompleteError struct{ Message string }

func (e *TaskCompleteError) Error() string { return fmt.Sprintf("task complete: %s", e.Message) }

func TaskComplete(message string) error { return &TaskCompleteError{Message: message} }
