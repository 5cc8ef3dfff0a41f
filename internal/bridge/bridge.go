// Package bridge defines the Frontend Bridge contract of §4.5: the only
// collaborator the Conductor depends on for operator-facing I/O. Concrete
// implementations live in bridge/terminal and bridge/mock.
package bridge

import (
	"context"
	"errors"

	"github.com/chitti-ai/chitti/internal/tools"
	"github.com/chitti-ai/chitti/internal/wire"
)

// ErrClosed is returned by NextInput/Authorize once the bridge's input
// source is exhausted (EOF, process shutdown).
var ErrClosed = errors.New("bridge: closed")

// InputKind discriminates the InputMessage tagged union of §4.5.
type InputKind string

const (
	InputUserText InputKind = "user_text"
	InputSteer    InputKind = "steer"
	InputCancel   InputKind = "cancel"
	InputQuit     InputKind = "quit"
	InputClear    InputKind = "clear"
	InputNew      InputKind = "new"
)

// InputMessage is what NextInput produces: a discriminated union over the
// operator's next action.
type InputMessage struct {
	Kind InputKind
	Text string // populated for InputUserText and InputSteer
}

// Bridge is the Conductor's sole window onto the operator. Implementations
// must be safe to call from only one goroutine at a time: neither the
// Conductor nor anything it calls on its behalf invokes two Bridge methods
// concurrently, matching §5's "single-owner" streaming-response rule
// applied to the UI side. This reaches through the Tool Registry too —
// Registry.DispatchParallel authorizes invocations one at a time, in a
// single goroutine, before it ever fans tool execution out across several —
// precisely so that an Authorizer backed by a Bridge (like terminal.Bridge,
// whose Authorize toggles raw mode on a shared fd) never sees two
// concurrent calls even when several tool calls in one turn need
// confirmation (scenario S3).
type Bridge interface {
	// NextInput blocks until the operator produces an InputMessage, or
	// returns ErrClosed when the input source is exhausted.
	NextInput(ctx context.Context) (InputMessage, error)

	// RenderDelta appends an incremental piece of content at part_index;
	// implementations must be idempotent under repeated identical deltas
	// and must render in arrival order (§5).
	RenderDelta(partIndex int, text string)

	// RenderFinal marks the end of an assistant turn.
	RenderFinal(text string, usage wire.Usage)

	// RenderError surfaces a taxonomy-classified failure (§7) to the
	// operator. taxonomyKind is one of the string names in §7
	// (e.g. "transport", "rate_limited", "protocol", "loop_limit").
	RenderError(taxonomyKind, userMessage string)

	// Authorize requests operator approval for one pending tool call.
	Authorize(ctx context.Context, inv tools.Invocation) (bool, error)
}
