package conductor

import "github.com/chitti-ai/chitti/internal/wire"

// Event is the Conductor-level notification taxonomy delivered through
// Conductor.Notify, separately from the Frontend Bridge's render calls. It
// is a distinct closed sum from wire.Event: the Conductor folds raw brain
// events plus its own lifecycle signals (tool calls and results, steering
// receipt, loop limit, done) into this smaller vocabulary,
// following the same marker-interface idiom as wire.Event and the
// teacher's sdk/agent/events.go.
type Event interface{ isConductorEvent() }

// TextDeltaEvent is an incremental content append for part_index 0..n,
// forwarded straight from wire.ContentDeltaEvent per §4.4 step 3.
type TextDeltaEvent struct {
	PartIndex int
	Delta     string
}

func (TextDeltaEvent) isConductorEvent() {}

// FinalResponseEvent closes out a turn's Emitting state.
type FinalResponseEvent struct {
	Text  string
	Usage wire.Usage
}

func (FinalResponseEvent) isConductorEvent() {}

// ToolCallEvent announces a tool the brain wants to invoke, before
// authorization is requested.
type ToolCallEvent struct {
	CallID string
	Name   string
	Args   map[string]any
}

func (ToolCallEvent) isConductorEvent() {}

// ToolResultEvent announces the outcome of a dispatched tool call.
type ToolResultEvent struct {
	CallID  string
	Name    string
	Result  any
	IsError bool
}

func (ToolResultEvent) isConductorEvent() {}

// ErrorEvent surfaces a taxonomy-classified failure (§7) to the operator.
type ErrorEvent struct {
	Kind    string
	Message string
}

func (ErrorEvent) isConductorEvent() {}

// SteeringReceivedEvent acknowledges an out-of-band steering message that
// was queued for the next sub-turn boundary — the Conductor's own
// equivalent of the teacher's (undefined) SteeringReceivedEvent reference
// in sdk/agent/agent.go, designed fresh rather than restored.
type SteeringReceivedEvent struct {
	Text string
}

func (SteeringReceivedEvent) isConductorEvent() {}

// LoopLimitEvent fires when the turn-loop cap (§4.4) is hit.
type LoopLimitEvent struct {
	RoundTrips int
}

func (LoopLimitEvent) isConductorEvent() {}

// TaskDoneEvent fires when the model calls the done tool, ending the turn
// early via its own control-flow sentinel (tools.TaskCompleteError) rather
// than a finish_reason=STOP text response.
type TaskDoneEvent struct {
	Message string
}

func (TaskDoneEvent) isConductorEvent() {}
