// Package conductor implements the turn-level state machine of §4.4:
// Idle → AwaitingUser → Requesting → Streaming → Deciding →
// (Authorizing → Executing → Requesting) | Emitting → AwaitingUser.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chitti-ai/chitti/internal/brain"
	"github.com/chitti-ai/chitti/internal/bridge"
	"github.com/chitti-ai/chitti/internal/tools"
	"github.com/chitti-ai/chitti/internal/wire"
)

// Config holds the per-process settings named in §6 that shape the
// Conductor's request building and loop bounds.
type Config struct {
	Model             string
	Agent             string
	SystemInstruction *wire.Content
	MaxTurnRoundtrips int // default 12
}

func (c Config) roundtripCap() int {
	if c.MaxTurnRoundtrips > 0 {
		return c.MaxTurnRoundtrips
	}
	return 12
}

// Conductor wires the Brain Client, Tool Registry, and Frontend Bridge
// together. It owns the Conversation Cursor exclusively, per §5.
type Conductor struct {
	Brain    *brain.Client
	Registry *tools.Registry
	Bridge   bridge.Bridge
	Cfg      Config
	Log      *zap.Logger

	cursor        Cursor
	steer         *steerQueue
	session       *Session
	replayHistory bool

	// Notify, if set, receives every Event this Conductor produces —
	// observability hook for tests and future telemetry sinks, distinct
	// from the Bridge contract which only carries rendering/authorization.
	Notify func(Event)
}

func (c *Conductor) notify(e Event) {
	if c.Notify != nil {
		c.Notify(e)
	}
}

func New(b *brain.Client, reg *tools.Registry, br bridge.Bridge, cfg Config, log *zap.Logger) *Conductor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conductor{
		Brain:    b,
		Registry: reg,
		Bridge:   br,
		Cfg:      cfg,
		Log:      log,
		steer:    newSteerQueue(),
		session:  NewSession(cfg.Model, false),
	}
}

// ErrQuit is returned from Run when the operator issued /exit.
var ErrQuit = errors.New("conductor: quit")

// Run drives the AwaitingUser loop until the bridge closes or the operator
// quits. The frontend reader runs on its own goroutine so a Cancel input
// can interrupt an in-flight turn (Streaming/Executing) rather than waiting
// behind it — the three-task concurrency fabric of §5 (frontend reader,
// conductor, tool executors) collapsed into one reader goroutine plus the
// turn goroutines runTurn itself spawns via DispatchParallel.
func (c *Conductor) Run(ctx context.Context) error {
	inputs := make(chan bridge.InputMessage)
	readErr := make(chan error, 1)
	readerCtx, stopReader := context.WithCancel(ctx)
	defer stopReader()

	go func() {
		for {
			msg, err := c.Bridge.NextInput(readerCtx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inputs <- msg:
			case <-readerCtx.Done():
				return
			}
		}
	}()

	var turn *turnLifecycle
	turnDone := make(chan struct{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if turn != nil {
				turn.abort()
			}
			if errors.Is(err, bridge.ErrClosed) {
				return nil
			}
			return err

		case <-turnDone:
			turn = nil

		case msg := <-inputs:
			switch msg.Kind {
			case bridge.InputQuit:
				if turn != nil {
					turn.abort()
				}
				return ErrQuit
			case bridge.InputClear:
				c.cursor.clear()
				c.session.Turns = nil
				c.replayHistory = false
			case bridge.InputNew:
				c.cursor.clear()
				c.replayHistory = true
			case bridge.InputSteer:
				c.steer.push(msg.Text)
				c.notify(SteeringReceivedEvent{Text: msg.Text})
			case bridge.InputCancel:
				if turn != nil {
					turn.abort()
				}
			case bridge.InputUserText:
				if turn != nil {
					// A turn is already running; §4.4 only reads input in
					// AwaitingUser, so a stray user message mid-turn is
					// dropped rather than queued as steering.
					continue
				}
				turnCtx, lifecycle := startTurn(ctx)
				turn = lifecycle
				go func(text string) {
					c.runTurn(turnCtx, text)
					select {
					case turnDone <- struct{}{}:
					case <-readerCtx.Done():
					}
				}(msg.Text)
			}
		}
	}
}

// Snapshot returns the current session, for a future persistence
// collaborator (see SPEC_FULL.md's supplemented "Session persistence
// shape").
func (c *Conductor) Snapshot() Session { return c.session.Snapshot() }

// runTurn implements §4.4's per-user-turn algorithm: potentially many brain
// round-trips, woven with tool dispatch, until a terminal text response, a
// loop-limit, or an unrecoverable error.
func (c *Conductor) runTurn(ctx context.Context, userText string) {
	c.session.appendTurn(wire.Content{Role: wire.RoleUser, Parts: []wire.Part{wire.TextPart(userText)}})

	var pendingToolResults []wire.Part
	roundTrips := 0

	for {
		roundTrips++
		if roundTrips > c.Cfg.roundtripCap() {
			c.notify(LoopLimitEvent{RoundTrips: roundTrips - 1})
			c.Bridge.RenderError("loop_limit", "reached the maximum number of tool round-trips for this turn; try rephrasing")
			return
		}

		req := c.buildRequest(userText, pendingToolResults)

		complete, rendered, err := c.sendSubTurnWithRetry(ctx, req)
		if err != nil {
			c.handleTerminalError(ctx, err)
			return
		}

		c.cursor.commit(complete.InteractionID)

		finalText := assistantText(complete.Parts)
		if finalText == "" {
			finalText = rendered.snapshot()
		}
		if finalText != "" {
			c.session.appendTurn(assistantContent(*complete))
		}

		if len(complete.ToolCalls) > 0 {
			// §4.4 tie-break: text arrives to the operator before the
			// authorization prompt, which is already true since
			// ContentDelta events were rendered during Streaming.
			invocations := buildInvocations(complete.ToolCalls)
			for _, tc := range complete.ToolCalls {
				c.notify(ToolCallEvent{CallID: tc.CallID, Name: tc.Name, Args: tc.Args})
			}
			c.cursor.PendingToolCalls = invocations
			results := c.Registry.DispatchParallel(ctx, invocations)
			c.cursor.PendingToolCalls = nil
			var doneMessage *string
			for i, part := range results {
				var value any
				isErr := false
				if part.Result != nil {
					value = part.Result.Value
					if m, ok := value.(map[string]any); ok {
						_, isErr = m["error"]
						if d, ok := m["done"].(bool); ok && d {
							msg, _ := m["message"].(string)
							doneMessage = &msg
						}
					}
				}
				c.notify(ToolResultEvent{CallID: invocations[i].CallID, Name: invocations[i].Name, Result: value, IsError: isErr})
			}
			if doneMessage != nil {
				// The model called the done tool: tools.TaskCompleteError
				// terminates the turn here rather than round-tripping back
				// to the brain as a tool result.
				c.notify(TaskDoneEvent{Message: *doneMessage})
				c.notify(FinalResponseEvent{Text: *doneMessage, Usage: complete.Usage})
				c.Bridge.RenderFinal(*doneMessage, complete.Usage)
				return
			}
			pendingToolResults = results
			continue
		}

		if finalText == "" && complete.FinishReason != wire.FinishStop {
			c.notify(ErrorEvent{Kind: string(complete.FinishReason), Message: "the brain ended the turn without a response"})
			c.Bridge.RenderError(string(complete.FinishReason), "the brain ended the turn without a response")
			return
		}

		c.notify(FinalResponseEvent{Text: finalText, Usage: complete.Usage})
		c.Bridge.RenderFinal(finalText, complete.Usage)
		return
	}
}

func (c *Conductor) buildRequest(userText string, pendingToolResults []wire.Part) *wire.InteractionRequest {
	req := &wire.InteractionRequest{
		Model:             c.Cfg.Model,
		Agent:             c.Cfg.Agent,
		SystemInstruction: c.Cfg.SystemInstruction,
		Tools:             c.Registry.Declarations(),
		ToolChoice:        wire.ToolChoiceAuto(),
		Stream:            true,
		Store:             false,
	}
	if !c.cursor.isEmpty() {
		req.PreviousInteractionID = c.cursor.InteractionID
	}

	steered := c.steer.drain()

	switch {
	case pendingToolResults != nil:
		contents := steeringContents(steered)
		contents = append(contents, toolResultContent(pendingToolResults))
		req.Input = wire.ContentsInput(contents)
	case c.replayHistory && len(c.session.Turns) > 1:
		// Replay the whole session as a turn sequence rather than relying
		// on a server-side previous_interaction_id, per §3's "sequence of
		// prior turns (for stateless replay)" shape and /new's contract.
		turns := append([]wire.Content(nil), c.session.Turns...)
		req.Input = wire.TurnsInput(turns)
		c.replayHistory = false
	case len(steered) > 0:
		contents := []wire.Content{{Role: wire.RoleUser, Parts: []wire.Part{wire.TextPart(userText)}}}
		contents = append(contents, steeringContents(steered)...)
		req.Input = wire.ContentsInput(contents)
	default:
		req.Input = wire.TextInput(userText)
	}
	return req
}

func steeringContents(steered []string) []wire.Content {
	out := make([]wire.Content, 0, len(steered))
	for _, s := range steered {
		out = append(out, wire.Content{Role: wire.RoleUser, Parts: []wire.Part{wire.TextPart(s)}})
	}
	return out
}

func buildInvocations(calls []wire.FunctionCall) []tools.Invocation {
	out := make([]tools.Invocation, len(calls))
	now := time.Now()
	for i, tc := range calls {
		out[i] = tools.Invocation{CallID: tc.CallID, Name: tc.Name, Args: tc.Args, StartedAt: now}
	}
	return out
}

// sendSubTurnWithRetry performs one brain round-trip (Streaming through
// Deciding), attempting the whole sub-turn at most maxRetries times in total
// for classify-retryable errors, per §4.4 step 3's "apply bounded retry for
// retryable classes" and §7. A failed attempt that already rendered deltas
// to the bridge is not retried.
func (c *Conductor) sendSubTurnWithRetry(ctx context.Context, req *wire.InteractionRequest) (*wire.CompleteEvent, *renderedText, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		complete, rendered, err := c.sendSubTurn(ctx, req)
		if err == nil {
			return complete, rendered, nil
		}
		lastErr = err

		var cancelled *brain.CancelledError
		if errors.As(err, &cancelled) {
			return nil, rendered, err
		}

		if len(rendered.order) > 0 {
			// Deltas already reached the operator; replaying the sub-turn
			// would render them a second time.
			return nil, rendered, err
		}

		retryable, retryAfter := classify(err)
		if !retryable {
			return nil, rendered, err
		}
		c.Log.Warn("conductor: retrying sub-turn", zap.Int("attempt", attempt+1), zap.Error(err))
		sleepBackoff(ctx, attempt, retryAfter)
		if ctx.Err() != nil {
			return nil, rendered, ctx.Err()
		}
	}
	return nil, nil, lastErr
}

// sendSubTurn opens the stream and consumes it through to Complete or a
// terminal error, forwarding ContentDelta events to the bridge as they
// arrive.
func (c *Conductor) sendSubTurn(ctx context.Context, req *wire.InteractionRequest) (*wire.CompleteEvent, *renderedText, error) {
	stream, err := c.Brain.Send(ctx, req)
	if err != nil {
		return nil, newRenderedText(), err
	}

	rendered := newRenderedText()
	var complete *wire.CompleteEvent

drain:
	for {
		select {
		case <-ctx.Done():
			return nil, rendered, &brain.CancelledError{}
		case ev, ok := <-stream.Events():
			if !ok {
				break drain
			}
			switch e := ev.(type) {
			case wire.ContentDeltaEvent:
				rendered.apply(e)
				c.Bridge.RenderDelta(e.PartIndex, e.Delta)
				c.notify(TextDeltaEvent{PartIndex: e.PartIndex, Delta: e.Delta})
			case wire.CompleteEvent:
				ce := e
				complete = &ce
			case wire.ErrorEvent:
				return nil, rendered, e.Err
			case wire.StatusUpdateEvent, wire.ToolCallFragmentEvent, wire.StartEvent:
				// StatusUpdate is an optional UI signal with no bridge
				// hook in §4.5's five-method contract; ToolCallFragment
				// is already buffered and verified inside brain.Client.
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, rendered, err
	}
	if complete == nil {
		return nil, rendered, &brain.ProtocolMismatchError{Reason: "stream closed without a Complete frame"}
	}
	return complete, rendered, nil
}

// handleTerminalError classifies a non-retryable (or retry-exhausted) error
// per §7 and decides whether the conversation cursor survives.
func (c *Conductor) handleTerminalError(ctx context.Context, err error) {
	var cancelled *brain.CancelledError
	if errors.As(err, &cancelled) || errors.Is(ctx.Err(), context.Canceled) {
		// §4.4 "Cancellation": cursor preserved, no user-visible error.
		return
	}

	var rl *brain.RateLimitedError
	if errors.As(err, &rl) {
		c.Bridge.RenderError("rate_limited", "the brain is rate-limiting requests; please try again shortly")
		return
	}
	var httpErr *brain.HTTPStatusError
	if errors.As(err, &httpErr) {
		c.Bridge.RenderError("http_client_error", fmt.Sprintf("the brain rejected the request: %s", httpErr.Body))
		return
	}
	var decodeErr *brain.DecodeFailedError
	if errors.As(err, &decodeErr) {
		c.cursor.clear() // state may be inconsistent per §7
		c.Bridge.RenderError("protocol", "the brain returned an unexpected response")
		return
	}
	var protoErr *brain.ProtocolMismatchError
	if errors.As(err, &protoErr) {
		c.cursor.clear()
		c.Bridge.RenderError("protocol", "the brain returned an unexpected response")
		return
	}
	var transportErr *brain.TransportError
	if errors.As(err, &transportErr) {
		c.Bridge.RenderError("transport", "could not reach the brain")
		return
	}
	c.Bridge.RenderError("unknown", err.Error())
}
