package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chitti-ai/chitti/internal/wire"
)

// Invocation is the ephemeral Tool Invocation of §3: Conductor creates,
// Registry consumes, dropped at completion. Never persisted.
type Invocation struct {
	CallID    string
	Name      string
	Args      map[string]any
	StartedAt time.Time
	Deadline  time.Time
}

// Authorizer is the Registry's sole dependency on the Frontend Bridge,
// kept as a narrow interface here (rather than importing the bridge
// package) to avoid a cycle: bridge implementations satisfy this trivially.
type Authorizer interface {
	Authorize(ctx context.Context, inv Invocation) (bool, error)
}

// AllowAll is the authorize_by_default=true posture from §6's
// conductor.authorize_by_default option.
type AllowAll struct{}

func (AllowAll) Authorize(ctx context.Context, inv Invocation) (bool, error) { return true, nil }

// Registry holds a mapping from tool name (unique) to implementation. It is
// read-only after construction; dispatch is reentrant per §5's shared
// resource rules.
type Registry struct {
	tools      map[string]Tool
	deps       *Container
	authorizer Authorizer
}

func NewRegistry(ts []Tool, deps *Container, auth Authorizer) (*Registry, error) {
	m := map[string]Tool{}
	for _, t := range ts {
		if t.Name == "" {
			return nil, fmt.Errorf("tools: tool missing name")
		}
		m[t.Name] = t
	}
	if deps == nil {
		deps = NewContainer()
	}
	if auth == nil {
		auth = AllowAll{}
	}
	return &Registry{tools: m, deps: deps, authorizer: auth}, nil
}

// Declarations is used once per brain request to advertise capabilities.
func (r *Registry) Declarations() []wire.ToolDeclaration {
	out := make([]wire.ToolDeclaration, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Declaration())
	}
	return out
}

// Dispatch resolves invocation.Name to a Tool, gates it through the
// Authorizer, and invokes it, always returning a well-formed FunctionResult
// part — even on denial/timeout/failure — per §4.3 and §7 ("ToolError: never
// surfaced directly; always round-tripped to the brain").
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) wire.Part {
	if _, ok := r.tools[inv.Name]; !ok {
		return denialResult(inv, &UnknownError{Name: inv.Name})
	}

	ok, err := r.authorizer.Authorize(ctx, inv)
	if err != nil {
		return denialResult(inv, &InternalError{Reason: err.Error()})
	}
	if !ok {
		return denialResult(inv, &DeniedError{Detail: "user declined authorization"})
	}
	return r.execute(ctx, inv)
}

// execute invokes inv's tool directly, skipping the name lookup and
// Authorize gate — the caller is expected to have already cleared both.
func (r *Registry) execute(ctx context.Context, inv Invocation) wire.Part {
	t, ok := r.tools[inv.Name]
	if !ok {
		return denialResult(inv, &UnknownError{Name: inv.Name})
	}

	callCtx := ctx
	if !inv.Deadline.IsZero() {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithDeadline(ctx, inv.Deadline)
		defer cancel()
	}
	callCtx = WithCallID(callCtx, inv.CallID)

	argsJSON, _ := json.Marshal(inv.Args)
	result, err := t.Invoke(callCtx, string(argsJSON), r.deps)
	if err != nil {
		var done *TaskCompleteError
		if errors.As(err, &done) {
			// Task completion is not a tool error: it is a genuine
			// turn-termination sentinel the Conductor watches for
			// (runTurn), so it gets its own result shape rather than
			// the {"error": ...} payload denialResult produces.
			return wire.FunctionResultPart(inv.CallID, inv.Name, map[string]any{"done": true, "message": done.Message})
		}
		return denialResult(inv, err)
	}
	return wire.FunctionResultPart(inv.CallID, inv.Name, result)
}

// DispatchParallel authorizes every invocation sequentially, one at a time,
// then runs the authorized ones concurrently and returns all results in
// input order. The sequential authorization pass matters beyond ordering:
// the Authorizer is frequently backed by the Frontend Bridge (e.g.
// terminal.Bridge.Authorize, which toggles raw mode on a single shared fd
// and reads from a shared, non-concurrency-safe bufio.Reader), and the
// Bridge contract (bridge.Bridge) promises the Conductor's call graph never
// invokes two Bridge methods at once. Calling Authorize from inside the
// fan-out goroutines below would violate that promise the moment two tool
// calls in the same turn both need confirmation (scenario S3); gating
// authorization here, before any goroutine starts, upholds it regardless of
// how many invocations run in parallel afterward. One failure never
// cancels its siblings, per §4.3 and invariant 4 of §8.
func (r *Registry) DispatchParallel(ctx context.Context, invs []Invocation) []wire.Part {
	results := make([]wire.Part, len(invs))
	toRun := make([]int, 0, len(invs))
	for i, inv := range invs {
		if _, ok := r.tools[inv.Name]; !ok {
			results[i] = denialResult(inv, &UnknownError{Name: inv.Name})
			continue
		}
		ok, err := r.authorizer.Authorize(ctx, inv)
		if err != nil {
			results[i] = denialResult(inv, &InternalError{Reason: err.Error()})
			continue
		}
		if !ok {
			results[i] = denialResult(inv, &DeniedError{Detail: "user declined authorization"})
			continue
		}
		toRun = append(toRun, i)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, i := range toRun {
		i, inv := i, invs[i]
		g.Go(func() error {
			part := r.execute(gctx, inv)
			mu.Lock()
			results[i] = part
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // execute never returns an error from the group; failures live in the Part.
	return results
}

func denialResult(inv Invocation, err error) wire.Part {
	payload := map[string]any{"error": err.Error()}
	switch err.(type) {
	case *DeniedError:
		payload["denied"] = true
	case *TimeoutError:
		payload["timed_out"] = true
	case *UnknownError:
		payload["unknown_tool"] = true
	}
	return wire.FunctionResultPart(inv.CallID, inv.Name, payload)
}
