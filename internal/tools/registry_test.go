package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func echoTool() Tool {
	return Func("echo", "echoes its input", func(ctx context.Context, args struct {
		Value string `json:"value"`
	}, deps *Container) (any, error) {
		return map[string]any{"value": args.Value}, nil
	})
}

func slowTool(delay time.Duration) Tool {
	return Tool{
		Name:        "slow",
		Description: "sleeps before returning",
		Schema:      map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args json.RawMessage, deps *Container) (any, error) {
			select {
			case <-time.After(delay):
				return map[string]any{"ok": true}, nil
			case <-ctx.Done():
				return nil, &TimeoutError{Seconds: int(delay.Seconds())}
			}
		},
	}
}

type stubAuthorizer struct {
	allow bool
	err   error
}

func (s stubAuthorizer) Authorize(ctx context.Context, inv Invocation) (bool, error) {
	return s.allow, s.err
}

func TestDispatchUnknownToolIsDenialNotPanic(t *testing.T) {
	reg, err := NewRegistry(nil, nil, AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	part := reg.Dispatch(context.Background(), Invocation{CallID: "c1", Name: "nope"})
	if part.Result == nil {
		t.Fatalf("expected a FunctionResult part, got %+v", part)
	}
	m, ok := part.Result.Value.(map[string]any)
	if !ok || m["unknown_tool"] != true {
		t.Fatalf("expected unknown_tool=true in result, got %+v", part.Result.Value)
	}
}

func TestDispatchDeniedByAuthorizer(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool()}, nil, stubAuthorizer{allow: false})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	part := reg.Dispatch(context.Background(), Invocation{CallID: "c1", Name: "echo", Args: map[string]any{"value": "hi"}})
	m, ok := part.Result.Value.(map[string]any)
	if !ok || m["denied"] != true {
		t.Fatalf("expected denied=true in result, got %+v", part.Result.Value)
	}
}

func TestDispatchAuthorizerErrorBecomesInternalDenial(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool()}, nil, stubAuthorizer{err: errors.New("boom")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	part := reg.Dispatch(context.Background(), Invocation{CallID: "c1", Name: "echo"})
	m, ok := part.Result.Value.(map[string]any)
	if !ok {
		t.Fatalf("expected a map result, got %+v", part.Result.Value)
	}
	if _, hasErr := m["error"]; !hasErr {
		t.Fatalf("expected an error field, got %+v", m)
	}
}

func TestDispatchSuccessReturnsFunctionResultNamed(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool()}, nil, AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	part := reg.Dispatch(context.Background(), Invocation{CallID: "c1", Name: "echo", Args: map[string]any{"value": "hi"}})
	if part.Result == nil || part.Result.Name != "echo" || part.Result.CallID != "c1" {
		t.Fatalf("unexpected result shape: %+v", part.Result)
	}
	m, ok := part.Result.Value.(map[string]any)
	if !ok || m["value"] != "hi" {
		t.Fatalf("expected echoed value, got %+v", part.Result.Value)
	}
}

func TestDispatchParallelPreservesInputOrder(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool()}, nil, AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	invs := make([]Invocation, 20)
	for i := range invs {
		invs[i] = Invocation{CallID: "c", Name: "echo", Args: map[string]any{"value": string(rune('a' + i))}}
	}
	results := reg.DispatchParallel(context.Background(), invs)
	if len(results) != len(invs) {
		t.Fatalf("expected %d results, got %d", len(invs), len(results))
	}
	for i, r := range results {
		want := string(rune('a' + i))
		m, ok := r.Result.Value.(map[string]any)
		if !ok || m["value"] != want {
			t.Fatalf("result %d out of order: expected %q, got %+v", i, want, r.Result.Value)
		}
	}
}

func TestDispatchParallelOneFailureDoesNotCancelSiblings(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool(), {
		Name:        "boom",
		Description: "always errors",
		Schema:      map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args json.RawMessage, deps *Container) (any, error) {
			return nil, &InternalError{Reason: "kaboom"}
		},
	}}, nil, AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	invs := []Invocation{
		{CallID: "c1", Name: "boom"},
		{CallID: "c2", Name: "echo", Args: map[string]any{"value": "still here"}},
	}
	results := reg.DispatchParallel(context.Background(), invs)
	if m, ok := results[1].Result.Value.(map[string]any); !ok || m["value"] != "still here" {
		t.Fatalf("expected the sibling invocation to still succeed, got %+v", results[1].Result.Value)
	}
}

// concurrencyTrackingAuthorizer records the maximum number of Authorize
// calls ever in flight at once, to verify DispatchParallel never runs two
// of them concurrently (the Bridge contract's single-caller rule).
type concurrencyTrackingAuthorizer struct {
	mu      sync.Mutex
	inFlight int
	maxSeen int
}

func (a *concurrencyTrackingAuthorizer) Authorize(ctx context.Context, inv Invocation) (bool, error) {
	a.mu.Lock()
	a.inFlight++
	if a.inFlight > a.maxSeen {
		a.maxSeen = a.inFlight
	}
	a.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	a.mu.Lock()
	a.inFlight--
	a.mu.Unlock()
	return true, nil
}

func TestDispatchParallelAuthorizesSequentially(t *testing.T) {
	auth := &concurrencyTrackingAuthorizer{}
	reg, err := NewRegistry([]Tool{echoTool()}, nil, auth)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	invs := make([]Invocation, 8)
	for i := range invs {
		invs[i] = Invocation{CallID: "c", Name: "echo", Args: map[string]any{"value": "x"}}
	}
	reg.DispatchParallel(context.Background(), invs)
	if auth.maxSeen != 1 {
		t.Fatalf("expected Authorize to never run concurrently, saw %d in flight at once", auth.maxSeen)
	}
}

func TestDispatchRespectsInvocationDeadline(t *testing.T) {
	reg, err := NewRegistry([]Tool{slowTool(50 * time.Millisecond)}, nil, AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	part := reg.Dispatch(context.Background(), Invocation{
		CallID:   "c1",
		Name:     "slow",
		Deadline: time.Now().Add(5 * time.Millisecond),
	})
	m, ok := part.Result.Value.(map[string]any)
	if !ok || m["timed_out"] != true {
		t.Fatalf("expected timed_out=true, got %+v", part.Result.Value)
	}
}

func TestContainerGetMemoizesAcrossCalls(t *testing.T) {
	c := NewContainer()
	calls := 0
	var mu sync.Mutex
	key := Dep[int]("counter")
	Provide(c, key, func(ctx context.Context) (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return 42, nil
	})
	for i := 0; i < 5; i++ {
		v, err := Get(c, context.Background(), key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	}
	if calls != 1 {
		t.Fatalf("expected the provider to run once, ran %d times", calls)
	}
}

func TestContainerOverrideBypassesMemoizedProvider(t *testing.T) {
	c := NewContainer()
	key := Dep[string]("greeting")
	Provide(c, key, func(ctx context.Context) (string, error) { return "hello", nil })
	if v, _ := Get(c, context.Background(), key); v != "hello" {
		t.Fatalf("expected hello, got %q", v)
	}
	Override(c, key, func(ctx context.Context) (string, error) { return "overridden", nil })
	if v, _ := Get(c, context.Background(), key); v != "overridden" {
		t.Fatalf("expected overridden, got %q", v)
	}
}

func TestGetMissingProviderErrors(t *testing.T) {
	c := NewContainer()
	_, err := Get(c, context.Background(), Dep[int]("missing"))
	if err == nil {
		t.Fatalf("expected an error for a missing provider")
	}
}
