package conductor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chitti-ai/chitti/internal/bridge"
	"github.com/chitti-ai/chitti/internal/bridge/mock"
	"github.com/chitti-ai/chitti/internal/brain"
	"github.com/chitti-ai/chitti/internal/tools"
)

func sseFrame(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

// scriptedBrainServer replays one SSE response body per call, in order,
// looping on the last one once exhausted — enough to drive the multi-round-
// trip scenarios of §4.4 without a real brain endpoint.
func scriptedBrainServer(t *testing.T, bodies ...string) *httptest.Server {
	t.Helper()
	var call int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(&call, 1)) - 1
		if i >= len(bodies) {
			i = len(bodies) - 1
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, bodies[i])
	}))
}

func newTestConductor(srv *httptest.Server, br *mock.Bridge, reg *tools.Registry) *Conductor {
	c := &brain.Client{BaseURL: srv.URL, Credential: "test"}
	if reg == nil {
		var err error
		reg, err = tools.NewRegistry(nil, nil, tools.AllowAll{})
		if err != nil {
			panic(err)
		}
	}
	return New(c, reg, br, Config{Model: "gemini-test", MaxTurnRoundtrips: 12}, nil)
}

func TestRunTurnSimpleFinalResponse(t *testing.T) {
	srv := scriptedBrainServer(t,
		sseFrame("complete", `{"interaction_id":"i1","parts":[{"type":"text","text":"hi there"}],"finish_reason":"STOP"}`),
	)
	defer srv.Close()

	br := mock.New()
	cond := newTestConductor(srv, br, nil)

	var events []Event
	cond.Notify = func(e Event) { events = append(events, e) }

	cond.runTurn(context.Background(), "hello")

	if len(br.Finals) != 1 || br.Finals[0].Text != "hi there" {
		t.Fatalf("expected one final response \"hi there\", got %+v", br.Finals)
	}
	if cond.cursor.InteractionID != "i1" {
		t.Fatalf("expected cursor committed to i1, got %q", cond.cursor.InteractionID)
	}
	var sawFinal bool
	for _, e := range events {
		if fe, ok := e.(FinalResponseEvent); ok {
			sawFinal = true
			if fe.Text != "hi there" {
				t.Fatalf("unexpected FinalResponseEvent text: %q", fe.Text)
			}
		}
	}
	if !sawFinal {
		t.Fatalf("expected a FinalResponseEvent to be notified")
	}
}

func TestRunTurnToolCallRoundTrip(t *testing.T) {
	srv := scriptedBrainServer(t,
		sseFrame("complete", `{"interaction_id":"i1","tool_calls":[{"call_id":"c1","name":"echo","args":{"value":"ping"}}],"finish_reason":"STOP"}`),
		sseFrame("complete", `{"interaction_id":"i2","parts":[{"type":"text","text":"done"}],"finish_reason":"STOP"}`),
	)
	defer srv.Close()

	echo := tools.Func("echo", "echoes", func(ctx context.Context, args struct {
		Value string `json:"value"`
	}, deps *tools.Container) (any, error) {
		return map[string]any{"echoed": args.Value}, nil
	})
	reg, err := tools.NewRegistry([]tools.Tool{echo}, nil, tools.AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	br := mock.New()
	cond := newTestConductor(srv, br, reg)

	var events []Event
	cond.Notify = func(e Event) { events = append(events, e) }

	cond.runTurn(context.Background(), "please echo ping")

	if len(br.Finals) != 1 || br.Finals[0].Text != "done" {
		t.Fatalf("expected a final response \"done\" after the tool round-trip, got %+v", br.Finals)
	}

	var sawCall, sawResult bool
	for _, e := range events {
		switch ev := e.(type) {
		case ToolCallEvent:
			sawCall = true
			if ev.Name != "echo" || ev.CallID != "c1" {
				t.Fatalf("unexpected ToolCallEvent: %+v", ev)
			}
		case ToolResultEvent:
			sawResult = true
			if ev.IsError {
				t.Fatalf("expected the echo tool to succeed, got IsError=true: %+v", ev.Result)
			}
		}
	}
	if !sawCall || !sawResult {
		t.Fatalf("expected both a ToolCallEvent and a ToolResultEvent, got %+v", events)
	}

	// The session should now carry the user turn and the final model turn;
	// the model's tool-call-only turn has no text and is not appended.
	if len(cond.session.Turns) < 2 {
		t.Fatalf("expected at least 2 session turns after a tool round-trip, got %d", len(cond.session.Turns))
	}
}

func TestRunTurnDoneToolEndsTurnEarly(t *testing.T) {
	srv := scriptedBrainServer(t,
		sseFrame("complete", `{"interaction_id":"i1","tool_calls":[{"call_id":"c1","name":"done","args":{"message":"all finished"}}],"finish_reason":"STOP"}`),
	)
	defer srv.Close()

	done := tools.Func("done", "signal completion", func(ctx context.Context, args struct {
		Message string `json:"message"`
	}, deps *tools.Container) (any, error) {
		return nil, tools.TaskComplete(args.Message)
	})
	reg, err := tools.NewRegistry([]tools.Tool{done}, nil, tools.AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	br := mock.New()
	cond := newTestConductor(srv, br, reg)

	var events []Event
	cond.Notify = func(e Event) { events = append(events, e) }

	cond.runTurn(context.Background(), "please finish up")

	if len(br.Finals) != 1 || br.Finals[0].Text != "all finished" {
		t.Fatalf("expected the done tool's message rendered as the final response, got %+v", br.Finals)
	}
	var sawDone bool
	for _, e := range events {
		if de, ok := e.(TaskDoneEvent); ok {
			sawDone = true
			if de.Message != "all finished" {
				t.Fatalf("unexpected TaskDoneEvent message: %q", de.Message)
			}
		}
	}
	if !sawDone {
		t.Fatalf("expected a TaskDoneEvent to be notified")
	}
}

func TestRunTurnHitsLoopLimit(t *testing.T) {
	// A brain that always asks for another tool call forces the Conductor to
	// hit its round-trip cap rather than loop forever.
	srv := scriptedBrainServer(t,
		sseFrame("complete", `{"interaction_id":"i1","tool_calls":[{"call_id":"c1","name":"echo","args":{}}],"finish_reason":"STOP"}`),
	)
	defer srv.Close()

	echo := tools.Func("echo", "echoes", func(ctx context.Context, args struct{}, deps *tools.Container) (any, error) {
		return map[string]any{"ok": true}, nil
	})
	reg, err := tools.NewRegistry([]tools.Tool{echo}, nil, tools.AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	br := mock.New()
	cond := newTestConductor(srv, br, reg)
	cond.Cfg.MaxTurnRoundtrips = 3

	var events []Event
	cond.Notify = func(e Event) { events = append(events, e) }

	cond.runTurn(context.Background(), "loop forever")

	if len(br.Errors) != 1 || br.Errors[0].Kind != "loop_limit" {
		t.Fatalf("expected a loop_limit RenderError, got %+v", br.Errors)
	}
	var sawLimit bool
	for _, e := range events {
		if _, ok := e.(LoopLimitEvent); ok {
			sawLimit = true
		}
	}
	if !sawLimit {
		t.Fatalf("expected a LoopLimitEvent to be notified")
	}
}

func TestRunTurnRateLimitRetriesThenSucceeds(t *testing.T) {
	var call int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&call, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, "slow down")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, sseFrame("complete", `{"interaction_id":"i1","parts":[{"type":"text","text":"recovered"}],"finish_reason":"STOP"}`))
	}))
	defer srv.Close()

	br := mock.New()
	cond := newTestConductor(srv, br, nil)

	cond.runTurn(context.Background(), "hello")

	if len(br.Finals) != 1 || br.Finals[0].Text != "recovered" {
		t.Fatalf("expected the retried sub-turn to succeed, got %+v", br.Finals)
	}
	if atomic.LoadInt32(&call) != 2 {
		t.Fatalf("expected exactly 2 HTTP calls (1 rate-limited + 1 success), got %d", call)
	}
}

// TestRunTurnPersistentRateLimitSurfacesAfterOneRetry is scenario S6: a
// sub-turn that keeps getting rate-limited retries exactly once, then
// surfaces RateLimited rather than retrying indefinitely.
func TestRunTurnPersistentRateLimitSurfacesAfterOneRetry(t *testing.T) {
	var call int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&call, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer srv.Close()

	br := mock.New()
	cond := newTestConductor(srv, br, nil)

	cond.runTurn(context.Background(), "hello")

	if len(br.Errors) != 1 || br.Errors[0].Kind != "rate_limited" {
		t.Fatalf("expected a rate_limited RenderError, got %+v", br.Errors)
	}
	if atomic.LoadInt32(&call) != 2 {
		t.Fatalf("expected exactly 2 HTTP calls (1 attempt + 1 retry) before surfacing, got %d", call)
	}
}

func TestRunTurnCancellationSuppressesErrorRender(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, sseFrame("content_delta", `{"part_index":0,"delta":"wait"}`))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-block // holds the connection open until the test cancels the turn
	}))
	defer srv.Close()
	defer close(block)

	br := mock.New()
	cond := newTestConductor(srv, br, nil)

	ctx, lifecycle := startTurn(context.Background())
	done := make(chan struct{})
	go func() {
		cond.runTurn(ctx, "hang on")
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	lifecycle.abort()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("runTurn did not return after cancellation")
	}

	if len(br.Errors) != 0 {
		t.Fatalf("expected no RenderError on cancellation, got %+v", br.Errors)
	}
	if len(br.Finals) != 0 {
		t.Fatalf("expected no RenderFinal on cancellation, got %+v", br.Finals)
	}
}

func TestRunQuitReturnsErrQuit(t *testing.T) {
	br := mock.New()
	br.Script(bridge.InputMessage{Kind: bridge.InputQuit})

	reg, err := tools.NewRegistry(nil, nil, tools.AllowAll{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	cond := New(&brain.Client{}, reg, br, Config{Model: "m"}, nil)

	err = cond.Run(context.Background())
	if err != ErrQuit {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
}

func TestBuildRequestDefaultsToTextInput(t *testing.T) {
	reg, _ := tools.NewRegistry(nil, nil, tools.AllowAll{})
	cond := New(&brain.Client{}, reg, mock.New(), Config{Model: "m"}, nil)

	req := cond.buildRequest("hello", nil)
	if req.Input.Text == nil || *req.Input.Text != "hello" {
		t.Fatalf("expected the default case to use a text input, got %+v", req.Input)
	}
}
