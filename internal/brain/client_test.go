package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chitti-ai/chitti/internal/wire"
)

func sseFrame(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

func TestClientSendAssemblesDeltaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, sseFrame("start", `{"interaction_id":"abc"}`))
		fmt.Fprint(w, sseFrame("content_delta", `{"part_index":0,"delta":"Hi"}`))
		fmt.Fprint(w, sseFrame("content_delta", `{"part_index":0,"delta":" there"}`))
		fmt.Fprint(w, sseFrame("complete", `{"interaction_id":"abc","parts":[{"type":"text","text":"Hi there"}],"finish_reason":"STOP"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Credential: "test"}
	stream, err := c.Send(context.Background(), &wire.InteractionRequest{Model: "m", Input: wire.TextInput("hello")})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var deltas []string
	var complete *wire.CompleteEvent
	for ev := range stream.Events() {
		switch e := ev.(type) {
		case wire.ContentDeltaEvent:
			deltas = append(deltas, e.Delta)
		case wire.CompleteEvent:
			ce := e
			complete = &ce
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if len(deltas) != 2 || deltas[0] != "Hi" || deltas[1] != " there" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	if complete == nil || complete.InteractionID != "abc" {
		t.Fatalf("expected a Complete frame with interaction_id=abc, got %+v", complete)
	}
}

// TestClientSendDetectsAssemblyMismatch exercises invariant 1 of §8: the
// Complete frame's text snapshot must equal the concatenation of the
// streamed ContentDelta fragments, or the stream surfaces a
// ProtocolMismatchError instead of silently trusting the Complete frame.
func TestClientSendDetectsAssemblyMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, sseFrame("content_delta", `{"part_index":0,"delta":"Hi"}`))
		fmt.Fprint(w, sseFrame("complete", `{"parts":[{"type":"text","text":"Something else entirely"}],"finish_reason":"STOP"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Credential: "test"}
	stream, err := c.Send(context.Background(), &wire.InteractionRequest{Model: "m", Input: wire.TextInput("hello")})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	for range stream.Events() {
	}
	var perr *ProtocolMismatchError
	err = stream.Err()
	if err == nil || !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolMismatchError, got %v (%T)", err, err)
	}
}

func TestClientSendSurfacesHTTPClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad request body")
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Credential: "test"}
	_, err := c.Send(context.Background(), &wire.InteractionRequest{Model: "m", Input: wire.TextInput("hello")})
	if err == nil {
		t.Fatalf("expected an error")
	}
	httpErr, ok := err.(*HTTPStatusError)
	if !ok {
		t.Fatalf("expected *HTTPStatusError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", httpErr.Code)
	}
}

func TestClientSendSurfacesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Credential: "test"}
	_, err := c.Send(context.Background(), &wire.InteractionRequest{Model: "m", Input: wire.TextInput("hello")})
	rl, ok := err.(*RateLimitedError)
	if !ok {
		t.Fatalf("expected *RateLimitedError, got %T (%v)", err, err)
	}
	if rl.RetryAfter.Seconds() != 2 {
		t.Fatalf("expected retry_after=2s, got %v", rl.RetryAfter)
	}
}
