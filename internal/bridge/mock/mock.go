// Package mock implements a scripted bridge.Bridge for tests, grounded on
// original_source/src/bridges/mock.rs's MockBridge: a slice-backed queue of
// scripted inputs plus an inspectable record of everything the Conductor
// rendered.
package mock

import (
	"context"
	"sync"

	"github.com/chitti-ai/chitti/internal/bridge"
	"github.com/chitti-ai/chitti/internal/tools"
	"github.com/chitti-ai/chitti/internal/wire"
)

// Delta is one recorded RenderDelta call.
type Delta struct {
	PartIndex int
	Text      string
}

// Final is one recorded RenderFinal call.
type Final struct {
	Text  string
	Usage wire.Usage
}

// Rendered is one recorded RenderError call.
type Rendered struct {
	Kind    string
	Message string
}

// Bridge is a scripted, inspectable bridge.Bridge. Script() queues inputs
// up front; AuthorizeAlways/AuthorizeFunc control the authorization gate's
// answers (the default allows every call).
type Bridge struct {
	mu sync.Mutex

	inputs []bridge.InputMessage

	Deltas []Delta
	Finals []Final
	Errors []Rendered

	authorize func(tools.Invocation) (bool, error)
}

func New() *Bridge {
	return &Bridge{authorize: func(tools.Invocation) (bool, error) { return true, nil }}
}

// Script appends messages to the queue NextInput will drain in order.
func (b *Bridge) Script(msgs ...bridge.InputMessage) {
	b.mu.Lock()
	b.inputs = append(b.inputs, msgs...)
	b.mu.Unlock()
}

// ScriptText is shorthand for Script(InputMessage{Kind: InputUserText, Text: s}).
func (b *Bridge) ScriptText(texts ...string) {
	for _, t := range texts {
		b.Script(bridge.InputMessage{Kind: bridge.InputUserText, Text: t})
	}
}

// AuthorizeAlways sets a fixed allow/deny answer for every authorization
// request, regardless of which tool is being invoked.
func (b *Bridge) AuthorizeAlways(allow bool) {
	b.mu.Lock()
	b.authorize = func(tools.Invocation) (bool, error) { return allow, nil }
	b.mu.Unlock()
}

// AuthorizeFunc installs a custom per-invocation authorization decision.
func (b *Bridge) AuthorizeFunc(fn func(tools.Invocation) (bool, error)) {
	b.mu.Lock()
	b.authorize = fn
	b.mu.Unlock()
}

func (b *Bridge) NextInput(ctx context.Context) (bridge.InputMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return bridge.InputMessage{}, bridge.ErrClosed
	}
	next := b.inputs[0]
	b.inputs = b.inputs[1:]
	return next, nil
}

func (b *Bridge) RenderDelta(partIndex int, text string) {
	b.mu.Lock()
	b.Deltas = append(b.Deltas, Delta{PartIndex: partIndex, Text: text})
	b.mu.Unlock()
}

func (b *Bridge) RenderFinal(text string, usage wire.Usage) {
	b.mu.Lock()
	b.Finals = append(b.Finals, Final{Text: text, Usage: usage})
	b.mu.Unlock()
}

func (b *Bridge) RenderError(kind, message string) {
	b.mu.Lock()
	b.Errors = append(b.Errors, Rendered{Kind: kind, Message: message})
	b.mu.Unlock()
}

func (b *Bridge) Authorize(ctx context.Context, inv tools.Invocation) (bool, error) {
	b.mu.Lock()
	fn := b.authorize
	b.mu.Unlock()
	return fn(inv)
}
