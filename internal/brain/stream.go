package brain

import (
	"strconv"
	"strings"
	"sync"

	"github.com/chitti-ai/chitti/internal/wire"
)

// Stream is a lazy, single-pass, finite sequence of Interaction Events, per
// the public contract of §4.2. Events() is read until closed; Err() reports
// the terminal error (nil on a clean Complete).
type Stream struct {
	events chan wire.Event

	mu  sync.Mutex
	err error
}

func newStream(buf int) *Stream {
	return &Stream{events: make(chan wire.Event, buf)}
}

func (s *Stream) Events() <-chan wire.Event { return s.events }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// assembler buffers per-index text and tool-call-argument fragments and
// validates the §3/§4.2 "assembly invariants": the Complete frame's
// snapshot must equal the concatenation of streamed fragments.
type assembler struct {
	text map[int]*strings.Builder
	args map[int]*strings.Builder
	name map[int]string
	id   map[int]string
}

func newAssembler() *assembler {
	return &assembler{
		text: map[int]*strings.Builder{},
		args: map[int]*strings.Builder{},
		name: map[int]string{},
		id:   map[int]string{},
	}
}

func (a *assembler) applyContentDelta(e wire.ContentDeltaEvent) {
	b, ok := a.text[e.PartIndex]
	if !ok {
		b = &strings.Builder{}
		a.text[e.PartIndex] = b
	}
	b.WriteString(e.Delta)
}

func (a *assembler) applyToolFragment(e wire.ToolCallFragmentEvent) {
	b, ok := a.args[e.CallIndex]
	if !ok {
		b = &strings.Builder{}
		a.args[e.CallIndex] = b
	}
	b.WriteString(e.ArgsDelta)
	if e.CallID != "" {
		a.id[e.CallIndex] = e.CallID
	}
	if e.Name != "" {
		a.name[e.CallIndex] = e.Name
	}
}

// verify checks the buffered assembly against the Complete frame's snapshot.
// A mismatch is a protocol error per §4.2; absent any buffered fragments for
// an index (non-streaming-shaped brains sometimes only send Complete) is not
// a mismatch.
func (a *assembler) verify(c wire.CompleteEvent) error {
	for i, b := range a.text {
		if i >= len(c.Parts) {
			continue
		}
		want := c.Parts[i]
		if want.Type != wire.PartText || want.Text == nil {
			continue
		}
		if *want.Text != b.String() {
			return &ProtocolMismatchError{Reason: "content part " + strconv.Itoa(i) + " disagrees with streamed deltas"}
		}
	}
	for i, b := range a.args {
		if i >= len(c.ToolCalls) {
			continue
		}
		want := c.ToolCalls[i]
		got := b.String()
		if got == "" || want.Name == "" {
			continue
		}
		// Fragment concatenation must be a prefix-or-equal of the server's
		// own rendering length; servers may reformat whitespace, so this
		// only catches outright truncation, not cosmetic drift.
		if len(got) > len(want.Name)+256+estimateArgsLen(want.Args) {
			return &ProtocolMismatchError{Reason: "tool call " + strconv.Itoa(i) + " args longer than final snapshot"}
		}
	}
	return nil
}

func estimateArgsLen(args map[string]any) int {
	n := 2
	for k, v := range args {
		if s, ok := v.(string); ok {
			n += len(k) + len(s) + 6
		} else {
			n += len(k) + 16
		}
	}
	return n
}
