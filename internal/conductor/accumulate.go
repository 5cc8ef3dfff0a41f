package conductor

import (
	"strings"

	"github.com/chitti-ai/chitti/internal/wire"
)

// renderedText tracks what has actually reached the Frontend Bridge during
// Streaming, so the Conductor can tell whether a failed sub-turn already
// rendered deltas (and so must not be retried) and can fall back to the
// rendered text when Complete carries no text parts — generalizing the teacher's
// toolCallBuilder/toolCallAccumulator (sdk/agent/agent.go) pattern of
// buffering deltas, but keyed off wire.CompleteEvent's authoritative
// snapshot rather than reassembling tool-call args locally: the Brain
// Client already verifies fragment-vs-snapshot agreement (§4.2), so the
// Conductor only needs the final Parts/ToolCalls from Complete, not its own
// second accumulator for them.
type renderedText struct {
	parts map[int]*strings.Builder
	order []int
}

func newRenderedText() *renderedText {
	return &renderedText{parts: map[int]*strings.Builder{}}
}

func (r *renderedText) apply(e wire.ContentDeltaEvent) {
	b, ok := r.parts[e.PartIndex]
	if !ok {
		b = &strings.Builder{}
		r.parts[e.PartIndex] = b
		r.order = append(r.order, e.PartIndex)
	}
	b.WriteString(e.Delta)
}

// snapshot returns the concatenation of every rendered part in part_index
// order, used as the final text when the Complete frame has no text parts.
func (r *renderedText) snapshot() string {
	var out strings.Builder
	for _, idx := range r.order {
		out.WriteString(r.parts[idx].String())
	}
	return out.String()
}

// assistantText extracts the plain-text content of a Complete frame's
// output parts, joined in order, for surfacing as FinalResponseEvent.Text.
func assistantText(parts []wire.Part) string {
	var out strings.Builder
	for _, p := range parts {
		if p.Type == wire.PartText && p.Text != nil {
			out.WriteString(*p.Text)
		}
	}
	return out.String()
}

// assistantContent turns a Complete frame into a model-role Content for
// Session.Turns history.
func assistantContent(c wire.CompleteEvent) wire.Content {
	return wire.Content{Role: wire.RoleModel, Parts: c.Parts}
}

// toolResultContent builds the tool-role Content carrying FunctionResult
// parts back to the brain, in the same order as the originating tool-call
// list, per §4.4 step 6 and invariant 4.
func toolResultContent(results []wire.Part) wire.Content {
	return wire.Content{Role: wire.RoleTool, Parts: results}
}
