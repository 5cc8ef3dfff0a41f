package conductor

import "github.com/chitti-ai/chitti/internal/tools"

// Cursor is the Conversation Cursor of §3: owned exclusively by the
// Conductor, never mutated from another task (§5 "Shared resources").
type Cursor struct {
	InteractionID     string
	PendingToolCalls  []tools.Invocation
}

func (c *Cursor) clear() {
	c.InteractionID = ""
	c.PendingToolCalls = nil
}

func (c *Cursor) commit(interactionID string) {
	c.InteractionID = interactionID
	c.PendingToolCalls = nil
}

func (c *Cursor) isEmpty() bool { return c.InteractionID == "" }
