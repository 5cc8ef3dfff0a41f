package conductor

import "github.com/chitti-ai/chitti/internal/wire"

// Session is the stable shape a future history-storage collaborator
// subscribes to, grounded on original_source/src/conductor/session.rs. This
// package never persists it; Conductor only keeps it current and exposes a
// Snapshot after each committed turn.
type Session struct {
	InteractionID  string         `json:"interaction_id,omitempty"`
	Turns          []wire.Content `json:"turns"`
	Model          string         `json:"model"`
	ThinkingLevel  string         `json:"thinking_level"`
	MemoryEnabled  bool           `json:"memory_enabled"`
	DevMode        bool           `json:"dev_mode"`
}

func NewSession(model string, devMode bool) *Session {
	return &Session{
		Model:         model,
		ThinkingLevel: "high",
		MemoryEnabled: true,
		DevMode:       devMode,
	}
}

func (s *Session) appendTurn(c wire.Content) {
	s.Turns = append(s.Turns, c)
}

// Snapshot returns a deep-enough copy for a collaborator to persist without
// racing the Conductor's ongoing mutation.
func (s *Session) Snapshot() Session {
	cp := *s
	cp.Turns = append([]wire.Content(nil), s.Turns...)
	return cp
}
