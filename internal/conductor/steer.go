package conductor

import "sync"

// steerQueue buffers out-of-band steering messages until the next sub-turn
// boundary, per §4.4 "Steering" and §5's ordering guarantee that queued
// steering messages flush in submission order, never reordered with user
// inputs. Grounded on the teacher's drainSteering (sdk/agent/agent.go),
// simplified from a channel-select loop to a mutex-guarded slice since the
// Conductor only ever drains it synchronously at a boundary.
type steerQueue struct {
	mu   sync.Mutex
	msgs []string
}

func newSteerQueue() *steerQueue { return &steerQueue{} }

func (q *steerQueue) push(text string) {
	q.mu.Lock()
	q.msgs = append(q.msgs, text)
	q.mu.Unlock()
}

// drain returns and clears everything queued so far. Never called mid-stream
// per §4.4 ("Steering is not applied mid-stream").
func (q *steerQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return nil
	}
	out := q.msgs
	q.msgs = nil
	return out
}
