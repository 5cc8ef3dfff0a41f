package conductor

import "context"

// turnLifecycle tracks the cancelable context for one active user turn, so
// a Cancel input delivered concurrently by the frontend reader (§5) can
// abort Streaming/Executing without tearing down the whole session —
// widened from original_source/src/bridges/mock.rs's UserEvent enum
// (Approve/Reject/Command) to include Cancel/Quit/Clear as first-class
// frontend inputs (bridge.InputKind).
type turnLifecycle struct {
	cancel context.CancelFunc
}

func startTurn(parent context.Context) (context.Context, *turnLifecycle) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, &turnLifecycle{cancel: cancel}
}

func (t *turnLifecycle) abort() {
	if t != nil && t.cancel != nil {
		t.cancel()
	}
}
