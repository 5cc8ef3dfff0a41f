package terminal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/chitti-ai/chitti/internal/bridge"
	"github.com/chitti-ai/chitti/internal/wire"
)

func TestNextInputRecognizesSlashCommands(t *testing.T) {
	in := strings.NewReader("/clear\n")
	var out bytes.Buffer
	b := New(in, &out, -1)

	msg, err := b.NextInput(context.Background())
	if err != nil {
		t.Fatalf("NextInput: %v", err)
	}
	if msg.Kind != bridge.InputClear {
		t.Fatalf("expected InputClear, got %+v", msg)
	}
}

func TestNextInputRecognizesSteer(t *testing.T) {
	in := strings.NewReader("/steer focus on tests\n")
	var out bytes.Buffer
	b := New(in, &out, -1)

	msg, err := b.NextInput(context.Background())
	if err != nil {
		t.Fatalf("NextInput: %v", err)
	}
	if msg.Kind != bridge.InputSteer || msg.Text != "focus on tests" {
		t.Fatalf("unexpected steer message: %+v", msg)
	}
}

func TestNextInputTreatsPlainLineAsUserText(t *testing.T) {
	in := strings.NewReader("hello there\n")
	var out bytes.Buffer
	b := New(in, &out, -1)

	msg, err := b.NextInput(context.Background())
	if err != nil {
		t.Fatalf("NextInput: %v", err)
	}
	if msg.Kind != bridge.InputUserText || msg.Text != "hello there" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestRenderFinalFoldsUsageIntoStatusBar(t *testing.T) {
	var out bytes.Buffer
	b := New(strings.NewReader(""), &out, -1)
	b.SetStatus(StatusState{Model: "m"})

	b.RenderFinal("done", wire.Usage{Prompt: 10, Candidates: 5, Total: 15})

	b.mu.Lock()
	got := b.status.LastUsage
	b.mu.Unlock()
	if got.Total != 15 {
		t.Fatalf("expected RenderFinal to record usage on the status bar, got %+v", got)
	}
	if !strings.Contains(StatusState{Model: "m", LastUsage: got}.render(), "Tokens: 15") {
		t.Fatalf("expected the rendered status bar to show the token count")
	}
}
