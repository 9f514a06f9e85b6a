package stdout

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/streamgate/streamgate"
	"github.com/streamgate/streamgate/internal/sinkmanager"
)

func TestStdoutSinkOnEvent(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	original := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = original }()

	sink := New(nil)
	ser, err := sinkmanager.NewSerializer("json", nil, nil)
	if err != nil {
		t.Fatalf("new serializer: %v", err)
	}

	ev := streamgate.Event{
		EventID: "evt-1",
		Payload: map[string]any{"id": "evt-1", "hello": "world"},
	}

	if _, err := sink.OnEvent(context.Background(), sinkmanager.PortIn, ev, ser, 0); err != nil {
		t.Fatalf("on event: %v", err)
	}

	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "evt-1") {
		t.Errorf("expected output to contain evt-1, got %s", string(out))
	}
}

func TestStdoutSinkOnSignalNoOp(t *testing.T) {
	sink := New(nil)
	ser, err := sinkmanager.NewSerializer("json", nil, nil)
	if err != nil {
		t.Fatalf("new serializer: %v", err)
	}
	replies, err := sink.OnSignal(context.Background(), streamgate.Signal{Kind: streamgate.SignalStart}, ser)
	if err != nil {
		t.Fatalf("on signal: %v", err)
	}
	if replies != nil {
		t.Errorf("expected nil replies, got %v", replies)
	}
}
