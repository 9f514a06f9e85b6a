package file

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/streamgate/streamgate"
	"github.com/streamgate/streamgate/internal/sinkmanager"
)

func TestFileSinkOnEvent(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "streamgate-test-*.log")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())
	tmpfile.Close()

	sink, err := New(tmpfile.Name(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.OnStop(context.Background())

	ser, err := sinkmanager.NewSerializer("json", nil, nil)
	if err != nil {
		t.Fatalf("new serializer: %v", err)
	}

	ev := streamgate.Event{
		EventID: "test-id",
		Payload: map[string]any{"id": "test-id", "table": "users", "after": map[string]any{"name": "john"}},
	}

	if _, err := sink.OnEvent(context.Background(), sinkmanager.PortIn, ev, ser, 0); err != nil {
		t.Fatalf("failed to write event: %v", err)
	}

	content, err := os.ReadFile(tmpfile.Name())
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(content), "test-id") {
		t.Errorf("expected content to contain test-id, got %s", string(content))
	}
	if !strings.Contains(string(content), "users") {
		t.Errorf("expected content to contain users, got %s", string(content))
	}
}
