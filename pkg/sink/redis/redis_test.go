//go:build integration
// +build integration

package redis

import (
	"context"
	"os"
	"testing"

	"github.com/streamgate/streamgate"
	"github.com/streamgate/streamgate/internal/sinkmanager"
)

func TestRedisSinkOnEvent(t *testing.T) {
	if os.Getenv("STREAMGATE_INTEGRATION") != "1" {
		t.Skip("skipping integration test; set STREAMGATE_INTEGRATION=1 to run")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("integration test: set REDIS_ADDR to run")
	}

	password := os.Getenv("REDIS_PASSWORD")
	stream := os.Getenv("REDIS_STREAM")
	if stream == "" {
		stream = "streamgate-stream"
	}

	sink := New(addr, password, stream, nil)
	defer sink.OnStop(context.Background())

	ser, err := sinkmanager.NewSerializer("json", nil, nil)
	if err != nil {
		t.Fatalf("new serializer: %v", err)
	}

	ev := streamgate.Event{EventID: "test-1", Payload: map[string]any{"id": 1}}
	if _, err := sink.OnEvent(context.Background(), sinkmanager.PortIn, ev, ser, 0); err != nil {
		t.Errorf("OnEvent failed: %v", err)
	}
}
