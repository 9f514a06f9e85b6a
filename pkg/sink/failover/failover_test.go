package failover

import (
	"context"
	"errors"
	"testing"

	"github.com/streamgate/streamgate"
)

type mockSink struct {
	eventCalled bool
	fail        bool
	stopCalled  bool
}

func (m *mockSink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	m.eventCalled = true
	if m.fail {
		return nil, errors.New("event failed")
	}
	return nil, nil
}

func (m *mockSink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}
func (m *mockSink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }
func (m *mockSink) OnStart(ctx context.Context) error                 { return nil }
func (m *mockSink) OnPause(ctx context.Context) error                 { return nil }
func (m *mockSink) OnResume(ctx context.Context) error                { return nil }
func (m *mockSink) OnStop(ctx context.Context) error {
	m.stopCalled = true
	return nil
}
func (m *mockSink) OnConnectionLost(ctx context.Context) error        { return nil }
func (m *mockSink) OnConnectionEstablished(ctx context.Context) error { return nil }
func (m *mockSink) AutoAck() bool                                     { return true }
func (m *mockSink) Asynchronous() bool                                { return false }

func TestFailoverSinkOnEvent(t *testing.T) {
	primary := &mockSink{fail: true}
	fallback := &mockSink{fail: false}

	s := New(primary, []streamgate.Sink{fallback}, nil)
	ev := streamgate.Event{EventID: "1"}

	if _, err := s.OnEvent(context.Background(), "IN", ev, nil, 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !primary.eventCalled {
		t.Error("primary OnEvent should have been called")
	}
	if !fallback.eventCalled {
		t.Error("fallback OnEvent should have been called")
	}
}

func TestFailoverSinkOnEventPrimarySuccess(t *testing.T) {
	primary := &mockSink{fail: false}
	fallback := &mockSink{fail: false}

	s := New(primary, []streamgate.Sink{fallback}, nil)
	ev := streamgate.Event{EventID: "1"}

	if _, err := s.OnEvent(context.Background(), "IN", ev, nil, 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !primary.eventCalled {
		t.Error("primary OnEvent should have been called")
	}
	if fallback.eventCalled {
		t.Error("fallback OnEvent should NOT have been called")
	}
}

func TestFailoverSinkOnEventAllFail(t *testing.T) {
	primary := &mockSink{fail: true}
	fallback := &mockSink{fail: true}

	s := New(primary, []streamgate.Sink{fallback}, nil)
	ev := streamgate.Event{EventID: "1"}

	if _, err := s.OnEvent(context.Background(), "IN", ev, nil, 0); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestFailoverSinkOnStop(t *testing.T) {
	primary := &mockSink{}
	fallback := &mockSink{}

	s := New(primary, []streamgate.Sink{fallback}, nil)
	s.OnStop(context.Background())

	if !primary.stopCalled {
		t.Error("primary OnStop should have been called")
	}
	if !fallback.stopCalled {
		t.Error("fallback OnStop should have been called")
	}
}
