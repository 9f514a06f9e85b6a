package sinkmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/streamgate/streamgate"
	"github.com/streamgate/streamgate/pkg/pipeline"
)

// noop logger to satisfy streamgate.Logger
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// stubSink is a configurable streamgate.Sink used across the scenario
// tests below.
type stubSink struct {
	onEvent  func(ctx context.Context, port string, ev streamgate.Event, s streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error)
	onSignal func(ctx context.Context, sig streamgate.Signal, s streamgate.Serializer) ([]streamgate.SinkReply, error)
	autoAck  bool
	async    bool
}

func (s *stubSink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	if s.onEvent != nil {
		return s.onEvent(ctx, port, ev, ser, startNS)
	}
	return nil, nil
}

func (s *stubSink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	if s.onSignal != nil {
		return s.onSignal(ctx, sig, ser)
	}
	return nil, nil
}

func (s *stubSink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *stubSink) OnStart(ctx context.Context) error                 { return nil }
func (s *stubSink) OnPause(ctx context.Context) error                 { return nil }
func (s *stubSink) OnResume(ctx context.Context) error                { return nil }
func (s *stubSink) OnStop(ctx context.Context) error                  { return nil }
func (s *stubSink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *stubSink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *stubSink) AutoAck() bool      { return s.autoAck }
func (s *stubSink) Asynchronous() bool { return s.async }

func newTestManager(t *testing.T, sink streamgate.Sink) (*Manager, *pipeline.Pipeline, *pipeline.Pipeline) {
	t.Helper()
	m, err := New(Config{ConnectorID: "t", QSize: 4, Codec: "json"}, sink, noopLogger{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	p1 := pipeline.New("p1", 8)
	p2 := pipeline.New("p2", 8)
	m.inbox <- SinkMsg{Kind: MsgConnect, Port: PortIn, ConnectBindings: []streamgate.PipelineBinding{p1.Binding(), p2.Binding()}}
	m.inbox <- SinkMsg{Kind: MsgStart}
	return m, p1, p2
}

func runUntilDrained(ctx context.Context, m *Manager, msgs ...SinkMsg) {
	for _, msg := range msgs {
		m.inbox <- msg
	}
}

func recvWithTimeout(t *testing.T, ch <-chan streamgate.Event) streamgate.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for contraflow event")
		return streamgate.Event{}
	}
}

func payloadOf(t *testing.T, ev streamgate.Event) ackPayload {
	t.Helper()
	p, ok := ev.Payload.(ackPayload)
	if !ok {
		t.Fatalf("expected ackPayload, got %T", ev.Payload)
	}
	return p
}

// S1: auto-ack with an empty reply vector acks both pipelines.
func TestScenarioAutoAck(t *testing.T) {
	sink := &stubSink{autoAck: true}
	m, p1, p2 := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.inbox <- SinkMsg{Kind: MsgEvent, Port: PortIn, Event: streamgate.Event{
		EventID: "42", Transactional: true, OpMeta: map[string]string{"opA": "1"},
	}}

	for _, p := range []*pipeline.Pipeline{p1, p2} {
		ev := recvWithTimeout(t, p.Recv())
		if ev.EventID != "42" {
			t.Errorf("expected event_id 42, got %s", ev.EventID)
		}
		if payloadOf(t, ev).Action != streamgate.CBAck {
			t.Errorf("expected Ack action")
		}
	}
}

// S2: sink error on a transactional event fails both pipelines; state
// stays Running.
func TestScenarioFailOnError(t *testing.T) {
	sink := &stubSink{autoAck: true, onEvent: func(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
		return nil, errors.New("boom")
	}}
	m, p1, p2 := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.inbox <- SinkMsg{Kind: MsgEvent, Port: PortIn, Event: streamgate.Event{EventID: "42", Transactional: true}}

	for _, p := range []*pipeline.Pipeline{p1, p2} {
		ev := recvWithTimeout(t, p.Recv())
		if payloadOf(t, ev).Action != streamgate.CBFail {
			t.Errorf("expected Fail action")
		}
	}
	time.Sleep(10 * time.Millisecond)
	if m.State() != streamgate.StateRunning {
		t.Errorf("expected state Running, got %s", m.State())
	}
}

// S3: start/drain quorum over two source uids reaches Drained and
// delivers exactly one SinkDrained.
func TestScenarioDrainQuorum(t *testing.T) {
	sink := &stubSink{}
	m, _, _ := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	reply := make(chan streamgate.SinkDrained, 1)
	m.inbox <- SinkMsg{Kind: MsgSignal, Signal: streamgate.Signal{Kind: streamgate.SignalStart, SourceUID: "7"}}
	m.inbox <- SinkMsg{Kind: MsgSignal, Signal: streamgate.Signal{Kind: streamgate.SignalStart, SourceUID: "9"}}
	m.inbox <- SinkMsg{Kind: MsgDrain, DrainReply: reply}
	m.inbox <- SinkMsg{Kind: MsgSignal, Signal: streamgate.Signal{Kind: streamgate.SignalDrain, SourceUID: "7"}}
	m.inbox <- SinkMsg{Kind: MsgSignal, Signal: streamgate.Signal{Kind: streamgate.SignalDrain, SourceUID: "9"}}

	select {
	case <-reply:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SinkDrained")
	}
	time.Sleep(10 * time.Millisecond)
	if m.State() != streamgate.StateDrained {
		t.Errorf("expected state Drained, got %s", m.State())
	}
	select {
	case <-reply:
		t.Error("expected exactly one SinkDrained, got a second")
	default:
	}
}

// S4: ConnectionLost/ConnectionEstablished emit CB(Close)/CB(Open) and
// clear the serializer's per-stream state in between.
func TestScenarioConnectionLossRecovery(t *testing.T) {
	sink := &stubSink{}
	m, p1, p2 := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	if _, err := m.serializer.SerializeForStream("v", 0, 3); err != nil {
		t.Fatalf("seed stream: %v", err)
	}
	if m.serializer.StreamCount() != 1 {
		t.Fatalf("expected 1 tracked stream before loss")
	}

	m.inbox <- SinkMsg{Kind: MsgConnectionLost}
	for _, p := range []*pipeline.Pipeline{p1, p2} {
		ev := recvWithTimeout(t, p.Recv())
		if payloadOf(t, ev).Action != streamgate.CBClose {
			t.Errorf("expected CB(Close)")
		}
	}
	time.Sleep(10 * time.Millisecond)
	if m.serializer.StreamCount() != 0 {
		t.Errorf("expected serializer cleared after ConnectionLost, got %d streams", m.serializer.StreamCount())
	}

	m.inbox <- SinkMsg{Kind: MsgConnectionEstablished}
	for _, p := range []*pipeline.Pipeline{p1, p2} {
		ev := recvWithTimeout(t, p.Recv())
		if payloadOf(t, ev).Action != streamgate.CBOpen {
			t.Errorf("expected CB(Open)")
		}
	}
}

// S5: asynchronous, non-auto-ack sink: no contraflow until the async
// reply lands.
func TestScenarioAsyncReply(t *testing.T) {
	sink := &stubSink{autoAck: false, async: true, onEvent: func(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
		return []streamgate.SinkReply{{Kind: streamgate.ReplyNone}}, nil
	}}
	m, p1, _ := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	tmpl := streamgate.ContraflowTemplate{EventID: "100"}
	m.inbox <- SinkMsg{Kind: MsgEvent, Port: PortIn, Event: streamgate.Event{EventID: "100", Transactional: true}}

	select {
	case <-p1.Recv():
		t.Fatal("expected no contraflow before async reply")
	case <-time.After(30 * time.Millisecond):
	}

	m.AsyncReplies().Push(streamgate.AsyncSinkReply{
		Kind:     streamgate.ReplyAck,
		Template: tmpl,
		Duration: 5 * time.Millisecond,
	})

	ev := recvWithTimeout(t, p1.Recv())
	if payloadOf(t, ev).Action != streamgate.CBAck {
		t.Errorf("expected Ack action")
	}
	if payloadOf(t, ev).DurationNS != (5 * time.Millisecond).Nanoseconds() {
		t.Errorf("unexpected duration: %d", payloadOf(t, ev).DurationNS)
	}
}

// S6: when both an event and an async reply are ready, the async reply
// is processed first.
func TestScenarioAsyncPriority(t *testing.T) {
	sink := &stubSink{autoAck: true}
	m, p1, _ := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Process the Connect and Start newTestManager queued, so the
	// pipelines are bound before the async reply is handled.
	m.handle(ctx, <-m.inbox)
	m.handle(ctx, <-m.inbox)

	// Queue both before starting the actor loop so they are both ready
	// at once.
	m.inbox <- SinkMsg{Kind: MsgEvent, Port: PortIn, Event: streamgate.Event{EventID: "1", Transactional: true}}
	m.async.Push(streamgate.AsyncSinkReply{Kind: streamgate.ReplyAck, Template: streamgate.ContraflowTemplate{EventID: "async-1"}})

	go m.Run(ctx)

	first := recvWithTimeout(t, p1.Recv())
	if first.EventID != "async-1" {
		t.Errorf("expected async reply contraflow first, got event_id %s", first.EventID)
	}
	second := recvWithTimeout(t, p1.Recv())
	if second.EventID != "1" {
		t.Errorf("expected event contraflow second, got event_id %s", second.EventID)
	}
}

// Invariant 2: non-transactional events never get auto-acked.
func TestNonTransactionalNoAutoAck(t *testing.T) {
	sink := &stubSink{autoAck: true}
	m, p1, _ := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.inbox <- SinkMsg{Kind: MsgEvent, Port: PortIn, Event: streamgate.Event{EventID: "5", Transactional: false}}

	select {
	case ev := <-p1.Recv():
		t.Fatalf("expected no contraflow for non-transactional event, got %v", ev)
	case <-time.After(30 * time.Millisecond):
	}
}

// Invariant 3: a precondition-failing message is a state no-op.
func TestInvalidTransitionIsNoop(t *testing.T) {
	sink := &stubSink{}
	m, _, _ := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.inbox <- SinkMsg{Kind: MsgResume}
	time.Sleep(20 * time.Millisecond)
	if m.State() != streamgate.StateRunning {
		t.Errorf("expected Resume-while-Running to be a no-op, state=%s", m.State())
	}
}

// Open question: auto_ack with an all-None reply vector still triggers
// a single ack.
func TestAutoAckWithAllNoneReplies(t *testing.T) {
	sink := &stubSink{autoAck: true, onEvent: func(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
		return []streamgate.SinkReply{{Kind: streamgate.ReplyNone}, {Kind: streamgate.ReplyNone}}, nil
	}}
	m, p1, p2 := newTestManager(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.inbox <- SinkMsg{Kind: MsgEvent, Port: PortIn, Event: streamgate.Event{EventID: "9", Transactional: true}}

	for _, p := range []*pipeline.Pipeline{p1, p2} {
		ev := recvWithTimeout(t, p.Recv())
		if payloadOf(t, ev).Action != streamgate.CBAck {
			t.Errorf("expected Ack from all-None reply vector with auto_ack")
		}
	}
}
