// Package sinkmanager implements the per-connector sink actor: a single
// cooperative goroutine that mediates between upstream pipelines and a
// concrete streamgate.Sink, serializes outbound payloads, and emits
// contraflow with correct fan-out.
package sinkmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/streamgate/streamgate"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("streamgate-sinkmanager")

// MsgKind discriminates SinkMsg variants.
type MsgKind int

const (
	MsgConnect MsgKind = iota
	MsgDisconnect
	MsgStart
	MsgPause
	MsgResume
	MsgStop
	MsgDrain
	MsgConnectionEstablished
	MsgConnectionLost
	MsgEvent
	MsgSignal
)

// SinkMsg is one message on the bounded control/data channel.
type SinkMsg struct {
	Kind MsgKind

	Port string // Connect, Disconnect, Event: must be PortIn

	ConnectBindings []streamgate.PipelineBinding // Connect
	DisconnectURL   string                       // Disconnect

	DrainReply chan<- streamgate.SinkDrained // Drain

	Event  streamgate.Event  // Event
	Signal streamgate.Signal // Signal
}

// PortIn is the only port the sink manager accepts Connect/Disconnect/
// Event messages on.
const PortIn = "IN"

// Config carries the options the spec's §6 configuration table names.
type Config struct {
	ConnectorID        string
	QSize              int
	Codec              string
	CodecConfig        map[string]any
	Postprocessors     []string
	MetricsIntervalNS  int64
}

// Manager is the Sink Manager actor. One instance per connector sink.
type Manager struct {
	connectorID string
	sink        streamgate.Sink
	serializer  *Serializer
	logger      streamgate.Logger

	metricsIntervalNS int64
	lastMetricsFlush  int64

	inbox  chan SinkMsg
	async  *asyncReplyQueue

	pipelines           []streamgate.PipelineBinding
	drain               *drainCoordinator
	drainReply          chan<- streamgate.SinkDrained
	mergedOperatorMeta  map[string]string
	state               streamgate.SinkState
}

// New constructs a Manager in state Initialized. The returned Manager
// must have Run started in its own goroutine, and its Inbox/AsyncReplies
// handles given to callers that need to drive or feed it.
func New(cfg Config, sink streamgate.Sink, logger streamgate.Logger) (*Manager, error) {
	serializer, err := NewSerializer(cfg.Codec, cfg.CodecConfig, cfg.Postprocessors)
	if err != nil {
		return nil, fmt.Errorf("sinkmanager: %w", err)
	}
	serializer.SetConnectorID(cfg.ConnectorID)
	if dl, ok := logger.(*DefaultLogger); ok {
		logger = dl.With("connector_id", cfg.ConnectorID)
	}
	qsize := cfg.QSize
	if qsize <= 0 {
		qsize = 1
	}
	return &Manager{
		connectorID:        cfg.ConnectorID,
		sink:               sink,
		serializer:         serializer,
		logger:             logger,
		metricsIntervalNS:  cfg.MetricsIntervalNS,
		inbox:              make(chan SinkMsg, qsize),
		async:              newAsyncReplyQueue(),
		drain:              newDrainCoordinator(),
		mergedOperatorMeta: make(map[string]string),
		state:              streamgate.StateInitialized,
	}, nil
}

// Inbox is the bounded control/data channel producers send SinkMsg on.
func (m *Manager) Inbox() chan<- SinkMsg { return m.inbox }

// AsyncReplies returns the push side of the unbounded async reply queue
// a user sink uses to deliver deferred acks/fails/CB events.
func (m *Manager) AsyncReplies() AsyncReplySink { return m.async }

// AsyncReplySink is the narrow push-only view of the async reply queue
// handed to user sinks, so they cannot pop each other's replies.
type AsyncReplySink interface {
	Push(r streamgate.AsyncSinkReply)
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() streamgate.SinkState { return m.state }

// Run drives the actor loop until Stop is processed or ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		if r, ok := m.async.pop(); ok {
			m.handleAsync(ctx, r)
			continue
		}

		select {
		case <-m.async.ready():
			if r, ok := m.async.pop(); ok {
				m.handleAsync(ctx, r)
			}
		case msg := <-m.inbox:
			if !m.handle(ctx, msg) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) handleAsync(ctx context.Context, r streamgate.AsyncSinkReply) {
	handleAsyncReply(ctx, m.connectorID, r, m.pipelines, m.logger)
}

// handle dispatches one SinkMsg. Returns false when the loop should exit
// (Stop processed).
func (m *Manager) handle(ctx context.Context, msg SinkMsg) bool {
	switch msg.Kind {
	case MsgConnect:
		if msg.Port != PortIn {
			m.logger.Info("dropping Connect on non-IN port", "port", msg.Port)
			return true
		}
		m.pipelines = append(m.pipelines, msg.ConnectBindings...)

	case MsgDisconnect:
		if msg.Port != PortIn {
			m.logger.Info("dropping Disconnect on non-IN port", "port", msg.Port)
			return true
		}
		m.disconnect(msg.DisconnectURL)

	case MsgStart:
		if m.state != streamgate.StateInitialized {
			m.logger.Info("dropping Start", "state", m.state.String())
			return true
		}
		m.state = streamgate.StateRunning
		if err := m.sink.OnStart(ctx); err != nil {
			m.logger.Error("on_start failed", "error", err)
		}

	case MsgPause:
		if m.state != streamgate.StateRunning {
			m.logger.Info("dropping Pause", "state", m.state.String())
			return true
		}
		m.state = streamgate.StatePaused
		if err := m.sink.OnPause(ctx); err != nil {
			m.logger.Error("on_pause failed", "error", err)
		}

	case MsgResume:
		if m.state != streamgate.StatePaused {
			m.logger.Info("dropping Resume", "state", m.state.String())
			return true
		}
		m.state = streamgate.StateRunning
		if err := m.sink.OnResume(ctx); err != nil {
			m.logger.Error("on_resume failed", "error", err)
		}

	case MsgStop:
		if err := m.sink.OnStop(ctx); err != nil {
			m.logger.Error("on_stop failed", "error", err)
		}
		m.state = streamgate.StateStopped
		return false

	case MsgDrain:
		m.handleDrain(msg.DrainReply)

	case MsgConnectionEstablished:
		CircuitState.WithLabelValues(m.connectorID).Set(0)
		if err := m.sink.OnConnectionEstablished(ctx); err != nil {
			m.logger.Error("on_connection_established failed", "error", err)
		}
		fanOut(ctx, m.connectorID, m.pipelines, insight(streamgate.CBOpen, "", 0, m.mergedOperatorMeta), m.logger)

	case MsgConnectionLost:
		CircuitState.WithLabelValues(m.connectorID).Set(1)
		m.serializer.Clear()
		if err := m.sink.OnConnectionLost(ctx); err != nil {
			m.logger.Error("on_connection_lost failed", "error", err)
		}
		fanOut(ctx, m.connectorID, m.pipelines, insight(streamgate.CBClose, "", 0, m.mergedOperatorMeta), m.logger)

	case MsgEvent:
		if msg.Port != PortIn {
			m.logger.Info("dropping Event on non-IN port", "port", msg.Port)
			return true
		}
		m.handleEvent(ctx, msg.Event)

	case MsgSignal:
		m.handleSignal(ctx, msg.Signal)
	}
	return true
}

func (m *Manager) disconnect(url string) {
	kept := m.pipelines[:0]
	for _, b := range m.pipelines {
		if b.URL != url {
			kept = append(kept, b)
		}
	}
	m.pipelines = kept
}

func (m *Manager) handleDrain(reply chan<- streamgate.SinkDrained) {
	switch m.state {
	case streamgate.StateDrained:
		sendDrained(reply, m.logger)
	case streamgate.StateDraining:
		// already draining, ignore
	default:
		m.state = streamgate.StateDraining
		m.drainReply = reply
		if m.drain.quorumMet() {
			m.state = streamgate.StateDrained
			sendDrained(m.drainReply, m.logger)
			m.drainReply = nil
		}
	}
}

func sendDrained(reply chan<- streamgate.SinkDrained, logger streamgate.Logger) {
	if reply == nil {
		return
	}
	select {
	case reply <- streamgate.SinkDrained{}:
	default:
		logger.Error("failed to send SinkDrained: reply channel not ready")
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev streamgate.Event) {
	ctx, span := tracer.Start(ctx, "SinkEvent")
	defer span.End()

	tmpl := contraflowTemplateOf(ev)

	EventsIngested.WithLabelValues(m.connectorID).Inc()
	if m.metricsIntervalNS > 0 && ev.IngestNS-m.lastMetricsFlush >= m.metricsIntervalNS {
		m.lastMetricsFlush = ev.IngestNS
		for range m.sink.Metrics(ev.IngestNS) {
			// the returned MetricsEvent values are discarded and not
			// forwarded anywhere; this loop only drives the periodic
			// Sink.Metrics poll.
		}
	}

	mergeOpMeta(m.mergedOperatorMeta, ev.OpMeta)

	transactional := ev.Transactional
	start := time.Now()
	replies, err := m.sink.OnEvent(ctx, PortIn, ev, m.serializer, start.UnixNano())
	duration := time.Since(start)
	EventProcessingLatency.WithLabelValues(m.connectorID).Observe(duration.Seconds())

	if err != nil {
		if transactional {
			fanOut(ctx, m.connectorID, m.pipelines, cbFail(tmpl), m.logger)
		}
		return
	}

	handleReplies(ctx, m.connectorID, replies, duration, tmpl, m.pipelines, transactional && m.sink.AutoAck(), m.logger)
}

func (m *Manager) handleSignal(ctx context.Context, sig streamgate.Signal) {
	ctx, span := tracer.Start(ctx, "SinkSignal")
	defer span.End()

	switch sig.Kind {
	case streamgate.SignalStart:
		m.drain.recordStart(sig.SourceUID)
		DrainQuorumSize.WithLabelValues(m.connectorID).Set(float64(m.drain.startCount()))

	case streamgate.SignalDrain:
		m.drain.recordDrain(sig.SourceUID)
		if m.state == streamgate.StateDraining && m.drain.quorumMet() {
			m.state = streamgate.StateDrained
			if m.drainReply != nil {
				sendDrained(m.drainReply, m.logger)
				m.drainReply = nil
			}
		}
		tmpl := contraflowTemplateOf(sig.Event)
		fanOut(ctx, m.connectorID, m.pipelines, insightDrained(sig.SourceUID, tmpl.EventID, tmpl.IngestNS, tmpl.OpMeta), m.logger)
	}

	tmpl := contraflowTemplateOf(sig.Event)
	replies, err := m.sink.OnSignal(ctx, sig, m.serializer)
	if err != nil {
		m.logger.Error("on_signal failed", "error", err)
		return
	}
	handleReplies(ctx, m.connectorID, replies, 0, tmpl, m.pipelines, false, m.logger)
}

func contraflowTemplateOf(ev streamgate.Event) streamgate.ContraflowTemplate {
	t := streamgate.ContraflowTemplate{EventID: ev.EventID, IngestNS: ev.IngestNS}
	if ev.OpMeta != nil {
		t.OpMeta = make(map[string]string, len(ev.OpMeta))
		for k, v := range ev.OpMeta {
			t.OpMeta[k] = v
		}
	}
	return t
}

func mergeOpMeta(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
