// Package nats adapts nats.go JetStream publishing into a streamgate.Sink.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/streamgate/streamgate"
)

// Sink publishes serialized event frames to a JetStream subject.
type Sink struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  streamgate.Logger
}

// New connects to url and returns a Sink publishing to subject.
func New(url, subject, username, password, token string, logger streamgate.Logger) (*Sink, error) {
	opts := []nats.Option{}
	if token != "" {
		opts = append(opts, nats.Token(token))
	} else if username != "" {
		opts = append(opts, nats.UserInfo(username, password))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats sink: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats sink: jetstream context: %w", err)
	}

	return &Sink{nc: nc, js: js, subject: subject, logger: logger}, nil
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("nats sink: serialize: %w", err)
	}
	for _, f := range frames {
		if _, err := s.js.Publish(s.subject, f, nats.Context(ctx)); err != nil {
			return nil, fmt.Errorf("nats sink: publish: %w", err)
		}
	}
	return nil, nil
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *Sink) OnStart(ctx context.Context) error { return nil }
func (s *Sink) OnPause(ctx context.Context) error { return nil }
func (s *Sink) OnResume(ctx context.Context) error { return nil }
func (s *Sink) OnStop(ctx context.Context) error {
	s.nc.Close()
	return nil
}
func (s *Sink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping reports whether the NATS connection is alive.
func (s *Sink) Ping(ctx context.Context) error {
	if s.nc == nil || !s.nc.IsConnected() {
		return fmt.Errorf("nats sink: not connected")
	}
	return nil
}
