// Package stdout implements the simplest possible streamgate.Sink: it
// serializes each event through its own stream (ev.StreamID) and prints
// the resulting frames to standard output.
package stdout

import (
	"context"
	"fmt"

	"github.com/streamgate/streamgate"
)

// Sink writes every event's serialized frames to stdout.
type Sink struct {
	logger streamgate.Logger
}

// New creates a stdout Sink. logger may be nil.
func New(logger streamgate.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("stdout sink: serialize: %w", err)
	}
	for _, f := range frames {
		fmt.Println(string(f))
	}
	if s.logger != nil {
		s.logger.Debug("wrote event to stdout", "event_id", ev.EventID, "frames", len(frames))
	}
	return nil, nil
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *Sink) OnStart(ctx context.Context) error                 { return nil }
func (s *Sink) OnPause(ctx context.Context) error                 { return nil }
func (s *Sink) OnResume(ctx context.Context) error                { return nil }
func (s *Sink) OnStop(ctx context.Context) error                  { return nil }
func (s *Sink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }
