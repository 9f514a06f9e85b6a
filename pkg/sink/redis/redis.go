// Package redis adapts redis/go-redis/v9 streams into a streamgate.Sink.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/streamgate/streamgate"
)

// Sink publishes serialized event frames to a Redis stream via XADD.
type Sink struct {
	client *redis.Client
	stream string
	logger streamgate.Logger
}

// New dials addr and returns a Sink publishing to stream.
func New(addr, password, stream string, logger streamgate.Logger) *Sink {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Sink{client: client, stream: stream, logger: logger}
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("redis sink: serialize: %w", err)
	}
	for _, f := range frames {
		if err := s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]interface{}{"event_id": ev.EventID, "data": f},
		}).Err(); err != nil {
			return nil, fmt.Errorf("redis sink: xadd: %w", err)
		}
	}
	return nil, nil
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *Sink) OnStart(ctx context.Context) error { return s.Ping(ctx) }
func (s *Sink) OnPause(ctx context.Context) error { return nil }
func (s *Sink) OnResume(ctx context.Context) error { return nil }
func (s *Sink) OnStop(ctx context.Context) error {
	return s.client.Close()
}
func (s *Sink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return s.Ping(ctx) }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping checks connectivity to the Redis server.
func (s *Sink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis sink: ping: %w", err)
	}
	return nil
}
