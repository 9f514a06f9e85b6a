package rabbitmq

import (
	"context"
	"fmt"

	rstreamamqp "github.com/rabbitmq/rabbitmq-stream-go-client/pkg/amqp"
	"github.com/rabbitmq/rabbitmq-stream-go-client/pkg/stream"
	"github.com/streamgate/streamgate"
)

// StreamSink publishes serialized event frames to a RabbitMQ stream.
type StreamSink struct {
	env      *stream.Environment
	producer *stream.Producer
	stream   string
	logger   streamgate.Logger
}

// NewStreamSink creates a RabbitMQ stream environment at url and a
// producer for streamName.
func NewStreamSink(url, streamName string, logger streamgate.Logger) (*StreamSink, error) {
	env, err := stream.NewEnvironment(stream.NewEnvironmentOptions().SetUri(url))
	if err != nil {
		return nil, fmt.Errorf("rabbitmq stream sink: new environment: %w", err)
	}

	producer, err := env.NewProducer(streamName, nil)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("rabbitmq stream sink: new producer: %w", err)
	}

	return &StreamSink{env: env, producer: producer, stream: streamName, logger: logger}, nil
}

func (s *StreamSink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq stream sink: serialize: %w", err)
	}
	for _, f := range frames {
		if err := s.producer.Send(rstreamamqp.NewMessage(f)); err != nil {
			return nil, fmt.Errorf("rabbitmq stream sink: send: %w", err)
		}
	}
	return nil, nil
}

func (s *StreamSink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *StreamSink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *StreamSink) OnStart(ctx context.Context) error { return nil }
func (s *StreamSink) OnPause(ctx context.Context) error { return nil }
func (s *StreamSink) OnResume(ctx context.Context) error { return nil }
func (s *StreamSink) OnStop(ctx context.Context) error {
	if err := s.producer.Close(); err != nil {
		s.env.Close()
		return fmt.Errorf("rabbitmq stream sink: close producer: %w", err)
	}
	return s.env.Close()
}
func (s *StreamSink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *StreamSink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *StreamSink) AutoAck() bool      { return true }
func (s *StreamSink) Asynchronous() bool { return false }

// Ping reports whether the stream environment is open.
func (s *StreamSink) Ping(ctx context.Context) error {
	if s.env == nil || s.env.IsClosed() {
		return fmt.Errorf("rabbitmq stream sink: not connected")
	}
	return nil
}
