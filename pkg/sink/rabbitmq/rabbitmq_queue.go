// Package rabbitmq adapts amqp091-go queues and rabbitmq-stream-go-client
// streams into streamgate.Sink implementations.
package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/streamgate/streamgate"
)

// QueueSink publishes serialized event frames to a classic AMQP queue.
type QueueSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  streamgate.Logger
}

// NewQueueSink dials url, declares a durable queue named queueName, and
// returns a QueueSink publishing to it.
func NewQueueSink(url, queueName string, logger streamgate.Logger) (*QueueSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq queue sink: connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue sink: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue sink: declare queue: %w", err)
	}

	return &QueueSink{conn: conn, channel: ch, queue: queueName, logger: logger}, nil
}

func (s *QueueSink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq queue sink: serialize: %w", err)
	}
	for _, f := range frames {
		err := s.channel.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
			ContentType: "application/octet-stream",
			Body:        f,
		})
		if err != nil {
			return nil, fmt.Errorf("rabbitmq queue sink: publish: %w", err)
		}
	}
	return nil, nil
}

func (s *QueueSink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *QueueSink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *QueueSink) OnStart(ctx context.Context) error { return nil }
func (s *QueueSink) OnPause(ctx context.Context) error { return nil }
func (s *QueueSink) OnResume(ctx context.Context) error { return nil }
func (s *QueueSink) OnStop(ctx context.Context) error {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
func (s *QueueSink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *QueueSink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *QueueSink) AutoAck() bool      { return true }
func (s *QueueSink) Asynchronous() bool { return false }

// Ping reports whether the AMQP connection is alive.
func (s *QueueSink) Ping(ctx context.Context) error {
	if s.conn == nil || s.conn.IsClosed() {
		return fmt.Errorf("rabbitmq queue sink: not connected")
	}
	return nil
}
