// Package kafka adapts segmentio/kafka-go into a streamgate.Sink.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/streamgate/streamgate"
)

// Sink writes serialized event frames to a Kafka topic, keyed by
// event_id.
type Sink struct {
	writer    *kafka.Writer
	transport *kafka.Transport
	logger    streamgate.Logger
}

// New creates a Kafka Sink. If username is non-empty, SASL/PLAIN auth is
// configured on the transport.
func New(brokers []string, topic, username, password string, logger streamgate.Logger) *Sink {
	var transport *kafka.Transport
	if username != "" {
		transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: username, Password: password},
		}
	}
	return &Sink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			Transport:              transport,
		},
		transport: transport,
		logger:    logger,
	}
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: serialize: %w", err)
	}
	if len(frames) == 0 {
		return nil, nil
	}
	kmsgs := make([]kafka.Message, len(frames))
	for i, f := range frames {
		kmsgs[i] = kafka.Message{Key: []byte(ev.EventID), Value: f}
	}
	if err := s.writer.WriteMessages(ctx, kmsgs...); err != nil {
		return nil, fmt.Errorf("kafka sink: write: %w", err)
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
	return s.writer.Close()
}

func (s *Sink) OnConnectionLost(ctx context.Context) error { return nil }

func (s *Sink) OnConnectionEstablished(ctx context.Context) error {
	return s.Ping(ctx)
}

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping checks broker connectivity for the configured topic.
func (s *Sink) Ping(ctx context.Context) error {
	client := &kafka.Client{Addr: s.writer.Addr, Transport: s.transport, Timeout: 10 * time.Second}
	if _, err := client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{s.writer.Topic}}); err != nil {
		return fmt.Errorf("kafka sink: ping: %w", err)
	}
	return nil
}
