// Package file adapts a local append-only log file into a streamgate.Sink.
package file

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/streamgate/streamgate"
)

// Sink appends each serialized event frame, newline-delimited, to a file.
type Sink struct {
	file   *os.File
	logger streamgate.Logger
	mu     sync.Mutex
}

// New opens (or creates) filename for append.
func New(filename string, logger streamgate.Logger) (*Sink, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("file sink: open: %w", err)
	}
	return &Sink{file: f, logger: logger}, nil
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("file sink: serialize: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range frames {
		if _, err := s.file.Write(f); err != nil {
			return nil, fmt.Errorf("file sink: write: %w", err)
		}
		if _, err := s.file.Write([]byte("\n")); err != nil {
			return nil, fmt.Errorf("file sink: write newline: %w", err)
		}
	}
	return nil, nil
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *Sink) OnStart(ctx context.Context) error  { return nil }
func (s *Sink) OnPause(ctx context.Context) error  { return nil }
func (s *Sink) OnResume(ctx context.Context) error { return nil }
func (s *Sink) OnStop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
func (s *Sink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping reports whether the file descriptor is open.
func (s *Sink) Ping(ctx context.Context) error {
	if s.file == nil {
		return fmt.Errorf("file sink: file is not open")
	}
	return nil
}
