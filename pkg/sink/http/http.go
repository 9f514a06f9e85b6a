// Package http adapts a plain net/http POST into a streamgate.Sink.
package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/streamgate/streamgate"
)

// Sink POSTs each serialized event frame to url.
type Sink struct {
	url        string
	client     *http.Client
	headers    map[string]string
	pingMethod string
	logger     streamgate.Logger
}

// New creates an HTTP Sink. headers are set on every request.
func New(url string, headers map[string]string, logger streamgate.Logger) *Sink {
	return &Sink{url: url, client: &http.Client{}, headers: headers, pingMethod: "HEAD", logger: logger}
}

// SetPingMethod overrides the HTTP method Ping uses (default HEAD).
func (s *Sink) SetPingMethod(method string) {
	s.pingMethod = method
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("http sink: serialize: %w", err)
	}
	for _, f := range frames {
		req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewBuffer(f))
		if err != nil {
			return nil, fmt.Errorf("http sink: create request: %w", err)
		}
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http sink: send request: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("http sink: unexpected status code: %d", resp.StatusCode)
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
	s.client.CloseIdleConnections()
	return nil
}
func (s *Sink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping sends a ping request (HEAD by default) and checks the status code.
func (s *Sink) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, s.pingMethod, s.url, nil)
	if err != nil {
		return fmt.Errorf("http sink: create ping request: %w", err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http sink: send ping request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http sink: ping failed with status code: %d", resp.StatusCode)
	}
	return nil
}
