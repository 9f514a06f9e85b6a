// Package failover wraps a primary streamgate.Sink and fallback sinks,
// trying each in turn (or round-robin) until one accepts the event.
package failover

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/streamgate/streamgate"
)

// Sink wraps a primary sink and multiple fallback sinks.
type Sink struct {
	primary   streamgate.Sink
	fallbacks []streamgate.Sink
	logger    streamgate.Logger
	strategy  string // "failover" (default), "round-robin"
	counter   uint64
}

// New builds a Sink using the default failover strategy.
func New(primary streamgate.Sink, fallbacks []streamgate.Sink, logger streamgate.Logger) *Sink {
	return &Sink{primary: primary, fallbacks: fallbacks, strategy: "failover", logger: logger}
}

// NewWithStrategy builds a Sink using strategy ("failover" or "round-robin").
func NewWithStrategy(primary streamgate.Sink, fallbacks []streamgate.Sink, strategy string, logger streamgate.Logger) *Sink {
	return &Sink{primary: primary, fallbacks: fallbacks, strategy: strategy, logger: logger}
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	if s.strategy == "round-robin" {
		return s.onEventRoundRobin(ctx, port, ev, ser, startNS)
	}
	return s.onEventFailover(ctx, port, ev, ser, startNS)
}

func (s *Sink) onEventFailover(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	replies, err := s.primary.OnEvent(ctx, port, ev, ser, startNS)
	if err == nil {
		return replies, nil
	}

	if s.logger != nil {
		s.logger.Warn("primary sink failed, trying fallbacks", "error", err)
	}

	for i, fallback := range s.fallbacks {
		replies, err = fallback.OnEvent(ctx, port, ev, ser, startNS)
		if err == nil {
			if s.logger != nil {
				s.logger.Info("fallback sink succeeded", "index", i)
			}
			return replies, nil
		}
		if s.logger != nil {
			s.logger.Warn("fallback sink failed", "index", i, "error", err)
		}
	}

	return nil, fmt.Errorf("failover sink: all sinks failed: %w", err)
}

func (s *Sink) onEventRoundRobin(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	total := len(s.fallbacks) + 1
	idx := int(atomic.AddUint64(&s.counter, 1) % uint64(total))

	target := s.primary
	if idx != 0 {
		target = s.fallbacks[idx-1]
	}

	replies, err := target.OnEvent(ctx, port, ev, ser, startNS)
	if err == nil {
		return replies, nil
	}

	if s.logger != nil {
		s.logger.Warn("round-robin target failed, falling back to sequential", "index", idx, "error", err)
	}
	return s.onEventFailover(ctx, port, ev, ser, startNS)
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	replies, err := s.primary.OnSignal(ctx, sig, ser)
	if err == nil {
		return replies, nil
	}
	for _, fallback := range s.fallbacks {
		if replies, err = fallback.OnSignal(ctx, sig, ser); err == nil {
			return replies, nil
		}
	}
	return nil, fmt.Errorf("failover sink: all sinks failed signal: %w", err)
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent {
	return s.primary.Metrics(timestamp)
}

func (s *Sink) OnStart(ctx context.Context) error {
	err := s.primary.OnStart(ctx)
	for _, fallback := range s.fallbacks {
		if e := fallback.OnStart(ctx); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (s *Sink) OnPause(ctx context.Context) error {
	return s.primary.OnPause(ctx)
}

func (s *Sink) OnResume(ctx context.Context) error {
	return s.primary.OnResume(ctx)
}

func (s *Sink) OnStop(ctx context.Context) error {
	var lastErr error
	if err := s.primary.OnStop(ctx); err != nil {
		lastErr = err
	}
	for _, fallback := range s.fallbacks {
		if err := fallback.OnStop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (s *Sink) OnConnectionLost(ctx context.Context) error {
	return s.primary.OnConnectionLost(ctx)
}

func (s *Sink) OnConnectionEstablished(ctx context.Context) error {
	return s.primary.OnConnectionEstablished(ctx)
}

func (s *Sink) AutoAck() bool      { return s.primary.AutoAck() }
func (s *Sink) Asynchronous() bool { return s.primary.Asynchronous() }

// pinger is implemented by concrete sinks that expose an explicit health
// check beyond the streamgate.Sink lifecycle hooks.
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the primary sink's health, if it exposes one, otherwise
// falls back to OnConnectionEstablished as a liveness probe.
func (s *Sink) Ping(ctx context.Context) error {
	if p, ok := s.primary.(pinger); ok {
		return p.Ping(ctx)
	}
	return s.primary.OnConnectionEstablished(ctx)
}
