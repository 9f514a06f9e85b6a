// Package pipeline provides a minimal in-process stand-in for a full
// pipeline runtime: enough to exercise PipelineBinding and contraflow
// delivery in tests and single-node demos.
package pipeline

import (
	"context"
	"fmt"

	"github.com/streamgate/streamgate"
)

// Pipeline is a channel-backed streamgate.Pipeline. SendInsight pushes
// the contraflow event onto a buffered channel a test or demo consumer
// drains with Recv.
type Pipeline struct {
	url string
	ch  chan streamgate.Event
}

// New creates a Pipeline addressable at url with the given contraflow
// buffer depth.
func New(url string, depth int) *Pipeline {
	return &Pipeline{url: url, ch: make(chan streamgate.Event, depth)}
}

// Address returns the URL this pipeline is addressed by, used for dedup
// on Disconnect.
func (p *Pipeline) Address() string { return p.url }

// SendInsight delivers a contraflow event, blocking if the buffer is
// full unless ctx is cancelled first.
func (p *Pipeline) SendInsight(ctx context.Context, ev streamgate.Event) error {
	select {
	case p.ch <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline %s: send_insight: %w", p.url, ctx.Err())
	}
}

// Recv is the channel a consumer reads delivered contraflow events from.
func (p *Pipeline) Recv() <-chan streamgate.Event { return p.ch }

// Binding returns the streamgate.PipelineBinding for this pipeline.
func (p *Pipeline) Binding() streamgate.PipelineBinding {
	return streamgate.PipelineBinding{URL: p.url, Address: p}
}
