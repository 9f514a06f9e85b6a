package sinkmanager

import (
	"context"
	"time"

	"github.com/streamgate/streamgate"
)

// handleReplies converts the reply vector returned by OnEvent/OnSignal
// into contraflow and fans each event out to bindings.
//
// Every reply produces exactly one contraflow event except ReplyNone,
// which produces none. The template is cloned for every contraflow event
// except the last, which consumes it by move. If every reply is
// ReplyNone (including an empty vector) and sendAutoAck is true, a single
// ack contraflow carrying duration is emitted instead.
func handleReplies(
	ctx context.Context,
	connectorID string,
	replies []streamgate.SinkReply,
	duration time.Duration,
	tmpl streamgate.ContraflowTemplate,
	bindings []streamgate.PipelineBinding,
	sendAutoAck bool,
	logger streamgate.Logger,
) {
	nonNone := 0
	for _, r := range replies {
		if r.Kind != streamgate.ReplyNone {
			nonNone++
		}
	}

	if nonNone == 0 {
		if sendAutoAck {
			fanOut(ctx, connectorID, bindings, cbAckWithTiming(tmpl, duration.Nanoseconds()), logger)
		}
		return
	}

	emitted := 0
	for _, r := range replies {
		if r.Kind == streamgate.ReplyNone {
			continue
		}
		emitted++
		last := emitted == nonNone
		t := tmpl
		if !last {
			t = cloneTemplate(tmpl)
		}
		fanOut(ctx, connectorID, bindings, replyToEvent(r, t, duration), logger)
	}
}

func cloneTemplate(t streamgate.ContraflowTemplate) streamgate.ContraflowTemplate {
	cp := t
	if t.OpMeta != nil {
		cp.OpMeta = make(map[string]string, len(t.OpMeta))
		for k, v := range t.OpMeta {
			cp.OpMeta[k] = v
		}
	}
	return cp
}

func replyToEvent(r streamgate.SinkReply, t streamgate.ContraflowTemplate, duration time.Duration) streamgate.Event {
	switch r.Kind {
	case streamgate.ReplyAck:
		return cbAckWithTiming(t, duration.Nanoseconds())
	case streamgate.ReplyFail:
		return cbFail(t)
	case streamgate.ReplyCB:
		if r.Action == streamgate.CBDrained {
			return insightDrained(r.SourceUID, t.EventID, t.IngestNS, t.OpMeta)
		}
		return insight(r.Action, t.EventID, t.IngestNS, t.OpMeta)
	default:
		return insight(streamgate.CBAck, t.EventID, t.IngestNS, t.OpMeta)
	}
}

// handleAsyncReply translates one AsyncSinkReply into contraflow and fans
// it out immediately.
func handleAsyncReply(ctx context.Context, connectorID string, reply streamgate.AsyncSinkReply, bindings []streamgate.PipelineBinding, logger streamgate.Logger) {
	switch reply.Kind {
	case streamgate.ReplyAck:
		fanOut(ctx, connectorID, bindings, cbAckWithTiming(reply.Template, reply.Duration.Nanoseconds()), logger)
	case streamgate.ReplyFail:
		fanOut(ctx, connectorID, bindings, cbFail(reply.Template), logger)
	case streamgate.ReplyCB:
		fanOut(ctx, connectorID, bindings, insight(reply.Action, reply.Template.EventID, reply.Template.IngestNS, reply.Template.OpMeta), logger)
	}
}
