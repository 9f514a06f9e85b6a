package sinkmanager

import (
	"context"

	"github.com/streamgate/streamgate"
)

// fanOut sends ev to every pipeline binding. If more than one binding is
// connected, the event is cloned for all but the last, which receives the
// original by move — the common case is a single binding, so this costs
// one clone fewer than cloning for every send unconditionally.
func fanOut(ctx context.Context, connectorID string, bindings []streamgate.PipelineBinding, ev streamgate.Event, logger streamgate.Logger) {
	n := len(bindings)
	if n == 0 {
		return
	}
	ContraflowEmitted.WithLabelValues(connectorID, contraflowAction(ev)).Add(float64(n))
	for i := 0; i < n-1; i++ {
		if err := bindings[i].Address.SendInsight(ctx, ev.Clone()); err != nil {
			logger.Error("contraflow send failed", "pipeline", bindings[i].URL, "error", err)
		}
	}
	if err := bindings[n-1].Address.SendInsight(ctx, ev); err != nil {
		logger.Error("contraflow send failed", "pipeline", bindings[n-1].URL, "error", err)
	}
}

// contraflowAction extracts the CB action label from ev's ackPayload, for
// the ContraflowEmitted metric. Events built outside this file never reach
// fanOut, so the type assertion always holds.
func contraflowAction(ev streamgate.Event) string {
	p, ok := ev.Payload.(ackPayload)
	if !ok {
		return "unknown"
	}
	switch p.Action {
	case streamgate.CBOpen:
		return "open"
	case streamgate.CBClose:
		return "close"
	case streamgate.CBAck:
		return "ack"
	case streamgate.CBFail:
		return "fail"
	case streamgate.CBDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// cbAckWithTiming synthesizes an Ack contraflow event carrying the
// sink-reported processing duration.
func cbAckWithTiming(t streamgate.ContraflowTemplate, durationNS int64) streamgate.Event {
	ev := streamgate.Event{
		EventID:       t.EventID,
		IngestNS:      t.IngestNS,
		OpMeta:        t.OpMeta,
		Transactional: true,
	}
	ev.Kind = &streamgate.Signal{Kind: streamgate.SignalOther}
	ev.Payload = ackPayload{Action: streamgate.CBAck, DurationNS: durationNS}
	return ev
}

// cbFail synthesizes a Fail contraflow event for the template's event.
func cbFail(t streamgate.ContraflowTemplate) streamgate.Event {
	return streamgate.Event{
		EventID:       t.EventID,
		IngestNS:      t.IngestNS,
		OpMeta:        t.OpMeta,
		Transactional: true,
		Payload:       ackPayload{Action: streamgate.CBFail},
	}
}

// insight synthesizes a CB(action) contraflow event from the given
// op_meta trail — either a single event's (or signal's) own trail, or the
// connector's merged_operator_meta for connection-wide open/close signals.
func insight(action streamgate.CBAction, eventID string, ingestNS int64, opMeta map[string]string) streamgate.Event {
	return streamgate.Event{
		EventID:  eventID,
		IngestNS: ingestNS,
		OpMeta:   opMeta,
		Payload:  ackPayload{Action: action},
	}
}

// insightDrained is insight specialized for CB(Drained(uid)).
func insightDrained(sourceUID string, eventID string, ingestNS int64, opMeta map[string]string) streamgate.Event {
	ev := insight(streamgate.CBDrained, eventID, ingestNS, opMeta)
	ev.Payload = ackPayload{Action: streamgate.CBDrained, SourceUID: sourceUID}
	return ev
}

// ackPayload is the contraflow event's payload: the CB action plus any
// action-specific data a pipeline reading contraflow needs.
type ackPayload struct {
	Action     streamgate.CBAction
	DurationNS int64
	SourceUID  string
}
