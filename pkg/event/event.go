// Package event provides a pooled, mutable builder for streamgate.Event
// values, mirroring the allocation discipline of the teacher's message
// pool: sources acquire an event, populate it, hand it to the runtime,
// and release it back once contraflow for it has been emitted.
package event

import (
	"sync"

	"github.com/google/uuid"
	"github.com/streamgate/streamgate"
)

// Builder is a reusable, poolable value that accumulates the fields of a
// streamgate.Event before it is handed off by value to the core.
type Builder struct {
	mu            sync.Mutex
	eventID       string
	ingestNS      int64
	opMeta        map[string]string
	transactional bool
	streamID      int
	payload       any
}

func (b *Builder) SetEventID(id string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventID = id
	return b
}

// NewEventID assigns a fresh random event id and returns it.
func (b *Builder) NewEventID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventID = uuid.NewString()
	return b.eventID
}

func (b *Builder) SetIngestNS(ns int64) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ingestNS = ns
	return b
}

func (b *Builder) SetTransactional(t bool) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transactional = t
	return b
}

func (b *Builder) SetStreamID(id int) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamID = id
	return b
}

func (b *Builder) SetPayload(p any) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payload = p
	return b
}

// MergeOpMeta right-biased merges kv into the builder's op_meta trail.
func (b *Builder) MergeOpMeta(kv map[string]string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opMeta == nil {
		b.opMeta = make(map[string]string, len(kv))
	}
	for k, v := range kv {
		b.opMeta[k] = v
	}
	return b
}

// Build returns the immutable streamgate.Event snapshot. The builder
// itself is unaffected and may still be Reset/released to the pool.
func (b *Builder) Build() streamgate.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev := streamgate.Event{
		EventID:       b.eventID,
		IngestNS:      b.ingestNS,
		Transactional: b.transactional,
		StreamID:      b.streamID,
		Payload:       b.payload,
	}
	if b.opMeta != nil {
		ev.OpMeta = make(map[string]string, len(b.opMeta))
		for k, v := range b.opMeta {
			ev.OpMeta[k] = v
		}
	}
	return ev
}

// Reset clears the builder so it can be reused from the pool.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventID = ""
	b.ingestNS = 0
	b.transactional = false
	b.streamID = 0
	b.payload = nil
	for k := range b.opMeta {
		delete(b.opMeta, k)
	}
}

var builderPool = sync.Pool{
	New: func() interface{} {
		return &Builder{opMeta: make(map[string]string)}
	},
}

// Acquire gets a Builder from the pool.
func Acquire() *Builder {
	return builderPool.Get().(*Builder)
}

// Release resets b and returns it to the pool.
func Release(b *Builder) {
	b.Reset()
	builderPool.Put(b)
}

// TemplateOf captures the ContraflowTemplate for ev before it is handed
// to the user sink.
func TemplateOf(ev streamgate.Event) streamgate.ContraflowTemplate {
	t := streamgate.ContraflowTemplate{
		EventID:  ev.EventID,
		IngestNS: ev.IngestNS,
	}
	if ev.OpMeta != nil {
		t.OpMeta = make(map[string]string, len(ev.OpMeta))
		for k, v := range ev.OpMeta {
			t.OpMeta[k] = v
		}
	}
	return t
}
