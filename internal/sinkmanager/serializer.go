package sinkmanager

import (
	"fmt"
	"strconv"

	"github.com/streamgate/streamgate"
	"github.com/streamgate/streamgate/pkg/codec"
	"github.com/streamgate/streamgate/pkg/postprocess"
)

// streamCodec is the resolved (codec, postprocessors) pair for one stream.
type streamCodec struct {
	codec          streamgate.Codec
	postprocessors streamgate.Postprocessors
}

// Serializer is the Event Serializer: stream 0 always exists implicitly
// and shares the primary codec/postprocessor chain; any other stream id
// gets its own pair, created lazily on first use and retained until
// DropStream or Clear.
type Serializer struct {
	primary        streamCodec
	codecName      string
	codecConfig    map[string]any
	postprocessors []string
	connectorID    string

	streams map[int]streamCodec
}

// SetConnectorID attaches the owning connector's id, used only to label the
// SerializerFrames metric. Serializers built directly by tests never call
// this and report frames under the empty connector id.
func (s *Serializer) SetConnectorID(id string) {
	s.connectorID = id
}

// NewSerializer builds the primary (stream 0) codec/postprocessor pair
// from the given config and returns a Serializer ready to serve lazy
// per-stream pairs with the same config template.
func NewSerializer(codecName string, codecConfig map[string]any, postprocessorNames []string) (*Serializer, error) {
	pair, err := buildPair(codecName, codecConfig, postprocessorNames)
	if err != nil {
		return nil, err
	}
	return &Serializer{
		primary:        pair,
		codecName:      codecName,
		codecConfig:    codecConfig,
		postprocessors: postprocessorNames,
		streams:        make(map[int]streamCodec),
	}, nil
}

func buildPair(codecName string, codecConfig map[string]any, postprocessorNames []string) (streamCodec, error) {
	c, err := codec.Resolve(codecName, codecConfig)
	if err != nil {
		return streamCodec{}, fmt.Errorf("serializer: resolve codec: %w", err)
	}
	pps, err := postprocess.Make(postprocessorNames)
	if err != nil {
		return streamCodec{}, fmt.Errorf("serializer: make postprocessors: %w", err)
	}
	return streamCodec{codec: c, postprocessors: pps}, nil
}

// Serialize is a convenience for stream id 0.
func (s *Serializer) Serialize(value any, ingestNS int64) ([][]byte, error) {
	return s.serializeWith(s.primary, 0, value, ingestNS)
}

// SerializeForStream serializes through streamID's codec/postprocessor
// pair, constructing it lazily on first use for any id other than 0.
func (s *Serializer) SerializeForStream(value any, ingestNS int64, streamID int) ([][]byte, error) {
	if streamID == 0 {
		return s.Serialize(value, ingestNS)
	}
	pair, ok := s.streams[streamID]
	if !ok {
		var err error
		pair, err = buildPair(s.codecName, s.codecConfig, s.postprocessors)
		if err != nil {
			return nil, err
		}
		s.streams[streamID] = pair
	}
	return s.serializeWith(pair, streamID, value, ingestNS)
}

func (s *Serializer) serializeWith(pair streamCodec, streamID int, value any, ingestNS int64) ([][]byte, error) {
	encoded, err := pair.codec.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("serializer: codec error: %w", err)
	}
	frames, err := pair.postprocessors.Process(ingestNS, encoded)
	if err != nil {
		return nil, fmt.Errorf("serializer: postprocessor error: %w", err)
	}
	SerializerFrames.WithLabelValues(s.connectorID, strconv.Itoa(streamID)).Add(float64(len(frames)))
	return frames, nil
}

// DropStream discards the per-stream pair for streamID, if any.
func (s *Serializer) DropStream(streamID int) {
	delete(s.streams, streamID)
}

// Clear drops all per-stream pairs. Called on ConnectionLost so stale
// codec/postprocessor state from before the reconnect isn't reused.
func (s *Serializer) Clear() {
	for id := range s.streams {
		delete(s.streams, id)
	}
}

// StreamCount reports the number of non-default streams currently
// tracked, used by tests asserting invariant 4 (serializer holds no
// per-stream entries after ConnectionLost).
func (s *Serializer) StreamCount() int {
	return len(s.streams)
}
