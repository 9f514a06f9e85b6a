package postprocess

import "encoding/binary"

// lengthPrefixStage is pure framing, by nature ungrounded in any
// third-party library: a 4-byte little-endian length header followed by
// the payload, the same header layout the teacher uses ahead of its own
// compressed frames.
type lengthPrefixStage struct{}

func (lengthPrefixStage) apply(ingestNS int64, data []byte) ([]byte, error) {
	out := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(data)))
	copy(out[4:], data)
	return out, nil
}
