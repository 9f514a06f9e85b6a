// Package postprocess builds named postprocessor chains applied to codec
// output before it leaves the sink. Chains may buffer across calls (a
// length-prefix framer holds nothing, but a future batching stage could),
// so returning zero frames from Process is valid, not an error.
package postprocess

import (
	"fmt"

	"github.com/streamgate/streamgate"
)

// stage is one link in a postprocessor chain.
type stage interface {
	apply(ingestNS int64, data []byte) ([]byte, error)
}

type chain struct {
	stages []stage
}

func (c *chain) Process(ingestNS int64, data []byte) ([][]byte, error) {
	out := data
	for _, s := range c.stages {
		var err error
		out, err = s.apply(ingestNS, out)
		if err != nil {
			return nil, err
		}
	}
	return [][]byte{out}, nil
}

// Make builds an ordered streamgate.Postprocessors chain from names.
// Recognized names: "length-prefix", "snappy", "lz4", "zstd", "gzip".
func Make(names []string) (streamgate.Postprocessors, error) {
	c := &chain{}
	for _, name := range names {
		s, err := newStage(name)
		if err != nil {
			return nil, fmt.Errorf("postprocess: %w", err)
		}
		c.stages = append(c.stages, s)
	}
	return c, nil
}

func newStage(name string) (stage, error) {
	switch name {
	case "length-prefix":
		return lengthPrefixStage{}, nil
	case "snappy":
		return newCompressionStage("snappy")
	case "lz4":
		return newCompressionStage("lz4")
	case "zstd":
		return newCompressionStage("zstd")
	case "gzip":
		return newCompressionStage("gzip")
	default:
		return nil, fmt.Errorf("unknown postprocessor %q", name)
	}
}
