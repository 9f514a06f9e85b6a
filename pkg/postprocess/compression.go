package postprocess

import (
	"fmt"

	"github.com/streamgate/streamgate/pkg/compression"
)

// compressionStage wraps the teacher's compression.Compressor. Below the
// same threshold the teacher's buffer encoder used, compressing tiny
// frames isn't worth the header overhead, so small frames pass through
// uncompressed.
type compressionStage struct {
	compressor compression.Compressor
}

const compressionThreshold = 1024

func newCompressionStage(algo string) (*compressionStage, error) {
	c, err := compression.NewCompressor(compression.Algorithm(algo))
	if err != nil {
		return nil, fmt.Errorf("compression stage %q: %w", algo, err)
	}
	return &compressionStage{compressor: c}, nil
}

func (s *compressionStage) apply(ingestNS int64, data []byte) ([]byte, error) {
	if len(data) < compressionThreshold {
		return data, nil
	}
	compressed, err := s.compressor.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if len(compressed) >= len(data) {
		return data, nil
	}
	return compressed, nil
}
