package postprocess

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestLengthPrefixRoundTrip(t *testing.T) {
	pp, err := Make([]string{"length-prefix"})
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	frames, err := pp.Process(0, []byte("hello"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	got := binary.LittleEndian.Uint32(frames[0][:4])
	if got != 5 {
		t.Errorf("expected length prefix 5, got %d", got)
	}
	if !bytes.Equal(frames[0][4:], []byte("hello")) {
		t.Errorf("unexpected payload: %s", frames[0][4:])
	}
}

func TestCompressionChainSmallPassthrough(t *testing.T) {
	pp, err := Make([]string{"lz4"})
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	frames, err := pp.Process(0, []byte("tiny"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !bytes.Equal(frames[0], []byte("tiny")) {
		t.Errorf("expected passthrough for small frame, got %v", frames[0])
	}
}

func TestGzipCompressesLargeFrame(t *testing.T) {
	pp, err := Make([]string{"gzip"})
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	big := bytes.Repeat([]byte("a"), 4096)
	frames, err := pp.Process(0, big)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(frames[0]) >= len(big) {
		t.Errorf("expected compressed frame to be smaller than input")
	}
}

func TestUnknownPostprocessor(t *testing.T) {
	if _, err := Make([]string{"bogus"}); err == nil {
		t.Error("expected error for unknown postprocessor")
	}
}

func TestChainedCompressThenPrefix(t *testing.T) {
	pp, err := Make([]string{"snappy", "length-prefix"})
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	frames, err := pp.Process(0, []byte("chained data"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
}
