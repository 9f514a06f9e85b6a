package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type msgpackCodec struct{}

func newMsgpackCodec() *msgpackCodec {
	return &msgpackCodec{}
}

func (c *msgpackCodec) Name() string { return "msgpack" }

func (c *msgpackCodec) Encode(value any) ([]byte, error) {
	b, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("msgpack codec: encode: %w", err)
	}
	return b, nil
}
