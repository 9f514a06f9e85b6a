package codec

import (
	"fmt"

	"github.com/hamba/avro/v2"
)

type avroCodec struct {
	schema avro.Schema
}

func newAvroCodec(schemaStr string) (*avroCodec, error) {
	s, err := avro.Parse(schemaStr)
	if err != nil {
		return nil, fmt.Errorf("avro codec: parse schema: %w", err)
	}
	return &avroCodec{schema: s}, nil
}

func (c *avroCodec) Name() string { return "avro" }

func (c *avroCodec) Encode(value any) ([]byte, error) {
	b, err := avro.Marshal(c.schema, value)
	if err != nil {
		return nil, fmt.Errorf("avro codec: encode: %w", err)
	}
	return b, nil
}
