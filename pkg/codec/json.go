package codec

import (
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec struct{}

func newJSONCodec() *jsonCodec {
	return &jsonCodec{}
}

func (c *jsonCodec) Name() string { return "json" }

func (c *jsonCodec) Encode(value any) ([]byte, error) {
	return jsonAPI.Marshal(value)
}
