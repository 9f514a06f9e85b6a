// Package codec resolves named wire codecs for the event serializer.
// Only the codec's interface is consumed by the sink manager core; the
// concrete algorithms here give the runtime something real to encode
// through.
package codec

import (
	"fmt"

	"github.com/streamgate/streamgate"
)

// Resolve returns the streamgate.Codec registered under name. config
// carries codec-specific options, e.g. the Avro schema string.
func Resolve(name string, config map[string]any) (streamgate.Codec, error) {
	switch name {
	case "", "json":
		return newJSONCodec(), nil
	case "avro":
		schema, _ := config["schema"].(string)
		if schema == "" {
			return nil, fmt.Errorf("avro codec: missing \"schema\" in config")
		}
		return newAvroCodec(schema)
	case "msgpack":
		return newMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
