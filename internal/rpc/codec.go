// Package rpc defines the connect procedures and JSON messages shared by the
// agileboard server and its clients.
package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// Messages are plain Go structs, so they travel with encoding/json instead of
// the protobuf codecs connect registers by default.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

// WithJSON is the codec option for every handler and client of this package.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
