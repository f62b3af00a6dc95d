package tradeeventspb

import "encoding/json"

const jsonCodecName = "json"

// jsonCodec lets the trade-events stream carry plain JSON frames over gRPC
// instead of requiring a protobuf-generated marshaler for this one feed.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return jsonCodecName }
