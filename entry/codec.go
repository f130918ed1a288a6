package entry

import "encoding/json"

// Codec encodes function results into the payload bytes stored inside an
// entry and decodes them back. Implementations must round-trip: decoding
// encoded bytes yields a value equal to the original.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte, out any) error
}

// JSONCodec is the default payload codec.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(b []byte, out any) error {
	return json.Unmarshal(b, out)
}
