package packer

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeMessage encodes v as msgpack, using json struct tags for field names.
func EncodeMessage(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeMessage decodes data produced by EncodeMessage into v.
func DecodeMessage(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")

	return dec.Decode(v)
}
