package message

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec encodes records as a two-field msgpack map.
type MsgpackCodec struct{}

// Name implements Codec
func (MsgpackCodec) Name() string { return "msgpack" }

// Encode implements Codec
func (MsgpackCodec) Encode(m Message) ([]byte, error) {
	if m.Content == nil {
		m.Content = []byte{}
	}
	return msgpack.Marshal(&m)
}

// Decode implements Codec
func (MsgpackCodec) Decode(record []byte) (Message, error) {
	r := bytes.NewReader(record)
	dec := msgpack.NewDecoder(r)

	var m Message
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if r.Len() != 0 {
		return Message{}, fmt.Errorf("%w: %d trailing bytes after record", ErrDecode, r.Len())
	}
	if m.Content == nil {
		m.Content = []byte{}
	}
	return m, nil
}
