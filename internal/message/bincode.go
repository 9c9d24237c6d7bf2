package message

import (
	"encoding/binary"
	"fmt"
)

// bincode layout: u64 little-endian content length, content, u8 eof.
const bincodeOverhead = 8 + 1

// BincodeCodec speaks the record layout used by existing relay peers.
type BincodeCodec struct{}

// Name implements Codec
func (BincodeCodec) Name() string { return "bincode" }

// Encode implements Codec
func (BincodeCodec) Encode(m Message) ([]byte, error) {
	out := make([]byte, bincodeOverhead+len(m.Content))
	binary.LittleEndian.PutUint64(out, uint64(len(m.Content)))
	copy(out[8:], m.Content)
	if m.EOF {
		out[len(out)-1] = 1
	}
	return out, nil
}

// Decode implements Codec
func (BincodeCodec) Decode(record []byte) (Message, error) {
	if len(record) < bincodeOverhead {
		return Message{}, fmt.Errorf("%w: record of %d bytes is shorter than the header", ErrDecode, len(record))
	}

	size := binary.LittleEndian.Uint64(record)
	if size > uint64(len(record)-bincodeOverhead) {
		return Message{}, fmt.Errorf("%w: content length %d exceeds record of %d bytes", ErrDecode, size, len(record))
	}
	end := 8 + int(size)
	if want := end + 1; want != len(record) {
		return Message{}, fmt.Errorf("%w: %d trailing bytes after record", ErrDecode, len(record)-want)
	}

	var eof bool
	switch record[end] {
	case 0:
	case 1:
		eof = true
	default:
		return Message{}, fmt.Errorf("%w: invalid eof flag 0x%02x", ErrDecode, record[end])
	}

	return New(record[8:end], eof), nil
}
