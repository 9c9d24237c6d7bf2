// Package message defines the unit of data moved through the relay and the
// codecs used to carry it over the framed (remote) link.
//
// A framed read must hold exactly one complete record. Codecs never buffer a
// partial record across reads and never split several records out of one
// read; both cases surface as ErrDecode and end the connection.
package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Message is one chunk of relayed data. EOF marks the record produced by a
// zero-length read, i.e. the peer ended its stream.
type Message struct {
	Content []byte `msgpack:"content"`
	EOF     bool   `msgpack:"eof"`
}

// New copies content into a fresh Message so the caller may reuse its buffer.
func New(content []byte, eof bool) Message {
	c := make([]byte, len(content))
	copy(c, content)
	return Message{Content: c, EOF: eof}
}

// EndOfStream returns the empty EOF record.
func EndOfStream() Message {
	return Message{Content: []byte{}, EOF: true}
}

var (
	// ErrDecode is returned when a read does not hold exactly one record
	ErrDecode = errors.New("decode failure")
	// ErrUnknownCodec is returned by CodecByName for unsupported names
	ErrUnknownCodec = errors.New("unknown codec")
)

// Codec encodes a Message into one wire record and back.
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(record []byte) (Message, error)
}

// CodecByName returns the codec registered under name.
// An empty name selects the bincode codec.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "bincode":
		return BincodeCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

const previewLimit = 64

// Preview renders content for log lines: invalid UTF-8 is replaced, control
// characters are escaped and long content is cut.
func Preview(content []byte) string {
	s := strings.ToValidUTF8(string(content), "�")
	truncated := false
	if r := []rune(s); len(r) > previewLimit {
		s = string(r[:previewLimit])
		truncated = true
	}
	q := strconv.Quote(s)
	if truncated {
		q += "..."
	}
	return q
}
