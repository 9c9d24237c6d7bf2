package message

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func codecs() []Codec {
	return []Codec{BincodeCodec{}, MsgpackCodec{}}
}

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"text", Message{Content: []byte("ping"), EOF: false}},
		{"eof", EndOfStream()},
		{"binary", Message{Content: []byte{0x00, 0xff, 0x10, 0x80}, EOF: false}},
		{"content with eof", Message{Content: []byte("last"), EOF: true}},
		{"large", Message{Content: bytes.Repeat([]byte("x"), 4000)}},
	}

	for _, codec := range codecs() {
		for _, tt := range tests {
			t.Run(codec.Name()+"/"+tt.name, func(t *testing.T) {
				record, err := codec.Encode(tt.msg)
				if err != nil {
					t.Fatalf("Encode failed: %v", err)
				}

				got, err := codec.Decode(record)
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				if !bytes.Equal(got.Content, tt.msg.Content) {
					t.Errorf("Expected content %q, got: %q", tt.msg.Content, got.Content)
				}
				if got.EOF != tt.msg.EOF {
					t.Errorf("Expected eof %v, got: %v", tt.msg.EOF, got.EOF)
				}
			})
		}
	}
}

func TestBincodeCodec_Layout(t *testing.T) {
	record, err := BincodeCodec{}.Encode(Message{Content: []byte("ping")})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	expected := []byte{4, 0, 0, 0, 0, 0, 0, 0, 'p', 'i', 'n', 'g', 0}
	if !bytes.Equal(record, expected) {
		t.Errorf("Expected record %v, got: %v", expected, record)
	}

	record, _ = BincodeCodec{}.Encode(EndOfStream())
	expected = []byte{0, 0, 0, 0, 0, 0, 0, 0, 1}
	if !bytes.Equal(record, expected) {
		t.Errorf("Expected eof record %v, got: %v", expected, record)
	}
}

func TestCodec_DecodeFailures(t *testing.T) {
	for _, codec := range codecs() {
		first, _ := codec.Encode(Message{Content: []byte("one")})
		second, _ := codec.Encode(Message{Content: []byte("two")})

		tests := []struct {
			name   string
			record []byte
		}{
			{"empty", []byte{}},
			{"truncated", first[:len(first)-2]},
			{"coalesced", append(append([]byte{}, first...), second...)},
		}

		for _, tt := range tests {
			t.Run(codec.Name()+"/"+tt.name, func(t *testing.T) {
				_, err := codec.Decode(tt.record)
				if err == nil {
					t.Fatal("Expected decode to fail")
				}
				if !errors.Is(err, ErrDecode) {
					t.Errorf("Expected ErrDecode, got: %v", err)
				}
			})
		}
	}
}

func TestBincodeCodec_InvalidFlag(t *testing.T) {
	_, err := BincodeCodec{}.Decode([]byte{0, 0, 0, 0, 0, 0, 0, 0, 7})
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got: %v", err)
	}
}

func TestBincodeCodec_OversizedLength(t *testing.T) {
	record := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0}
	_, err := BincodeCodec{}.Decode(record)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got: %v", err)
	}
}

func TestDecode_CopiesContent(t *testing.T) {
	record, _ := BincodeCodec{}.Encode(Message{Content: []byte("abc")})
	msg, err := BincodeCodec{}.Decode(record)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	record[8] = 'z'
	if string(msg.Content) != "abc" {
		t.Errorf("Expected decoded content to be independent of the read buffer, got: %q", msg.Content)
	}
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"", "bincode", false},
		{"bincode", "bincode", false},
		{"MSGPACK", "msgpack", false},
		{"json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			codec, err := CodecByName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCodec) {
					t.Errorf("Expected ErrUnknownCodec, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if codec.Name() != tt.expected {
				t.Errorf("Expected codec %s, got: %s", tt.expected, codec.Name())
			}
		})
	}
}

func TestPreview(t *testing.T) {
	if got := Preview([]byte("ping\n")); got != `"ping\n"` {
		t.Errorf("Expected quoted preview, got: %s", got)
	}

	if got := Preview([]byte{0xff, 'a'}); !strings.Contains(got, "a") {
		t.Errorf("Expected invalid bytes to be replaced, got: %s", got)
	}

	long := Preview(bytes.Repeat([]byte("y"), 200))
	if !strings.HasSuffix(long, "...") {
		t.Errorf("Expected long preview to be cut, got: %s", long)
	}
}

func TestNew_CopiesBuffer(t *testing.T) {
	buf := []byte("data")
	msg := New(buf, false)
	buf[0] = 'X'

	if string(msg.Content) != "data" {
		t.Errorf("Expected copied content, got: %q", msg.Content)
	}
}
