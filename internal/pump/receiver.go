package pump

import (
	"errors"
	"fmt"
	"io"

	"github.com/julienstroheker/tgc/internal/logging"
	"github.com/julienstroheker/tgc/internal/message"
	"github.com/julienstroheker/tgc/internal/queue"
)

// Receiver reads from a socket and pushes messages onto its outbound queue
type Receiver struct {
	reader io.Reader
	out    *queue.Queue
	opts   Options
}

// NewReceiver creates a Receiver over r feeding out
func NewReceiver(r io.Reader, out *queue.Queue, opts *Options) *Receiver {
	if opts == nil {
		opts = &Options{}
	}
	return &Receiver{
		reader: r,
		out:    out,
		opts:   *opts,
	}
}

// Run reads until the stream ends or fails. It returns nil after pushing the
// EOF message (ErrPeerClosed when the framed socket itself ended), a
// *TransferError on a read or decode failure, and an error wrapping
// queue.ErrClosed if the outbound queue is gone.
func (r *Receiver) Run() error {
	buf := make([]byte, ChunkSize)

	for {
		n, readErr := r.reader.Read(buf)
		if n == 0 && readErr != nil && !errors.Is(readErr, io.EOF) {
			return &TransferError{Op: "read", Address: r.opts.Address, Err: readErr}
		}

		msg, err := r.toMessage(buf[:n])
		if err != nil {
			return &TransferError{Op: "decode", Address: r.opts.Address, Err: err}
		}

		r.opts.Logger.Debug("Received from network",
			logging.String("address", r.opts.Address),
			logging.String("mode", mode(r.opts.Codec)),
			logging.Int("bytes", len(msg.Content)),
			logging.Bool("eof", msg.EOF),
			logging.String("content", message.Preview(msg.Content)))
		r.opts.Metrics.MessageReceived(r.opts.Address, len(msg.Content))

		if err := r.out.Push(msg); err != nil {
			return fmt.Errorf("push to %s queue: %w", r.out.Name(), err)
		}

		if msg.EOF {
			r.opts.Logger.Info("Stream ended", logging.String("address", r.opts.Address))
			if r.opts.Codec != nil && n == 0 {
				return ErrPeerClosed
			}
			return nil
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return &TransferError{Op: "read", Address: r.opts.Address, Err: readErr}
		}
	}
}

// toMessage builds the message for one read. A zero-length read is the end of
// the stream on both representations.
func (r *Receiver) toMessage(data []byte) (message.Message, error) {
	if r.opts.Codec == nil {
		return message.New(data, len(data) == 0), nil
	}
	if len(data) == 0 {
		return message.EndOfStream(), nil
	}
	return r.opts.Codec.Decode(data)
}
