package pump

import (
	"context"
	"fmt"
	"io"

	"github.com/julienstroheker/tgc/internal/logging"
	"github.com/julienstroheker/tgc/internal/message"
	"github.com/julienstroheker/tgc/internal/queue"
)

// flusher is implemented by buffered writers
type flusher interface {
	Flush() error
}

// Sender pops messages from its inbound queue and writes them to a socket
type Sender struct {
	writer io.Writer
	in     *queue.Queue
	opts   Options
}

// NewSender creates a Sender draining in into w
func NewSender(w io.Writer, in *queue.Queue, opts *Options) *Sender {
	if opts == nil {
		opts = &Options{}
	}
	return &Sender{
		writer: w,
		in:     in,
		opts:   *opts,
	}
}

// Run writes messages until it has written an EOF message (returns nil), a
// write fails (*TransferError), ctx is done (ctx.Err()) or the inbound queue
// is closed (wraps queue.ErrClosed).
//
// A message that could not be written at all is put back at the head of the
// queue, so the next connection delivers it first.
func (s *Sender) Run(ctx context.Context) error {
	for {
		msg, err := s.in.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("pop from %s queue: %w", s.in.Name(), err)
		}
		if ctx.Err() != nil {
			s.in.Requeue(msg)
			return ctx.Err()
		}

		s.opts.Logger.Debug("From channel",
			logging.String("address", s.opts.Address),
			logging.Int("bytes", len(msg.Content)),
			logging.Bool("eof", msg.EOF),
			logging.String("content", message.Preview(msg.Content)))

		data, err := s.encode(msg)
		if err != nil {
			return &TransferError{Op: "encode", Address: s.opts.Address, Err: err}
		}

		n, err := s.write(data)
		if err != nil {
			if n == 0 {
				s.in.Requeue(msg)
			}
			return &TransferError{Op: "write", Address: s.opts.Address, Err: err}
		}

		s.opts.Logger.Debug("Wrote to stream",
			logging.String("address", s.opts.Address),
			logging.String("mode", mode(s.opts.Codec)),
			logging.Int("bytes", n))
		s.opts.Metrics.MessageSent(s.opts.Address, len(msg.Content))

		if msg.EOF {
			s.opts.Logger.Info("Received eof from queue", logging.String("address", s.opts.Address))
			return nil
		}
	}
}

// encode returns the bytes that represent msg on the wire
func (s *Sender) encode(msg message.Message) ([]byte, error) {
	if s.opts.Codec == nil {
		return msg.Content, nil
	}
	return s.opts.Codec.Encode(msg)
}

// write puts data on the wire and flushes
func (s *Sender) write(data []byte) (int, error) {
	var n int
	if len(data) > 0 {
		var err error
		n, err = s.writer.Write(data)
		if err != nil {
			return n, err
		}
	}

	if f, ok := s.writer.(flusher); ok {
		if err := f.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}
