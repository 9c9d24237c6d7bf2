// Package pump moves data between one half of a socket and a queue.
//
// A Receiver owns the read half and turns reads into messages; a Sender owns
// the write half and turns messages back into writes. Local endpoints use the
// raw representation (content only), remote endpoints the framed one (one
// codec record per read and per write).
package pump

import (
	"errors"
	"fmt"

	"github.com/julienstroheker/tgc/internal/logging"
	"github.com/julienstroheker/tgc/internal/message"
	"github.com/julienstroheker/tgc/internal/metrics"
)

// ChunkSize is the largest read a Receiver makes. On the framed link one read
// of this size must hold exactly one record.
const ChunkSize = 4096

// ErrPeerClosed is returned by a framed Receiver after the socket itself
// ended. The other relay instance signals a half-close with an EOF record, so
// a closed framed socket means the whole connection is gone.
var ErrPeerClosed = errors.New("peer closed the connection")

// Options configures a Receiver or Sender
type Options struct {
	// Codec frames messages; nil selects the raw representation
	Codec message.Codec

	// Address names the endpoint in logs and metrics
	Address string

	// Logger receives one line per message (optional)
	Logger *logging.Logger

	// Metrics counts messages and bytes (optional)
	Metrics *metrics.Metrics
}

// TransferError is a read, write or decode failure on an established connection
type TransferError struct {
	Op      string
	Address string
	Err     error
}

// Error implements error
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Address, e.Err)
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

func mode(codec message.Codec) string {
	if codec == nil {
		return "raw"
	}
	return codec.Name()
}
