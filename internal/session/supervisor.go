// Package session runs the relay loop of one endpoint: acquire a connection,
// pump both directions until either side stops, tear down, and start over.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/julienstroheker/tgc/internal/acquire"
	"github.com/julienstroheker/tgc/internal/endpoint"
	"github.com/julienstroheker/tgc/internal/logging"
	"github.com/julienstroheker/tgc/internal/message"
	"github.com/julienstroheker/tgc/internal/metrics"
	"github.com/julienstroheker/tgc/internal/pump"
	"github.com/julienstroheker/tgc/internal/queue"
	"github.com/julienstroheker/tgc/internal/relay"
)

// Supervisor owns one endpoint for the lifetime of a relay instance
type Supervisor struct {
	endpoint endpoint.Endpoint
	acquirer acquire.Acquirer
	outbound *queue.Queue
	inbound  *queue.Queue
	codec    message.Codec
	lazy     bool
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// Options configures a Supervisor
type Options struct {
	// Endpoint is the side of the relay this supervisor serves
	Endpoint endpoint.Endpoint

	// Acquirer yields the connection of every iteration
	Acquirer acquire.Acquirer

	// Outbound receives what is read from the endpoint
	Outbound *queue.Queue

	// Inbound holds what must be written to the endpoint
	Inbound *queue.Queue

	// Codec frames remote endpoints (default: bincode); ignored for local ones
	Codec message.Codec

	// Lazy delays acquiring a connection until Inbound has data
	Lazy bool

	// Logger (optional)
	Logger *logging.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// New creates a Supervisor
func New(opts *Options) *Supervisor {
	var codec message.Codec
	if opts.Endpoint.Role.Framed() {
		codec = opts.Codec
		if codec == nil {
			codec = message.BincodeCodec{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Supervisor{
		endpoint: opts.Endpoint,
		acquirer: opts.Acquirer,
		outbound: opts.Outbound,
		inbound:  opts.Inbound,
		codec:    codec,
		lazy:     opts.Lazy,
		logger: logger.With(
			logging.String("endpoint", opts.Endpoint.Address),
			logging.String("role", opts.Endpoint.Role.String())),
		metrics: opts.Metrics,
	}
}

// Run loops forever: acquire a connection, serve it, tear it down, repeat.
// It returns ctx.Err() once ctx is done and a *FatalError if the relay
// instance cannot go on. Transfer and decode failures only end the current
// connection.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("Supervisor started", logging.Bool("lazy", s.lazy))

	for {
		if s.lazy {
			if err := s.inbound.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &FatalError{Endpoint: s.endpoint.Address, Err: err}
			}
		}

		conn, err := s.acquirer.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &FatalError{Endpoint: s.endpoint.Address, Err: err}
		}

		err = s.Serve(ctx, conn)
		if IsFatal(err) {
			s.logger.Error("Supervisor stopped", logging.Error(err))
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Error("Received connection error", logging.Error(err))
		}

		s.logger.Info("Reconnecting")
	}
}

const (
	receivePump = "receive"
	sendPump    = "send"
)

type pumpResult struct {
	name string
	err  error
}

// Serve relays over conn until the session ends, then closes conn and waits
// for the other pump. A session ends when the send pump stops, when either
// pump fails, or when the framed peer closed its socket. A raw peer that only
// half-closed is still written to until an EOF message comes through the
// inbound queue. It returns nil when the session ended with an EOF, the
// failure that ended it otherwise, wrapped in a *FatalError when it breaks
// the relay instance.
func (s *Supervisor) Serve(ctx context.Context, conn relay.Connection) error {
	logger := s.logger.With(
		logging.String("session", uuid.New().String()),
		logging.String("peer", conn.RemoteAddr().String()))
	logger.Info("Session active")
	s.metrics.SessionStarted(s.endpoint.Address)

	opts := &pump.Options{
		Codec:   s.codec,
		Address: s.endpoint.Address,
		Logger:  logger,
		Metrics: s.metrics,
	}
	receiver := pump.NewReceiver(conn, s.outbound, opts)
	sender := pump.NewSender(conn, s.inbound, opts)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan pumpResult, 2)
	go runPump(receivePump, results, receiver.Run)
	go runPump(sendPump, results, func() error {
		return sender.Run(sessionCtx)
	})

	first := <-results
	var second pumpResult
	halfClosed := first.name == receivePump && first.err == nil
	if halfClosed {
		// the peer only stopped sending; keep writing until the inbound stream ends
		logger.Debug("Peer half-closed, waiting for the send pump")
		first, second = <-results, first
	}
	logger.Debug("Tearing down", logging.String("first_pump", first.name))

	// cancel unblocks a queue pop, Close unblocks a socket read or write
	cancel()
	if err := conn.Close(); err != nil {
		logger.Debug("Close failed", logging.Error(err))
	}
	if !halfClosed {
		second = <-results
	}
	if errors.Is(first.err, pump.ErrPeerClosed) {
		first.err = nil
	}

	var result *multierror.Error
	if first.err != nil && !isTeardown(first.err) {
		result = multierror.Append(result, fmt.Errorf("%s pump: %w", first.name, first.err))
	}
	// the second pump was stopped by the teardown; only its fatal errors count
	if second.err != nil && escalates(second.err) {
		result = multierror.Append(result, fmt.Errorf("%s pump: %w", second.name, second.err))
	}

	err := result.ErrorOrNil()
	if err == nil {
		logger.Info("Session ended")
		return nil
	}

	for _, e := range result.Errors {
		if escalates(e) {
			return &FatalError{Endpoint: s.endpoint.Address, Err: err}
		}
	}
	s.metrics.SessionFailed(s.endpoint.Address)
	return err
}

// runPump runs fn and reports its outcome, turning a panic into a *PanicError
func runPump(name string, results chan<- pumpResult, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			results <- pumpResult{name: name, err: &PanicError{Pump: name, Value: r, Stack: debug.Stack()}}
		}
	}()
	results <- pumpResult{name: name, err: fn()}
}
