// Package acquire obtains the connection an endpoint relays over, either by
// dialing with indefinite fixed-interval retry or by accepting the next
// inbound client.
package acquire

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/julienstroheker/tgc/internal/logging"
	"github.com/julienstroheker/tgc/internal/metrics"
	"github.com/julienstroheker/tgc/internal/relay"
)

// DefaultInterval is the pause between two failed dial attempts
const DefaultInterval = 5 * time.Second

const acceptRetryDelay = time.Second

// Acquirer yields one connection per call
type Acquirer interface {
	// Acquire blocks until a connection is available or ctx is done
	Acquire(ctx context.Context) (relay.Connection, error)

	// Address names the endpoint in logs
	Address() string
}

// Dialer acquires connections by dialing one address until it succeeds
type Dialer struct {
	dialer   relay.Dialer
	interval time.Duration
	timer    backoff.Timer
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// DialOptions contains configuration for Dial
type DialOptions struct {
	// Interval between attempts (default: 5s)
	Interval time.Duration

	// Timer overrides the wait between attempts (optional, for tests)
	Timer backoff.Timer

	// Logger for dial failures (optional)
	Logger *logging.Logger

	// Metrics counts attempts (optional)
	Metrics *metrics.Metrics
}

// Dial creates an Acquirer that dials d, retrying forever
func Dial(d relay.Dialer, opts *DialOptions) *Dialer {
	if opts == nil {
		opts = &DialOptions{}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Dialer{
		dialer:   d,
		interval: interval,
		timer:    opts.Timer,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Acquire attempts one connection at a time, waiting the fixed interval after
// each failure. There is no attempt limit: it only returns on success or when
// ctx is done.
func (d *Dialer) Acquire(ctx context.Context) (relay.Connection, error) {
	var conn relay.Connection
	attempt := 0

	operation := func() error {
		attempt++
		d.metrics.DialAttempt(d.Address())

		c, err := d.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		conn = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		d.logger.Error("Could not connect",
			logging.String("address", d.Address()),
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", wait),
			logging.Error(err))
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(d.interval), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, b, notify, d.timer); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	d.logger.Info("Connected",
		logging.String("address", d.Address()),
		logging.Int("attempts", attempt))
	return conn, nil
}

// Address returns the dialed address
func (d *Dialer) Address() string {
	return d.dialer.Address()
}

// Acceptor acquires connections by accepting them on a bound listener
type Acceptor struct {
	listener relay.Listener
	logger   *logging.Logger
}

// Accept creates an Acquirer over an already bound listener
func Accept(l relay.Listener, logger *logging.Logger) *Acceptor {
	return &Acceptor{
		listener: l,
		logger:   logger,
	}
}

// Acquire blocks until the next client connects. Transient accept errors are
// logged and retried; a closed listener is returned as relay.ErrListenerClosed.
func (a *Acceptor) Acquire(ctx context.Context) (relay.Connection, error) {
	for {
		conn, err := a.listener.Accept(ctx)
		if err == nil {
			a.logger.Info("Accepted connection",
				logging.String("address", a.Address()),
				logging.String("peer", conn.RemoteAddr().String()))
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, relay.ErrListenerClosed) {
			return nil, err
		}

		a.logger.Warn("Accept failed",
			logging.String("address", a.Address()),
			logging.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acceptRetryDelay):
		}
	}
}

// Address returns the bound address
func (a *Acceptor) Address() string {
	return a.listener.Addr()
}

var _ Acquirer = (*Dialer)(nil)
var _ Acquirer = (*Acceptor)(nil)
