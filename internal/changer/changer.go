// Package changer wires the two endpoints of a relay instance to a shared
// pair of queues: in listen mode both endpoints are accepted, in connect mode
// both are dialed. The local endpoint speaks raw TCP, the remote endpoint
// carries framed messages to the other relay instance.
package changer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julienstroheker/tgc/internal/acquire"
	"github.com/julienstroheker/tgc/internal/config"
	"github.com/julienstroheker/tgc/internal/endpoint"
	"github.com/julienstroheker/tgc/internal/logging"
	"github.com/julienstroheker/tgc/internal/message"
	"github.com/julienstroheker/tgc/internal/metrics"
	"github.com/julienstroheker/tgc/internal/queue"
	"github.com/julienstroheker/tgc/internal/relay"
	"github.com/julienstroheker/tgc/internal/session"
)

// Options configures a relay instance
type Options struct {
	// LocalAddr is the plain TCP endpoint
	LocalAddr string

	// RemoteAddr is the framed endpoint shared with the other instance
	RemoteAddr string

	// Interval between dial attempts in connect mode (default: 5s)
	Interval time.Duration

	// Lazy delays dialing the local endpoint in connect mode until the remote
	// side sent something
	Lazy bool

	// Codec frames the remote link (default: bincode)
	Codec message.Codec

	// Logger (optional)
	Logger *logging.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// Instance is a wired relay instance ready to run
type Instance struct {
	mode      config.Mode
	queues    *queue.Pair
	local     *session.Supervisor
	remote    *session.Supervisor
	localAt   string
	remoteAt  string
	listeners []relay.Listener
	logger    *logging.Logger
}

// Listen binds both endpoints. A bind failure is returned and never retried.
func Listen(ctx context.Context, opts *Options) (*Instance, error) {
	opts = withDefaults(opts)

	localLn, err := relay.Listen(ctx, opts.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind local endpoint %s: %w", opts.LocalAddr, err)
	}
	remoteLn, err := relay.Listen(ctx, opts.RemoteAddr)
	if err != nil {
		_ = localLn.Close()
		return nil, fmt.Errorf("failed to bind remote endpoint %s: %w", opts.RemoteAddr, err)
	}

	opts.Logger.Info("Listening",
		logging.String("local", localLn.Addr()),
		logging.String("remote", remoteLn.Addr()))

	inst := wire(config.ModeListen, opts,
		acquire.Accept(localLn, opts.Logger),
		acquire.Accept(remoteLn, opts.Logger),
		false)
	inst.localAt = localLn.Addr()
	inst.remoteAt = remoteLn.Addr()
	inst.listeners = []relay.Listener{localLn, remoteLn}
	return inst, nil
}

// Connect prepares dialers for both endpoints. Nothing is dialed until Run.
func Connect(opts *Options) (*Instance, error) {
	opts = withDefaults(opts)

	localDialer, err := relay.NewDialer(opts.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid local endpoint: %w", err)
	}
	remoteDialer, err := relay.NewDialer(opts.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid remote endpoint: %w", err)
	}

	dialOpts := &acquire.DialOptions{
		Interval: opts.Interval,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	}
	inst := wire(config.ModeConnect, opts,
		acquire.Dial(localDialer, dialOpts),
		acquire.Dial(remoteDialer, dialOpts),
		opts.Lazy)
	inst.localAt = localDialer.Address()
	inst.remoteAt = remoteDialer.Address()
	return inst, nil
}

// wire creates the queue pair and crosses it over both supervisors
func wire(mode config.Mode, opts *Options, local, remote acquire.Acquirer, lazy bool) *Instance {
	queues := queue.NewPair()
	opts.Metrics.TrackQueue(queues.ToRemote)
	opts.Metrics.TrackQueue(queues.ToLocal)

	return &Instance{
		mode:   mode,
		queues: queues,
		local: session.New(&session.Options{
			Endpoint: endpoint.Endpoint{Address: local.Address(), Role: endpoint.Local},
			Acquirer: local,
			Outbound: queues.ToRemote,
			Inbound:  queues.ToLocal,
			Lazy:     lazy,
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
		}),
		remote: session.New(&session.Options{
			Endpoint: endpoint.Endpoint{Address: remote.Address(), Role: endpoint.Remote},
			Acquirer: remote,
			Outbound: queues.ToLocal,
			Inbound:  queues.ToRemote,
			Codec:    opts.Codec,
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
		}),
		logger: opts.Logger,
	}
}

// LocalAddr returns the local endpoint address, with the real port once bound
func (i *Instance) LocalAddr() string {
	return i.localAt
}

// RemoteAddr returns the remote endpoint address, with the real port once bound
func (i *Instance) RemoteAddr() string {
	return i.remoteAt
}

// Run relays until ctx is done (returns nil) or a supervisor hits a fatal
// error (returned). Queues and listeners are closed on the way out.
func (i *Instance) Run(ctx context.Context) error {
	i.logger.Info("Relay started",
		logging.String("mode", i.mode.String()),
		logging.String("local", i.localAt),
		logging.String("remote", i.remoteAt))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return i.local.Run(gctx)
	})
	g.Go(func() error {
		return i.remote.Run(gctx)
	})

	err := g.Wait()

	i.queues.Close()
	for _, l := range i.listeners {
		_ = l.Close()
	}

	if ctx.Err() != nil && (err == nil || errors.Is(err, ctx.Err())) {
		i.logger.Info("Relay stopped")
		return nil
	}
	return err
}

// Run starts the relay instance described by cfg, plus the metrics server
// when cfg.MetricsAddr is set, and blocks like Instance.Run.
func Run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	codec, err := message.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	opts := &Options{
		LocalAddr:  cfg.LocalAddr,
		RemoteAddr: cfg.RemoteAddr,
		Interval:   cfg.Interval,
		Lazy:       !cfg.Reconnect,
		Codec:      codec,
		Logger:     logger,
		Metrics:    m,
	}

	var run func(ctx context.Context, opts *Options) error
	switch cfg.Mode {
	case config.ModeListen:
		run = RunListen
	case config.ModeConnect:
		run = RunConnect
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	if m == nil {
		return run(ctx, opts)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.MetricsAddr, m, logger)
	})
	g.Go(func() error {
		return run(gctx, opts)
	})
	return g.Wait()
}

// RunListen binds both endpoints and relays until ctx is done
func RunListen(ctx context.Context, opts *Options) error {
	inst, err := Listen(ctx, opts)
	if err != nil {
		return err
	}
	return inst.Run(ctx)
}

// RunConnect dials both endpoints and relays until ctx is done
func RunConnect(ctx context.Context, opts *Options) error {
	inst, err := Connect(opts)
	if err != nil {
		return err
	}
	return inst.Run(ctx)
}

func withDefaults(opts *Options) *Options {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Interval <= 0 {
		o.Interval = acquire.DefaultInterval
	}
	if o.Codec == nil {
		o.Codec = message.BincodeCodec{}
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return &o
}
