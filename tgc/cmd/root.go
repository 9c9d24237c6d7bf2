package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/julienstroheker/tgc/internal/changer"
	"github.com/julienstroheker/tgc/internal/config"
	"github.com/julienstroheker/tgc/internal/logging"
)

var (
	cfg             *config.Config
	logger          *logging.Logger
	debugFlag       bool
	jsonFlag        bool
	configFlag      string
	logFileFlag     string
	codecFlag       string
	metricsAddrFlag string
)

var rootCmd = &cobra.Command{
	Use:   "tgc",
	Short: "TCP gender changer",
	Long: `tgc - TCP gender changer

Relays a TCP service through two cooperating instances when neither side can
accept connections from the other. The listen instance accepts both the real
client and the connect instance; the connect instance dials both the real
server and the listen instance.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded

		level := logging.ParseLevel(cfg.LogLevel)
		if debugFlag {
			level = logging.DebugLevel
		}
		format := logging.ParseFormat(cfg.LogFormat)

		logger = logging.NewWithOptions(&logging.Options{
			Level:  level,
			Format: format,
			File:   cfg.LogFile,
		})
		logger.Debug("Logger initialized",
			logging.String("level", level.String()),
			logging.String("format", format.String()),
		)
		return nil
	},
}

func init() {
	// Disable default completion and help commands
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Activate debug logs")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Also write logs to this file, rotated by size")
	rootCmd.PersistentFlags().StringVar(&codecFlag, "codec", "bincode", "Wire codec of the remote link (bincode, msgpack)")
	rootCmd.PersistentFlags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

// loadConfig merges environment, config file and flags, in increasing precedence
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c := config.Load()
	if configFlag != "" {
		var err error
		if c, err = config.LoadFile(configFlag); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if jsonFlag {
		c.LogFormat = logging.FormatJSON.String()
	}
	if flags.Changed("log-file") {
		c.LogFile = logFileFlag
	}
	if flags.Changed("codec") {
		c.Codec = codecFlag
	}
	if flags.Changed("metrics-addr") {
		c.MetricsAddr = metricsAddrFlag
	}
	return c, nil
}

// run relays until SIGINT or SIGTERM, or until a fatal error
func run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := changer.Run(ctx, cfg, logger); err != nil {
		logger.Error("Relay failed", logging.Error(err))
		return err
	}
	return nil
}

// legacyCommands maps the historical single-dash mode switches to subcommands
var legacyCommands = map[string]string{
	"-L": "listen",
	"-C": "connect",
}

// normalizeArgs rewrites "tgc -L ..." and "tgc -C ..." to their subcommands
func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	if sub, ok := legacyCommands[args[0]]; ok {
		out := make([]string, len(args))
		out[0] = sub
		copy(out[1:], args[1:])
		return out
	}
	return args
}

// Execute runs the root command
func Execute() {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *logging.Logger {
	return logger
}

// GetConfig returns the global config instance
func GetConfig() *config.Config {
	return cfg
}
