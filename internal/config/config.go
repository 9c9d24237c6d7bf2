package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/julienstroheker/tgc/internal/acquire"
	"github.com/julienstroheker/tgc/internal/message"
)

// Config holds the settings of one relay instance
type Config struct {
	// Mode selects how both endpoints are acquired
	Mode Mode

	// LocalAddr is the plain TCP side (listen port or service address)
	LocalAddr string

	// RemoteAddr is the framed side shared with the other relay instance
	RemoteAddr string

	// Interval between dial attempts in connect mode
	Interval time.Duration

	// Reconnect dials the local service eagerly in connect mode. When false
	// the local side is only dialed once data arrived from the remote side.
	Reconnect bool

	// Codec frames the remote link (bincode, msgpack)
	Codec string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat is console or json
	LogFormat string

	// LogFile additionally writes logs to a rotated file when set
	LogFile string

	// MetricsAddr serves Prometheus metrics when set
	MetricsAddr string
}

// Load creates a Config by reading from environment variables
// and applying defaults where values are not set
func Load() *Config {
	return &Config{
		Mode:        Mode(getEnvOrDefault("TGC_MODE", "")),
		LocalAddr:   getEnvOrDefault("TGC_LOCAL", ""),
		RemoteAddr:  getEnvOrDefault("TGC_REMOTE", ""),
		Interval:    time.Duration(getEnvInt("TGC_INTERVAL", int(acquire.DefaultInterval/time.Second))) * time.Second,
		Reconnect:   getEnvBool("TGC_RECONNECT", true),
		Codec:       getEnvOrDefault("TGC_CODEC", "bincode"),
		LogLevel:    getEnvOrDefault("TGC_LOG_LEVEL", "info"),
		LogFormat:   getEnvOrDefault("TGC_LOG_FORMAT", "console"),
		LogFile:     getEnvOrDefault("TGC_LOG_FILE", ""),
		MetricsAddr: getEnvOrDefault("TGC_METRICS_ADDR", ""),
	}
}

// fileConfig is the TOML layout read by LoadFile
type fileConfig struct {
	Mode      string `toml:"mode"`
	Local     string `toml:"local"`
	Remote    string `toml:"remote"`
	Interval  int    `toml:"interval"`
	Reconnect *bool  `toml:"reconnect"`
	Codec     string `toml:"codec"`
	Log       struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"log"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

// LoadFile reads the environment like Load, then overrides it with every
// value set in the TOML file at path. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}

	setString(&cfg.LocalAddr, fc.Local)
	setString(&cfg.RemoteAddr, fc.Remote)
	setString(&cfg.Codec, fc.Codec)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)
	setString(&cfg.LogFile, fc.Log.File)
	setString(&cfg.MetricsAddr, fc.Metrics.Addr)
	if fc.Mode != "" {
		cfg.Mode = Mode(fc.Mode)
	}
	if md.IsDefined("interval") {
		cfg.Interval = time.Duration(fc.Interval) * time.Second
	}
	if fc.Reconnect != nil {
		cfg.Reconnect = *fc.Reconnect
	}

	return cfg, nil
}

// Validate reports every missing or invalid value at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if !c.Mode.IsValid() {
		result = multierror.Append(result, fmt.Errorf("invalid mode %q: expected %s or %s", c.Mode, ModeListen, ModeConnect))
	}
	if c.LocalAddr == "" {
		result = multierror.Append(result, errors.New("missing local address"))
	}
	if c.RemoteAddr == "" {
		result = multierror.Append(result, errors.New("missing remote address"))
	}
	if c.Mode == ModeConnect && c.Interval <= 0 {
		result = multierror.Append(result, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if _, err := message.CodecByName(c.Codec); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt returns the default when the variable is unset or not a number
func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}
