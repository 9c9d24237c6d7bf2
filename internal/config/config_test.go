package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/julienstroheker/tgc/internal/acquire"
	"github.com/julienstroheker/tgc/internal/message"
)

var envKeys = []string{
	"TGC_MODE", "TGC_LOCAL", "TGC_REMOTE", "TGC_INTERVAL", "TGC_RECONNECT",
	"TGC_CODEC", "TGC_LOG_LEVEL", "TGC_LOG_FORMAT", "TGC_LOG_FILE", "TGC_METRICS_ADDR",
}

// clearEnv unsets every TGC_ variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg := Load()

		if cfg.Mode != "" {
			t.Errorf("Expected empty Mode, got: %s", cfg.Mode)
		}
		if cfg.Interval != 5*time.Second {
			t.Errorf("Expected default Interval 5s, got: %s", cfg.Interval)
		}
		if !cfg.Reconnect {
			t.Error("Expected Reconnect to default to true")
		}
		if cfg.Codec != "bincode" {
			t.Errorf("Expected default Codec 'bincode', got: %s", cfg.Codec)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("Expected default LogLevel 'info', got: %s", cfg.LogLevel)
		}
		if cfg.LogFormat != "console" {
			t.Errorf("Expected default LogFormat 'console', got: %s", cfg.LogFormat)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TGC_MODE", "connect")
		t.Setenv("TGC_LOCAL", "localhost:22")
		t.Setenv("TGC_REMOTE", "relay.example.com:9000")
		t.Setenv("TGC_INTERVAL", "2")
		t.Setenv("TGC_RECONNECT", "false")
		t.Setenv("TGC_CODEC", "msgpack")
		t.Setenv("TGC_LOG_LEVEL", "debug")
		t.Setenv("TGC_METRICS_ADDR", ":9100")

		cfg := Load()

		if cfg.Mode != ModeConnect {
			t.Errorf("Expected Mode from env, got: %s", cfg.Mode)
		}
		if cfg.LocalAddr != "localhost:22" {
			t.Errorf("Expected LocalAddr from env, got: %s", cfg.LocalAddr)
		}
		if cfg.RemoteAddr != "relay.example.com:9000" {
			t.Errorf("Expected RemoteAddr from env, got: %s", cfg.RemoteAddr)
		}
		if cfg.Interval != 2*time.Second {
			t.Errorf("Expected Interval from env, got: %s", cfg.Interval)
		}
		if cfg.Reconnect {
			t.Error("Expected Reconnect false from env")
		}
		if cfg.Codec != "msgpack" {
			t.Errorf("Expected Codec from env, got: %s", cfg.Codec)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("Expected LogLevel from env, got: %s", cfg.LogLevel)
		}
		if cfg.MetricsAddr != ":9100" {
			t.Errorf("Expected MetricsAddr from env, got: %s", cfg.MetricsAddr)
		}
	})

	t.Run("invalid numbers keep defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TGC_INTERVAL", "soon")
		t.Setenv("TGC_RECONNECT", "maybe")

		cfg := Load()

		if cfg.Interval != acquire.DefaultInterval {
			t.Errorf("Expected default Interval, got: %s", cfg.Interval)
		}
		if !cfg.Reconnect {
			t.Error("Expected default Reconnect")
		}
	})
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tgc.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("file overrides environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TGC_LOCAL", "localhost:1")
		t.Setenv("TGC_LOG_LEVEL", "warn")

		path := writeFile(t, `
mode = "connect"
local = "localhost:22"
remote = "relay.example.com:9000"
interval = 1
reconnect = false
codec = "msgpack"

[log]
format = "json"

[metrics]
addr = ":9100"
`)

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cfg.Mode != ModeConnect {
			t.Errorf("Expected Mode from file, got: %s", cfg.Mode)
		}
		if cfg.LocalAddr != "localhost:22" {
			t.Errorf("Expected LocalAddr from file, got: %s", cfg.LocalAddr)
		}
		if cfg.Interval != time.Second {
			t.Errorf("Expected Interval from file, got: %s", cfg.Interval)
		}
		if cfg.Reconnect {
			t.Error("Expected Reconnect false from file")
		}
		if cfg.LogFormat != "json" {
			t.Errorf("Expected LogFormat from file, got: %s", cfg.LogFormat)
		}
		if cfg.LogLevel != "warn" {
			t.Errorf("Expected LogLevel kept from env, got: %s", cfg.LogLevel)
		}
		if cfg.MetricsAddr != ":9100" {
			t.Errorf("Expected MetricsAddr from file, got: %s", cfg.MetricsAddr)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected valid config, got: %v", err)
		}
	})

	t.Run("unknown keys", func(t *testing.T) {
		clearEnv(t)
		path := writeFile(t, "mode = \"listen\"\nport = 8000\n")

		_, err := LoadFile(path)
		if err == nil || !strings.Contains(err.Error(), "port") {
			t.Errorf("Expected unknown key error, got: %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
		if err == nil {
			t.Error("Expected error for missing file")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Mode:       ModeListen,
			LocalAddr:  "8000",
			RemoteAddr: "9000",
			Interval:   acquire.DefaultInterval,
			Codec:      "bincode",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
	})

	t.Run("invalid mode", func(t *testing.T) {
		cfg := valid()
		cfg.Mode = "proxy"
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for invalid mode")
		}
	})

	t.Run("non-positive interval in connect mode", func(t *testing.T) {
		cfg := valid()
		cfg.Mode = ModeConnect
		cfg.Interval = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for zero interval")
		}
	})

	t.Run("unknown codec", func(t *testing.T) {
		cfg := valid()
		cfg.Codec = "json"
		err := cfg.Validate()
		if !errors.Is(err, message.ErrUnknownCodec) {
			t.Errorf("Expected ErrUnknownCodec, got: %v", err)
		}
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := &Config{Codec: "bincode"}
		err := cfg.Validate()

		var merr *multierror.Error
		if !errors.As(err, &merr) {
			t.Fatalf("Expected multierror, got: %v", err)
		}
		if len(merr.Errors) != 3 {
			t.Errorf("Expected 3 errors (mode, local, remote), got %d: %v", len(merr.Errors), err)
		}
	})
}
