// Package config loads dispatch settings from defaults, an optional
// TOML file, a .env file and DISPATCH_* environment variables, in
// that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/blockberries/dispatch/types"
	"github.com/joho/godotenv"
)

const (
	EnvNode           = "DISPATCH_NODE"
	EnvOrderbook      = "DISPATCH_ORDERBOOK"
	EnvTimeout        = "DISPATCH_TIMEOUT"
	EnvBroadcastMode  = "DISPATCH_BROADCAST_MODE"
	EnvPollInterval   = "DISPATCH_POLL_INTERVAL"
	EnvPollTimeout    = "DISPATCH_POLL_TIMEOUT"
	EnvDryRunAttempts = "DISPATCH_DRY_RUN_ATTEMPTS"
	EnvLogLevel       = "DISPATCH_LOG_LEVEL"
)

// Config holds client and devnet settings.
type Config struct {
	// Node and Orderbook are peer addresses. Empty selects the
	// client defaults.
	Node      string
	Orderbook string

	// Timeout bounds one whole invocation. Zero means no deadline.
	Timeout        time.Duration
	BroadcastMode  types.BroadcastMode
	PollInterval   time.Duration
	PollTimeout    time.Duration
	DryRunAttempts int
	LogLevel       string

	Devnode DevnodeConfig
}

// DevnodeConfig configures cmd/devnode.
type DevnodeConfig struct {
	NodeListen    string
	GossipListen  string
	ZMQListen     string
	BlockInterval time.Duration
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BroadcastMode:  types.BroadcastSync,
		PollInterval:   500 * time.Millisecond,
		PollTimeout:    30 * time.Second,
		DryRunAttempts: 1,
		LogLevel:       "info",
		Devnode: DevnodeConfig{
			NodeListen:    "127.0.0.1:26657",
			GossipListen:  "127.0.0.1:26659",
			ZMQListen:     "127.0.0.1:26660",
			BlockInterval: time.Second,
		},
	}
}

type fileConfig struct {
	Node           string `toml:"node"`
	Orderbook      string `toml:"orderbook"`
	Timeout        string `toml:"timeout"`
	BroadcastMode  string `toml:"broadcast_mode"`
	PollInterval   string `toml:"poll_interval"`
	PollTimeout    string `toml:"poll_timeout"`
	DryRunAttempts int    `toml:"dry_run_attempts"`
	LogLevel       string `toml:"log_level"`

	Devnode struct {
		NodeListen    string `toml:"node_listen"`
		GossipListen  string `toml:"gossip_listen"`
		ZMQListen     string `toml:"zmq_listen"`
		BlockInterval string `toml:"block_interval"`
	} `toml:"devnode"`
}

// Load builds a Config from defaults, the TOML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("node") {
		cfg.Node = strings.TrimSpace(raw.Node)
	}
	if meta.IsDefined("orderbook") {
		cfg.Orderbook = strings.TrimSpace(raw.Orderbook)
	}
	if meta.IsDefined("timeout") {
		if cfg.Timeout, err = parseDuration("timeout", raw.Timeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("broadcast_mode") {
		if cfg.BroadcastMode, err = types.ParseBroadcastMode(raw.BroadcastMode); err != nil {
			return fmt.Errorf("parse broadcast_mode: %w", err)
		}
	}
	if meta.IsDefined("poll_interval") {
		if cfg.PollInterval, err = parseDuration("poll_interval", raw.PollInterval); err != nil {
			return err
		}
	}
	if meta.IsDefined("poll_timeout") {
		if cfg.PollTimeout, err = parseDuration("poll_timeout", raw.PollTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("dry_run_attempts") {
		cfg.DryRunAttempts = raw.DryRunAttempts
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("devnode", "node_listen") {
		cfg.Devnode.NodeListen = strings.TrimSpace(raw.Devnode.NodeListen)
	}
	if meta.IsDefined("devnode", "gossip_listen") {
		cfg.Devnode.GossipListen = strings.TrimSpace(raw.Devnode.GossipListen)
	}
	if meta.IsDefined("devnode", "zmq_listen") {
		cfg.Devnode.ZMQListen = strings.TrimSpace(raw.Devnode.ZMQListen)
	}
	if meta.IsDefined("devnode", "block_interval") {
		if cfg.Devnode.BlockInterval, err = parseDuration("devnode.block_interval", raw.Devnode.BlockInterval); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overlays DISPATCH_* variables onto cfg. Unset or empty
// variables leave the field alone.
func ApplyEnv(cfg *Config) error {
	var err error
	if v := env(EnvNode); v != "" {
		cfg.Node = v
	}
	if v := env(EnvOrderbook); v != "" {
		cfg.Orderbook = v
	}
	if v := env(EnvTimeout); v != "" {
		if cfg.Timeout, err = parseDuration(EnvTimeout, v); err != nil {
			return err
		}
	}
	if v := env(EnvBroadcastMode); v != "" {
		if cfg.BroadcastMode, err = types.ParseBroadcastMode(v); err != nil {
			return fmt.Errorf("parse %s: %w", EnvBroadcastMode, err)
		}
	}
	if v := env(EnvPollInterval); v != "" {
		if cfg.PollInterval, err = parseDuration(EnvPollInterval, v); err != nil {
			return err
		}
	}
	if v := env(EnvPollTimeout); v != "" {
		if cfg.PollTimeout, err = parseDuration(EnvPollTimeout, v); err != nil {
			return err
		}
	}
	if v := env(EnvDryRunAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvDryRunAttempts, err)
		}
		cfg.DryRunAttempts = n
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (default
// ".env") without overriding ones already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.BroadcastMode {
	case types.BroadcastSync, types.BroadcastCommit:
	default:
		return fmt.Errorf("invalid broadcast mode %s", c.BroadcastMode)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive, got %s", c.PollTimeout)
	}
	if c.DryRunAttempts < 1 {
		return fmt.Errorf("dry_run_attempts must be at least 1, got %d", c.DryRunAttempts)
	}
	if c.Devnode.BlockInterval <= 0 {
		return fmt.Errorf("devnode.block_interval must be positive, got %s", c.Devnode.BlockInterval)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
