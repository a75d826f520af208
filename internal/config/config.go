// Package config loads the homekey-reader YAML configuration.
package config

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// Reader drivers.
const (
	DriverPCSC  = "pcsc"
	DriverRelay = "relay"
)

// DKSKeySize is the length of the static device key session key.
const DKSKeySize = 16

// Config is the top-level homekey-reader configuration.
type Config struct {
	Reader   ReaderConfig   `yaml:"reader"`
	DKS      DKSConfig      `yaml:"dks"`
	Store    StoreConfig    `yaml:"store"`
	Emulator EmulatorConfig `yaml:"emulator"`
	LogLevel string         `yaml:"log_level"`
	Report   ReportConfig   `yaml:"report"`
}

// ReaderConfig selects the NFC link: a PC/SC reader by index or a TCP relay.
type ReaderConfig struct {
	Driver  string        `yaml:"driver"`
	Index   int           `yaml:"index"`
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

// DKSConfig points at the hex file holding the device key session key.
type DKSConfig struct {
	KeyHexFile string `yaml:"key_hex_file"`
}

// StoreConfig locates the attested endpoint records.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// EmulatorConfig configures the emulated endpoint served by the emulate
// command.
type EmulatorConfig struct {
	Listen    string `yaml:"listen"`
	ChunkSize int    `yaml:"chunk_size"`
}

// ReportConfig enables Sentry reporting of failed attestations.
type ReportConfig struct {
	Sentry      bool   `yaml:"sentry"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			Driver:  DriverPCSC,
			Timeout: 5 * time.Second,
		},
		DKS:      DKSConfig{KeyHexFile: "dks.key"},
		Store:    StoreConfig{Path: "endpoints.yaml"},
		Emulator: EmulatorConfig{Listen: "127.0.0.1:7816", ChunkSize: 128},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, resolves relative paths against the
// file's directory and validates the result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	cfg := Default()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.Reader.Driver {
	case DriverPCSC:
		if c.Reader.Index < 0 {
			return fmt.Errorf("config.reader.index must be >= 0")
		}
	case DriverRelay:
		if strings.TrimSpace(c.Reader.Address) == "" {
			return fmt.Errorf("config.reader.address is required for the relay driver")
		}
	default:
		return fmt.Errorf("config.reader.driver %q is not one of %s, %s", c.Reader.Driver, DriverPCSC, DriverRelay)
	}
	if c.Reader.Timeout <= 0 {
		return fmt.Errorf("config.reader.timeout must be positive")
	}
	if strings.TrimSpace(c.DKS.KeyHexFile) == "" {
		return fmt.Errorf("config.dks.key_hex_file is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("config.store.path is required")
	}
	if c.Emulator.ChunkSize < 0 {
		return fmt.Errorf("config.emulator.chunk_size must be >= 0")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config.log_level: %w", err)
	}
	return nil
}

// DKSKey reads the hex-encoded static DKS key.
func (c *Config) DKSKey() ([]byte, error) {
	content, err := os.ReadFile(c.DKS.KeyHexFile)
	if err != nil {
		return nil, fmt.Errorf("config.dks.key_hex_file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(content)))
	if err != nil {
		return nil, fmt.Errorf("config.dks.key_hex_file: %w", err)
	}
	if len(key) != DKSKeySize {
		return nil, fmt.Errorf("config.dks.key_hex_file: key is %d bytes, want %d", len(key), DKSKeySize)
	}
	return key, nil
}

// ParseLogLevel maps a level name onto a pion log level.
func ParseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logging.LogLevelTrace, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "error":
		return logging.LogLevelError, nil
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	}
	return logging.LogLevelDisabled, fmt.Errorf("unknown level %q", s)
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.DKS.KeyHexFile = resolvePath(configDir, c.DKS.KeyHexFile)
	c.Store.Path = resolvePath(configDir, c.Store.Path)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
