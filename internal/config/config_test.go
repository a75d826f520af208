package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pion/logging"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "reader.yaml", `
reader:
  driver: relay
  address: 127.0.0.1:7816
  timeout: 2s
dks:
  key_hex_file: keys/dks.key
store:
  path: /var/lib/homekey/endpoints.yaml
log_level: debug
report:
  sentry: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Reader.Driver != DriverRelay || cfg.Reader.Address != "127.0.0.1:7816" {
		t.Errorf("Reader = %+v", cfg.Reader)
	}
	if cfg.Reader.Timeout != 2*time.Second {
		t.Errorf("Reader.Timeout = %v, want 2s", cfg.Reader.Timeout)
	}
	if want := filepath.Join(dir, "keys", "dks.key"); cfg.DKS.KeyHexFile != want {
		t.Errorf("DKS.KeyHexFile = %q, want %q", cfg.DKS.KeyHexFile, want)
	}
	if cfg.Store.Path != "/var/lib/homekey/endpoints.yaml" {
		t.Errorf("Store.Path = %q, absolute path changed", cfg.Store.Path)
	}
	if !cfg.Report.Sentry {
		t.Error("Report.Sentry = false")
	}
	// Unset fields keep their defaults.
	if cfg.Emulator.ChunkSize != 128 {
		t.Errorf("Emulator.ChunkSize = %d, want default 128", cfg.Emulator.ChunkSize)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown_field", "reader:\n  port: 3\n", "field port not found"},
		{"bad_driver", "reader:\n  driver: usb\n", "config.reader.driver"},
		{"relay_without_address", "reader:\n  driver: relay\n", "config.reader.address"},
		{"negative_index", "reader:\n  index: -1\n", "config.reader.index"},
		{"zero_timeout", "reader:\n  timeout: 0s\n", "config.reader.timeout"},
		{"bad_level", "log_level: loud\n", "config.log_level"},
		{"empty_store", "store:\n  path: \"\"\n", "config.store.path"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "c.yaml", tc.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load() error = %v, want containing %q", err, tc.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestDKSKey(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    []byte
		wantErr bool
	}{
		{"ok", "00112233445566778899aabbccddeeff\n", []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, false},
		{"short", "0011", nil, true},
		{"not_hex", "zz112233445566778899aabbccddeeff", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.DKS.KeyHexFile = writeFile(t, dir, tc.name+".key", tc.content)
			got, err := cfg.DKSKey()
			if (err != nil) != tc.wantErr {
				t.Fatalf("DKSKey() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("DKSKey() = %x, want %x", got, tc.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logging.LogLevel
	}{
		{"trace", logging.LogLevelTrace},
		{"DEBUG", logging.LogLevelDebug},
		{"", logging.LogLevelInfo},
		{"warning", logging.LogLevelWarn},
		{"error", logging.LogLevelError},
		{"off", logging.LogLevelDisabled},
	}
	for _, tc := range tests {
		got, err := ParseLogLevel(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v, want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("ParseLogLevel(verbose) error = nil")
	}
}
