package main

import (
	"flag"
	"fmt"

	"github.com/backkem/homekey-reader/internal/config"
	"github.com/pion/logging"
)

// options holds the flags shared by all commands. Flags that were set
// override the configuration file.
type options struct {
	configPath string
	reader     int
	relay      string
	logLevel   string

	fs *flag.FlagSet
}

func newFlagSet(name string) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to the YAML configuration (empty = defaults)")
	fs.IntVar(&o.reader, "reader", 0, "PC/SC reader index")
	fs.StringVar(&o.relay, "relay", "", "Relay address host:port; selects the relay driver")
	fs.StringVar(&o.logLevel, "log", "", "Log level: trace, debug, info, warn, error")
	o.fs = fs
	return fs, o
}

// isSet checks if a flag was explicitly set.
func (o *options) isSet(name string) bool {
	found := false
	o.fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// load reads the configuration and applies flag overrides.
func (o *options) load() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}

	if o.isSet("reader") {
		cfg.Reader.Driver = config.DriverPCSC
		cfg.Reader.Index = o.reader
	}
	if o.relay != "" {
		cfg.Reader.Driver = config.DriverRelay
		cfg.Reader.Address = o.relay
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// loggerFactory builds the pion logger factory for cfg.LogLevel.
func loggerFactory(cfg *config.Config) (*logging.DefaultLoggerFactory, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	factory := logging.NewDefaultLoggerFactory()
	factory.DefaultLogLevel = level
	return factory, nil
}
