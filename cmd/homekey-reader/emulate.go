package main

import (
	"context"
	"encoding/hex"
	"os/signal"
	"syscall"

	"github.com/backkem/homekey-reader/pkg/homekey/endpointsim"
	"github.com/backkem/homekey-reader/pkg/nfc"
)

func runEmulate(args []string) error {
	fs, o := newFlagSet("emulate")
	var listen, credential string
	var chunk int
	fs.StringVar(&listen, "listen", "", "Relay listen address (default: from config)")
	fs.IntVar(&chunk, "chunk", -1, "Envelope 2 chunk size, 0 = unchunked (default: from config)")
	fs.StringVar(&credential, "credential", "01", "Credential identifier returned by the emulator, hex")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := o.load()
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Emulator.Listen = listen
	}
	if chunk >= 0 {
		cfg.Emulator.ChunkSize = chunk
	}
	credentialID, err := hex.DecodeString(credential)
	if err != nil {
		return err
	}
	factory, err := loggerFactory(cfg)
	if err != nil {
		return err
	}
	log := factory.NewLogger("homekey-reader")

	key, err := cfg.DKSKey()
	if err != nil {
		return err
	}
	ep, err := endpointsim.New(endpointsim.Config{
		DKSKey:        key,
		CredentialID:  credentialID,
		ChunkSize:     cfg.Emulator.ChunkSize,
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}

	server, err := nfc.NewServer(nfc.ServerConfig{
		ListenAddr:    cfg.Emulator.Listen,
		Exchanger:     nfc.NewTrace(ep, factory),
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(); err != nil {
		return err
	}
	log.Infof("emulated endpoint listening on %s", server.Addr())

	<-ctx.Done()
	log.Info("shutting down")
	return server.Stop()
}
