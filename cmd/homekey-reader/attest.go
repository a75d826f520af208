package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/backkem/homekey-reader/internal/config"
	"github.com/backkem/homekey-reader/internal/report"
	"github.com/backkem/homekey-reader/internal/store"
	"github.com/backkem/homekey-reader/pkg/apdu"
	"github.com/backkem/homekey-reader/pkg/dks"
	"github.com/backkem/homekey-reader/pkg/homekey"
	"github.com/backkem/homekey-reader/pkg/nfc"
	"github.com/pion/logging"
)

func runAttest(args []string) error {
	fs, o := newFlagSet("attest")
	var endpointHex string
	fs.StringVar(&endpointHex, "endpoint", "", "Endpoint identifier, hex (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	endpointID, err := hex.DecodeString(endpointHex)
	if err != nil || len(endpointID) == 0 {
		return errors.New("-endpoint must be a non-empty hex string")
	}
	cfg, err := o.load()
	if err != nil {
		return err
	}
	factory, err := loggerFactory(cfg)
	if err != nil {
		return err
	}
	log := factory.NewLogger("homekey-reader")

	reporter, err := report.New(report.Options{
		Enabled:     cfg.Report.Sentry,
		DSN:         cfg.Report.DSN,
		Environment: cfg.Report.Environment,
		Release:     version,
	})
	if err != nil {
		return fmt.Errorf("init reporting: %w", err)
	}
	defer reporter.Flush(2 * time.Second)

	endpoints, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	key, err := cfg.DKSKey()
	if err != nil {
		return err
	}
	session, err := dks.NewStatic(key)
	if err != nil {
		return err
	}

	link, err := openLink(cfg, factory)
	if err != nil {
		return err
	}
	defer link.Close()

	attestor, err := homekey.NewAttestor(homekey.Config{
		Exchanger:     nfc.NewTrace(link, factory),
		DKS:           session,
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}

	ep, err := attestor.Attest(endpointID)
	if err != nil {
		reporter.CaptureAttestation(err, endpointHex)
		return err
	}
	if err := endpoints.Put(ep.ID, ep.PersistentKey, time.Now()); err != nil {
		return fmt.Errorf("store endpoint: %w", err)
	}
	log.Infof("endpoint %x attested, record written to %s", ep.ID, cfg.Store.Path)
	return nil
}

// link is an NFC link the attest command can close.
type link interface {
	apdu.Exchanger
	io.Closer
}

func openLink(cfg *config.Config, factory logging.LoggerFactory) (link, error) {
	switch cfg.Reader.Driver {
	case config.DriverRelay:
		return nfc.DialRelay(cfg.Reader.Address, nfc.RelayConfig{
			Timeout:       cfg.Reader.Timeout,
			LoggerFactory: factory,
		})
	default:
		return nfc.OpenPCSC(nfc.PCSCConfig{
			ReaderIndex:   cfg.Reader.Index,
			LoggerFactory: factory,
		})
	}
}
