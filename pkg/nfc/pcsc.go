// Package nfc provides the raw NFC links the attestation driver runs over:
// a PC/SC reader, a TCP relay to a remote front end, and a tracing wrapper.
// Every link implements apdu.Exchanger.
package nfc

import (
	"fmt"
	"sync"

	"github.com/ebfe/scard"
	"github.com/pion/logging"
)

// ListReaders returns the names of the PC/SC readers attached to the host.
func ListReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("nfc: establish context: %w", err)
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("nfc: list readers: %w", err)
	}
	return readers, nil
}

// PCSCConfig configures a PC/SC link.
type PCSCConfig struct {
	// ReaderIndex selects the reader by its position in ListReaders.
	ReaderIndex int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// card is the part of *scard.Card the link uses.
type card interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect(d scard.Disposition) error
}

// PCSC is an apdu.Exchanger over a PC/SC reader with the endpoint in its
// field.
type PCSC struct {
	ctx    *scard.Context
	card   card
	reader string
	log    logging.LeveledLogger

	mu     sync.Mutex
	closed bool
}

// OpenPCSC connects to the card in the selected reader.
func OpenPCSC(config PCSCConfig) (*PCSC, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("nfc: establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("nfc: list readers: %w", err)
	}
	if len(readers) == 0 {
		ctx.Release()
		return nil, ErrNoReaders
	}
	if config.ReaderIndex < 0 || config.ReaderIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("%w: %d not in 0..%d", ErrReaderIndex, config.ReaderIndex, len(readers)-1)
	}

	reader := readers[config.ReaderIndex]
	c, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("nfc: connect %q: %w", reader, err)
	}

	p := newPCSC(c, reader, config.LoggerFactory)
	p.ctx = ctx
	if p.log != nil {
		p.log.Infof("connected to %s", reader)
	}
	return p, nil
}

func newPCSC(c card, reader string, loggerFactory logging.LoggerFactory) *PCSC {
	p := &PCSC{card: c, reader: reader}
	if loggerFactory != nil {
		p.log = loggerFactory.NewLogger("nfc-pcsc")
	}
	return p
}

// Reader returns the name of the connected reader.
func (p *PCSC) Reader() string {
	return p.reader
}

// Exchange implements apdu.Exchanger.
func (p *PCSC) Exchange(cmd []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	return p.card.Transmit(cmd)
}

// Close disconnects the card and releases the PC/SC context.
func (p *PCSC) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.closed = true

	err := p.card.Disconnect(scard.LeaveCard)
	if p.ctx != nil {
		if rerr := p.ctx.Release(); err == nil {
			err = rerr
		}
	}
	return err
}
