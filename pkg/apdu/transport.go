// Package apdu carries ISO-7816 command APDUs over a raw NFC link and
// reassembles chained responses.
package apdu

import (
	"fmt"

	"github.com/pion/logging"
	iso7816 "github.com/skythen/apdu"
)

// Reassembly limits applied when the config leaves them zero.
const (
	DefaultMaxResponseSize = 64 * 1024
	DefaultMaxChunks       = 64
)

// Exchanger sends one raw command and returns the raw response, status word
// included. Implementations are not required to be safe for concurrent use.
type Exchanger interface {
	Exchange(cmd []byte) ([]byte, error)
}

// ExchangerFunc adapts a function to Exchanger.
type ExchangerFunc func(cmd []byte) ([]byte, error)

// Exchange calls f(cmd).
func (f ExchangerFunc) Exchange(cmd []byte) ([]byte, error) { return f(cmd) }

// TransportConfig configures a Transport.
type TransportConfig struct {
	// Exchanger is the raw link. Required.
	Exchanger Exchanger

	// MaxResponseSize bounds the reassembled data length.
	MaxResponseSize int

	// MaxChunks bounds the number of continuation commands per exchange.
	MaxChunks int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Transport issues commands and follows 61xx and xxFD continuations until a
// terminal status word arrives. It is itself an Exchanger.
type Transport struct {
	link      Exchanger
	maxSize   int
	maxChunks int
	log       logging.LeveledLogger
}

// NewTransport creates a reassembling transport.
func NewTransport(config TransportConfig) (*Transport, error) {
	if config.Exchanger == nil {
		return nil, ErrNoExchanger
	}
	t := &Transport{
		link:      config.Exchanger,
		maxSize:   config.MaxResponseSize,
		maxChunks: config.MaxChunks,
	}
	if t.maxSize <= 0 {
		t.maxSize = DefaultMaxResponseSize
	}
	if t.maxChunks <= 0 {
		t.maxChunks = DefaultMaxChunks
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("apdu")
	}
	return t, nil
}

// Exchange sends cmd and returns the concatenated data of every chunk
// followed by the terminal status word.
//
// A 61xx status is answered with GET RESPONSE Le=xx. A status whose low
// octet is FD is answered with GET RESPONSE Le=00; its two status octets
// are dropped from the reassembled data. Any other status ends the exchange
// and is returned to the caller unchanged.
func (t *Transport) Exchange(cmd []byte) ([]byte, error) {
	var data []byte
	for chunk := 0; ; chunk++ {
		resp, err := t.link.Exchange(cmd)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		if len(resp) < 2 {
			return nil, fmt.Errorf("%w: %d-octet response", ErrIO, len(resp))
		}
		r, err := iso7816.ParseRapdu(resp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		sw := NewSW(r.SW1, r.SW2)

		data = append(data, r.Data...)
		if len(data) > t.maxSize {
			return nil, fmt.Errorf("%w: %d octets exceeds %d", ErrResponseTooLarge, len(data), t.maxSize)
		}

		var le byte
		if xx, ok := sw.MoreData(); ok {
			le = xx
		} else if !sw.ChunkPending() {
			if t.log != nil && chunk > 0 {
				t.log.Debugf("reassembled %d octets from %d chunks, sw=%s", len(data), chunk+1, sw)
			}
			return append(data, r.SW1, r.SW2), nil
		}

		if chunk+1 > t.maxChunks {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyChunks, t.maxChunks)
		}
		if t.log != nil {
			t.log.Tracef("chunk %d: %d octets, sw=%s", chunk, len(r.Data), sw)
		}
		if cmd, err = GetResponse(le); err != nil {
			return nil, err
		}
	}
}
