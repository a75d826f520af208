package homekey

import (
	"errors"
	"fmt"

	"github.com/backkem/homekey-reader/pkg/apdu"
	"github.com/backkem/homekey-reader/pkg/crypto"
	"github.com/backkem/homekey-reader/pkg/dks"
	"github.com/backkem/homekey-reader/pkg/mdoc"
	"github.com/backkem/homekey-reader/pkg/ndef"
	"github.com/backkem/homekey-reader/pkg/session"
	"github.com/backkem/homekey-reader/pkg/tlv"
)

// Failure kinds. Every error returned by Attest is an *AttestError whose
// Kind is one of these.
var (
	// ErrIO indicates the NFC link failed or returned a short response.
	ErrIO = errors.New("homekey: i/o failure")

	// ErrProtocol indicates an unexpected status word or response structure.
	ErrProtocol = errors.New("homekey: protocol error")

	// ErrMalformed indicates a TLV, NDEF or CBOR decode failure.
	ErrMalformed = errors.New("homekey: malformed data")

	// ErrCrypto indicates a key derivation, MAC or counter failure.
	ErrCrypto = errors.New("homekey: cryptographic failure")

	// ErrState indicates use of a secure context after it failed.
	ErrState = errors.New("homekey: invalid session state")
)

// Configuration errors.
var (
	ErrNoExchanger = errors.New("homekey: no exchanger configured")
	ErrNoDKS       = errors.New("homekey: no device key session configured")
)

// AttestError reports a failed attestation attempt.
type AttestError struct {
	Kind error
	Step Step
	Err  error
}

func (e *AttestError) Error() string {
	return fmt.Sprintf("%v during %s: %v", e.Kind, e.Step, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and
// errors.As.
func (e *AttestError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

var kinds = []error{ErrIO, ErrProtocol, ErrMalformed, ErrCrypto, ErrState}

// classify maps a lower-layer error onto a failure kind. Errors that already
// carry a kind keep it; anything unrecognised is a protocol error.
func classify(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}

	var statusErr *apdu.StatusError
	switch {
	case errors.Is(err, apdu.ErrIO):
		return ErrIO
	case errors.As(err, &statusErr),
		errors.Is(err, apdu.ErrTooManyChunks),
		errors.Is(err, apdu.ErrResponseTooLarge):
		return ErrProtocol
	case errors.Is(err, session.ErrState), errors.Is(err, dks.ErrSessionEnded):
		return ErrState
	case errors.Is(err, tlv.ErrMalformed),
		errors.Is(err, ndef.ErrMalformed),
		errors.Is(err, mdoc.ErrMalformed),
		errors.Is(err, session.ErrMalformed):
		return ErrMalformed
	case errors.Is(err, session.ErrCrypto),
		errors.Is(err, dks.ErrAuthFailed),
		errors.Is(err, dks.ErrExhausted),
		errors.Is(err, dks.ErrShort),
		errors.Is(err, crypto.ErrCCMAuthFailed):
		return ErrCrypto
	}
	return ErrProtocol
}
