package session

import (
	"errors"
	"fmt"
)

// Session package errors.
var (
	// ErrCrypto is the class of key derivation and AEAD failures.
	ErrCrypto = errors.New("session: cryptographic failure")

	// ErrState is returned when a context is used after a failure or Close.
	ErrState = errors.New("session: context no longer usable")

	// ErrMalformed is returned when a session message cannot be decoded.
	ErrMalformed = errors.New("session: malformed message")

	// ErrInvalidRole is returned when the role is not Reader or Endpoint.
	ErrInvalidRole = errors.New("session: invalid role")

	// ErrInvalidKeyLength is returned for a key length other than 16.
	ErrInvalidKeyLength = fmt.Errorf("%w: invalid key length", ErrCrypto)

	// ErrInvalidSecret is returned when the shared secret is empty.
	ErrInvalidSecret = fmt.Errorf("%w: empty shared secret", ErrCrypto)

	// ErrCounterExhausted is returned when a direction's counter would wrap.
	// The flow must be restarted.
	ErrCounterExhausted = fmt.Errorf("%w: message counter exhausted", ErrCrypto)

	// ErrAuthFailed is returned when a received message fails verification.
	ErrAuthFailed = fmt.Errorf("%w: message authentication failed", ErrCrypto)
)
