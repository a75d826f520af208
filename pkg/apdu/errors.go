package apdu

import "errors"

var (
	// ErrIO is returned when the underlying link fails or returns fewer than
	// two octets.
	ErrIO = errors.New("apdu: i/o failure")

	// ErrResponseTooLarge is returned when a reassembled response exceeds the
	// configured limit.
	ErrResponseTooLarge = errors.New("apdu: response too large")

	// ErrTooManyChunks is returned when a response needs more continuation
	// commands than the configured limit.
	ErrTooManyChunks = errors.New("apdu: too many response chunks")

	// ErrNoExchanger is returned when a transport is built without a link.
	ErrNoExchanger = errors.New("apdu: no exchanger configured")
)
