package nfc

import "errors"

// NFC link errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed link.
	ErrClosed = errors.New("nfc: closed")

	// ErrNoConn is returned when a relay is configured without a connection.
	ErrNoConn = errors.New("nfc: no connection configured")

	// ErrNoExchanger is returned when a server has nothing to answer with.
	ErrNoExchanger = errors.New("nfc: no exchanger configured")

	// ErrNoReaders is returned when PC/SC reports no readers.
	ErrNoReaders = errors.New("nfc: no readers found")

	// ErrReaderIndex is returned for a reader index outside the list.
	ErrReaderIndex = errors.New("nfc: reader index out of range")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("nfc: already started")

	// ErrEmptyFrame is returned for a zero-length relay frame.
	ErrEmptyFrame = errors.New("nfc: empty frame")

	// ErrFrameTooLarge is returned when an APDU does not fit a relay frame.
	ErrFrameTooLarge = errors.New("nfc: frame too large")
)
