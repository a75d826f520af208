package tlv

import "github.com/pkg/errors"

var (
	// ErrMalformed is returned for any TLV that cannot be decoded.
	ErrMalformed = errors.New("tlv: malformed")

	// ErrTooLong is returned when a value does not fit a two-octet length.
	ErrTooLong = errors.New("tlv: value too long")

	// ErrInvalidTag is returned when packing a tag that reads back as a
	// multi-octet BER tag.
	ErrInvalidTag = errors.New("tlv: invalid simple-TLV tag")
)
