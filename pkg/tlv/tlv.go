// Package tlv packs simple-TLV and parses BER-TLV as carried in ISO-7816
// envelope commands.
//
// Tags are one or two octets; lengths use the short form or the 0x81 / 0x82
// long forms. The indefinite form (0x80) and longer length forms are
// rejected.
package tlv

import (
	"github.com/pkg/errors"
)

// MaxValueLen is the largest value length expressible with a 0x82 length.
const MaxValueLen = 0xFFFF

// TLV is one decoded element. Value aliases the input buffer.
type TLV struct {
	Tag   uint16
	Value []byte
}

// Constructed reports whether the tag's first octet has the constructed bit
// set, meaning Value itself encodes a TLV sequence.
func (t TLV) Constructed() bool {
	first := byte(t.Tag)
	if t.Tag > 0xFF {
		first = byte(t.Tag >> 8)
	}
	return first&0x20 != 0
}

// Children decodes Value as a nested TLV sequence.
func (t TLV) Children() ([]TLV, error) {
	return Unpack(t.Value)
}

// Pack encodes a simple-TLV with a one-octet tag.
func Pack(tag byte, value []byte) ([]byte, error) {
	return Append(nil, tag, value)
}

// Append encodes a simple-TLV and appends it to buf. Tags whose low five bits
// are all set introduce a multi-octet BER tag and cannot be packed here.
func Append(buf []byte, tag byte, value []byte) ([]byte, error) {
	if tag&0x1F == 0x1F {
		return nil, errors.Wrapf(ErrInvalidTag, "%#x", tag)
	}
	buf = append(buf, tag)
	buf, err := appendLength(buf, len(value))
	if err != nil {
		return nil, err
	}
	return append(buf, value...), nil
}

func appendLength(buf []byte, l int) ([]byte, error) {
	switch {
	case l < 0x80:
		return append(buf, byte(l)), nil
	case l <= 0xFF:
		return append(buf, 0x81, byte(l)), nil
	case l <= MaxValueLen:
		return append(buf, 0x82, byte(l>>8), byte(l)), nil
	default:
		return nil, errors.Wrapf(ErrTooLong, "length %d", l)
	}
}

// Unpack parses a BER-TLV sequence at the top level. The whole input must be
// consumed; trailing octets are malformed.
func Unpack(data []byte) ([]TLV, error) {
	var out []TLV
	off := 0
	for off < len(data) {
		t, n, err := next(data[off:])
		if err != nil {
			return nil, errors.Wrapf(err, "at offset %d", off)
		}
		out = append(out, t)
		off += n
	}
	return out, nil
}

// UnpackOne parses data as exactly one TLV.
func UnpackOne(data []byte) (TLV, error) {
	t, n, err := next(data)
	if err != nil {
		return TLV{}, err
	}
	if n != len(data) {
		return TLV{}, errors.Wrapf(ErrMalformed, "%d trailing octets after tag %x", len(data)-n, t.Tag)
	}
	return t, nil
}

// Find returns the first top-level element with the given tag.
func Find(tag uint16, tlvs []TLV) (TLV, bool) {
	for _, t := range tlvs {
		if t.Tag == tag {
			return t, true
		}
	}
	return TLV{}, false
}

// next decodes a single element and returns it with the octets consumed.
func next(data []byte) (TLV, int, error) {
	if len(data) == 0 {
		return TLV{}, 0, errors.Wrap(ErrMalformed, "empty input")
	}

	tag := uint16(data[0])
	off := 1
	if data[0]&0x1F == 0x1F {
		if len(data) < 2 {
			return TLV{}, 0, errors.Wrapf(ErrMalformed, "truncated tag %x", data[0])
		}
		if data[1]&0x80 != 0 {
			return TLV{}, 0, errors.Wrapf(ErrMalformed, "tag %x%x longer than two octets", data[0], data[1])
		}
		tag = tag<<8 | uint16(data[1])
		off = 2
	}

	if off >= len(data) {
		return TLV{}, 0, errors.Wrapf(ErrMalformed, "missing length for tag %x", tag)
	}

	var length int
	switch l := data[off]; {
	case l < 0x80:
		length = int(l)
		off++
	case l == 0x80:
		return TLV{}, 0, errors.Wrapf(ErrMalformed, "indefinite length for tag %x", tag)
	case l == 0x81:
		if off+2 > len(data) {
			return TLV{}, 0, errors.Wrapf(ErrMalformed, "truncated length for tag %x", tag)
		}
		length = int(data[off+1])
		off += 2
	case l == 0x82:
		if off+3 > len(data) {
			return TLV{}, 0, errors.Wrapf(ErrMalformed, "truncated length for tag %x", tag)
		}
		length = int(data[off+1])<<8 | int(data[off+2])
		off += 3
	default:
		return TLV{}, 0, errors.Wrapf(ErrMalformed, "length form %#x for tag %x", l, tag)
	}

	if len(data)-off < length {
		return TLV{}, 0, errors.Wrapf(ErrMalformed, "tag %x wants %d octets, have %d", tag, length, len(data)-off)
	}
	return TLV{Tag: tag, Value: data[off : off+length]}, off + length, nil
}
