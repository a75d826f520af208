// Package ndef encodes and decodes NFC Data Exchange Format messages.
//
// Chunked records are not supported; decoding one fails.
package ndef

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Record header flags.
const (
	FlagMB = 0x80 // message begin
	FlagME = 0x40 // message end
	FlagCF = 0x20 // chunk flag
	FlagSR = 0x10 // short record
	FlagIL = 0x08 // ID length present

	tnfMask = 0x07
)

// TNF is the 3-bit type name format of a record.
type TNF uint8

const (
	TNFEmpty       TNF = 0x00
	TNFWellKnown   TNF = 0x01
	TNFMedia       TNF = 0x02
	TNFAbsoluteURI TNF = 0x03
	TNFExternal    TNF = 0x04
	TNFUnknown     TNF = 0x05
	TNFUnchanged   TNF = 0x06
	TNFReserved    TNF = 0x07
)

func (t TNF) String() string {
	switch t {
	case TNFEmpty:
		return "Empty"
	case TNFWellKnown:
		return "WellKnown"
	case TNFMedia:
		return "Media"
	case TNFAbsoluteURI:
		return "AbsoluteURI"
	case TNFExternal:
		return "External"
	case TNFUnknown:
		return "Unknown"
	case TNFUnchanged:
		return "Unchanged"
	default:
		return "Reserved"
	}
}

var (
	ErrMalformed   = errors.New("ndef: malformed message")
	ErrEmpty       = errors.New("ndef: message has no records")
	ErrFieldTooBig = errors.New("ndef: record field too long")
)

// Record is a single NDEF record. Message-level flags are derived from the
// record's position and are not stored.
type Record struct {
	TNF     TNF
	Type    []byte
	ID      []byte
	Payload []byte
}

// Equal reports whether two records carry the same fields.
func (r Record) Equal(o Record) bool {
	return r.TNF == o.TNF &&
		bytes.Equal(r.Type, o.Type) &&
		bytes.Equal(r.ID, o.ID) &&
		bytes.Equal(r.Payload, o.Payload)
}

// Pack encodes records as one message. MB is set on the first record and ME
// on the last; payloads up to 255 octets use the short-record form.
func Pack(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	var buf []byte
	for i, r := range records {
		if r.TNF > TNFReserved {
			return nil, fmt.Errorf("ndef: record %d: invalid TNF %d", i, r.TNF)
		}
		if len(r.Type) > 0xFF || len(r.ID) > 0xFF || uint64(len(r.Payload)) > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: record %d", ErrFieldTooBig, i)
		}

		header := byte(r.TNF)
		if i == 0 {
			header |= FlagMB
		}
		if i == len(records)-1 {
			header |= FlagME
		}
		short := len(r.Payload) <= 0xFF
		if short {
			header |= FlagSR
		}
		if len(r.ID) > 0 {
			header |= FlagIL
		}

		buf = append(buf, header, byte(len(r.Type)))
		if short {
			buf = append(buf, byte(len(r.Payload)))
		} else {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Payload)))
		}
		if len(r.ID) > 0 {
			buf = append(buf, byte(len(r.ID)))
		}
		buf = append(buf, r.Type...)
		buf = append(buf, r.ID...)
		buf = append(buf, r.Payload...)
	}
	return buf, nil
}

// Unpack decodes one message. Records are read until ME is seen; the input
// must end there. Field slices alias data.
func Unpack(data []byte) ([]Record, error) {
	var records []Record
	off := 0
	for {
		if off >= len(data) {
			return nil, fmt.Errorf("%w: truncated before message end", ErrMalformed)
		}
		header := data[off]
		first := len(records) == 0
		if first != (header&FlagMB != 0) {
			return nil, fmt.Errorf("%w: record %d has MB=%t", ErrMalformed, len(records), !first)
		}
		if header&FlagCF != 0 {
			return nil, fmt.Errorf("%w: chunked record %d", ErrMalformed, len(records))
		}

		rec, n, err := decodeRecord(data[off:], header)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, len(records), err)
		}
		records = append(records, rec)
		off += n

		if header&FlagME != 0 {
			break
		}
	}
	if off != len(data) {
		return nil, fmt.Errorf("%w: %d octets after message end", ErrMalformed, len(data)-off)
	}
	return records, nil
}

func decodeRecord(data []byte, header byte) (Record, int, error) {
	off := 1
	need := func(n int) error {
		if len(data)-off < n {
			return fmt.Errorf("need %d octets at %d, have %d", n, off, len(data)-off)
		}
		return nil
	}

	if err := need(1); err != nil {
		return Record{}, 0, err
	}
	typeLen := int(data[off])
	off++

	var payloadLen uint64
	if header&FlagSR != 0 {
		if err := need(1); err != nil {
			return Record{}, 0, err
		}
		payloadLen = uint64(data[off])
		off++
	} else {
		if err := need(4); err != nil {
			return Record{}, 0, err
		}
		payloadLen = uint64(binary.BigEndian.Uint32(data[off:]))
		off += 4
	}

	idLen := 0
	if header&FlagIL != 0 {
		if err := need(1); err != nil {
			return Record{}, 0, err
		}
		idLen = int(data[off])
		off++
	}

	if uint64(len(data)-off) < uint64(typeLen)+uint64(idLen)+payloadLen {
		return Record{}, 0, fmt.Errorf("fields need %d octets, have %d", uint64(typeLen)+uint64(idLen)+payloadLen, len(data)-off)
	}

	rec := Record{TNF: TNF(header & tnfMask)}
	rec.Type = data[off : off+typeLen]
	off += typeLen
	rec.ID = data[off : off+idLen]
	off += idLen
	rec.Payload = data[off : off+int(payloadLen)]
	off += int(payloadLen)
	return rec, off, nil
}

// FindByType returns the first record whose type equals typ exactly.
func FindByType(records []Record, typ []byte) (Record, bool) {
	for _, r := range records {
		if bytes.Equal(r.Type, typ) {
			return r, true
		}
	}
	return Record{}, false
}
