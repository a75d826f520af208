package apdu

import "fmt"

// SW is an ISO-7816 status word (SW1 << 8 | SW2).
type SW uint16

// Common status words.
const (
	SWSuccess              SW = 0x9000
	SWWrongLength          SW = 0x6700
	SWSecurityNotSatisfied SW = 0x6982
	SWConditionsNotMet     SW = 0x6985
	SWWrongData            SW = 0x6A80
	SWFileNotFound         SW = 0x6A82
	SWWrongP1P2            SW = 0x6B00
	SWInsNotSupported      SW = 0x6D00
	SWClaNotSupported      SW = 0x6E00
	SWUnknown              SW = 0x6F00
)

// ChunkMarker is the SW2 value of a non-final application chunk.
const ChunkMarker = 0xFD

// NewSW builds a status word from its two octets.
func NewSW(sw1, sw2 byte) SW {
	return SW(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high octet.
func (s SW) SW1() byte { return byte(s >> 8) }

// SW2 returns the low octet.
func (s SW) SW2() byte { return byte(s) }

// IsSuccess reports whether s is 9000.
func (s SW) IsSuccess() bool { return s == SWSuccess }

// MoreData reports whether s is 61xx and returns xx.
func (s SW) MoreData() (byte, bool) {
	return s.SW2(), s.SW1() == 0x61
}

// ChunkPending reports whether s carries the application chunk marker.
// 61FD is a GET RESPONSE request, not a chunk marker.
func (s SW) ChunkPending() bool {
	return s.SW2() == ChunkMarker && s.SW1() != 0x61
}

func (s SW) String() string {
	if d := s.describe(); d != "" {
		return fmt.Sprintf("%04X (%s)", uint16(s), d)
	}
	return fmt.Sprintf("%04X", uint16(s))
}

func (s SW) describe() string {
	switch s {
	case SWSuccess:
		return "success"
	case SWWrongLength:
		return "wrong length"
	case SWSecurityNotSatisfied:
		return "security status not satisfied"
	case SWConditionsNotMet:
		return "conditions of use not satisfied"
	case SWWrongData:
		return "incorrect data"
	case SWFileNotFound:
		return "file or application not found"
	case SWWrongP1P2:
		return "wrong parameters P1-P2"
	case SWInsNotSupported:
		return "instruction not supported"
	case SWClaNotSupported:
		return "class not supported"
	case SWUnknown:
		return "no precise diagnosis"
	}
	switch s.SW1() {
	case 0x61:
		return fmt.Sprintf("%d octets available", s.SW2())
	case 0x6C:
		return fmt.Sprintf("wrong Le, %d expected", s.SW2())
	case 0x63:
		return "warning, non-volatile memory changed"
	}
	if s.ChunkPending() {
		return "chunk pending"
	}
	return ""
}

// StatusError reports a command that completed with an unexpected status.
type StatusError struct {
	Ins byte
	SW  SW
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apdu: INS %02X returned %s", e.Ins, e.SW)
}

// Split separates a response into its data field and status word.
func Split(resp []byte) ([]byte, SW, error) {
	if len(resp) < 2 {
		return nil, 0, fmt.Errorf("%w: %d-octet response", ErrIO, len(resp))
	}
	n := len(resp) - 2
	return resp[:n], NewSW(resp[n], resp[n+1]), nil
}

// Expect splits resp and returns its data when the status is 9000, or a
// *StatusError naming ins otherwise.
func Expect(ins byte, resp []byte) ([]byte, error) {
	data, sw, err := Split(resp)
	if err != nil {
		return nil, err
	}
	if !sw.IsSuccess() {
		return nil, &StatusError{Ins: ins, SW: sw}
	}
	return data, nil
}
