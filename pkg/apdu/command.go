package apdu

import (
	iso7816 "github.com/skythen/apdu"
)

// Instruction bytes used by the HomeKey flow.
const (
	InsSelect      byte = 0xA4
	InsGetResponse byte = 0xC0
	InsEnvelope    byte = 0xC3
	InsExchange    byte = 0xC9
	InsControlFlow byte = 0x3C
)

// Envelope P2 values.
const (
	EnvelopeFinal byte = 0x00
	EnvelopeFirst byte = 0x01
)

// Select builds SELECT by AID with Le=00.
func Select(aid []byte) ([]byte, error) {
	c := iso7816.Capdu{Cla: 0x00, Ins: InsSelect, P1: 0x04, P2: 0x00, Data: aid, Ne: 256}
	return c.Bytes()
}

// ControlFlow builds the proprietary control-flow command 80 3C P1 P2.
func ControlFlow(p1, p2 byte) ([]byte, error) {
	c := iso7816.Capdu{Cla: 0x80, Ins: InsControlFlow, P1: p1, P2: p2}
	return c.Bytes()
}

// Envelope builds 00 C3 00 P2 Lc data.
func Envelope(p2 byte, data []byte) ([]byte, error) {
	c := iso7816.Capdu{Cla: 0x00, Ins: InsEnvelope, P1: 0x00, P2: p2, Data: data}
	return c.Bytes()
}

// Exchange builds the secure-messaging exchange 84 C9 00 00 Lc data.
func Exchange(data []byte) ([]byte, error) {
	c := iso7816.Capdu{Cla: 0x84, Ins: InsExchange, P1: 0x00, P2: 0x00, Data: data}
	return c.Bytes()
}

// GetResponse builds 00 C0 00 00 Le. A zero le requests the maximum.
func GetResponse(le byte) ([]byte, error) {
	ne := int(le)
	if ne == 0 {
		ne = 256
	}
	c := iso7816.Capdu{Cla: 0x00, Ins: InsGetResponse, P1: 0x00, P2: 0x00, Ne: ne}
	return c.Bytes()
}

// Header is the parsed four-octet command header plus its data field.
type Header struct {
	Cla, Ins, P1, P2 byte
	Data             []byte
	Ne               int
}

// ParseCommand decodes a command APDU.
func ParseCommand(cmd []byte) (Header, error) {
	c, err := iso7816.ParseCapdu(cmd)
	if err != nil {
		return Header{}, err
	}
	return Header{Cla: c.Cla, Ins: c.Ins, P1: c.P1, P2: c.P2, Data: c.Data, Ne: c.Ne}, nil
}

// Response encodes data followed by sw.
func Response(data []byte, sw SW) []byte {
	r := iso7816.Rapdu{Data: data, SW1: sw.SW1(), SW2: sw.SW2()}
	b, err := r.Bytes()
	if err != nil {
		// Only oversized data fails; fall back to a plain append.
		return append(append([]byte{}, data...), sw.SW1(), sw.SW2())
	}
	return b
}
