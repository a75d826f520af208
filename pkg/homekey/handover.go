package homekey

import (
	"fmt"

	"github.com/backkem/homekey-reader/pkg/mdoc"
	"github.com/backkem/homekey-reader/pkg/ndef"
	"github.com/backkem/homekey-reader/pkg/tlv"
)

// AID is the HomeKey attestation applet identifier.
var AID = []byte{0xA0, 0x00, 0x00, 0x08, 0x58, 0x01, 0x02}

// TLV tags used in the attestation commands.
const (
	TagEnvelope   byte = 0x53
	TagSecret     byte = 0xC0
	TagCommandMAC byte = 0x8E
)

// Control-flow parameters sent before selecting the applet.
const (
	ControlFlowP1 byte = 0x40
	ControlFlowP2 byte = 0xA0
)

// NDEF record types exchanged during handover.
const (
	TypeHandoverRequest  = "Hr"
	TypeHandoverSelect   = "Hs"
	TypeNFCCarrier       = "iso.org:18013:nfc"
	TypeReaderEngagement = "iso.org:18013:readerengagement"
	TypeDeviceEngagement = "iso.org:18013:deviceengagement"
)

var (
	// Handover request version 1.5 with a collision resolution record and
	// one alternative carrier pointing at carrier data reference "nfc".
	handoverRequestPayload = []byte{
		0x15,
		0x91, 0x02, 0x02, 'c', 'r', 0x00, 0x00,
		0x51, 0x02, 0x08, 'a', 'c', 0x01, 0x03, 'n', 'f', 'c', 0x01, 0x01, '0',
	}

	nfcCarrierPayload = []byte{0x01, 0x01, 0x02, 0x00, 0xFF, 0x02, 0x02, 0x01, 0x00}
)

// ReaderRecords returns the reader's handover request records.
func ReaderRecords() ([]ndef.Record, error) {
	engagement, err := mdoc.ReaderEngagement()
	if err != nil {
		return nil, err
	}
	return []ndef.Record{
		{TNF: ndef.TNFWellKnown, Type: []byte(TypeHandoverRequest), Payload: handoverRequestPayload},
		{TNF: ndef.TNFExternal, Type: []byte(TypeNFCCarrier), ID: []byte("nfc"), Payload: nfcCarrierPayload},
		{TNF: ndef.TNFExternal, Type: []byte(TypeReaderEngagement), ID: []byte("0"), Payload: engagement},
	}, nil
}

// ReaderNDEF returns the encoded handover request message sent in
// envelope 1.
func ReaderNDEF() ([]byte, error) {
	records, err := ReaderRecords()
	if err != nil {
		return nil, err
	}
	return ndef.Pack(records)
}

// splitHandover extracts the device NDEF message and the device engagement
// payload from an envelope 1 response body. The body is either the raw NDEF
// message or a 53 TLV around it; a valid first record never starts with
// 0x53 because MB would be clear.
func splitHandover(body []byte) (deviceNdef, deviceEngagement []byte, err error) {
	deviceNdef = body
	if len(body) > 0 && body[0] == TagEnvelope {
		if t, err := tlv.UnpackOne(body); err == nil {
			deviceNdef = t.Value
		}
	}

	records, err := ndef.Unpack(deviceNdef)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := ndef.FindByType(records, []byte(TypeDeviceEngagement))
	if !ok {
		return nil, nil, fmt.Errorf("%w: no %s record in handover select", ErrProtocol, TypeDeviceEngagement)
	}
	return deviceNdef, rec.Payload, nil
}
