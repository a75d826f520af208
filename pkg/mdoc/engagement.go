package mdoc

import "fmt"

// Version is the engagement and request structure version.
const Version = "1.0"

// ReaderCapability is the capability octet advertised by the reader.
const ReaderCapability = 0x29

// Engagement is the {0: version, 1: [...]} map exchanged during NFC
// handover. Entries of the second field are kept opaque.
type Engagement struct {
	Version string `cbor:"0,keyasint"`
	Fields  []any  `cbor:"1,keyasint"`
}

// ReaderEngagement returns the reader engagement payload {0: "1.0", 1: [0x29]}.
func ReaderEngagement() ([]byte, error) {
	return encMode.Marshal(Engagement{Version: Version, Fields: []any{uint64(ReaderCapability)}})
}

// DecodeEngagement decodes an engagement payload and checks its version.
func DecodeEngagement(data []byte) (*Engagement, error) {
	var e Engagement
	if err := Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Version == "" {
		return nil, fmt.Errorf("%w: engagement without version", ErrMalformed)
	}
	return &e, nil
}
