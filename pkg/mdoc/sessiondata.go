package mdoc

import "fmt"

// StatusSessionData is the status carried in framed plaintext.
const StatusSessionData uint = 20

// SessionData is the {"data": bstr, "status": uint} envelope used for both
// the plaintext framing and the encrypted message.
type SessionData struct {
	Data   []byte `cbor:"data"`
	Status *uint  `cbor:"status,omitempty"`
}

// EncodeSessionData encodes {"data": data} with an optional status.
func EncodeSessionData(data []byte, status *uint) ([]byte, error) {
	return encMode.Marshal(SessionData{Data: data, Status: status})
}

// DecodeSessionData decodes a session data map and requires a data field.
func DecodeSessionData(b []byte) (*SessionData, error) {
	var sd SessionData
	if err := Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	if sd.Data == nil {
		return nil, fmt.Errorf("%w: session data without data", ErrMalformed)
	}
	return &sd, nil
}
