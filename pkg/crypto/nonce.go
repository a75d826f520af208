package crypto

import "encoding/binary"

// Direction identifiers carried in the session nonce.
const (
	// DirectionEndpoint marks messages sent by the mobile endpoint.
	DirectionEndpoint byte = 0x00

	// DirectionReader marks messages sent by the reader.
	DirectionReader byte = 0x01
)

// BuildSessionNonce returns the 13-octet AES-CCM nonce for a session message:
//
//	8 zero octets || direction (1) || counter (4, big-endian)
func BuildSessionNonce(direction byte, counter uint32) []byte {
	nonce := make([]byte, CCMNonceSize)
	nonce[8] = direction
	binary.BigEndian.PutUint32(nonce[9:], counter)
	return nonce
}
