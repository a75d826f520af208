// Package session implements the ISO/IEC 18013-5 secure messaging context
// used after NFC handover.
//
// A SecureContext holds the two directional session keys derived with
// HKDF-SHA256 from a shared secret and the transcript salt, plus one message
// counter per direction. Every message is framed as session data, sealed with
// AES-128-CCM under a counter nonce and wrapped again as session data.
//
// A context that sees any failure is unusable afterwards and its keys are
// zeroed.
package session

import "github.com/backkem/homekey-reader/pkg/crypto"

// Role identifies which side of the session the local party plays. It
// selects the key and nonce direction used for each operation.
type Role int

const (
	// RoleUnknown indicates an uninitialized role.
	RoleUnknown Role = iota

	// RoleReader encrypts with SKReader and decrypts with SKDevice.
	RoleReader

	// RoleEndpoint encrypts with SKDevice and decrypts with SKReader.
	RoleEndpoint
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleReader:
		return "Reader"
	case RoleEndpoint:
		return "Endpoint"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is a defined value.
func (r Role) IsValid() bool {
	return r == RoleReader || r == RoleEndpoint
}

// directions returns the nonce direction octets for outbound and inbound
// messages.
func (r Role) directions() (out, in byte) {
	if r == RoleReader {
		return crypto.DirectionReader, crypto.DirectionEndpoint
	}
	return crypto.DirectionEndpoint, crypto.DirectionReader
}
