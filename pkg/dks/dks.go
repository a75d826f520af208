// Package dks models the HomeKey device key session: the secure messaging
// channel established by the authentication flow that precedes attestation.
//
// Session is what the attestation driver consumes. Static is a symmetric
// implementation keyed from a fixed 16-octet key, used by the endpoint
// emulator and for bench testing without a full authentication flow.
package dks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/homekey-reader/pkg/crypto"
)

// MACSize is the length of the command and response MAC.
const MACSize = 8

var (
	ErrInvalidKey   = errors.New("dks: invalid key length")
	ErrAuthFailed   = errors.New("dks: message authentication failed")
	ErrShort        = errors.New("dks: response shorter than MAC")
	ErrExhausted    = errors.New("dks: counter exhausted")
	ErrSessionEnded = errors.New("dks: session ended")
)

// Session is an established device key session as seen by the reader.
type Session interface {
	// EncryptCommand protects a command payload for the endpoint.
	EncryptCommand(apdu []byte) (ciphertext, mac, nonce []byte, err error)

	// DecryptResponse verifies and decrypts a protected response payload
	// laid out as ciphertext || mac.
	DecryptResponse(resp []byte) ([]byte, error)
}

// Static is a device key session over AES-128-CCM with an 8-octet MAC and a
// counter nonce per direction. The same type serves both sides: the reader
// uses EncryptCommand and DecryptResponse, the endpoint DecryptCommand and
// EncryptResponse.
type Static struct {
	ccm *crypto.CCM

	cmdCounter  uint32
	respCounter uint32
	ended       bool
	mu          sync.Mutex
}

// NewStatic creates a session from a 16-octet key. Counters start at 1.
func NewStatic(key []byte) (*Static, error) {
	if len(key) != crypto.CCMKeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKey, len(key))
	}
	ccm, err := crypto.NewCCMWithParams(key, crypto.CCMNonceSize, MACSize)
	if err != nil {
		return nil, err
	}
	return &Static{ccm: ccm, cmdCounter: 1, respCounter: 1}, nil
}

func (s *Static) next(counter *uint32, direction byte) ([]byte, error) {
	if s.ended {
		return nil, ErrSessionEnded
	}
	if *counter == 0 {
		return nil, ErrExhausted
	}
	nonce := crypto.BuildSessionNonce(direction, *counter)
	*counter++
	return nonce, nil
}

// EncryptCommand implements Session.
func (s *Static) EncryptCommand(apdu []byte) (ciphertext, mac, nonce []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err = s.next(&s.cmdCounter, crypto.DirectionReader)
	if err != nil {
		return nil, nil, nil, err
	}
	sealed, err := s.ccm.Seal(nonce, apdu, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	n := len(sealed) - MACSize
	return sealed[:n:n], sealed[n:], nonce, nil
}

// DecryptResponse implements Session.
func (s *Static) DecryptResponse(resp []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(resp) < MACSize {
		return nil, ErrShort
	}
	nonce, err := s.next(&s.respCounter, crypto.DirectionEndpoint)
	if err != nil {
		return nil, err
	}
	return s.open(nonce, resp)
}

// DecryptCommand verifies and decrypts a command protected by
// EncryptCommand on the peer.
func (s *Static) DecryptCommand(ciphertext, mac []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.next(&s.cmdCounter, crypto.DirectionReader)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(mac))
	sealed = append(append(sealed, ciphertext...), mac...)
	return s.open(nonce, sealed)
}

// EncryptResponse protects a response payload as ciphertext || mac.
func (s *Static) EncryptResponse(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.next(&s.respCounter, crypto.DirectionEndpoint)
	if err != nil {
		return nil, err
	}
	return s.ccm.Seal(nonce, plaintext, nil)
}

func (s *Static) open(nonce, sealed []byte) ([]byte, error) {
	pt, err := s.ccm.Open(nonce, sealed, nil)
	if err != nil {
		s.ended = true
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return pt, nil
}
