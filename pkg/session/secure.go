package session

import (
	"fmt"
	"sync"

	"github.com/backkem/homekey-reader/pkg/crypto"
	"github.com/backkem/homekey-reader/pkg/mdoc"
)

// SessionKeySize is the only supported session key length.
const SessionKeySize = crypto.CCMKeySize

// HKDF info strings for the two directional keys.
var (
	infoReader = []byte("SKReader")
	infoDevice = []byte("SKDevice")
)

// SecureContext holds the keys and counters of one secure messaging session.
type SecureContext struct {
	role Role

	readerKey []byte // SKReader, reader to endpoint
	deviceKey []byte // SKDevice, endpoint to reader

	outCounter uint32
	inCounter  uint32

	failed bool
	mu     sync.Mutex
}

// New derives a reader-role context from the shared secret and salt.
func New(sharedSecret, salt []byte, keyLen int) (*SecureContext, error) {
	return NewWithRole(RoleReader, sharedSecret, salt, keyLen)
}

// NewEndpoint derives the endpoint-role counterpart of New.
func NewEndpoint(sharedSecret, salt []byte, keyLen int) (*SecureContext, error) {
	return NewWithRole(RoleEndpoint, sharedSecret, salt, keyLen)
}

// NewWithRole derives both session keys and returns a context for role.
// Both counters start at 1.
func NewWithRole(role Role, sharedSecret, salt []byte, keyLen int) (*SecureContext, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	if keyLen != SessionKeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(sharedSecret) == 0 {
		return nil, ErrInvalidSecret
	}

	readerKey, err := crypto.HKDFSHA256(sharedSecret, salt, infoReader, keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	deviceKey, err := crypto.HKDFSHA256(sharedSecret, salt, infoDevice, keyLen)
	if err != nil {
		crypto.Zeroize(readerKey)
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	return &SecureContext{
		role:       role,
		readerKey:  readerKey,
		deviceKey:  deviceKey,
		outCounter: 1,
		inCounter:  1,
	}, nil
}

// Role returns the local role.
func (s *SecureContext) Role() Role {
	return s.role
}

// Counters returns the counters the next outbound and inbound messages will
// use.
func (s *SecureContext) Counters() (out, in uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outCounter, s.inCounter
}

// Failed reports whether the context has seen an error or been closed.
func (s *SecureContext) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *SecureContext) keys() (out, in []byte) {
	if s.role == RoleReader {
		return s.readerKey, s.deviceKey
	}
	return s.deviceKey, s.readerKey
}

// Encrypt frames plaintext as {"data": plaintext, "status": 20}, seals it
// with the outbound key and counter, and returns {"data": ciphertext||tag}.
func (s *SecureContext) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return nil, ErrState
	}
	if s.outCounter == 0 {
		return nil, s.fail(ErrCounterExhausted)
	}

	status := mdoc.StatusSessionData
	framed, err := mdoc.EncodeSessionData(plaintext, &status)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	defer crypto.Zeroize(framed)

	outDir, _ := s.role.directions()
	key, _ := s.keys()
	nonce := crypto.BuildSessionNonce(outDir, s.outCounter)

	sealed, err := crypto.SealCCM(key, nonce, framed, nil)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %v", ErrCrypto, err))
	}
	s.outCounter++

	msg, err := mdoc.EncodeSessionData(sealed, nil)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	return msg, nil
}

// Decrypt reverses the peer's Encrypt with the inbound key and counter and
// returns the inner data. Any failure is terminal for the context.
func (s *SecureContext) Decrypt(msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return nil, ErrState
	}
	if s.inCounter == 0 {
		return nil, s.fail(ErrCounterExhausted)
	}

	outer, err := mdoc.DecodeSessionData(msg)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	_, inDir := s.role.directions()
	_, key := s.keys()
	nonce := crypto.BuildSessionNonce(inDir, s.inCounter)

	framed, err := crypto.OpenCCM(key, nonce, outer.Data, nil)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: counter %d: %v", ErrAuthFailed, s.inCounter, err))
	}
	defer crypto.Zeroize(framed)
	s.inCounter++

	inner, err := mdoc.DecodeSessionData(framed)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	return append([]byte(nil), inner.Data...), nil
}

// Close zeroes the session keys. The context cannot be used afterwards.
func (s *SecureContext) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zeroize()
	s.failed = true
}

// fail marks the context unusable, zeroes its keys and returns err.
func (s *SecureContext) fail(err error) error {
	s.zeroize()
	s.failed = true
	return err
}

func (s *SecureContext) zeroize() {
	crypto.Zeroize(s.readerKey, s.deviceKey)
}
