// AES-128-CCM (NIST 800-38C, RFC 3610) as used by ISO/IEC 18013-5 session
// encryption between a reader and a mobile endpoint:
//   - key length 16 octets
//   - tag length 16 octets
//   - nonce length 13 octets (L = 2)

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

const (
	// CCMKeySize is the AES-128 key size in bytes.
	CCMKeySize = 16

	// CCMTagSize is the authentication tag size in bytes.
	CCMTagSize = 16

	// CCMNonceSize is the nonce size in bytes.
	CCMNonceSize = 13

	blockSize = aes.BlockSize
)

var (
	ErrCCMInvalidKeySize     = errors.New("ccm: invalid key size, must be 16 bytes")
	ErrCCMInvalidNonceSize   = errors.New("ccm: invalid nonce size")
	ErrCCMInvalidTagSize     = errors.New("ccm: invalid tag size, must be 4, 6, 8, 10, 12, 14, or 16")
	ErrCCMPlaintextTooLong   = errors.New("ccm: plaintext too long")
	ErrCCMCiphertextTooShort = errors.New("ccm: ciphertext too short")
	ErrCCMAuthFailed         = errors.New("ccm: message authentication failed")
)

// CCM is an AES-128-CCM AEAD instance.
type CCM struct {
	block   cipher.Block
	tagSize int // M
	lenSize int // L = 15 - nonce size
}

// NewCCM returns an AES-128-CCM cipher with a 13-byte nonce and 16-byte tag.
func NewCCM(key []byte) (*CCM, error) {
	return NewCCMWithParams(key, CCMNonceSize, CCMTagSize)
}

// NewCCMWithParams returns an AES-128-CCM cipher with the given nonce and
// tag sizes. nonceSize must be 7..13, tagSize one of 4, 6, ..., 16.
func NewCCMWithParams(key []byte, nonceSize, tagSize int) (*CCM, error) {
	if len(key) != CCMKeySize {
		return nil, ErrCCMInvalidKeySize
	}
	lenSize := 15 - nonceSize
	if lenSize < 2 || lenSize > 8 {
		return nil, ErrCCMInvalidNonceSize
	}
	if tagSize < 4 || tagSize > 16 || tagSize%2 != 0 {
		return nil, ErrCCMInvalidTagSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CCM{block: block, tagSize: tagSize, lenSize: lenSize}, nil
}

// NonceSize returns the nonce size expected by Seal and Open.
func (c *CCM) NonceSize() int {
	return 15 - c.lenSize
}

// Overhead returns the number of tag bytes appended by Seal.
func (c *CCM) Overhead() int {
	return c.tagSize
}

// Seal encrypts and authenticates plaintext, returning ciphertext || tag.
func (c *CCM) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != c.NonceSize() {
		return nil, ErrCCMInvalidNonceSize
	}
	if c.lenSize < 8 && uint64(len(plaintext)) >= uint64(1)<<(8*c.lenSize) {
		return nil, ErrCCMPlaintextTooLong
	}

	tag := c.mac(nonce, plaintext, aad)

	out := make([]byte, len(plaintext)+c.tagSize)
	c.ctr(nonce, out[:len(plaintext)], plaintext)

	s0 := c.s0(nonce)
	subtle.XORBytes(out[len(plaintext):], tag, s0[:c.tagSize])
	return out, nil
}

// Open verifies and decrypts ciphertext || tag.
func (c *CCM) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != c.NonceSize() {
		return nil, ErrCCMInvalidNonceSize
	}
	if len(ciphertext) < c.tagSize {
		return nil, ErrCCMCiphertextTooShort
	}

	body := ciphertext[:len(ciphertext)-c.tagSize]
	sealedTag := ciphertext[len(ciphertext)-c.tagSize:]

	s0 := c.s0(nonce)
	received := make([]byte, c.tagSize)
	subtle.XORBytes(received, sealedTag, s0[:c.tagSize])

	plaintext := make([]byte, len(body))
	c.ctr(nonce, plaintext, body)

	if subtle.ConstantTimeCompare(received, c.mac(nonce, plaintext, aad)) != 1 {
		clear(plaintext)
		return nil, ErrCCMAuthFailed
	}
	return plaintext, nil
}

// mac computes the CBC-MAC T over B_0 || encoded(aad) || plaintext.
func (c *CCM) mac(nonce, plaintext, aad []byte) []byte {
	var b0 [blockSize]byte
	b0[0] = byte((c.tagSize-2)/2)<<3 | byte(c.lenSize-1)
	if len(aad) > 0 {
		b0[0] |= 1 << 6
	}
	n := copy(b0[1:], nonce)
	length := uint64(len(plaintext))
	for i := blockSize - 1; i > n; i-- {
		b0[i] = byte(length)
		length >>= 8
	}

	x := make([]byte, blockSize)
	c.block.Encrypt(x, b0[:])

	if len(aad) > 0 {
		var hdr []byte
		switch {
		case len(aad) < 0xFF00:
			hdr = binary.BigEndian.AppendUint16(nil, uint16(len(aad)))
		case uint64(len(aad)) < 1<<32:
			hdr = binary.BigEndian.AppendUint32([]byte{0xFF, 0xFE}, uint32(len(aad)))
		default:
			hdr = binary.BigEndian.AppendUint64([]byte{0xFF, 0xFF}, uint64(len(aad)))
		}
		c.absorb(x, append(hdr, aad...))
	}
	c.absorb(x, plaintext)

	return x[:c.tagSize]
}

// absorb runs the CBC-MAC over data, zero-padded to a block multiple.
func (c *CCM) absorb(x, data []byte) {
	for len(data) > 0 {
		var blk [blockSize]byte
		n := copy(blk[:], data)
		data = data[n:]
		subtle.XORBytes(x, x, blk[:])
		c.block.Encrypt(x, x)
	}
}

// counterBlock returns A_i with the counter field set to i.
func (c *CCM) counterBlock(nonce []byte, i byte) []byte {
	a := make([]byte, blockSize)
	a[0] = byte(c.lenSize - 1)
	copy(a[1:], nonce)
	a[blockSize-1] = i
	return a
}

func (c *CCM) s0(nonce []byte) []byte {
	s := make([]byte, blockSize)
	c.block.Encrypt(s, c.counterBlock(nonce, 0))
	return s
}

// ctr encrypts src into dst with the keystream starting at A_1.
// The counter occupies the trailing L octets and never carries into the
// nonce for messages within the length limit, so a full-block CTR is exact.
func (c *CCM) ctr(nonce []byte, dst, src []byte) {
	if len(src) == 0 {
		return
	}
	cipher.NewCTR(c.block, c.counterBlock(nonce, 1)).XORKeyStream(dst, src)
}

// SealCCM encrypts plaintext with a one-shot AES-128-CCM cipher.
func SealCCM(key, nonce, plaintext, aad []byte) ([]byte, error) {
	ccm, err := NewCCM(key)
	if err != nil {
		return nil, err
	}
	return ccm.Seal(nonce, plaintext, aad)
}

// OpenCCM decrypts ciphertext with a one-shot AES-128-CCM cipher.
func OpenCCM(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	ccm, err := NewCCM(key)
	if err != nil {
		return nil, err
	}
	return ccm.Open(nonce, ciphertext, aad)
}
