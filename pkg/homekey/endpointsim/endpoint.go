// Package endpointsim emulates the mobile side of HomeKey attestation. An
// Endpoint answers the reader's command APDUs directly, so it can stand in
// for a phone behind an apdu.Exchanger in tests or behind a relay for bench
// runs.
package endpointsim

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"sync"

	"github.com/backkem/homekey-reader/pkg/apdu"
	"github.com/backkem/homekey-reader/pkg/crypto"
	"github.com/backkem/homekey-reader/pkg/dks"
	"github.com/backkem/homekey-reader/pkg/homekey"
	"github.com/backkem/homekey-reader/pkg/mdoc"
	"github.com/backkem/homekey-reader/pkg/ndef"
	"github.com/backkem/homekey-reader/pkg/session"
	"github.com/backkem/homekey-reader/pkg/tlv"
	"github.com/pion/logging"
)

// ErrLinkDown is returned by Exchange when FaultLinkDown is injected.
var ErrLinkDown = errors.New("endpointsim: link down")

// ChunkStatus is the status word of a non-final envelope chunk.
const ChunkStatus apdu.SW = 0xA0FD

// Fault selects a misbehaviour for negative tests.
type Fault int

const (
	FaultNone Fault = iota
	// FaultSelectNotFound answers SELECT with 6A82.
	FaultSelectNotFound
	// FaultNoEngagement omits the device engagement record.
	FaultNoEngagement
	// FaultBadExchangeMAC answers the exchange with a corrupt MAC.
	FaultBadExchangeMAC
	// FaultTamperResponse flips a bit in the encrypted mdoc response.
	FaultTamperResponse
	// FaultEmptyResponse encrypts an empty mdoc response.
	FaultEmptyResponse
	// FaultWrongEnvelopeTag wraps the envelope 2 reply in tag 54.
	FaultWrongEnvelopeTag
	// FaultLinkDown fails the envelope 2 exchange at the link level.
	FaultLinkDown
	// FaultShortResponse answers envelope 2 with a single octet.
	FaultShortResponse
	// FaultEmptyMapResponse encrypts an empty map as the mdoc response.
	FaultEmptyMapResponse
	// FaultNonCanonicalResponse encrypts {"x": 1} with a two-octet integer.
	FaultNonCanonicalResponse
)

// Config configures an Endpoint.
type Config struct {
	// DKSKey is the 16-octet static device key session key shared with the
	// reader. Required.
	DKSKey []byte

	// CredentialID is returned as the credential_id element.
	CredentialID []byte

	// IssuerKey signs issuerAuth. If nil, a P-256 key is generated.
	IssuerKey *ecdsa.PrivateKey

	// Engagement is the device engagement payload. If nil, a default
	// {0: "1.0", 1: [1, h'DEADBEEF']} is used.
	Engagement []byte

	// ChunkSize splits the envelope 2 reply into chunks of at most this
	// many octets. Zero sends it whole.
	ChunkSize int

	// UseMoreData chains with 61xx instead of the FD marker.
	UseMoreData bool

	// WrapHandover wraps the envelope 1 reply in a 53 TLV.
	WrapHandover bool

	// Fault injects a misbehaviour.
	Fault Fault

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Endpoint is an emulated HomeKey endpoint. It implements apdu.Exchanger.
type Endpoint struct {
	config     Config
	dks        *dks.Static
	issuer     *ecdsa.PrivateKey
	engagement []byte

	mu         sync.Mutex
	secret     []byte
	selected   bool
	readerNdef []byte
	deviceNdef []byte
	request    *mdoc.DeviceRequest
	pending    [][]byte
	log        logging.LeveledLogger
}

// New creates an Endpoint.
func New(config Config) (*Endpoint, error) {
	s, err := dks.NewStatic(config.DKSKey)
	if err != nil {
		return nil, err
	}
	issuer := config.IssuerKey
	if issuer == nil {
		if issuer, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader); err != nil {
			return nil, err
		}
	}
	engagement := config.Engagement
	if engagement == nil {
		engagement, err = mdoc.Marshal(mdoc.Engagement{
			Version: mdoc.Version,
			Fields:  []any{uint64(1), []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		})
		if err != nil {
			return nil, err
		}
	}

	e := &Endpoint{
		config:     config,
		dks:        s,
		issuer:     issuer,
		engagement: engagement,
	}
	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("endpoint-sim")
	}
	return e, nil
}

// Secret returns a copy of the secret received in the exchange command, or
// nil before it arrived.
func (e *Endpoint) Secret() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bytes.Clone(e.secret)
}

// Request returns the last decrypted device request.
func (e *Endpoint) Request() *mdoc.DeviceRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.request
}

// IssuerKey returns the public key that verifies issuerAuth.
func (e *Endpoint) IssuerKey() *ecdsa.PublicKey {
	return &e.issuer.PublicKey
}

// Exchange implements apdu.Exchanger.
func (e *Endpoint) Exchange(cmd []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := apdu.ParseCommand(cmd)
	if err != nil {
		return apdu.Response(nil, apdu.SWWrongLength), nil
	}
	if e.log != nil {
		e.log.Tracef("command %02X %02X %02X %02X, %d octets", h.Cla, h.Ins, h.P1, h.P2, len(h.Data))
	}

	if h.Ins == apdu.InsGetResponse {
		return e.nextChunk(), nil
	}
	e.pending = nil

	switch h.Ins {
	case apdu.InsExchange:
		return e.handleExchange(h)
	case apdu.InsControlFlow:
		return apdu.Response(nil, apdu.SWSuccess), nil
	case apdu.InsSelect:
		return e.handleSelect(h), nil
	case apdu.InsEnvelope:
		if !e.selected {
			return apdu.Response(nil, apdu.SWConditionsNotMet), nil
		}
		if h.P2 == apdu.EnvelopeFirst {
			return e.handleHandover(h)
		}
		return e.handleRequest(h)
	}
	return apdu.Response(nil, apdu.SWInsNotSupported), nil
}

func (e *Endpoint) handleExchange(h apdu.Header) ([]byte, error) {
	const macTLV = 2 + dks.MACSize
	n := len(h.Data) - macTLV
	if n < 0 || h.Data[n] != homekey.TagCommandMAC || h.Data[n+1] != dks.MACSize {
		return apdu.Response(nil, apdu.SWWrongData), nil
	}
	plaintext, err := e.dks.DecryptCommand(h.Data[:n], h.Data[n+2:])
	if err != nil {
		e.warnf("exchange: %v", err)
		return apdu.Response(nil, apdu.SWSecurityNotSatisfied), nil
	}
	t, err := tlv.UnpackOne(plaintext)
	if err != nil || t.Tag != uint16(homekey.TagSecret) || len(t.Value) != homekey.SecretSize {
		return apdu.Response(nil, apdu.SWWrongData), nil
	}
	e.secret = bytes.Clone(t.Value)
	crypto.Zeroize(plaintext)

	reply, err := e.dks.EncryptResponse(nil)
	if err != nil {
		return nil, err
	}
	if e.config.Fault == FaultBadExchangeMAC {
		reply[0] ^= 0x01
	}
	return apdu.Response(reply, apdu.SWSuccess), nil
}

func (e *Endpoint) handleSelect(h apdu.Header) []byte {
	if e.config.Fault == FaultSelectNotFound || h.P1 != 0x04 || !bytes.Equal(h.Data, homekey.AID) {
		return apdu.Response(nil, apdu.SWFileNotFound)
	}
	e.selected = true
	return apdu.Response(nil, apdu.SWSuccess)
}

// Handover select version 1.5 with one alternative carrier.
var handoverSelectPayload = []byte{0x15, 0xD1, 0x02, 0x04, 'a', 'c', 0x01, 0x01, '0', 0x00}

func (e *Endpoint) handleHandover(h apdu.Header) ([]byte, error) {
	t, err := tlv.UnpackOne(h.Data)
	if err != nil || t.Tag != uint16(homekey.TagEnvelope) {
		return apdu.Response(nil, apdu.SWWrongData), nil
	}
	records, err := ndef.Unpack(t.Value)
	if err != nil {
		return apdu.Response(nil, apdu.SWWrongData), nil
	}
	if _, ok := ndef.FindByType(records, []byte(homekey.TypeHandoverRequest)); !ok {
		return apdu.Response(nil, apdu.SWWrongData), nil
	}
	e.readerNdef = bytes.Clone(t.Value)

	reply := []ndef.Record{
		{TNF: ndef.TNFWellKnown, Type: []byte(homekey.TypeHandoverSelect), Payload: handoverSelectPayload},
	}
	if e.config.Fault != FaultNoEngagement {
		reply = append(reply, ndef.Record{
			TNF:     ndef.TNFExternal,
			Type:    []byte(homekey.TypeDeviceEngagement),
			ID:      []byte("0"),
			Payload: e.engagement,
		})
	}
	if e.deviceNdef, err = ndef.Pack(reply); err != nil {
		return nil, err
	}

	body := e.deviceNdef
	if e.config.WrapHandover {
		if body, err = tlv.Pack(homekey.TagEnvelope, body); err != nil {
			return nil, err
		}
	}
	return apdu.Response(body, apdu.SWSuccess), nil
}

func (e *Endpoint) handleRequest(h apdu.Header) ([]byte, error) {
	if e.config.Fault == FaultLinkDown {
		return nil, ErrLinkDown
	}
	if e.config.Fault == FaultShortResponse {
		return []byte{0x90}, nil
	}
	if e.secret == nil || e.deviceNdef == nil {
		return apdu.Response(nil, apdu.SWConditionsNotMet), nil
	}
	t, err := tlv.UnpackOne(h.Data)
	if err != nil || t.Tag != uint16(homekey.TagEnvelope) {
		return apdu.Response(nil, apdu.SWWrongData), nil
	}

	salt, err := mdoc.ComputeSalt(e.engagement, e.deviceNdef, e.readerNdef)
	if err != nil {
		return nil, err
	}
	sc, err := session.NewEndpoint(e.secret, salt, session.SessionKeySize)
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	plaintext, err := sc.Decrypt(t.Value)
	if err != nil {
		e.warnf("envelope 2: %v", err)
		return apdu.Response(nil, apdu.SWSecurityNotSatisfied), nil
	}
	req, err := mdoc.DecodeDeviceRequest(plaintext)
	if err != nil {
		return apdu.Response(nil, apdu.SWWrongData), nil
	}
	e.request = req

	var response []byte
	switch e.config.Fault {
	case FaultEmptyResponse:
	case FaultEmptyMapResponse:
		response = []byte{0xA0}
	case FaultNonCanonicalResponse:
		response = []byte{0xA1, 0x61, 0x78, 0x18, 0x01}
	default:
		if response, err = e.deviceResponse(req); err != nil {
			return nil, err
		}
	}
	encrypted, err := sc.Encrypt(response)
	if err != nil {
		return nil, err
	}
	if e.config.Fault == FaultTamperResponse {
		encrypted[len(encrypted)-1] ^= 0x80
	}

	tag := homekey.TagEnvelope
	if e.config.Fault == FaultWrongEnvelopeTag {
		tag = 0x54
	}
	body, err := tlv.Pack(tag, encrypted)
	if err != nil {
		return nil, err
	}
	return e.chunk(body), nil
}

// chunk queues body for GET RESPONSE and returns the first part.
func (e *Endpoint) chunk(body []byte) []byte {
	size := e.config.ChunkSize
	if size <= 0 || len(body) <= size {
		return apdu.Response(body, apdu.SWSuccess)
	}
	for len(body) > size {
		e.pending = append(e.pending, body[:size])
		body = body[size:]
	}
	e.pending = append(e.pending, body)
	e.debugf("envelope 2 reply split into %d chunks", len(e.pending))
	return e.nextChunk()
}

func (e *Endpoint) nextChunk() []byte {
	if len(e.pending) == 0 {
		return apdu.Response(nil, apdu.SWConditionsNotMet)
	}
	part := e.pending[0]
	e.pending = e.pending[1:]
	if len(e.pending) == 0 {
		return apdu.Response(part, apdu.SWSuccess)
	}
	if e.config.UseMoreData {
		next := len(e.pending[0])
		return apdu.Response(part, apdu.NewSW(0x61, byte(next)))
	}
	return apdu.Response(part, ChunkStatus)
}

func (e *Endpoint) debugf(format string, args ...any) {
	if e.log != nil {
		e.log.Debugf(format, args...)
	}
}

func (e *Endpoint) warnf(format string, args ...any) {
	if e.log != nil {
		e.log.Warnf(format, args...)
	}
}
