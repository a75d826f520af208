// Package homekey drives HomeKey NFC attestation: it hands a fresh secret to
// the endpoint over the device key session, performs the ISO/IEC 18013-5 NFC
// handover, derives a secure messaging context from that secret and the
// handover transcript, and exchanges an encrypted mdoc request. A verified
// response makes the secret the endpoint's persistent key.
package homekey

import (
	"bytes"
	"fmt"
	"io"

	"github.com/backkem/homekey-reader/pkg/apdu"
	"github.com/backkem/homekey-reader/pkg/crypto"
	"github.com/backkem/homekey-reader/pkg/dks"
	"github.com/backkem/homekey-reader/pkg/mdoc"
	"github.com/backkem/homekey-reader/pkg/session"
	"github.com/backkem/homekey-reader/pkg/tlv"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// SecretSize is the length of the attestation exchange secret and of the
// resulting persistent key.
const SecretSize = 32

// Endpoint is the outcome of a successful attestation.
type Endpoint struct {
	// ID is the endpoint identifier supplied by the caller.
	ID []byte

	// PersistentKey is the secret injected during attestation.
	PersistentKey [SecretSize]byte

	// Response is the decrypted mdoc response.
	Response []byte
}

// Config configures an Attestor.
type Config struct {
	// Exchanger is the raw NFC link. Required.
	Exchanger apdu.Exchanger

	// DKS is the device key session established before attestation.
	// Required.
	DKS dks.Session

	// Rand supplies the attestation secret. If nil, crypto/rand is used.
	Rand io.Reader

	// MaxResponseSize and MaxChunks bound response reassembly. Zero
	// selects the apdu package defaults.
	MaxResponseSize int
	MaxChunks       int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Attestor runs attestation attempts over one NFC link. It is not safe for
// concurrent use; attempts on the same link must be sequential.
type Attestor struct {
	transport *apdu.Transport
	dks       dks.Session
	rand      io.Reader
	log       logging.LeveledLogger
}

// NewAttestor creates an Attestor.
func NewAttestor(config Config) (*Attestor, error) {
	if config.Exchanger == nil {
		return nil, ErrNoExchanger
	}
	if config.DKS == nil {
		return nil, ErrNoDKS
	}

	transport, err := apdu.NewTransport(apdu.TransportConfig{
		Exchanger:       config.Exchanger,
		MaxResponseSize: config.MaxResponseSize,
		MaxChunks:       config.MaxChunks,
		LoggerFactory:   config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	a := &Attestor{
		transport: transport,
		dks:       config.DKS,
		rand:      config.Rand,
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("homekey")
	}
	return a, nil
}

// attempt holds the state of one Attest call.
type attempt struct {
	*Attestor
	id string

	secret     []byte
	readerNdef []byte
	deviceNdef []byte
	engagement []byte
	sc         *session.SecureContext
}

// Attest runs the attestation flow against the endpoint in the field. On
// success the returned Endpoint carries the new persistent key. On failure
// the error is an *AttestError and the secret has been zeroed.
func (a *Attestor) Attest(endpointID []byte) (*Endpoint, error) {
	at := &attempt{Attestor: a, id: uuid.NewString()}
	at.debugf("attestation started for endpoint %x", endpointID)

	ep, err := at.run(endpointID)
	if at.sc != nil {
		at.sc.Close()
	}
	if err != nil {
		crypto.Zeroize(at.secret)
		at.warnf("attestation failed: %v", err)
		return nil, err
	}
	at.infof("attestation succeeded for endpoint %x", endpointID)
	return ep, nil
}

func (at *attempt) run(endpointID []byte) (*Endpoint, error) {
	var err error
	if at.secret, err = crypto.RandomBytes(at.rand, SecretSize); err != nil {
		return nil, &AttestError{Kind: ErrCrypto, Step: StepBegin, Err: err}
	}

	steps := []struct {
		step Step
		fn   func() error
	}{
		{StepExchange, at.exchangeSecret},
		{StepSelect, at.selectApplet},
		{StepEnvelope1, at.envelope1},
		{StepSession, at.deriveSession},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return nil, at.fail(s.step, err)
		}
	}

	response, err := at.envelope2()
	if err != nil {
		return nil, at.fail(StepEnvelope2, err)
	}
	if err := at.checkResponse(response); err != nil {
		return nil, at.fail(StepDecode, err)
	}

	ep := &Endpoint{
		ID:       append([]byte(nil), endpointID...),
		Response: response,
	}
	copy(ep.PersistentKey[:], at.secret)
	crypto.Zeroize(at.secret)
	return ep, nil
}

func (at *attempt) fail(step Step, err error) error {
	return &AttestError{Kind: classify(err), Step: step, Err: err}
}

// exchangeSecret sends C0(secret) over the device key session as
// 84 C9 00 00 Lc ciphertext || 8E(mac).
func (at *attempt) exchangeSecret() error {
	plaintext, err := tlv.Pack(TagSecret, at.secret)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(plaintext)

	ciphertext, mac, _, err := at.dks.EncryptCommand(plaintext)
	if err != nil {
		return err
	}
	data, err := tlv.Append(bytes.Clone(ciphertext), TagCommandMAC, mac)
	if err != nil {
		return err
	}
	cmd, err := apdu.Exchange(data)
	if err != nil {
		return err
	}

	resp, err := at.transport.Exchange(cmd)
	if err != nil {
		return err
	}
	body, err := apdu.Expect(apdu.InsExchange, resp)
	if err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := at.dks.DecryptResponse(body); err != nil {
			return err
		}
	}
	at.debugf("secret exchanged")
	return nil
}

func (at *attempt) selectApplet() error {
	cmd, err := apdu.ControlFlow(ControlFlowP1, ControlFlowP2)
	if err != nil {
		return err
	}
	resp, err := at.transport.Exchange(cmd)
	if err != nil {
		return err
	}
	if _, sw, err := apdu.Split(resp); err == nil && !sw.IsSuccess() {
		at.debugf("control flow returned %s", sw)
	}

	if cmd, err = apdu.Select(AID); err != nil {
		return err
	}
	if resp, err = at.transport.Exchange(cmd); err != nil {
		return err
	}
	_, err = apdu.Expect(apdu.InsSelect, resp)
	return err
}

func (at *attempt) envelope1() error {
	var err error
	if at.readerNdef, err = ReaderNDEF(); err != nil {
		return err
	}
	body, err := tlv.Pack(TagEnvelope, at.readerNdef)
	if err != nil {
		return err
	}
	cmd, err := apdu.Envelope(apdu.EnvelopeFirst, body)
	if err != nil {
		return err
	}

	resp, err := at.transport.Exchange(cmd)
	if err != nil {
		return err
	}
	data, err := apdu.Expect(apdu.InsEnvelope, resp)
	if err != nil {
		return err
	}
	if at.deviceNdef, at.engagement, err = splitHandover(data); err != nil {
		return err
	}
	at.debugf("handover complete, device NDEF %d octets", len(at.deviceNdef))
	return nil
}

func (at *attempt) deriveSession() error {
	salt, err := mdoc.ComputeSalt(at.engagement, at.deviceNdef, at.readerNdef)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	at.sc, err = session.New(at.secret, salt, session.SessionKeySize)
	return err
}

// envelope2 sends the encrypted mdoc request and returns the decrypted reply.
func (at *attempt) envelope2() ([]byte, error) {
	request, err := mdoc.HomeKeyRequest()
	if err != nil {
		return nil, err
	}
	encrypted, err := at.sc.Encrypt(request)
	if err != nil {
		return nil, err
	}
	body, err := tlv.Pack(TagEnvelope, encrypted)
	if err != nil {
		return nil, err
	}
	cmd, err := apdu.Envelope(apdu.EnvelopeFinal, body)
	if err != nil {
		return nil, err
	}

	resp, err := at.transport.Exchange(cmd)
	if err != nil {
		return nil, err
	}
	data, err := apdu.Expect(apdu.InsEnvelope, resp)
	if err != nil {
		return nil, err
	}
	reply, err := tlv.UnpackOne(data)
	if err != nil {
		return nil, err
	}
	if reply.Tag != uint16(TagEnvelope) {
		return nil, fmt.Errorf("%w: envelope reply tag %x", ErrProtocol, reply.Tag)
	}
	return at.sc.Decrypt(reply.Value)
}

// checkResponse accepts a canonical CBOR response that is not empty and
// not an empty map or array.
func (at *attempt) checkResponse(response []byte) error {
	if err := mdoc.Canonical(response); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if resp, err := mdoc.DecodeDeviceResponse(response); err == nil {
		at.debugf("device response version %s status %d documents %v", resp.Version, resp.Status, resp.DocTypes())
	}
	return nil
}

func (at *attempt) debugf(format string, args ...any) {
	if at.log != nil {
		at.log.Debugf("[%s] "+format, append([]any{at.id}, args...)...)
	}
}

func (at *attempt) infof(format string, args ...any) {
	if at.log != nil {
		at.log.Infof("[%s] "+format, append([]any{at.id}, args...)...)
	}
}

func (at *attempt) warnf(format string, args ...any) {
	if at.log != nil {
		at.log.Warnf("[%s] "+format, append([]any{at.id}, args...)...)
	}
}
