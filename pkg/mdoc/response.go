package mdoc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// Response status codes.
const (
	StatusOK                uint = 0
	StatusGeneralError      uint = 10
	StatusCBORDecodingError uint = 11
	StatusCBORValidation    uint = 12
)

// DeviceResponse is the decoded mdoc response. Only the fields needed to
// report the outcome are decoded; signatures are not verified.
type DeviceResponse struct {
	Version        string           `cbor:"version"`
	Documents      []Document       `cbor:"documents,omitempty"`
	DocumentErrors []map[string]int `cbor:"documentErrors,omitempty"`
	Status         uint             `cbor:"status"`
}

// Document is one returned credential.
type Document struct {
	DocType      string          `cbor:"docType"`
	IssuerSigned IssuerSigned    `cbor:"issuerSigned"`
	DeviceSigned cbor.RawMessage `cbor:"deviceSigned,omitempty"`
	Errors       cbor.RawMessage `cbor:"errors,omitempty"`
}

// IssuerSigned holds the issuer namespaces and the COSE_Sign1 issuerAuth.
type IssuerSigned struct {
	NameSpaces map[string][]cbor.RawMessage `cbor:"nameSpaces,omitempty"`
	IssuerAuth cbor.RawMessage              `cbor:"issuerAuth"`
}

// Sign1 decodes issuerAuth as an untagged COSE_Sign1 message.
func (i IssuerSigned) Sign1() (*cose.UntaggedSign1Message, error) {
	if len(i.IssuerAuth) == 0 {
		return nil, fmt.Errorf("%w: missing issuerAuth", ErrMalformed)
	}
	var msg cose.UntaggedSign1Message
	if err := msg.UnmarshalCBOR(i.IssuerAuth); err != nil {
		return nil, fmt.Errorf("%w: issuerAuth: %v", ErrMalformed, err)
	}
	return &msg, nil
}

// Alg returns the signature algorithm of issuerAuth.
func (i IssuerSigned) Alg() (cose.Algorithm, error) {
	msg, err := i.Sign1()
	if err != nil {
		return 0, err
	}
	return msg.Headers.Protected.Algorithm()
}

// DecodeDeviceResponse decodes a response. A response is required to carry a
// version and either documents or a non-zero status.
func DecodeDeviceResponse(data []byte) (*DeviceResponse, error) {
	var resp DeviceResponse
	if err := Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if resp.Version == "" {
		return nil, fmt.Errorf("%w: response without version", ErrMalformed)
	}
	if len(resp.Documents) == 0 && resp.Status == StatusOK {
		return nil, fmt.Errorf("%w: response without documents", ErrMalformed)
	}
	return &resp, nil
}

// EncodeDeviceResponse encodes a response.
func EncodeDeviceResponse(resp DeviceResponse) ([]byte, error) {
	return encMode.Marshal(resp)
}

// DocTypes lists the document types present in the response.
func (r *DeviceResponse) DocTypes() []string {
	types := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		types = append(types, d.DocType)
	}
	return types
}
