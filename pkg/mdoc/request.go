package mdoc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// HomeKey request constants.
const (
	HomeKeyDocType      = "com.apple.HomeKit.1.credential"
	HomeKeyNameSpace    = "com.apple.HomeKit"
	HomeKeyCredentialID = "credential_id"
)

// DeviceRequest is the top-level mdoc request.
type DeviceRequest struct {
	Version     string       `cbor:"version"`
	DocRequests []DocRequest `cbor:"docRequests"`
}

// DocRequest carries one tag-24 wrapped ItemsRequest.
type DocRequest struct {
	ItemsRequest cbor.Tag `cbor:"itemsRequest"`
}

// ItemsRequest names the document type and the requested elements per
// namespace. The boolean is the intent-to-retain flag.
type ItemsRequest struct {
	DocType    string                     `cbor:"docType"`
	NameSpaces map[string]map[string]bool `cbor:"nameSpaces"`
}

// Items decodes the embedded ItemsRequest.
func (d DocRequest) Items() (*ItemsRequest, error) {
	inner, err := tag24Content(d.ItemsRequest)
	if err != nil {
		return nil, err
	}
	var items ItemsRequest
	if err := Unmarshal(inner, &items); err != nil {
		return nil, err
	}
	return &items, nil
}

// EncodeDeviceRequest encodes a single-document request.
func EncodeDeviceRequest(items ItemsRequest) ([]byte, error) {
	inner, err := encMode.Marshal(items)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(DeviceRequest{
		Version:     Version,
		DocRequests: []DocRequest{{ItemsRequest: Tag24(inner)}},
	})
}

// HomeKeyRequest encodes the attestation request for the HomeKey
// credential identifier.
func HomeKeyRequest() ([]byte, error) {
	return EncodeDeviceRequest(ItemsRequest{
		DocType: HomeKeyDocType,
		NameSpaces: map[string]map[string]bool{
			HomeKeyNameSpace: {HomeKeyCredentialID: false},
		},
	})
}

// DecodeDeviceRequest decodes a request and requires at least one document.
func DecodeDeviceRequest(data []byte) (*DeviceRequest, error) {
	var req DeviceRequest
	if err := Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if len(req.DocRequests) == 0 {
		return nil, fmt.Errorf("%w: request has no docRequests", ErrMalformed)
	}
	return &req, nil
}
