package endpointsim

import (
	"crypto/rand"
	"fmt"

	"github.com/backkem/homekey-reader/pkg/mdoc"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// issuerSignedItem is one disclosed data element.
type issuerSignedItem struct {
	DigestID          uint   `cbor:"digestID"`
	Random            []byte `cbor:"random"`
	ElementIdentifier string `cbor:"elementIdentifier"`
	ElementValue      any    `cbor:"elementValue"`
}

// deviceResponse answers every requested document with the credential_id
// element and an ES256 issuerAuth over the encoded items.
func (e *Endpoint) deviceResponse(req *mdoc.DeviceRequest) ([]byte, error) {
	var docs []mdoc.Document
	for _, dr := range req.DocRequests {
		items, err := dr.Items()
		if err != nil {
			return nil, err
		}
		doc, err := e.document(items)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return mdoc.EncodeDeviceResponse(mdoc.DeviceResponse{
		Version:   mdoc.Version,
		Documents: docs,
		Status:    mdoc.StatusOK,
	})
}

func (e *Endpoint) document(items *mdoc.ItemsRequest) (mdoc.Document, error) {
	nameSpaces := make(map[string][]cbor.RawMessage)
	var digestID uint
	for ns, elements := range items.NameSpaces {
		for id := range elements {
			var value any
			if id == mdoc.HomeKeyCredentialID {
				value = e.config.CredentialID
			}
			random := make([]byte, 16)
			if _, err := rand.Read(random); err != nil {
				return mdoc.Document{}, err
			}
			item, err := mdoc.Marshal(issuerSignedItem{
				DigestID:          digestID,
				Random:            random,
				ElementIdentifier: id,
				ElementValue:      value,
			})
			if err != nil {
				return mdoc.Document{}, err
			}
			wrapped, err := mdoc.WrapTag24(item)
			if err != nil {
				return mdoc.Document{}, err
			}
			nameSpaces[ns] = append(nameSpaces[ns], wrapped)
			digestID++
		}
	}

	payload, err := mdoc.Marshal(nameSpaces)
	if err != nil {
		return mdoc.Document{}, err
	}
	auth, err := e.issuerAuth(payload)
	if err != nil {
		return mdoc.Document{}, err
	}
	return mdoc.Document{
		DocType: items.DocType,
		IssuerSigned: mdoc.IssuerSigned{
			NameSpaces: nameSpaces,
			IssuerAuth: auth,
		},
	}, nil
}

func (e *Endpoint) issuerAuth(payload []byte) ([]byte, error) {
	signer, err := cose.NewSigner(cose.AlgorithmES256, e.issuer)
	if err != nil {
		return nil, err
	}
	msg := cose.UntaggedSign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{cose.HeaderLabelAlgorithm: cose.AlgorithmES256},
		},
		Payload: payload,
	}
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("endpointsim: sign issuerAuth: %w", err)
	}
	return msg.MarshalCBOR()
}
