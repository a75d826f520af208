// Package mdoc builds and parses the ISO/IEC 18013-5 CBOR structures used by
// HomeKey attestation: engagement blobs, the session transcript and salt,
// session data framing, and the mdoc request and response.
//
// All encoding is core deterministic: definite lengths, shortest-form
// integers and map keys sorted bytewise.
package mdoc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// TagEncodedCBOR marks a byte string that holds embedded CBOR.
const TagEncodedCBOR = 24

var (
	ErrMalformed = errors.New("mdoc: malformed CBOR")
	ErrNotTag24  = errors.New("mdoc: expected tag-24 byte string")

	ErrNotCanonical = errors.New("mdoc: non-canonical CBOR")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		ShortestFloat: cbor.ShortestFloat16,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsEmpty,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("mdoc: encoder options: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("mdoc: decoder options: %v", err))
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes one CBOR item into v, rejecting trailing data.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Wellformed reports whether data is exactly one well-formed CBOR item with
// definite lengths.
func Wellformed(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformed)
	}
	if err := decMode.Wellformed(data); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Canonical checks that data is a single deterministically encoded CBOR
// item and, if it is a map or array, that it is not empty. Tags 0 and 1
// do not survive the re-encoding and are rejected; mdoc only carries them
// inside tag-24 byte strings.
func Canonical(data []byte) error {
	if err := Wellformed(data); err != nil {
		return err
	}
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return err
	}
	switch c := v.(type) {
	case map[any]any:
		if len(c) == 0 {
			return fmt.Errorf("%w: empty map", ErrMalformed)
		}
	case []any:
		if len(c) == 0 {
			return fmt.Errorf("%w: empty array", ErrMalformed)
		}
	}
	again, err := encMode.Marshal(v)
	if err != nil || !bytes.Equal(again, data) {
		return ErrNotCanonical
	}
	return nil
}

// Tag24 returns 24(bstr(inner)) as a value for embedding in larger
// structures. inner is carried as-is and never re-encoded.
func Tag24(inner []byte) cbor.Tag {
	return cbor.Tag{Number: TagEncodedCBOR, Content: inner}
}

// WrapTag24 encodes 24(bstr(inner)).
func WrapTag24(inner []byte) ([]byte, error) {
	return encMode.Marshal(Tag24(inner))
}

// UnwrapTag24 decodes 24(bstr(x)) and returns x.
func UnwrapTag24(data []byte) ([]byte, error) {
	var tag cbor.Tag
	if err := Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	return tag24Content(tag)
}

func tag24Content(tag cbor.Tag) ([]byte, error) {
	if tag.Number != TagEncodedCBOR {
		return nil, fmt.Errorf("%w: tag %d", ErrNotTag24, tag.Number)
	}
	b, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: content is %T", ErrNotTag24, tag.Content)
	}
	return b, nil
}
