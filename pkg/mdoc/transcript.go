package mdoc

import (
	"github.com/backkem/homekey-reader/pkg/crypto"
)

// SessionTranscript encodes
//
//	[ 24(DeviceEngagement), [ 24(DeviceNdef), 24(ReaderNdef) ] ]
//
// Each argument must be the exact bytes seen on the wire.
func SessionTranscript(deviceEngagement, deviceNdef, readerNdef []byte) ([]byte, error) {
	return encMode.Marshal([]any{
		Tag24(deviceEngagement),
		[]any{Tag24(deviceNdef), Tag24(readerNdef)},
	})
}

// Salt returns SHA-256 over 24(bstr(24(bstr(transcript)))), where transcript
// is an encoded SessionTranscript.
func Salt(transcript []byte) ([]byte, error) {
	inner, err := WrapTag24(transcript)
	if err != nil {
		return nil, err
	}
	outer, err := WrapTag24(inner)
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(outer), nil
}

// ComputeSalt builds the session transcript from the handover bytes and
// returns its salt.
func ComputeSalt(deviceEngagement, deviceNdef, readerNdef []byte) ([]byte, error) {
	transcript, err := SessionTranscript(deviceEngagement, deviceNdef, readerNdef)
	if err != nil {
		return nil, err
	}
	return Salt(transcript)
}
