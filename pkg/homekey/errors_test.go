package homekey

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/backkem/homekey-reader/pkg/apdu"
	"github.com/backkem/homekey-reader/pkg/crypto"
	"github.com/backkem/homekey-reader/pkg/dks"
	"github.com/backkem/homekey-reader/pkg/mdoc"
	"github.com/backkem/homekey-reader/pkg/session"
	"github.com/backkem/homekey-reader/pkg/tlv"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"link", fmt.Errorf("%w: %w", apdu.ErrIO, io.EOF), ErrIO},
		{"status", &apdu.StatusError{Ins: apdu.InsSelect, SW: apdu.SWFileNotFound}, ErrProtocol},
		{"too_many_chunks", apdu.ErrTooManyChunks, ErrProtocol},
		{"too_large", apdu.ErrResponseTooLarge, ErrProtocol},
		{"tlv", tlv.ErrMalformed, ErrMalformed},
		{"cbor", fmt.Errorf("%w: bad", mdoc.ErrMalformed), ErrMalformed},
		{"session_framing", session.ErrMalformed, ErrMalformed},
		{"session_auth", session.ErrAuthFailed, ErrCrypto},
		{"session_counter", session.ErrCounterExhausted, ErrCrypto},
		{"session_state", session.ErrState, ErrState},
		{"dks_auth", dks.ErrAuthFailed, ErrCrypto},
		{"dks_ended", dks.ErrSessionEnded, ErrState},
		{"ccm", crypto.ErrCCMAuthFailed, ErrCrypto},
		{"already_kind", fmt.Errorf("%w: x", ErrProtocol), ErrProtocol},
		{"unknown", errors.New("something else"), ErrProtocol},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.err); got != tc.want {
				t.Errorf("classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestAttestError(t *testing.T) {
	cause := &apdu.StatusError{Ins: apdu.InsSelect, SW: apdu.SWFileNotFound}
	err := error(&AttestError{Kind: ErrProtocol, Step: StepSelect, Err: cause})

	if !errors.Is(err, ErrProtocol) {
		t.Error("errors.Is(err, ErrProtocol) = false")
	}
	if errors.Is(err, ErrCrypto) {
		t.Error("errors.Is(err, ErrCrypto) = true")
	}
	var statusErr *apdu.StatusError
	if !errors.As(err, &statusErr) || statusErr.SW != apdu.SWFileNotFound {
		t.Errorf("errors.As(*apdu.StatusError) = %v", statusErr)
	}
	want := "homekey: protocol error during select: " + cause.Error()
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStepString(t *testing.T) {
	tests := []struct {
		step Step
		want string
	}{
		{StepBegin, "begin"},
		{StepExchange, "exchange"},
		{StepSelect, "select"},
		{StepEnvelope1, "envelope-1"},
		{StepSession, "session"},
		{StepEnvelope2, "envelope-2"},
		{StepDecode, "decode"},
		{Step(42), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.step.String(); got != tc.want {
			t.Errorf("Step(%d).String() = %q, want %q", tc.step, got, tc.want)
		}
	}
}

func TestNewAttestorValidation(t *testing.T) {
	link := apdu.ExchangerFunc(func([]byte) ([]byte, error) { return nil, io.EOF })
	s, err := dks.NewStatic(make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewAttestor(Config{DKS: s}); !errors.Is(err, ErrNoExchanger) {
		t.Errorf("NewAttestor(no exchanger) error = %v, want ErrNoExchanger", err)
	}
	if _, err := NewAttestor(Config{Exchanger: link}); !errors.Is(err, ErrNoDKS) {
		t.Errorf("NewAttestor(no DKS) error = %v, want ErrNoDKS", err)
	}
	if _, err := NewAttestor(Config{Exchanger: link, DKS: s}); err != nil {
		t.Errorf("NewAttestor() error = %v", err)
	}
}
