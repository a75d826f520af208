package dks

import (
	"bytes"
	"errors"
	"testing"
)

var testKey = []byte{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
	0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
}

func newPair(t *testing.T) (reader, endpoint *Static) {
	t.Helper()
	reader, err := NewStatic(testKey)
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	endpoint, err = NewStatic(testKey)
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	return reader, endpoint
}

func TestStaticRoundTrip(t *testing.T) {
	reader, endpoint := newPair(t)

	for i := 0; i < 3; i++ {
		cmd := []byte{0xC0, 0x02, byte(i), 0xFF}
		ct, mac, nonce, err := reader.EncryptCommand(cmd)
		if err != nil {
			t.Fatalf("EncryptCommand() error = %v", err)
		}
		if len(ct) != len(cmd) || len(mac) != MACSize || len(nonce) != 13 {
			t.Errorf("EncryptCommand() lengths = %d/%d/%d", len(ct), len(mac), len(nonce))
		}
		if nonce[12] != byte(i+1) {
			t.Errorf("nonce counter = %d, want %d", nonce[12], i+1)
		}

		got, err := endpoint.DecryptCommand(ct, mac)
		if err != nil {
			t.Fatalf("DecryptCommand() error = %v", err)
		}
		if !bytes.Equal(got, cmd) {
			t.Errorf("DecryptCommand() = %x, want %x", got, cmd)
		}

		resp, err := endpoint.EncryptResponse([]byte{byte(i)})
		if err != nil {
			t.Fatalf("EncryptResponse() error = %v", err)
		}
		plain, err := reader.DecryptResponse(resp)
		if err != nil {
			t.Fatalf("DecryptResponse() error = %v", err)
		}
		if !bytes.Equal(plain, []byte{byte(i)}) {
			t.Errorf("DecryptResponse() = %x", plain)
		}
	}
}

func TestStaticRejects(t *testing.T) {
	if _, err := NewStatic(make([]byte, 15)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("NewStatic(15) error = %v, want ErrInvalidKey", err)
	}

	reader, endpoint := newPair(t)
	ct, mac, _, err := reader.EncryptCommand([]byte{0x01, 0x02})
	if err != nil {
		t.Fatal(err)
	}
	mac[0] ^= 0x80
	if _, err := endpoint.DecryptCommand(ct, mac); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("DecryptCommand(bad mac) error = %v, want ErrAuthFailed", err)
	}
	if _, err := endpoint.EncryptResponse(nil); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("EncryptResponse after failure error = %v, want ErrSessionEnded", err)
	}

	if _, err := reader.DecryptResponse([]byte{0x01}); !errors.Is(err, ErrShort) {
		t.Errorf("DecryptResponse(short) error = %v, want ErrShort", err)
	}

	other, err := NewStatic(bytes.Repeat([]byte{0x01}, 16))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := other.EncryptResponse([]byte{0x00})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reader.DecryptResponse(resp); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("DecryptResponse(wrong key) error = %v, want ErrAuthFailed", err)
	}
}

func TestStaticCounterExhausted(t *testing.T) {
	reader, _ := newPair(t)
	reader.cmdCounter = 0xFFFFFFFF
	if _, _, _, err := reader.EncryptCommand([]byte{0x01}); err != nil {
		t.Fatalf("EncryptCommand(last) error = %v", err)
	}
	if _, _, _, err := reader.EncryptCommand([]byte{0x01}); !errors.Is(err, ErrExhausted) {
		t.Errorf("EncryptCommand(wrapped) error = %v, want ErrExhausted", err)
	}
}

var _ Session = (*Static)(nil)
