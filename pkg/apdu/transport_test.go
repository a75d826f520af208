package apdu

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

type step struct {
	cmd  string // expected command, hex; empty skips the check
	resp string // response, hex
	err  error
}

// script replays canned responses and checks the commands it receives.
type script struct {
	t     *testing.T
	steps []step
	sent  [][]byte
}

func (s *script) Exchange(cmd []byte) ([]byte, error) {
	s.t.Helper()
	s.sent = append(s.sent, append([]byte(nil), cmd...))
	i := len(s.sent) - 1
	if i >= len(s.steps) {
		s.t.Fatalf("unexpected command %d: %x", i, cmd)
	}
	st := s.steps[i]
	if st.cmd != "" {
		if want := mustHex(s.t, st.cmd); !bytes.Equal(cmd, want) {
			s.t.Errorf("command %d = %x, want %x", i, cmd, want)
		}
	}
	if st.err != nil {
		return nil, st.err
	}
	return mustHex(s.t, st.resp), nil
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex.DecodeString(%q): %v", s, err)
	}
	return b
}

func newTestTransport(t *testing.T, steps []step) (*Transport, *script) {
	t.Helper()
	s := &script{t: t, steps: steps}
	tr, err := NewTransport(TransportConfig{Exchanger: s})
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}
	return tr, s
}

func TestTransportPassThrough(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"success_no_data", "9000"},
		{"success_with_data", "01029000"},
		{"error_status", "6a82"},
		{"error_with_data", "aa6985"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr, s := newTestTransport(t, []step{{cmd: "00a4040000", resp: tc.resp}})
			got, err := tr.Exchange(mustHex(t, "00a4040000"))
			if err != nil {
				t.Fatalf("Exchange() error = %v", err)
			}
			if want := mustHex(t, tc.resp); !bytes.Equal(got, want) {
				t.Errorf("Exchange() = %x, want %x", got, want)
			}
			if len(s.sent) != 1 {
				t.Errorf("sent %d commands, want 1", len(s.sent))
			}
		})
	}
}

func TestTransportGetResponse(t *testing.T) {
	tr, _ := newTestTransport(t, []step{
		{cmd: "00c3000001aa", resp: "01026103"},
		{cmd: "00c0000003", resp: "0304056102"},
		{cmd: "00c0000002", resp: "06079000"},
	})
	got, err := tr.Exchange(mustHex(t, "00c3000001aa"))
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if want := mustHex(t, "010203040506079000"); !bytes.Equal(got, want) {
		t.Errorf("Exchange() = %x, want %x", got, want)
	}
}

func TestTransportGetResponseZeroLe(t *testing.T) {
	tr, _ := newTestTransport(t, []step{
		{resp: "aa6100"},
		{cmd: "00c0000000", resp: "bb9000"},
	})
	got, err := tr.Exchange([]byte{0x00, 0xB0, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if want := mustHex(t, "aabb9000"); !bytes.Equal(got, want) {
		t.Errorf("Exchange() = %x, want %x", got, want)
	}
}

func TestTransportChunks(t *testing.T) {
	b1 := bytes.Repeat([]byte{0xB1}, 200)
	b2 := bytes.Repeat([]byte{0xB2}, 200)
	b3 := bytes.Repeat([]byte{0xB3}, 17)

	tr, s := newTestTransport(t, []step{
		{cmd: "00c3000002aabb", resp: hex.EncodeToString(b1) + "a0fd"},
		{cmd: "00c0000000", resp: hex.EncodeToString(b2) + "a0fd"},
		{cmd: "00c0000000", resp: hex.EncodeToString(b3) + "9000"},
	})
	got, err := tr.Exchange(mustHex(t, "00c3000002aabb"))
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	want := append(append(append(append([]byte{}, b1...), b2...), b3...), 0x90, 0x00)
	if !bytes.Equal(got, want) {
		t.Errorf("Exchange() returned %d octets, want %d", len(got), len(want))
	}
	if len(s.sent) != 3 {
		t.Errorf("sent %d commands, want 3", len(s.sent))
	}
}

func TestTransportChunkSplitProperty(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	for _, k := range []int{1, 2, 3, 7, 10} {
		size := (len(payload) + k - 1) / k
		var steps []step
		for off := 0; off < len(payload); off += size {
			end := min(off+size, len(payload))
			sw := "11fd"
			if end == len(payload) {
				sw = "9000"
			}
			steps = append(steps, step{resp: hex.EncodeToString(payload[off:end]) + sw})
		}
		tr, _ := newTestTransport(t, steps)
		got, err := tr.Exchange([]byte{0x00, 0xC3, 0x00, 0x00})
		if err != nil {
			t.Fatalf("k=%d: Exchange() error = %v", k, err)
		}
		if !bytes.Equal(got[:len(got)-2], payload) {
			t.Errorf("k=%d: reassembled data differs from payload", k)
		}
	}
}

func TestTransportMixedContinuation(t *testing.T) {
	tr, _ := newTestTransport(t, []step{
		{resp: "01a0fd"},
		{cmd: "00c0000000", resp: "026101"},
		{cmd: "00c0000001", resp: "039000"},
	})
	got, err := tr.Exchange([]byte{0x00, 0xC3, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if want := mustHex(t, "0102039000"); !bytes.Equal(got, want) {
		t.Errorf("Exchange() = %x, want %x", got, want)
	}
}

func TestTransportIOErrors(t *testing.T) {
	linkErr := errors.New("field lost")
	tests := []struct {
		name  string
		steps []step
	}{
		{"link_error", []step{{err: linkErr}}},
		{"empty_response", []step{{resp: ""}}},
		{"one_octet", []step{{resp: "90"}}},
		{"error_mid_chain", []step{{resp: "01a0fd"}, {err: linkErr}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr, _ := newTestTransport(t, tc.steps)
			if _, err := tr.Exchange([]byte{0x00, 0xC3, 0x00, 0x00}); !errors.Is(err, ErrIO) {
				t.Errorf("Exchange() error = %v, want ErrIO", err)
			}
		})
	}

	tr, _ := newTestTransport(t, []step{{err: linkErr}})
	if _, err := tr.Exchange([]byte{0x00}); !errors.Is(err, linkErr) {
		t.Errorf("Exchange() error = %v, want wrapped link error", err)
	}
}

func TestTransportLimits(t *testing.T) {
	var steps []step
	for i := 0; i < 5; i++ {
		steps = append(steps, step{resp: "00a0fd"})
	}
	s := &script{t: t, steps: steps}
	tr, err := NewTransport(TransportConfig{Exchanger: s, MaxChunks: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Exchange([]byte{0x00, 0xC3, 0x00, 0x00}); !errors.Is(err, ErrTooManyChunks) {
		t.Errorf("Exchange() error = %v, want ErrTooManyChunks", err)
	}

	s = &script{t: t, steps: []step{{resp: hex.EncodeToString(make([]byte, 20)) + "9000"}}}
	tr, err = NewTransport(TransportConfig{Exchanger: s, MaxResponseSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Exchange([]byte{0x00, 0xC3, 0x00, 0x00}); !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("Exchange() error = %v, want ErrResponseTooLarge", err)
	}

	if _, err := NewTransport(TransportConfig{}); !errors.Is(err, ErrNoExchanger) {
		t.Errorf("NewTransport(nil) error = %v, want ErrNoExchanger", err)
	}
}
