package nfc

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)

	frames := [][]byte{
		{0x00, 0xA4, 0x04, 0x00},
		bytes.Repeat([]byte{0x5A}, 300),
		{0x90, 0x00},
	}
	for _, f := range frames {
		if err := w.Write(f); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if got := buf.Bytes()[:6]; !bytes.Equal(got, []byte{0x00, 0x04, 0x00, 0xA4, 0x04, 0x00}) {
		t.Errorf("first frame = %x", got)
	}

	r := NewFrameReader(&buf)
	for i, want := range frames {
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read(%d) error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Read(%d) = %x, want %x", i, got, want)
		}
	}
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("Read() at end error = %v, want io.EOF", err)
	}
}

func TestFrameWriterRejects(t *testing.T) {
	w := NewFrameWriter(io.Discard)
	if err := w.Write(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Write(empty) error = %v, want ErrEmptyFrame", err)
	}
	if err := w.Write(make([]byte, MaxFrameSize+1)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Write(oversized) error = %v, want ErrFrameTooLarge", err)
	}
	if err := w.Write(make([]byte, MaxFrameSize)); err != nil {
		t.Errorf("Write(max) error = %v", err)
	}
}

func TestFrameReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"zero_length", []byte{0x00, 0x00}, ErrEmptyFrame},
		{"short_header", []byte{0x00}, io.ErrUnexpectedEOF},
		{"truncated_body", []byte{0x00, 0x04, 0x90}, io.ErrUnexpectedEOF},
		{"header_only", []byte{0x00, 0x02}, io.ErrUnexpectedEOF},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFrameReader(bytes.NewReader(tc.in)).Read()
			if !errors.Is(err, tc.want) {
				t.Errorf("Read() error = %v, want %v", err, tc.want)
			}
		})
	}
}
