package nfc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Relay framing: each APDU is preceded by its length as a two-octet
// big-endian integer.
const (
	FrameHeaderSize = 2
	MaxFrameSize    = 0xFFFF
)

// FrameWriter writes length-prefixed APDU frames.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter creates a frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// Write writes one frame. Header and body go out in a single write so
// message-oriented connections see whole frames.
func (fw *FrameWriter) Write(apdu []byte) error {
	if len(apdu) == 0 {
		return ErrEmptyFrame
	}
	if len(apdu) > MaxFrameSize {
		return fmt.Errorf("%w: %d octets", ErrFrameTooLarge, len(apdu))
	}
	buf := make([]byte, FrameHeaderSize, FrameHeaderSize+len(apdu))
	binary.BigEndian.PutUint16(buf, uint16(len(apdu)))
	_, err := fw.w.Write(append(buf, apdu...))
	return err
}

// FrameReader reads length-prefixed APDU frames.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader creates a frame reader. Reads are buffered so one frame
// may arrive across several underlying reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, FrameHeaderSize+MaxFrameSize)}
}

// Read returns the next frame body. A clean end of stream before a header
// is io.EOF; a stream cut inside a frame is io.ErrUnexpectedEOF.
func (fr *FrameReader) Read() ([]byte, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(fr.r, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}
