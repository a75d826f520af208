package tlv

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestPackLengthForms(t *testing.T) {
	tests := []struct {
		name   string
		tag    byte
		length int
		header string
	}{
		{"empty", 0x53, 0, "5300"},
		{"short", 0xC0, 32, "c020"},
		{"short_max", 0x53, 0x7F, "537f"},
		{"one_octet", 0x53, 0x80, "538180"},
		{"one_octet_max", 0x53, 0xFF, "5381ff"},
		{"two_octet", 0x53, 0x100, "53820100"},
		{"two_octet_max", 0x53, 0xFFFF, "5382ffff"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value := bytes.Repeat([]byte{0xAB}, tc.length)
			got, err := Pack(tc.tag, value)
			if err != nil {
				t.Fatalf("Pack() error = %v", err)
			}
			header, _ := hex.DecodeString(tc.header)
			if !bytes.HasPrefix(got, header) {
				t.Errorf("Pack() header = %x, want %s", got[:len(header)], tc.header)
			}
			if len(got) != len(header)+tc.length {
				t.Errorf("len(Pack()) = %d, want %d", len(got), len(header)+tc.length)
			}
		})
	}
}

func TestPackRejects(t *testing.T) {
	if _, err := Pack(0x53, make([]byte, MaxValueLen+1)); !errors.Is(err, ErrTooLong) {
		t.Errorf("Pack(65536 octets) error = %v, want ErrTooLong", err)
	}
	if _, err := Pack(0x5F, nil); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("Pack(0x5F) error = %v, want ErrInvalidTag", err)
	}
}

func TestRoundTrip(t *testing.T) {
	lengths := []int{0, 1, 0x7F, 0x80, 0xFF, 0x100, 0x1234, MaxValueLen}
	tags := []byte{0x01, 0x53, 0x8E, 0xC0, 0xE1}
	for _, tag := range tags {
		for _, l := range lengths {
			value := make([]byte, l)
			for i := range value {
				value[i] = byte(i * 7)
			}
			packed, err := Pack(tag, value)
			if err != nil {
				t.Fatalf("Pack(%#x, %d) error = %v", tag, l, err)
			}
			got, err := Unpack(packed)
			if err != nil {
				t.Fatalf("Unpack(Pack(%#x, %d)) error = %v", tag, l, err)
			}
			if len(got) != 1 || got[0].Tag != uint16(tag) || !bytes.Equal(got[0].Value, value) {
				t.Errorf("Unpack(Pack(%#x, %d)) mismatch", tag, l)
			}
		}
	}
}

func TestUnpackSequence(t *testing.T) {
	data, _ := hex.DecodeString("c0020102" + "8e00" + "5f2403aabbcc" + "c00109")
	got, err := Unpack(data)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	want := []TLV{
		{Tag: 0xC0, Value: []byte{0x01, 0x02}},
		{Tag: 0x8E, Value: []byte{}},
		{Tag: 0x5F24, Value: []byte{0xAA, 0xBB, 0xCC}},
		{Tag: 0xC0, Value: []byte{0x09}},
	}
	if len(got) != len(want) {
		t.Fatalf("Unpack() returned %d elements, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Tag != want[i].Tag || !bytes.Equal(got[i].Value, want[i].Value) {
			t.Errorf("Unpack()[%d] = {%x %x}, want {%x %x}", i, got[i].Tag, got[i].Value, want[i].Tag, want[i].Value)
		}
	}

	// Duplicate tags return the first match.
	first, ok := Find(0xC0, got)
	if !ok || !bytes.Equal(first.Value, []byte{0x01, 0x02}) {
		t.Errorf("Find(0xC0) = %x, %v, want 0102", first.Value, ok)
	}
	if _, ok := Find(0x53, got); ok {
		t.Error("Find(0x53) found an element")
	}
}

func TestUnpackNested(t *testing.T) {
	// 0x73 is constructed; its value holds two primitive elements.
	data, _ := hex.DecodeString("7306" + "800101" + "810100")
	outer, err := UnpackOne(data)
	if err != nil {
		t.Fatalf("UnpackOne() error = %v", err)
	}
	if !outer.Constructed() {
		t.Fatal("Constructed() = false for tag 0x73")
	}
	children, err := outer.Children()
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(children) != 2 || children[0].Tag != 0x80 || children[1].Tag != 0x81 {
		t.Errorf("Children() = %+v", children)
	}

	if (TLV{Tag: 0x53}).Constructed() {
		t.Error("Constructed() = true for tag 0x53")
	}
	if !(TLV{Tag: 0x7F49}).Constructed() {
		t.Error("Constructed() = false for tag 0x7F49")
	}
}

func TestUnpackMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"indefinite_length", "538000"},
		{"truncated_value", "530401020304"[:10]},
		{"missing_length", "53"},
		{"truncated_81", "5381"},
		{"truncated_82", "538201"},
		{"length_form_83", "5383000001"},
		{"truncated_long_tag", "5f"},
		{"three_octet_tag", "5f818101"},
		{"trailing_partial", "530100" + "c0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := hex.DecodeString(tc.data)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := Unpack(data); !errors.Is(err, ErrMalformed) {
				t.Errorf("Unpack(%s) error = %v, want ErrMalformed", tc.data, err)
			}
		})
	}
}

func TestUnpackOneTrailing(t *testing.T) {
	data, _ := hex.DecodeString("530101ff")
	if _, err := UnpackOne(data); !errors.Is(err, ErrMalformed) {
		t.Errorf("UnpackOne(trailing) error = %v, want ErrMalformed", err)
	}
}
