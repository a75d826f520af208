package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "endpoints.yaml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(missing) error = %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("List() = %v, want empty", s.List())
	}

	var key [KeySize]byte
	copy(key[:], bytes.Repeat([]byte{0x5A}, KeySize))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Put([]byte{0xB2, 0x01}, key, at); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put([]byte{0xA1}, key, at); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("store mode = %o, want 600", perm)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	r, err := reopened.Get([]byte{0xB2, 0x01})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got, err := r.Key()
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if got != key {
		t.Errorf("Key() = %x, want %x", got, key)
	}
	if !r.AttestedAt.Equal(at) {
		t.Errorf("AttestedAt = %v, want %v", r.AttestedAt, at)
	}

	list := reopened.List()
	if len(list) != 2 || list[0].EndpointID != "a1" || list[1].EndpointID != "b201" {
		t.Errorf("List() = %+v", list)
	}

	if _, err := reopened.Get([]byte{0xFF}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestPutReplaces(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "endpoints.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var first, second [KeySize]byte
	first[0], second[0] = 1, 2
	if err := s.Put([]byte{0x01}, first, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]byte{0x01}, second, time.Now()); err != nil {
		t.Fatal(err)
	}
	r, err := s.Get([]byte{0x01})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := r.Key(); got != second {
		t.Errorf("Key() = %x, want %x", got, second)
	}
	if len(s.List()) != 1 {
		t.Errorf("List() has %d records, want 1", len(s.List()))
	}
}

func TestOpenRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown_field", "endpoints:\n  - endpoint_id: a1\n    secret: x\n"},
		{"short_key", "endpoints:\n  - endpoint_id: a1\n    persistent_key: \"0011\"\n"},
		{"not_yaml", "endpoints: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "endpoints.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Open(path); err == nil {
				t.Error("Open() error = nil")
			}
		})
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(empty) error = %v", err)
	}
	if len(s.List()) != 0 {
		t.Errorf("List() = %v, want empty", s.List())
	}
}
