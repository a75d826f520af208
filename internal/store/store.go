// Package store persists endpoint records produced by successful
// attestations as a YAML file.
package store

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// KeySize is the length of a persistent key.
const KeySize = 32

// ErrNotFound is returned by Get for an unknown endpoint.
var ErrNotFound = errors.New("store: endpoint not found")

// Record is one attested endpoint. Binary fields are hex encoded.
type Record struct {
	EndpointID    string    `yaml:"endpoint_id"`
	PersistentKey string    `yaml:"persistent_key"`
	AttestedAt    time.Time `yaml:"attested_at"`
}

// Key decodes the persistent key.
func (r Record) Key() ([KeySize]byte, error) {
	var key [KeySize]byte
	b, err := hex.DecodeString(r.PersistentKey)
	if err != nil {
		return key, fmt.Errorf("store: endpoint %s: %w", r.EndpointID, err)
	}
	if len(b) != KeySize {
		return key, fmt.Errorf("store: endpoint %s: key is %d bytes", r.EndpointID, len(b))
	}
	copy(key[:], b)
	return key, nil
}

type file struct {
	Endpoints []Record `yaml:"endpoints"`
}

// Store is a YAML file of endpoint records keyed by endpoint identifier.
// The whole file is rewritten on every change.
type Store struct {
	path string

	mu      sync.Mutex
	records map[string]Record
}

// Open loads the store at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]Record)}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse store yaml: %w", err)
	}
	for _, r := range f.Endpoints {
		if _, err := r.Key(); err != nil {
			return nil, err
		}
		s.records[r.EndpointID] = r
	}
	return s, nil
}

// Put stores or replaces the record for endpointID and writes the file.
func (s *Store) Put(endpointID []byte, key [KeySize]byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := hex.EncodeToString(endpointID)
	s.records[id] = Record{
		EndpointID:    id,
		PersistentKey: hex.EncodeToString(key[:]),
		AttestedAt:    at.UTC(),
	}
	return s.save()
}

// Get returns the record for endpointID.
func (s *Store) Get(endpointID []byte) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[hex.EncodeToString(endpointID)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// List returns every record ordered by endpoint identifier.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

func (s *Store) sorted() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndpointID < out[j].EndpointID })
	return out
}

// save replaces the file through a temporary file in the same directory.
// The file holds keys and is created 0600.
func (s *Store) save() error {
	content, err := yaml.Marshal(file{Endpoints: s.sorted()})
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".endpoints-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
