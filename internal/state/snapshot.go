package state

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// Encode renders a record as a snapshot document.
func Encode(rec *cluster.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode snapshot for %s: %w", rec.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode snapshot for %s: %w", rec.Name, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot document. Unknown keys are rejected so a
// snapshot written by a newer tool is not silently half-read.
func Decode(data []byte) (*cluster.Record, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rec cluster.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &rec, nil
}
