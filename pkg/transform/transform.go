// Package transform provides reference byte-stream transformers.
//
// Transformers attached to an element encode in attachment order when
// serializing and decode in reverse order when cracking.
package transform

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrEmptyKey is returned by XOR when the key is empty.
var ErrEmptyKey = errors.New("empty xor key")

// Hex encodes bytes as lowercase hexadecimal text.
type Hex struct{}

// Name returns "hex".
func (Hex) Name() string { return "hex" }

// Encode hex encodes data.
func (Hex) Encode(data []byte) ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(data)))
	hex.Encode(out, data)
	return out, nil
}

// Decode parses hexadecimal text.
func (Hex) Decode(data []byte) ([]byte, error) {
	out := make([]byte, hex.DecodedLen(len(data)))
	n, err := hex.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("hex decode: %w", err)
	}
	return out[:n], nil
}

// Base64 encodes bytes with the standard padded alphabet.
type Base64 struct{}

// Name returns "base64".
func (Base64) Name() string { return "base64" }

// Encode base64 encodes data.
func (Base64) Encode(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out, nil
}

// Decode parses base64 text.
func (Base64) Decode(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	return out[:n], nil
}

// XOR applies a repeating key. It is its own inverse.
type XOR struct {
	Key []byte
}

// Name returns "xor".
func (x XOR) Name() string { return "xor" }

// Encode xors data with the key.
func (x XOR) Encode(data []byte) ([]byte, error) {
	if len(x.Key) == 0 {
		return nil, ErrEmptyKey
	}
	out := make([]byte, len(data))
	for i, c := range data {
		out[i] = c ^ x.Key[i%len(x.Key)]
	}
	return out, nil
}

// Decode is Encode.
func (x XOR) Decode(data []byte) ([]byte, error) { return x.Encode(data) }
