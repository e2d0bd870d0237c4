package keywrap

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// Canonicalize re-serializes a JSON document with every object's keys sorted
// recursively, no insignificant whitespace and no HTML escaping. Numbers keep
// their literal text, so Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, inputErrf("json", err, "cannot canonicalize")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, inputErr("json", "trailing data after document")
	}
	return encodeCompact(v)
}

// CanonicalJSON marshals v and canonicalizes the result.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return Canonicalize(raw)
}

// encoding/json writes map keys in sorted order, which is what makes the
// generic decode/encode pass canonical.
func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// HashB64 returns base64(SHA-256(data)).
func HashB64(data []byte) string {
	sum := sha256.Sum256(data)
	return EncodeB64(sum[:])
}

func EncodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func DecodeB64(field, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, inputErrf(field, err, "base64")
	}
	return b, nil
}
