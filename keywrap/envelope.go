package keywrap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	FormatVersionV1   = 1
	DefaultKeyVersion = "1"
	DigestSHA256      = "SHA256"
)

// Key lifecycle states. This package only ever writes StateActive.
const (
	StateActive      = "active"
	StateSuspended   = "suspended"
	StateCompromised = "compromised"
	StateDestroyed   = "destroyed"
)

type EntryParameter struct {
	Parameter
	Preset string `json:"preset"`
}

type EntryMetadata struct {
	Parameter EntryParameter `json:"parameter"`
	EvalMode  string         `json:"eval_mode"`
	Dim       string         `json:"dim,omitempty"`
}

// ProviderEntry is one piece of encapsulated key material. Alg, IV and Tag
// are set only when the sniffed payload was already sealed.
type ProviderEntry struct {
	Name          string        `json:"name"`
	FormatVersion int           `json:"format_version"`
	Role          string        `json:"role"`
	Hash          string        `json:"hash,omitempty"`
	Metadata      EntryMetadata `json:"metadata"`
	KeyData       string        `json:"key_data"`
	Alg           string        `json:"alg,omitempty"`
	IV            string        `json:"iv,omitempty"`
	Tag           string        `json:"tag,omitempty"`
}

// ProviderEnvelope is what a provider returns from an encap call.
type ProviderEnvelope struct {
	ProviderMeta ProviderMeta    `json:"provider_meta"`
	Entries      []ProviderEntry `json:"entries"`
}

type Digest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type KeyState struct {
	Value     string  `json:"value"`
	Reason    *string `json:"reason"`
	UpdatedAt string  `json:"updated_at"`
}

// Envelope is the outer, versioned document written by a key manager.
type Envelope struct {
	Format        string          `json:"format"`
	FormatVersion int             `json:"format_version"`
	KeyVersion    string          `json:"key_version"`
	KID           string          `json:"kid"`
	Usage         string          `json:"usage"`
	Requester     Requester       `json:"requester"`
	CreatedAt     string          `json:"created_at"`
	ExpiresAt     string          `json:"expires_at"`
	ProviderMeta  ProviderMeta    `json:"provider_meta"`
	AAD           Digest          `json:"aad"`
	Integrity     Digest          `json:"integrity"`
	Entries       []ProviderEntry `json:"entries"`
	State         KeyState        `json:"state"`
}

func joinEntryNames(entries []ProviderEntry) string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return strings.Join(names, ";")
}

// ParseEnvelope decodes a full envelope document.
func ParseEnvelope(r io.Reader) (*Envelope, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, inputErr("envelope", "empty document")
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnsupported) {
			return nil, err
		}
		return nil, inputErrf("envelope", err, "malformed JSON")
	}
	if len(env.Entries) == 0 {
		return nil, inputErr("entries", "envelope has no entries")
	}
	return &env, nil
}

// VerifyAAD recomputes the AAD hash from the envelope's own fields.
func (e *Envelope) VerifyAAD() error {
	payload, err := aadPayloadFor(e.FormatVersion, e.KID, e.Usage, e.Requester, e.CreatedAt, e.ExpiresAt, e.ProviderMeta)
	if err != nil {
		return err
	}
	return compareDigest("aad", e.AAD, payload)
}

// VerifyIntegrity recomputes the integrity hash for the given kind.
func (e *Envelope) VerifyIntegrity(kind KeyKind) error {
	return compareDigest("integrity", e.Integrity, []byte(integrityContext(e.KID, kind)))
}

// VerifyEntries checks every entry's hash against its decoded key_data.
func (e *Envelope) VerifyEntries() error {
	for i, entry := range e.Entries {
		raw, err := DecodeB64("key_data", entry.KeyData)
		if err != nil {
			return err
		}
		if entry.Hash == "" {
			continue
		}
		if HashB64(raw) != entry.Hash {
			return fmt.Errorf("%w: entry %d (%s) hash mismatch", ErrIntegrity, i, entry.Name)
		}
	}
	return nil
}

func compareDigest(name string, d Digest, payload []byte) error {
	if d.Type != DigestSHA256 {
		return fmt.Errorf("%w: %s digest type %q", ErrUnsupported, name, d.Type)
	}
	if HashB64(payload) != d.Value {
		return fmt.Errorf("%w: %s hash mismatch", ErrIntegrity, name)
	}
	return nil
}
