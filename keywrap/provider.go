package keywrap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// KeyProvider turns raw key bytes into provider entries and back. New
// backends implement this interface without touching the key manager.
type KeyProvider interface {
	Meta() ProviderMeta

	EncapSecKey(r io.Reader) (*ProviderEnvelope, error)
	EncapEncKey(r io.Reader) (*ProviderEnvelope, error)
	EncapEvalKey(r io.Reader) (*ProviderEnvelope, error)

	DecapSecKey(r io.Reader, w io.Writer) error
	DecapEncKey(r io.Reader, w io.Writer) error
	DecapEvalKey(r io.Reader, w io.Writer) error
}

// NewProvider builds the provider named by meta.Type.
func NewProvider(meta ProviderMeta, opts ...Option) (KeyProvider, error) {
	switch meta.Type {
	case ProviderLocal:
		if meta.Local == nil {
			return nil, inputErr("provider_meta", "local provider metadata is missing")
		}
		return NewLocalProvider(*meta.Local, opts...), nil
	default:
		return nil, fmt.Errorf("%w: provider type %q", ErrUnsupported, meta.Type)
	}
}

// LocalProvider stores key bytes base64-encoded inside the entry. It holds no
// mutable state after construction and is safe for concurrent use.
type LocalProvider struct {
	meta    LocalProviderMeta
	presets PresetRegistry
	log     zerolog.Logger
}

func NewLocalProvider(meta LocalProviderMeta, opts ...Option) *LocalProvider {
	o := collectOptions(opts)
	if meta.ProviderVersion == "" {
		meta.ProviderVersion = "1"
	}
	return &LocalProvider{meta: meta, presets: o.presets, log: o.log}
}

func (p *LocalProvider) Meta() ProviderMeta {
	m := p.meta
	return ProviderMeta{Type: ProviderLocal, Local: &m}
}

func (p *LocalProvider) EncapSecKey(r io.Reader) (*ProviderEnvelope, error) {
	return p.encap(KindSec, r)
}

func (p *LocalProvider) EncapEncKey(r io.Reader) (*ProviderEnvelope, error) {
	return p.encap(KindEnc, r)
}

func (p *LocalProvider) EncapEvalKey(r io.Reader) (*ProviderEnvelope, error) {
	return p.encap(KindEval, r)
}

// All kinds share one decode path; no per-kind validation is done.
func (p *LocalProvider) DecapSecKey(r io.Reader, w io.Writer) error  { return p.decap(r, w) }
func (p *LocalProvider) DecapEncKey(r io.Reader, w io.Writer) error  { return p.decap(r, w) }
func (p *LocalProvider) DecapEvalKey(r io.Reader, w io.Writer) error { return p.decap(r, w) }

func (p *LocalProvider) encap(kind KeyKind, r io.Reader) (*ProviderEnvelope, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind.info().entryName, err)
	}
	entry, err := p.makeEntry(kind, payload)
	if err != nil {
		return nil, err
	}
	return &ProviderEnvelope{ProviderMeta: p.Meta(), Entries: []ProviderEntry{*entry}}, nil
}

func (p *LocalProvider) makeEntry(kind KeyKind, payload []byte) (*ProviderEntry, error) {
	info := kind.info()
	if len(payload) == 0 {
		return nil, inputErr("payload", "cannot encap empty payload for entry '"+info.entryName+"'")
	}
	s, err := Sniff(payload)
	if err != nil {
		return nil, err
	}
	entry := &ProviderEntry{
		Name:          info.entryName,
		FormatVersion: 1,
		Role:          info.role,
		Alg:           s.Alg,
		Hash:          HashB64(payload),
		KeyData:       EncodeB64(payload),
	}
	if s.Shape == ShapeSealed {
		entry.IV = EncodeB64(s.IV)
		entry.Tag = EncodeB64(s.Tag)
	}
	entry.Metadata.EvalMode = s.EvalMode
	if s.Preset != "" {
		if param, err := p.presets.Lookup(s.Preset); err == nil {
			entry.Metadata.Parameter = EntryParameter{Parameter: param, Preset: s.Preset}
		} else {
			p.log.Debug().Str("preset", s.Preset).Msg("preset not in registry, leaving parameters empty")
		}
	}
	p.log.Debug().
		Str("entry", entry.Name).
		Stringer("shape", s.Shape).
		Int("payload_len", len(payload)).
		Str("preset", entry.Metadata.Parameter.Preset).
		Msg("encapsulated key")
	return entry, nil
}

func (p *LocalProvider) decap(r io.Reader, w io.Writer) error {
	key, err := decodeEnvelopeKeyData(r)
	if err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return fmt.Errorf("write key bytes: %w", err)
	}
	return nil
}

// decodeEnvelopeKeyData reads either a ProviderEnvelope or a full outer
// envelope and returns the first entry's decoded key_data.
func decodeEnvelopeKeyData(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, inputErrf("envelope", err, "not a JSON object")
	}
	entriesRaw, ok := doc["entries"]
	if !ok {
		return nil, inputErr("entries", "missing")
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(entriesRaw, &entries); err != nil {
		return nil, inputErrf("entries", err, "not an array of objects")
	}
	if len(entries) == 0 {
		return nil, inputErr("entries", "envelope has no entries")
	}
	keyRaw, ok := entries[0]["key_data"]
	if !ok {
		return nil, inputErr("key_data", "key entry is missing 'key_data'")
	}
	var encoded *string
	if err := json.Unmarshal(keyRaw, &encoded); err != nil || encoded == nil {
		return nil, inputErrf("key_data", err, "not a string")
	}
	return DecodeB64("key_data", *encoded)
}

// EncapFile opens path and encapsulates it as kind.
func EncapFile(p KeyProvider, kind KeyKind, path string) (*ProviderEnvelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrFileAccess, path, err)
	}
	defer f.Close()
	return encapKind(p, kind, f)
}

// DecapFile decodes the envelope at inPath into outPath. A failed decode
// may leave an empty outPath behind.
func DecapFile(p KeyProvider, kind KeyKind, inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrFileAccess, inPath, err)
	}
	defer in.Close()
	out, err := createOutput(outPath)
	if err != nil {
		return err
	}
	if err := decapKind(p, kind, in, out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrFileAccess, outPath, err)
	}
	return nil
}

func encapKind(p KeyProvider, kind KeyKind, r io.Reader) (*ProviderEnvelope, error) {
	switch kind {
	case KindSec:
		return p.EncapSecKey(r)
	case KindEnc:
		return p.EncapEncKey(r)
	case KindEval:
		return p.EncapEvalKey(r)
	}
	return nil, inputErr("kind", fmt.Sprintf("unknown key kind %q", kind))
}

func decapKind(p KeyProvider, kind KeyKind, r io.Reader, w io.Writer) error {
	switch kind {
	case KindSec:
		return p.DecapSecKey(r, w)
	case KindEnc:
		return p.DecapEncKey(r, w)
	case KindEval:
		return p.DecapEvalKey(r, w)
	}
	return inputErr("kind", fmt.Sprintf("unknown key kind %q", kind))
}

func createOutput(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrFileAccess, path, err)
	}
	return f, nil
}

var _ KeyProvider = (*LocalProvider)(nil)
