package keywrap

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// FormatVersion selects the envelope strategy a KeyManager writes.
type FormatVersion int

const (
	FormatV1     FormatVersion = 1
	FormatLatest               = FormatV1
)

// KeyLifetime is five 365-day years. Leap days are not added.
const KeyLifetime = 5 * 365 * 24 * time.Hour

const timestampLayout = "2006-01-02T15:04:05Z"

// KeyManager wraps raw engine keys into envelopes and unwraps them.
type KeyManager interface {
	Wrap(kind KeyKind, keyID string, src io.Reader, dst io.Writer) error
	Unwrap(kind KeyKind, src io.Reader, dst io.Writer) error

	WrapSecKey(keyID string, src io.Reader, dst io.Writer) error
	WrapEncKey(keyID string, src io.Reader, dst io.Writer) error
	WrapEvalKey(keyID string, src io.Reader, dst io.Writer) error

	WrapSecKeyFile(keyID, keyPath, outPath string) error
	WrapEncKeyFile(keyID, keyPath, outPath string) error
	WrapEvalKeyFile(keyID, keyPath, outPath string) error

	UnwrapSecKey(src io.Reader, dst io.Writer, seal *SealInfo) error
	UnwrapEncKey(src io.Reader, dst io.Writer) error
	UnwrapEvalKey(src io.Reader, dst io.Writer) error

	UnwrapSecKeyFile(path, outPath string, seal *SealInfo) error
	UnwrapEncKeyFile(path, outPath string) error
	UnwrapEvalKeyFile(path, outPath string) error

	WrapKeys(keyID, dir string) error
	WrapKeysStream(keyID string, src io.Reader) error
	UnwrapKeys(dir, outDir string) error
	UnwrapKeysStream(src io.Reader, dst io.Writer) error
}

// NewKeyManager builds the provider described by meta and the envelope
// strategy for version.
func NewKeyManager(meta ProviderMeta, version FormatVersion, opts ...Option) (KeyManager, error) {
	provider, err := NewProvider(meta, opts...)
	if err != nil {
		return nil, err
	}
	switch version {
	case FormatV1:
		return NewKeyManagerV1(provider, opts...)
	default:
		return nil, fmt.Errorf("%w: key manager version %d", ErrUnsupported, version)
	}
}

// NewDefaultKeyManager is a V1 manager over a Local provider.
func NewDefaultKeyManager(opts ...Option) (KeyManager, error) {
	return NewKeyManager(NewLocalProviderMeta("", ""), FormatLatest, opts...)
}

// KeyManagerV1 writes format_version 1 envelopes. It owns its provider and
// holds no mutable state, so concurrent calls on distinct sinks are safe.
type KeyManagerV1 struct {
	provider  KeyProvider
	requester Requester
	now       func() time.Time
	log       zerolog.Logger
}

func NewKeyManagerV1(provider KeyProvider, opts ...Option) (*KeyManagerV1, error) {
	if provider == nil {
		return nil, inputErr("provider", "key provider is not initialized")
	}
	o := collectOptions(opts)
	req := RequesterFromEnv()
	if o.requester != nil {
		req = *o.requester
	}
	return &KeyManagerV1{provider: provider, requester: req, now: o.now, log: o.log}, nil
}

func (m *KeyManagerV1) Wrap(kind KeyKind, keyID string, src io.Reader, dst io.Writer) error {
	if err := checkKeyID(keyID); err != nil {
		return err
	}
	out, err := m.seal(kind, keyID, src)
	if err != nil {
		return err
	}
	if _, err := dst.Write(out); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

func checkKeyID(keyID string) error {
	if keyID == "" {
		return inputErr("kid", "key_id must not be empty")
	}
	if !utf8.ValidString(keyID) {
		return inputErr("kid", "key_id must be valid UTF-8")
	}
	return nil
}

// seal builds the canonical envelope bytes for one key.
func (m *KeyManagerV1) seal(kind KeyKind, keyID string, src io.Reader) ([]byte, error) {
	now := m.now().UTC()
	createdAt := now.Format(timestampLayout)
	expiresAt := now.Add(KeyLifetime).Format(timestampLayout)

	penv, err := encapKind(m.provider, kind, src)
	if err != nil {
		return nil, err
	}
	usage := kind.Usage()
	aad, err := aadPayloadFor(FormatVersionV1, keyID, usage, m.requester, createdAt, expiresAt, penv.ProviderMeta)
	if err != nil {
		return nil, fmt.Errorf("aad payload: %w", err)
	}
	env := Envelope{
		Format:        joinEntryNames(penv.Entries),
		FormatVersion: FormatVersionV1,
		KeyVersion:    DefaultKeyVersion,
		KID:           keyID,
		Usage:         usage,
		Requester:     m.requester,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		ProviderMeta:  penv.ProviderMeta,
		AAD:           Digest{Type: DigestSHA256, Value: HashB64(aad)},
		Integrity:     Digest{Type: DigestSHA256, Value: HashB64([]byte(integrityContext(keyID, kind)))},
		Entries:       penv.Entries,
		State:         KeyState{Value: StateActive, UpdatedAt: createdAt},
	}
	out, err := CanonicalJSON(env)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalize envelope: %v", ErrIntegrity, err)
	}
	m.log.Debug().
		Str("kid", keyID).
		Str("kind", string(kind)).
		Str("usage", usage).
		Int("entries", len(penv.Entries)).
		Int("envelope_len", len(out)).
		Msg("wrapped key")
	return out, nil
}

func (m *KeyManagerV1) Unwrap(kind KeyKind, src io.Reader, dst io.Writer) error {
	if err := decapKind(m.provider, kind, src, dst); err != nil {
		return err
	}
	m.log.Debug().Str("kind", string(kind)).Msg("unwrapped key")
	return nil
}

func (m *KeyManagerV1) WrapSecKey(keyID string, src io.Reader, dst io.Writer) error {
	return m.Wrap(KindSec, keyID, src, dst)
}

func (m *KeyManagerV1) WrapEncKey(keyID string, src io.Reader, dst io.Writer) error {
	return m.Wrap(KindEnc, keyID, src, dst)
}

func (m *KeyManagerV1) WrapEvalKey(keyID string, src io.Reader, dst io.Writer) error {
	return m.Wrap(KindEval, keyID, src, dst)
}

func (m *KeyManagerV1) WrapSecKeyFile(keyID, keyPath, outPath string) error {
	return m.wrapFile(KindSec, keyID, keyPath, outPath)
}

func (m *KeyManagerV1) WrapEncKeyFile(keyID, keyPath, outPath string) error {
	return m.wrapFile(KindEnc, keyID, keyPath, outPath)
}

func (m *KeyManagerV1) WrapEvalKeyFile(keyID, keyPath, outPath string) error {
	return m.wrapFile(KindEval, keyID, keyPath, outPath)
}

// wrapFile checks the key id before touching outPath, so a rejected id
// leaves no file behind. Later failures may leave an empty outPath.
func (m *KeyManagerV1) wrapFile(kind KeyKind, keyID, keyPath, outPath string) error {
	if err := checkKeyID(keyID); err != nil {
		return err
	}
	in, err := os.Open(keyPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrFileAccess, keyPath, err)
	}
	defer in.Close()
	out, err := createOutput(outPath)
	if err != nil {
		return err
	}
	if err := m.Wrap(kind, keyID, in, out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrFileAccess, outPath, err)
	}
	return nil
}

// UnwrapSecKey honours only SealNone. A nil seal means SealNone.
func (m *KeyManagerV1) UnwrapSecKey(src io.Reader, dst io.Writer, seal *SealInfo) error {
	if err := seal.requireNone(); err != nil {
		return err
	}
	return m.Unwrap(KindSec, src, dst)
}

func (m *KeyManagerV1) UnwrapEncKey(src io.Reader, dst io.Writer) error {
	return m.Unwrap(KindEnc, src, dst)
}

func (m *KeyManagerV1) UnwrapEvalKey(src io.Reader, dst io.Writer) error {
	return m.Unwrap(KindEval, src, dst)
}

func (m *KeyManagerV1) UnwrapSecKeyFile(path, outPath string, seal *SealInfo) error {
	if err := seal.requireNone(); err != nil {
		return err
	}
	return DecapFile(m.provider, KindSec, path, outPath)
}

func (m *KeyManagerV1) UnwrapEncKeyFile(path, outPath string) error {
	return DecapFile(m.provider, KindEnc, path, outPath)
}

func (m *KeyManagerV1) UnwrapEvalKeyFile(path, outPath string) error {
	return DecapFile(m.provider, KindEval, path, outPath)
}

// WrapKeys wraps EncKey.bin, EvalKey.bin and SecKey.bin in dir into the
// matching .json files next to them.
func (m *KeyManagerV1) WrapKeys(keyID, dir string) error {
	for _, kind := range Kinds {
		if err := m.wrapFile(kind, keyID, filepath.Join(dir, kind.BinFile()), filepath.Join(dir, kind.JSONFile())); err != nil {
			return fmt.Errorf("wrap %s: %w", kind.BinFile(), err)
		}
	}
	return nil
}

// UnwrapKeys writes the three .bin files recovered from dir into outDir,
// creating outDir if needed.
func (m *KeyManagerV1) UnwrapKeys(dir, outDir string) error {
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrFileAccess, outDir, err)
	}
	for _, kind := range Kinds {
		if err := DecapFile(m.provider, kind, filepath.Join(dir, kind.JSONFile()), filepath.Join(outDir, kind.BinFile())); err != nil {
			return fmt.Errorf("unwrap %s: %w", kind.JSONFile(), err)
		}
	}
	return nil
}

func (m *KeyManagerV1) WrapKeysStream(string, io.Reader) error {
	return fmt.Errorf("%w: stream-based WrapKeys", ErrUnsupported)
}

func (m *KeyManagerV1) UnwrapKeysStream(io.Reader, io.Writer) error {
	return fmt.Errorf("%w: stream-based UnwrapKeys", ErrUnsupported)
}

// WrapToBytes is Wrap into a fresh buffer.
func WrapToBytes(m KeyManager, kind KeyKind, keyID string, key []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Wrap(kind, keyID, bytes.NewReader(key), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ KeyManager = (*KeyManagerV1)(nil)
