package keywrap

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// SealMode names how a secret key is protected at rest.
type SealMode string

const (
	SealNone      SealMode = "NONE"
	SealAESKEK    SealMode = "AES-KEK"
	SealHSMPort   SealMode = "HSM-PORT"
	SealHSMSerial SealMode = "HSM-SERIAL"
)

func ParseSealMode(s string) (SealMode, error) {
	switch m := SealMode(s); m {
	case SealNone, SealAESKEK, SealHSMPort, SealHSMSerial:
		return m, nil
	case "":
		return SealNone, nil
	}
	return "", inputErr("seal_mode", fmt.Sprintf("unknown seal mode %q", s))
}

// SealInfo selects a seal mode and, for AES-KEK, the key source.
type SealInfo struct {
	Mode SealMode
	KEK  KEKSource
}

// requireNone accepts a nil receiver as SealNone.
func (s *SealInfo) requireNone() error {
	if s == nil || s.Mode == SealNone || s.Mode == "" {
		return nil
	}
	return fmt.Errorf("%w: unwrapping secret keys with seal mode %s", ErrUnsupported, s.Mode)
}

// KEKSource yields the 32-byte key-encryption key used to seal secret keys.
type KEKSource interface {
	KEK(ctx context.Context) ([]byte, error)
}

// StaticKEK is a KEK held in memory.
type StaticKEK []byte

func (k StaticKEK) KEK(context.Context) ([]byte, error) {
	if len(k) != AES256KeySize {
		return nil, inputErr("kek", fmt.Sprintf("AES-KEK requires a %d-byte key, got %d", AES256KeySize, len(k)))
	}
	return []byte(k), nil
}

// sealedObjectID is written into every sealed key. Only HSM sealing
// assigns other ids.
const sealedObjectID uint16 = 0

// SealSecKey encrypts seckey under the KEK and writes the sealed layout:
// an indented JSON header, a u16 object id, two zero bytes, IV, tag, a u32
// ciphertext length and the ciphertext. All integers are little-endian.
func SealSecKey(ctx context.Context, kek KEKSource, preset string, seckey []byte, w io.Writer) error {
	if kek == nil {
		return inputErr("kek", "no key source")
	}
	if preset == "" {
		return inputErr("preset", "must not be empty")
	}
	if len(seckey) == 0 {
		return inputErr("payload", "cannot seal empty secret key")
	}
	key, err := kek.KEK(ctx)
	if err != nil {
		return fmt.Errorf("load kek: %w", err)
	}
	iv, ct, tag, err := EncryptAESGCM(key, seckey, nil)
	if err != nil {
		return err
	}
	hdr, err := json.MarshalIndent(sealedHeader{ParameterPreset: preset, SealType: string(SealAESKEK)}, "", "    ")
	if err != nil {
		return fmt.Errorf("encode sealed header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(hdr) + sealedSeparatorSize + IVSize + TagSize + 4 + len(ct))
	buf.Write(hdr)
	buf.Write(binary.LittleEndian.AppendUint16(nil, sealedObjectID))
	buf.Write([]byte{0, 0})
	buf.Write(iv)
	buf.Write(tag)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(ct))))
	buf.Write(ct)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write sealed key: %w", err)
	}
	return nil
}

// UnsealSecKey reverses SealSecKey and returns the header's preset together
// with the plaintext secret key.
func UnsealSecKey(ctx context.Context, kek KEKSource, r io.Reader) (string, []byte, error) {
	if kek == nil {
		return "", nil, inputErr("kek", "no key source")
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read sealed key: %w", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return "", nil, inputErr("sealed key", "missing JSON header")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	var hdr sealedHeader
	if err := dec.Decode(&hdr); err != nil {
		return "", nil, inputErrf("sealed key", err, "cannot parse header")
	}
	if hdr.SealType != string(SealAESKEK) {
		return "", nil, fmt.Errorf("%w: seal type %q", ErrUnsupported, hdr.SealType)
	}
	c := newCursor("sealed key", raw)
	if err := c.skip(uint64(dec.InputOffset()), "header"); err != nil {
		return "", nil, err
	}
	if err := c.skip(sealedSeparatorSize, "separator"); err != nil {
		return "", nil, err
	}
	iv, err := c.next(IVSize, "iv")
	if err != nil {
		return "", nil, err
	}
	tag, err := c.next(TagSize, "tag")
	if err != nil {
		return "", nil, err
	}
	n, err := c.u32("ciphertext length")
	if err != nil {
		return "", nil, err
	}
	ct, err := c.next(uint64(n), "ciphertext")
	if err != nil {
		return "", nil, err
	}

	key, err := kek.KEK(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("load kek: %w", err)
	}
	pt, err := DecryptAESGCM(key, iv, ct, tag, nil)
	if err != nil {
		return "", nil, err
	}
	return hdr.ParameterPreset, pt, nil
}
