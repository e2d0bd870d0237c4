package keywrap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/rs/zerolog"
)

type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSKEKSource unwraps a KMS-encrypted KEK on demand. The plaintext KEK is
// cached for ttl so repeated seals do not call KMS each time.
type KMSKEKSource struct {
	kms        KMSAPI
	wrappedKEK []byte
	keyID      string
	encCtx     map[string]string
	cache      *TTLCache[[]byte]
	log        zerolog.Logger
}

// NewKMSKEKSource builds a source for wrappedKEK, the raw ciphertext blob
// returned by KMS Encrypt or GenerateDataKey. keyID may be empty for
// symmetric keys. encCtx must match the context used when wrapping.
func NewKMSKEKSource(k KMSAPI, wrappedKEK []byte, keyID string, encCtx map[string]string, ttl time.Duration, opts ...Option) (*KMSKEKSource, error) {
	if k == nil {
		return nil, inputErr("kms", "client is required")
	}
	if len(wrappedKEK) == 0 {
		return nil, inputErr("wrapped_kek", "must not be empty")
	}
	o := collectOptions(opts)
	return &KMSKEKSource{
		kms:        k,
		wrappedKEK: wrappedKEK,
		keyID:      keyID,
		encCtx:     encCtx,
		cache:      NewTTLCache[[]byte](1, ttl),
		log:        o.log,
	}, nil
}

// NewKMSKEKSourceB64 is NewKMSKEKSource for a base64-encoded blob.
func NewKMSKEKSourceB64(k KMSAPI, wrappedB64, keyID string, encCtx map[string]string, ttl time.Duration, opts ...Option) (*KMSKEKSource, error) {
	blob, err := DecodeB64("wrapped_kek", wrappedB64)
	if err != nil {
		return nil, err
	}
	return NewKMSKEKSource(k, blob, keyID, encCtx, ttl, opts...)
}

// KEKEncryptionContext is the KMS encryption context binding a KEK to a
// key id and usage.
func KEKEncryptionContext(kid, usage string) map[string]string {
	return map[string]string{"kid": kid, "usage": usage}
}

const kekCacheKey = "kek"

func (s *KMSKEKSource) KEK(ctx context.Context) ([]byte, error) {
	if kek, ok := s.cache.Get(kekCacheKey); ok {
		return kek, nil
	}
	in := &kms.DecryptInput{
		CiphertextBlob:    s.wrappedKEK,
		EncryptionContext: s.encCtx,
	}
	if s.keyID != "" {
		in.KeyId = &s.keyID
	}
	out, err := s.kms.Decrypt(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("KMS Decrypt: %w", err)
	}
	if len(out.Plaintext) != AES256KeySize {
		return nil, inputErr("kek", fmt.Sprintf("KMS returned %d bytes, want %d", len(out.Plaintext), AES256KeySize))
	}
	s.log.Debug().Str("key_id", s.keyID).Msg("unwrapped kek via KMS")
	s.cache.Set(kekCacheKey, out.Plaintext)
	return out.Plaintext, nil
}

var _ KEKSource = (*KMSKEKSource)(nil)
