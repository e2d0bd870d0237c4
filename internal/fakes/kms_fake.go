package fakes

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMS is a test double for keywrap.KMSAPI. Decrypt returns Plaintext after
// checking the request against the Expect fields.
type KMS struct {
	mu sync.Mutex

	Plaintext    []byte
	ExpectBlob   []byte            // if non-nil, CiphertextBlob must match
	ExpectEncCtx map[string]string // if non-nil, must match exactly
	ExpectKeyID  string            // if non-empty, must match
	Err          error

	Calls     int
	LastInput *kms.DecryptInput
}

func (f *KMS) Decrypt(ctx context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls++
	f.LastInput = in

	if f.Err != nil {
		return nil, f.Err
	}
	if f.ExpectBlob != nil && !bytes.Equal(f.ExpectBlob, in.CiphertextBlob) {
		return nil, errors.New("unexpected CiphertextBlob")
	}
	if f.ExpectKeyID != "" {
		if in.KeyId == nil || *in.KeyId != f.ExpectKeyID {
			return nil, errors.New("unexpected KeyId")
		}
	}
	if f.ExpectEncCtx != nil {
		if !reflect.DeepEqual(f.ExpectEncCtx, in.EncryptionContext) {
			return nil, errors.New("unexpected EncryptionContext")
		}
	}
	return &kms.DecryptOutput{Plaintext: bytes.Clone(f.Plaintext)}, nil
}

func (f *KMS) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
