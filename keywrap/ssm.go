package keywrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMEnvelopeStore keeps envelope documents as SecureString parameters.
// Values are not cached; every Get goes to SSM.
type SSMEnvelopeStore struct {
	ssm   SSMAPI
	kmsID string
}

// NewSSMEnvelopeStore returns a store over c. kmsKeyID selects the KMS key
// SSM encrypts parameters with; empty means the account default.
func NewSSMEnvelopeStore(c SSMAPI, kmsKeyID string) *SSMEnvelopeStore {
	return &SSMEnvelopeStore{ssm: c, kmsID: kmsKeyID}
}

// Put writes envelope under name, replacing any existing value.
func (s *SSMEnvelopeStore) Put(ctx context.Context, name string, envelope []byte) error {
	val := string(envelope)
	overwrite := true
	in := &ssm.PutParameterInput{
		Name:      &name,
		Value:     &val,
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: &overwrite,
	}
	if s.kmsID != "" {
		in.KeyId = &s.kmsID
	}
	if _, err := s.ssm.PutParameter(ctx, in); err != nil {
		return fmt.Errorf("SSM PutParameter: %w", err)
	}
	return nil
}

func (s *SSMEnvelopeStore) Get(ctx context.Context, name string) ([]byte, error) {
	decrypt := true
	out, err := s.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return nil, fmt.Errorf("SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("SSM GetParameter %s: %w", name, inputErr("parameter", "no value"))
	}
	return []byte(*out.Parameter.Value), nil
}
