package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSM is a test double for keywrap.SSMAPI backed by a map of parameter
// name to value. Encryption flags are recorded but not applied.
type SSM struct {
	mu sync.Mutex

	Values map[string]string
	Err    error

	Gets     int
	Puts     int
	LastName string
	LastPut  *ssm.PutParameterInput
}

func (f *SSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if in == nil || in.Name == nil {
		return nil, errors.New("missing Name")
	}

	name := *in.Name
	f.Gets++
	f.LastName = name

	val, ok := f.Values[name]
	if !ok {
		return nil, errors.New("parameter not found")
	}
	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{
			Name:  &name,
			Value: &val,
			Type:  types.ParameterTypeSecureString,
		},
	}, nil
}

func (f *SSM) PutParameter(ctx context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if in == nil || in.Name == nil || in.Value == nil {
		return nil, errors.New("missing Name or Value")
	}
	if f.Values == nil {
		f.Values = make(map[string]string)
	}
	name := *in.Name
	if _, exists := f.Values[name]; exists && (in.Overwrite == nil || !*in.Overwrite) {
		return nil, errors.New("parameter already exists")
	}
	f.Puts++
	f.LastName = name
	f.LastPut = in
	f.Values[name] = *in.Value
	return &ssm.PutParameterOutput{Version: int64(f.Puts)}, nil
}
