package keywrap_test

import (
	"context"
	"errors"
	"testing"

	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-keywrap-go-sdk/internal/fakes"
	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

func TestSSMEnvelopeStore_PutGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ssmFake := &fakes.SSM{}
	store := keywrap.NewSSMEnvelopeStore(ssmFake, "alias/keywrap")

	require.NoError(t, store.Put(ctx, "/ds/keywrap/enc/k", []byte(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, "/ds/keywrap/enc/k", []byte(`{"a":2}`)))
	assert.Equal(t, 2, ssmFake.Puts)
	assert.Equal(t, ssmtypes.ParameterTypeSecureString, ssmFake.LastPut.Type)
	assert.Equal(t, "alias/keywrap", *ssmFake.LastPut.KeyId)

	got, err := store.Get(ctx, "/ds/keywrap/enc/k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)
	assert.Equal(t, 1, ssmFake.Gets)

	_, err = store.Get(ctx, "/missing")
	require.Error(t, err)
}

func TestSSMEnvelopeStore_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("throttled")
	store := keywrap.NewSSMEnvelopeStore(&fakes.SSM{Err: boom}, "")
	require.ErrorIs(t, store.Put(context.Background(), "n", []byte("v")), boom)
	_, err := store.Get(context.Background(), "n")
	require.ErrorIs(t, err, boom)
}
