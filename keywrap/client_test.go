package keywrap_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/grasp-labs/ds-keywrap-go-sdk/internal/fakes"
	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

type stubRepo struct {
	rec   *keywrap.EnvelopeRecord
	err   error
	calls int
}

func (s *stubRepo) SaveEnvelope(_ context.Context, rec *keywrap.EnvelopeRecord) error {
	if s.err != nil {
		return s.err
	}
	s.rec = rec
	return nil
}

func (s *stubRepo) GetEnvelope(_ context.Context, key string) (*keywrap.EnvelopeRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.rec != nil && s.rec.Key == key {
		return s.rec, nil
	}
	return nil, nil
}

func newClient(t *testing.T, repo keywrap.EnvelopeRepository, ssmFake *fakes.SSM, now time.Time) *keywrap.Client {
	t.Helper()
	var store *keywrap.SSMEnvelopeStore
	if ssmFake != nil {
		store = keywrap.NewSSMEnvelopeStore(ssmFake, "")
	}
	return keywrap.NewClient(newManager(t), repo, store,
		keywrap.WithClock(func() time.Time { return now }))
}

func TestClient_PublishFetch_FromDB(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := keywrap.NewInMemoryRepo()
	client := newClient(t, repo, nil, fixedNow.Add(time.Hour))
	key := fakes.EvalArchive("IP0", "RMP")

	rec, err := client.Publish(ctx, keywrap.KindEval, "kid-db", bytes.NewReader(key), keywrap.StoreDB)
	require.NoError(t, err)
	assert.Equal(t, "/ds/keywrap/eval/kid-db", rec.Key)
	assert.Equal(t, keywrap.UsageEvaluation, rec.Usage)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.Equal(t, fixedNow.Add(keywrap.KeyLifetime), rec.ExpiresAt)
	assert.NotEmpty(t, rec.Envelope)
	assert.Equal(t, keywrap.HashB64(key), rec.EntryHash)

	meta, err := rec.MetadataMap()
	require.NoError(t, err)
	assert.Equal(t, "IP0", meta["preset"])
	assert.Equal(t, "RMP", meta["eval_mode"])
	tags, err := rec.TagMap()
	require.NoError(t, err)
	assert.Equal(t, "alice", tags["requester_entity"])

	var out bytes.Buffer
	require.NoError(t, client.Fetch(ctx, keywrap.KindEval, "kid-db", &out))
	assert.Equal(t, key, out.Bytes())
}

func TestClient_PublishFetch_FromSSM(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ssmFake := &fakes.SSM{}
	repo := &stubRepo{}
	client := newClient(t, repo, ssmFake, fixedNow)
	key := fakes.OpaqueKey(96)

	rec, err := client.Publish(ctx, keywrap.KindSec, "kid-ssm", bytes.NewReader(key), keywrap.StoreAWSSSM)
	require.NoError(t, err)
	assert.Empty(t, rec.Envelope)
	assert.Equal(t, 1, ssmFake.Puts)
	assert.Contains(t, ssmFake.Values, rec.Key)

	var out bytes.Buffer
	require.NoError(t, client.Fetch(ctx, keywrap.KindSec, "kid-ssm", &out))
	assert.Equal(t, key, out.Bytes())
	assert.Equal(t, 1, ssmFake.Gets)
	assert.Equal(t, 1, repo.calls)

	// keys are never cached
	out.Reset()
	require.NoError(t, client.Fetch(ctx, keywrap.KindSec, "kid-ssm", &out))
	assert.Equal(t, 2, ssmFake.Gets)
	assert.Equal(t, 2, repo.calls)
}

func TestClient_Fetch_DetectsSwappedEnvelope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ssmFake := &fakes.SSM{}
	client := newClient(t, &stubRepo{}, ssmFake, fixedNow)

	rec, err := client.Publish(ctx, keywrap.KindEnc, "kid-a", bytes.NewReader(fakes.OpaqueKey(16)), keywrap.StoreAWSSSM)
	require.NoError(t, err)

	other, err := keywrap.WrapToBytes(newManager(t), keywrap.KindEnc, "kid-b", fakes.OpaqueKey(16))
	require.NoError(t, err)
	ssmFake.Values[rec.Key] = string(other)

	var out bytes.Buffer
	err = client.Fetch(ctx, keywrap.KindEnc, "kid-a", &out)
	require.ErrorIs(t, err, keywrap.ErrIntegrity)
	assert.Zero(t, out.Len())

	ssmFake.Values[rec.Key] = strings.Replace(ssmFake.Values[rec.Key], `"kid":"kid-b"`, `"kid":"kid-a"`, 1)
	err = client.Fetch(ctx, keywrap.KindEnc, "kid-a", &out)
	require.ErrorIs(t, err, keywrap.ErrIntegrity)
	assert.Zero(t, out.Len())
}

func TestClient_Fetch_RefusesInactive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := keywrap.NewInMemoryRepo()
	client := newClient(t, repo, nil, fixedNow)

	rec, err := client.Publish(ctx, keywrap.KindEnc, "kid-s", bytes.NewReader(fakes.OpaqueKey(16)), keywrap.StoreDB)
	require.NoError(t, err)
	rec.State = keywrap.StateSuspended
	require.NoError(t, repo.SaveEnvelope(ctx, rec))

	var out bytes.Buffer
	require.ErrorIs(t, client.Fetch(ctx, keywrap.KindEnc, "kid-s", &out), keywrap.ErrKeyInactive)

	late := newClient(t, repo, nil, fixedNow.Add(keywrap.KeyLifetime+time.Second))
	rec.State = keywrap.StateActive
	require.NoError(t, repo.SaveEnvelope(ctx, rec))
	require.ErrorIs(t, late.Fetch(ctx, keywrap.KindEnc, "kid-s", &out), keywrap.ErrKeyInactive)
	assert.Zero(t, out.Len())
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newClient(t, keywrap.NewInMemoryRepo(), nil, fixedNow)

	var out bytes.Buffer
	require.ErrorIs(t, client.Fetch(ctx, keywrap.KindSec, "absent", &out), keywrap.ErrNotFound)

	_, err := client.Publish(ctx, keywrap.KindSec, "k", bytes.NewReader([]byte{0}), keywrap.StoreAWSSSM)
	require.ErrorIs(t, err, keywrap.ErrUnsupported)

	_, err = client.Publish(ctx, keywrap.KindSec, "k", bytes.NewReader([]byte{0}), keywrap.Store("s3"))
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)

	_, err = client.Publish(ctx, keywrap.KindSec, "", bytes.NewReader([]byte{0}), keywrap.StoreDB)
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)

	boom := errors.New("db down")
	failing := newClient(t, &stubRepo{err: boom}, nil, fixedNow)
	_, err = failing.Publish(ctx, keywrap.KindSec, "k", bytes.NewReader([]byte{0}), keywrap.StoreDB)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, failing.Fetch(ctx, keywrap.KindSec, "k", &out), boom)
}

func TestClient_WithGormRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dsn := fakes.SharedMemoryDSN(t)
	_ = fakes.NewDB(t, dsn)
	repo, err := keywrap.NewGormEnvelopeRepository(sqlite.Open(dsn), "")
	require.NoError(t, err)

	client := keywrap.NewClient(newManager(t), repo, nil,
		keywrap.WithNamespace("acme", "he"),
		keywrap.WithClock(func() time.Time { return fixedNow }))
	key := fakes.TaggedKey(0x01, "QF0", fakes.RandomBytes(32))

	rec, err := client.Publish(ctx, keywrap.KindEnc, "kid-g", bytes.NewReader(key), keywrap.StoreDB)
	require.NoError(t, err)
	assert.Equal(t, "/acme/he/enc/kid-g", rec.Key)

	var out bytes.Buffer
	require.NoError(t, client.Fetch(ctx, keywrap.KindEnc, "kid-g", &out))
	assert.Equal(t, key, out.Bytes())
}
