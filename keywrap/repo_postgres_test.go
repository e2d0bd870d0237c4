package keywrap_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/grasp-labs/ds-keywrap-go-sdk/internal/fakes"
	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

func TestGormEnvelopeRepository_WithSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dsn := fakes.SharedMemoryDSN(t)
	db := fakes.NewDB(t, dsn)
	for _, col := range []string{"kid", "aad_hash", "integrity_hash", "entry_hash", "key_version"} {
		assert.True(t, db.Migrator().HasColumn(&keywrap.EnvelopeRecord{}, col), "column %s", col)
	}

	repo, err := keywrap.NewGormEnvelopeRepository(sqlite.Open(dsn), keywrap.DefaultEnvelopeTable)
	require.NoError(t, err)

	key := keywrap.MakeKey("", "", keywrap.KindEnc, "kid-db")
	rec := &keywrap.EnvelopeRecord{
		Key:       key,
		KID:       "kid-db",
		Kind:      keywrap.KindEnc,
		Store:     keywrap.StoreDB,
		State:     keywrap.StateActive,
		Envelope:  `{"v":1}`,
		AADHash:   "aad-1",
		CreatedAt: fixedNow,
		ExpiresAt: fixedNow.Add(keywrap.KeyLifetime),
	}
	require.NoError(t, repo.SaveEnvelope(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)

	got, err := repo.GetEnvelope(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"v":1}`, got.Envelope)
	assert.Equal(t, keywrap.KindEnc, got.Kind)

	// cached read
	got2, err := repo.GetEnvelope(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, got, got2)

	// re-publish replaces the row and drops the cached copy
	rec2 := *rec
	rec2.ID = uuid.Nil
	rec2.Envelope = `{"v":2}`
	rec2.AADHash = "aad-2"
	require.NoError(t, repo.SaveEnvelope(ctx, &rec2))

	got3, err := repo.GetEnvelope(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got3)
	assert.Equal(t, `{"v":2}`, got3.Envelope)
	assert.Equal(t, "aad-2", got3.AADHash)
	assert.Equal(t, "kid-db", got3.KID)
	assert.Equal(t, rec.ID, got3.ID)

	missing, err := repo.GetEnvelope(ctx, keywrap.MakeKey("", "", keywrap.KindSec, "nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormEnvelopeRepository_InvalidTable(t *testing.T) {
	t.Parallel()
	_, err := keywrap.NewGormEnvelopeRepository(sqlite.Open(fakes.SharedMemoryDSN(t)), "records; drop table x")
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)
}

func TestInMemoryRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := keywrap.NewInMemoryRepo()

	rec := &keywrap.EnvelopeRecord{Key: "/ds/keywrap/sec/a", State: keywrap.StateActive, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.SaveEnvelope(ctx, rec))
	id := rec.ID

	got, err := repo.GetEnvelope(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, rec.Key, got.Key)

	got.State = keywrap.StateSuspended
	again, err := repo.GetEnvelope(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, keywrap.StateActive, again.State)

	rec2 := &keywrap.EnvelopeRecord{Key: rec.Key}
	require.NoError(t, repo.SaveEnvelope(ctx, rec2))
	assert.Equal(t, id, rec2.ID)

	none, err := repo.GetEnvelope(ctx, "/missing")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.ErrorIs(t, repo.SaveEnvelope(ctx, &keywrap.EnvelopeRecord{}), keywrap.ErrInvalidInput)
}

func TestMakeKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/ds/keywrap/eval/kid-1", keywrap.MakeKey("", "", keywrap.KindEval, "kid-1"))
	assert.Equal(t, "/acme/he/sec/k", keywrap.MakeKey("acme", "he", keywrap.KindSec, "k"))
}
