package keywrap_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

func TestCache_TTL(t *testing.T) {
	t.Parallel()
	record := keywrap.EnvelopeRecord{
		KID: "test",
		Key: "/ds/keywrap/sec/test",
	}
	ttlCache := keywrap.NewTTLCache[*keywrap.EnvelopeRecord](1024, 50*time.Millisecond)
	ttlCache.Set(record.Key, &record)

	r, ok := ttlCache.Get(record.Key)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	assert.Equal(t, &record, r)

	time.Sleep(150 * time.Millisecond)
	got, ok := ttlCache.Get(record.Key)
	if ok {
		t.Fatalf("expected cache miss")
	}
	assert.Nil(t, got)
	assert.Zero(t, ttlCache.Len())
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	t.Parallel()
	c := keywrap.NewTTLCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.Len())

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_NonPositiveTTL(t *testing.T) {
	t.Parallel()
	c := keywrap.NewTTLCache[string](4, 0)
	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
}
