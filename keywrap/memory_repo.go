package keywrap

import (
	"context"
	"sync"
)

// InMemoryRepo is an EnvelopeRepository backed by a map. Records are copied
// on the way in and out.
type InMemoryRepo struct {
	mu   sync.RWMutex
	data map[string]EnvelopeRecord
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{data: make(map[string]EnvelopeRecord)}
}

func (r *InMemoryRepo) SaveEnvelope(_ context.Context, rec *EnvelopeRecord) error {
	if rec == nil || rec.Key == "" {
		return inputErr("record", "key is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.data[rec.Key]; ok {
		rec.ID = prev.ID
	}
	ensureRecordID(rec)
	r.data[rec.Key] = *rec
	return nil
}

func (r *InMemoryRepo) GetEnvelope(_ context.Context, key string) (*EnvelopeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

var _ EnvelopeRepository = (*InMemoryRepo)(nil)
