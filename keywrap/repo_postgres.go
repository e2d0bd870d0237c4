package keywrap

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultEnvelopeTable is the table AutoMigrate creates for EnvelopeRecord.
const DefaultEnvelopeTable = "envelope_records"

var validTable = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// EnvelopeRepository persists envelope records by composite key. GetEnvelope
// returns (nil, nil) when no record exists.
type EnvelopeRepository interface {
	SaveEnvelope(ctx context.Context, rec *EnvelopeRecord) error
	GetEnvelope(ctx context.Context, key string) (*EnvelopeRecord, error)
}

// GormEnvelopeRepository stores records in a SQL table and caches reads
// for a minute. Saves invalidate the cached entry.
type GormEnvelopeRepository struct {
	db    *gorm.DB
	table string
	cache *TTLCache[*EnvelopeRecord]
}

func (r *GormEnvelopeRepository) SetDB(db *gorm.DB) { r.db = db }

func NewPostgresEnvelopeRepository(dsn, table string) (*GormEnvelopeRepository, error) {
	return NewGormEnvelopeRepository(postgres.Open(dsn), table)
}

func NewGormEnvelopeRepository(dialector gorm.Dialector, table string) (*GormEnvelopeRepository, error) {
	if table == "" {
		table = DefaultEnvelopeTable
	}
	if !validTable.MatchString(table) {
		return nil, inputErr("table", "invalid table name: "+table)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return &GormEnvelopeRepository{
		db: db, table: table,
		cache: NewTTLCache[*EnvelopeRecord](4096, time.Minute),
	}, nil
}

// SaveEnvelope inserts rec or replaces the row with the same Key.
func (r *GormEnvelopeRepository) SaveEnvelope(ctx context.Context, rec *EnvelopeRecord) error {
	if rec == nil || rec.Key == "" {
		return inputErr("record", "key is required")
	}
	ensureRecordID(rec)
	err := r.db.WithContext(ctx).
		Table(r.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(rec).Error
	r.cache.Delete(rec.Key)
	if err != nil {
		return fmt.Errorf("save envelope %s: %w", rec.Key, err)
	}
	return nil
}

// upsertColumns are overwritten when a key is re-published. The row id and
// key stay fixed.
var upsertColumns = []string{
	"kid", "kind", "usage", "key_version", "store", "state",
	"envelope", "aad_hash", "integrity_hash", "entry_hash",
	"metadata", "tags", "created_at", "expires_at",
}

func (r *GormEnvelopeRepository) GetEnvelope(ctx context.Context, key string) (*EnvelopeRecord, error) {
	if rec, ok := r.cache.Get(key); ok && rec != nil {
		return rec, nil
	}
	var rec EnvelopeRecord
	tx := r.db.WithContext(ctx).
		Table(r.table).
		Where("key = ?", key)
	if err := tx.First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	r.cache.Set(key, &rec)
	return &rec, nil
}

func ensureRecordID(rec *EnvelopeRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
}

var _ EnvelopeRepository = (*GormEnvelopeRepository)(nil)
