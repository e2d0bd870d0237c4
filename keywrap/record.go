package keywrap

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grasp-labs/ds-go-commonmodels/v2/commonmodels/types"
)

// Store says where an envelope body lives.
type Store string

const (
	// StoreDB keeps the envelope JSON in the record itself.
	StoreDB Store = "db"
	// StoreAWSSSM keeps it in an SSM SecureString named by Key.
	StoreAWSSSM Store = "aws_ssm"
)

func ParseStore(s string) (Store, error) {
	switch st := Store(s); st {
	case StoreDB, StoreAWSSSM:
		return st, nil
	}
	return "", inputErr("store", "unknown store "+s)
}

// EnvelopeRecord is the persisted index entry for one wrapped key.
type EnvelopeRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key        string    `gorm:"uniqueIndex"` // also the SSM parameter name for aws_ssm
	KID        string    `gorm:"index;column:kid"`
	Kind       KeyKind
	Usage      string
	KeyVersion string
	Store      Store
	State      string

	Envelope      string // canonical JSON; empty for aws_ssm
	AADHash       string `gorm:"column:aad_hash"`
	IntegrityHash string
	EntryHash     string

	Metadata types.JSONB[map[string]string]
	Tags     types.JSONB[map[string]string]

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the record may be unwrapped at t.
func (r *EnvelopeRecord) Active(t time.Time) bool {
	return r.State == StateActive && t.Before(r.ExpiresAt)
}

// MetadataMap decodes the Metadata column.
func (r *EnvelopeRecord) MetadataMap() (map[string]string, error) {
	return jsonbMap(r.Metadata)
}

// TagMap decodes the Tags column.
func (r *EnvelopeRecord) TagMap() (map[string]string, error) {
	return jsonbMap(r.Tags)
}

// newJSONB goes through the column's Scan so it is built exactly as a
// database read would build it.
func newJSONB(m map[string]string) (types.JSONB[map[string]string], error) {
	var j types.JSONB[map[string]string]
	b, err := json.Marshal(m)
	if err != nil {
		return j, err
	}
	if err := j.Scan(b); err != nil {
		return j, fmt.Errorf("jsonb scan: %w", err)
	}
	return j, nil
}

func jsonbMap(j types.JSONB[map[string]string]) (map[string]string, error) {
	v, err := j.Value()
	if err != nil {
		return nil, err
	}
	var raw []byte
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return nil, fmt.Errorf("jsonb value of type %T", v)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
