package keywrap

import (
	"encoding/json"
	"fmt"
)

type ProviderType string

const (
	ProviderLocal ProviderType = "LOCAL"
	// ProviderAWSSecretManager is reserved; no provider implements it yet.
	ProviderAWSSecretManager ProviderType = "AWS_SECRET_MANAGER"
)

// LocalProviderMeta describes the local provider. It never carries secrets.
type LocalProviderMeta struct {
	ProviderVersion string `json:"provider_version"`
	VersionID       string `json:"version_id"`
	WrapAlg         string `json:"wrap_alg"`
}

// ProviderMeta is discriminated by Type; only Local is populated today.
type ProviderMeta struct {
	Type  ProviderType
	Local *LocalProviderMeta
}

// NewLocalProviderMeta returns Local metadata with provider_version "1".
func NewLocalProviderMeta(versionID, wrapAlg string) ProviderMeta {
	return ProviderMeta{
		Type: ProviderLocal,
		Local: &LocalProviderMeta{
			ProviderVersion: "1",
			VersionID:       versionID,
			WrapAlg:         wrapAlg,
		},
	}
}

type localMetaJSON struct {
	Type ProviderType `json:"type"`
	LocalProviderMeta
}

func (m ProviderMeta) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case ProviderLocal:
		if m.Local == nil {
			return nil, inputErr("provider_meta", "local provider metadata is missing")
		}
		return json.Marshal(localMetaJSON{Type: m.Type, LocalProviderMeta: *m.Local})
	default:
		return nil, fmt.Errorf("%w: provider type %q", ErrUnsupported, m.Type)
	}
}

func (m *ProviderMeta) UnmarshalJSON(b []byte) error {
	var head struct {
		Type ProviderType `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return inputErrf("provider_meta", err, "not an object")
	}
	switch head.Type {
	case ProviderLocal:
		var lm localMetaJSON
		if err := json.Unmarshal(b, &lm); err != nil {
			return inputErrf("provider_meta", err, "malformed local metadata")
		}
		m.Type = ProviderLocal
		m.Local = &lm.LocalProviderMeta
		return nil
	default:
		return fmt.Errorf("%w: provider type %q", ErrUnsupported, head.Type)
	}
}
