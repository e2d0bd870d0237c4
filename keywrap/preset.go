package keywrap

import "fmt"

// Parameter is the numeric part of a homomorphic-encryption preset.
type Parameter struct {
	Q                uint64  `json:"Q"`
	P                uint64  `json:"P"`
	DBScaleFactor    float64 `json:"DB_SCALE_FACTOR"`
	QueryScaleFactor float64 `json:"QUERY_SCALE_FACTOR"`
}

// PresetRegistry resolves a preset name to its parameters.
type PresetRegistry interface {
	Lookup(name string) (Parameter, error)
}

// PresetMap is a PresetRegistry backed by a map.
type PresetMap map[string]Parameter

func (m PresetMap) Lookup(name string) (Parameter, error) {
	p, ok := m[name]
	if !ok {
		return Parameter{}, inputErr("preset", fmt.Sprintf("unknown preset %q", name))
	}
	return p, nil
}

// DefaultPresets holds the engine's built-in parameter sets.
var DefaultPresets = PresetMap{
	"IP0": {Q: 2251799813554177, P: 36028797014376449, DBScaleFactor: 24, QueryScaleFactor: 24},
	"IP1": {Q: 1152921504606830593, P: 1032193, DBScaleFactor: 34, QueryScaleFactor: 24},
	"QF0": {Q: 288230376135196673, P: 2251799810670593, DBScaleFactor: 25, QueryScaleFactor: 25},
	"QF1": {Q: 288230376135196673, P: 2251799810670593, DBScaleFactor: 25, QueryScaleFactor: 25},
}
