package keywrap

import "os"

// Environment variables consulted by RequesterFromEnv.
const (
	EnvRequesterEntity = "EVI_REQUESTER_ENTITY"
	EnvRequesterType   = "EVI_REQUESTER_TYPE"
	EnvRequesterMethod = "EVI_REQUESTER_METHOD"
)

const (
	DefaultRequesterEntity = "user@tenantA"
	DefaultRequesterType   = "service/automated"
	DefaultRequesterMethod = "api/system/cli"
)

// Requester identifies who asked for a wrap. It is recorded in the envelope
// and covered by the AAD hash; it is not an authorization decision.
type Requester struct {
	Entity string `json:"entity"`
	Type   string `json:"type"`
	Method string `json:"method"`
}

// WithDefaults fills empty fields with the documented defaults.
func (r Requester) WithDefaults() Requester {
	if r.Entity == "" {
		r.Entity = DefaultRequesterEntity
	}
	if r.Type == "" {
		r.Type = DefaultRequesterType
	}
	if r.Method == "" {
		r.Method = DefaultRequesterMethod
	}
	return r
}

// RequesterFromEnv reads the EVI_REQUESTER_* variables once. Unset or empty
// variables fall back to the defaults.
func RequesterFromEnv() Requester {
	return Requester{
		Entity: os.Getenv(EnvRequesterEntity),
		Type:   os.Getenv(EnvRequesterType),
		Method: os.Getenv(EnvRequesterMethod),
	}.WithDefaults()
}
