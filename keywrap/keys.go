package keywrap

import "fmt"

const (
	DefaultDomain  = "ds"
	DefaultService = "keywrap"
)

// MakeKey builds the composite lookup key /<domain>/<service>/<kind>/<kid>.
// Empty domain and service fall back to "ds" and "keywrap".
func MakeKey(domain, service string, kind KeyKind, kid string) string {
	if domain == "" {
		domain = DefaultDomain
	}
	if service == "" {
		service = DefaultService
	}
	return fmt.Sprintf("/%s/%s/%s/%s", domain, service, kind, kid)
}
