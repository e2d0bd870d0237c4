package keywrap

// aadPayload is the set of non-secret envelope fields bound by the AAD hash.
// The canonical encoding sorts keys, so field order here does not matter.
type aadPayload struct {
	FormatVersion int          `json:"format_version"`
	KID           string       `json:"kid"`
	Usage         string       `json:"usage"`
	Requester     Requester    `json:"requester"`
	CreatedAt     string       `json:"created_at"`
	ExpiresAt     string       `json:"expires_at"`
	ProviderMeta  ProviderMeta `json:"provider_meta"`
}

func aadPayloadFor(formatVersion int, kid, usage string, req Requester, createdAt, expiresAt string, meta ProviderMeta) ([]byte, error) {
	return CanonicalJSON(aadPayload{
		FormatVersion: formatVersion,
		KID:           kid,
		Usage:         usage,
		Requester:     req,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		ProviderMeta:  meta,
	})
}

// integrityContext is the label hashed into the integrity digest:
// "<kid>:<sec|enc|eval>:integrity".
func integrityContext(kid string, kind KeyKind) string {
	return kid + ":" + string(kind) + ":integrity"
}
