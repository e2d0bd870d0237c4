package keywrap_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

func TestCanonicalize_SortsKeysRecursively(t *testing.T) {
	t.Parallel()
	got, err := keywrap.Canonicalize([]byte(`{ "b": 1, "a": { "z": [ {"y":2,"x":1} ], "c": "<&>" } }`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":"<&>","z":[{"x":1,"y":2}]},"b":1}`, string(got))
}

func TestCanonicalize_KeyOrderInvariant(t *testing.T) {
	t.Parallel()
	a, err := keywrap.Canonicalize([]byte(`{"kid":"k","usage":"evaluation","format_version":1}`))
	require.NoError(t, err)
	b, err := keywrap.Canonicalize([]byte(`{"format_version":1,"usage":"evaluation","kid":"k"}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalize_FixedPoint(t *testing.T) {
	t.Parallel()
	once, err := keywrap.Canonicalize([]byte(`{"Q": 1152921504606830593, "s": 25.0, "n": null, "t": true}`))
	require.NoError(t, err)
	twice, err := keywrap.Canonicalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Contains(t, string(once), `"Q":1152921504606830593`)
}

func TestCanonicalize_RejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, in := range []string{``, `{`, `{"a":1} {"b":2}`, `{"a":1}}`, `{"a":1}]`, `[1]]`} {
		_, err := keywrap.Canonicalize([]byte(in))
		require.ErrorIs(t, err, keywrap.ErrInvalidInput, "input %q", in)
	}
}

func TestHashB64(t *testing.T) {
	t.Parallel()
	sum := sha256.Sum256([]byte("kid:sec:integrity"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), keywrap.HashB64([]byte("kid:sec:integrity")))
}
