package keywrap_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-keywrap-go-sdk/internal/fakes"
	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

func TestSniff_ArchiveMetadata(t *testing.T) {
	t.Parallel()
	s, err := keywrap.Sniff(fakes.EvalArchive("IP0", "RMP"))
	require.NoError(t, err)
	assert.Equal(t, keywrap.ShapeArchive, s.Shape)
	assert.Equal(t, "IP0", s.Preset)
	assert.Equal(t, "RMP", s.EvalMode)
	assert.Empty(t, s.IV)
	assert.Empty(t, s.Tag)
}

func TestSniff_ArchiveWithoutMetadata(t *testing.T) {
	t.Parallel()
	payload := fakes.Archive(
		fakes.ArchiveEntry{Dir: true, Path: "keys/"},
		fakes.ArchiveEntry{Path: "keys/RelinKey.bin", Content: []byte{1, 2, 3}},
	)
	_, err := keywrap.Sniff(payload)
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)
}

func TestSniff_ArchiveTruncated(t *testing.T) {
	t.Parallel()
	payload := fakes.Archive(fakes.ArchiveEntry{Path: keywrap.MetadataFileName, Content: []byte(`{"ParameterPreset":"IP0"}`)})
	for _, cut := range []int{1, 5, 9, 9 + len(keywrap.MetadataFileName) + 3, len(payload) - 1} {
		_, err := keywrap.Sniff(payload[:cut])
		require.ErrorIs(t, err, keywrap.ErrInvalidInput, "cut at %d", cut)
	}
}

func TestSniff_ArchiveNegativeSize(t *testing.T) {
	t.Parallel()
	payload := []byte{'F'}
	payload = binary.LittleEndian.AppendUint64(payload, 4)
	payload = append(payload, "a.js"...)
	payload = binary.LittleEndian.AppendUint64(payload, ^uint64(0))
	_, err := keywrap.Sniff(payload)
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)
}

func TestSniff_ArchiveHugeLength(t *testing.T) {
	t.Parallel()
	payload := []byte{'D'}
	payload = binary.LittleEndian.AppendUint64(payload, 1<<62)
	_, err := keywrap.Sniff(payload)
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)
}

func TestSniff_Tagged(t *testing.T) {
	t.Parallel()
	s, err := keywrap.Sniff(fakes.TaggedKey(0x01, "IP1", []byte{9, 9, 9}))
	require.NoError(t, err)
	assert.Equal(t, keywrap.ShapeTagged, s.Shape)
	assert.Equal(t, "IP1", s.Preset)

	s, err = keywrap.Sniff(fakes.TaggedKey(0x02, "QF0", nil))
	require.NoError(t, err)
	assert.Equal(t, "QF0", s.Preset)

	_, err = keywrap.Sniff([]byte{0x01, 'I', 'P'})
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)
}

func TestSniff_Sealed(t *testing.T) {
	t.Parallel()
	var blob bytes.Buffer
	require.NoError(t, keywrap.SealSecKey(context.Background(), keywrap.StaticKEK(fakes.RandomBytes(32)), "QF1", []byte("secret"), &blob))

	s, err := keywrap.Sniff(blob.Bytes())
	require.NoError(t, err)
	assert.Equal(t, keywrap.ShapeSealed, s.Shape)
	assert.Equal(t, "QF1", s.Preset)
	assert.Equal(t, string(keywrap.SealAESKEK), s.Alg)

	hdrEnd := bytes.IndexByte(blob.Bytes(), '}') + 1
	assert.Equal(t, blob.Bytes()[hdrEnd+4:hdrEnd+4+keywrap.IVSize], s.IV)
	assert.Equal(t, blob.Bytes()[hdrEnd+4+keywrap.IVSize:hdrEnd+4+keywrap.IVSize+keywrap.TagSize], s.Tag)
}

func TestSniff_SealedDefaultsAlg(t *testing.T) {
	t.Parallel()
	payload := append([]byte(`{"ParameterPreset":"IP0"}`), make([]byte, 4+keywrap.IVSize+keywrap.TagSize)...)
	s, err := keywrap.Sniff(payload)
	require.NoError(t, err)
	assert.Equal(t, keywrap.AlgAES256GCM, s.Alg)
}

func TestSniff_SealedTruncated(t *testing.T) {
	t.Parallel()
	payload := append([]byte(`{"ParameterPreset":"IP0","SealType":"AES-KEK"}`), make([]byte, 4+keywrap.IVSize+3)...)
	_, err := keywrap.Sniff(payload)
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)

	_, err = keywrap.Sniff([]byte(`{"ParameterPreset":`))
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)
}

func TestSniff_Opaque(t *testing.T) {
	t.Parallel()
	s, err := keywrap.Sniff(fakes.OpaqueKey(64))
	require.NoError(t, err)
	assert.Equal(t, keywrap.ShapeOpaque, s.Shape)
	assert.Empty(t, s.Preset)

	_, err = keywrap.Sniff(nil)
	require.ErrorIs(t, err, keywrap.ErrInvalidInput)
}
