package fakes

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
)

// ArchiveEntry is one member of an evaluation-key archive. Dir entries carry
// no content.
type ArchiveEntry struct {
	Dir     bool
	Path    string
	Content []byte
}

// Archive encodes entries in the tagged archive layout: a type byte ('F' or
// 'D'), a u64 path length, the path and, for files, an i64 size followed by
// the content.
func Archive(entries ...ArchiveEntry) []byte {
	var out []byte
	for _, e := range entries {
		if e.Dir {
			out = append(out, 'D')
		} else {
			out = append(out, 'F')
		}
		out = binary.LittleEndian.AppendUint64(out, uint64(len(e.Path)))
		out = append(out, e.Path...)
		if e.Dir {
			continue
		}
		out = binary.LittleEndian.AppendUint64(out, uint64(len(e.Content)))
		out = append(out, e.Content...)
	}
	return out
}

// EvalArchive is an archive holding a metadata member for preset and mode,
// surrounded by a directory and an opaque key member.
func EvalArchive(preset, mode string) []byte {
	meta, _ := json.Marshal(map[string]string{"ParameterPreset": preset, "EvalMode": mode})
	return Archive(
		ArchiveEntry{Dir: true, Path: "keys/"},
		ArchiveEntry{Path: "keys/RelinKey.bin", Content: RandomBytes(48)},
		ArchiveEntry{Path: "keys/metadata-eval.json", Content: meta},
		ArchiveEntry{Path: "keys/ModPackKey.bin", Content: RandomBytes(32)},
	)
}

// TaggedKey is a key blob starting with tag (0x01 or 0x02) and a 4-byte
// null-padded preset name.
func TaggedKey(tag byte, preset string, body []byte) []byte {
	var name [4]byte
	copy(name[:], preset)
	out := append([]byte{tag}, name[:]...)
	return append(out, body...)
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// OpaqueKey is n random bytes whose first byte matches no known layout.
func OpaqueKey(n int) []byte {
	b := RandomBytes(n)
	if n > 0 {
		b[0] = 0x00
	}
	return b
}
