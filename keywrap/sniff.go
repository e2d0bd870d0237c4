package keywrap

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Shape is the payload layout recognised from the leading byte.
type Shape int

const (
	ShapeOpaque Shape = iota
	ShapeArchive
	ShapeSealed
	ShapeTagged
)

func (s Shape) String() string {
	switch s {
	case ShapeArchive:
		return "archive"
	case ShapeSealed:
		return "sealed"
	case ShapeTagged:
		return "tagged"
	default:
		return "opaque"
	}
}

// MetadataFileName is the archive member holding evaluation-key metadata.
// Any member whose path contains this name matches.
const MetadataFileName = "metadata-eval.json"

const (
	archiveFile = 'F'
	archiveDir  = 'D'

	sealedSeparatorSize = 4
	taggedPresetEnd     = 5
)

// Sniffed is the metadata inferred from a payload's byte layout.
type Sniffed struct {
	Shape    Shape
	Preset   string
	EvalMode string
	Alg      string
	IV       []byte
	Tag      []byte
}

// Sniff classifies payload by its first byte and extracts whatever metadata
// that layout carries. It never modifies payload. A buffer that starts like
// a known layout but is malformed or truncated is rejected with an
// *InputError; unknown layouts yield ShapeOpaque and no metadata.
func Sniff(payload []byte) (*Sniffed, error) {
	if len(payload) == 0 {
		return nil, inputErr("payload", "empty")
	}
	switch payload[0] {
	case archiveFile, archiveDir:
		doc, err := archiveMetadata(payload)
		if err != nil {
			return nil, err
		}
		return &Sniffed{Shape: ShapeArchive, Preset: doc.ParameterPreset, EvalMode: doc.EvalMode}, nil
	case '{':
		return sniffSealed(payload)
	case 0x01, 0x02:
		c := newCursor("payload", payload)
		if err := c.skip(1, "key tag"); err != nil {
			return nil, err
		}
		tag, err := c.next(taggedPresetEnd-1, "preset tag")
		if err != nil {
			return nil, err
		}
		return &Sniffed{Shape: ShapeTagged, Preset: string(bytes.ReplaceAll(tag, []byte{0}, nil))}, nil
	default:
		return &Sniffed{Shape: ShapeOpaque}, nil
	}
}

type evalMetadataDoc struct {
	ParameterPreset string `json:"ParameterPreset"`
	EvalMode        string `json:"EvalMode"`
}

// archiveMetadata walks a tagged entry stream until it finds the metadata
// member. Entries after the match are not inspected.
func archiveMetadata(payload []byte) (*evalMetadataDoc, error) {
	c := newCursor("archive", payload)
	for !c.done() {
		tag, err := c.u8("entry type")
		if err != nil {
			return nil, err
		}
		path, err := c.lenPrefixed("entry path")
		if err != nil {
			return nil, err
		}
		switch tag {
		case archiveDir:
			continue
		case archiveFile:
		default:
			return nil, inputErr("archive", "unknown entry type "+string(rune(tag)))
		}
		size, err := c.i64("file size")
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, inputErr("archive", "negative file size for "+string(path))
		}
		content, err := c.next(uint64(size), "file content")
		if err != nil {
			return nil, err
		}
		if strings.Contains(string(path), MetadataFileName) {
			var doc evalMetadataDoc
			if err := json.Unmarshal(content, &doc); err != nil {
				return nil, inputErrf("archive", err, "malformed %s", MetadataFileName)
			}
			return &doc, nil
		}
	}
	return nil, inputErr("archive", MetadataFileName+" not found")
}

type sealedHeader struct {
	ParameterPreset string `json:"ParameterPreset"`
	SealType        string `json:"SealType"`
}

// sniffSealed reads the JSON header of a sealed key, then the separator,
// IV and tag that follow it.
func sniffSealed(payload []byte) (*Sniffed, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	var hdr sealedHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, inputErrf("sealed key", err, "cannot parse header")
	}
	c := newCursor("sealed key", payload)
	if err := c.skip(uint64(dec.InputOffset()), "header"); err != nil {
		return nil, err
	}
	if err := c.skip(sealedSeparatorSize, "separator"); err != nil {
		return nil, err
	}
	iv, err := c.next(IVSize, "iv")
	if err != nil {
		return nil, err
	}
	tag, err := c.next(TagSize, "tag")
	if err != nil {
		return nil, err
	}
	alg := hdr.SealType
	if alg == "" {
		alg = AlgAES256GCM
	}
	return &Sniffed{
		Shape:  ShapeSealed,
		Preset: hdr.ParameterPreset,
		Alg:    alg,
		IV:     bytes.Clone(iv),
		Tag:    bytes.Clone(tag),
	}, nil
}
