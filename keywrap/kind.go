package keywrap

import "fmt"

// KeyKind selects which engine key a wrap or unwrap call handles.
type KeyKind string

const (
	KindSec  KeyKind = "sec"
	KindEnc  KeyKind = "enc"
	KindEval KeyKind = "eval"
)

// Kinds lists the kinds in bundle order.
var Kinds = []KeyKind{KindEnc, KindEval, KindSec}

const (
	UsageVectorSearch = "vector_search"
	UsageEvaluation   = "evaluation"
)

type kindInfo struct {
	entryName string
	role      string
	usage     string
	fileStem  string
}

var kindTable = map[KeyKind]kindInfo{
	KindSec:  {entryName: "seckey", role: "decryption key", usage: UsageVectorSearch, fileStem: "SecKey"},
	KindEnc:  {entryName: "enckey", role: "encryption key", usage: UsageVectorSearch, fileStem: "EncKey"},
	KindEval: {entryName: "evalkey", role: "evaluation key", usage: UsageEvaluation, fileStem: "EvalKey"},
}

// ParseKeyKind accepts "sec", "enc" or "eval".
func ParseKeyKind(s string) (KeyKind, error) {
	k := KeyKind(s)
	if _, ok := kindTable[k]; !ok {
		return "", inputErr("kind", fmt.Sprintf("unknown key kind %q", s))
	}
	return k, nil
}

func (k KeyKind) info() kindInfo { return kindTable[k] }

// Usage is the envelope usage string written for this kind.
func (k KeyKind) Usage() string { return k.info().usage }

// BinFile and JSONFile are the fixed bundle file names.
func (k KeyKind) BinFile() string  { return k.info().fileStem + ".bin" }
func (k KeyKind) JSONFile() string { return k.info().fileStem + ".json" }
