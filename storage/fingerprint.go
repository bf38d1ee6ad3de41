package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gowebpki/jcs"
	"github.com/zeebo/blake3"
)

// Fingerprint identifies one cached computation. Two fingerprints are equal
// exactly when the workflow, its configuration, and the name and version of
// every input nut are equal.
type Fingerprint [32]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("parse fingerprint: got %d bytes, want %d", len(b), len(f))
	}
	copy(f[:], b)
	return f, nil
}

// InputNut is the identity a nut contributes to a fingerprint.
type InputNut struct {
	Name    string
	Version int64
}

// NewFingerprint derives the key for a workflow run. The configuration is
// serialized to canonical JSON first so map ordering and whitespace cannot
// produce distinct keys for identical settings.
func NewFingerprint(workflowID string, config any, inputs []InputNut) (Fingerprint, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint config: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint config: %w", err)
	}

	h := blake3.New()
	h.WriteString(workflowID)
	h.Write([]byte{0})
	h.Write(canonical)
	h.Write([]byte{0})
	for _, in := range inputs {
		h.WriteString(in.Name)
		h.WriteString("@")
		h.WriteString(strconv.FormatInt(in.Version, 10))
		h.Write([]byte{0})
	}

	var f Fingerprint
	h.Sum(f[:0])
	return f, nil
}
