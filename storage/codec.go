package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/tool-recommender-bot/wuic/nut"
)

// encMode is the CBOR encoder configured with Core Deterministic Encoding
// (RFC 8949 §4.2) so the same entry always produces identical bytes.
var encMode cbor.EncMode

// decMode accepts standard CBOR; unknown fields are ignored so older
// payloads survive schema additions.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}
}

// nutRecord is the flat serialized form of one nut. References point into
// the entry's nut table by index so shared nodes encode once and decode back
// into a shared node, preserving the DAG shape.
type nutRecord struct {
	Name        string `cbor:"name"`
	Type        int    `cbor:"type"`
	Version     int64  `cbor:"version"`
	Content     []byte `cbor:"content"`
	Source      string `cbor:"source,omitempty"`
	ProxyURI    string `cbor:"proxy_uri,omitempty"`
	Referenced  []int  `cbor:"referenced,omitempty"`
	SubResource bool   `cbor:"sub_resource,omitempty"`
	Compressed  bool   `cbor:"compressed,omitempty"`
}

type entryRecord struct {
	Workflow  string      `cbor:"workflow"`
	Sources   []string    `cbor:"sources,omitempty"`
	CreatedAt int64       `cbor:"created_at"`
	Nuts      []nutRecord `cbor:"nuts"`
	Roots     []int       `cbor:"roots"`
}

// EncodeEntry serializes an entry for a byte-oriented backend. Content is
// materialized through each nut's pipe and versions are resolved, so decoding
// yields finished nuts that need no further transformation.
func EncodeEntry(ctx context.Context, e *Entry) ([]byte, error) {
	all := nut.Flatten(e.Nuts)
	index := make(map[*nut.Nut]int, len(all))
	for i, n := range all {
		index[n] = i
	}

	rec := entryRecord{
		Workflow:  e.WorkflowID,
		Sources:   e.Sources,
		CreatedAt: e.CreatedAt.UnixMilli(),
		Nuts:      make([]nutRecord, 0, len(all)),
		Roots:     make([]int, 0, len(e.Nuts)),
	}
	for _, n := range all {
		content, err := n.Content(ctx)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", n.Name(), err)
		}
		version, err := n.VersionNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", n.Name(), err)
		}
		nr := nutRecord{
			Name:        n.Name(),
			Type:        int(n.Type()),
			Version:     version,
			Content:     content,
			Source:      n.Source(),
			ProxyURI:    n.ProxyURI(),
			SubResource: n.SubResource(),
			Compressed:  n.Compressed(),
		}
		for _, ref := range n.Referenced() {
			nr.Referenced = append(nr.Referenced, index[ref])
		}
		rec.Nuts = append(rec.Nuts, nr)
	}
	for _, root := range e.Nuts {
		rec.Roots = append(rec.Roots, index[root])
	}

	data, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return data, nil
}

// DecodeEntry rebuilds an entry from EncodeEntry output. The returned nuts
// hold materialized content and resolved versions; the version a nut carried
// at encode time, callbacks included, becomes its plain resolved version.
func DecodeEntry(key Fingerprint, data []byte) (*Entry, error) {
	var rec entryRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}

	nuts := make([]*nut.Nut, len(rec.Nuts))
	for i, nr := range rec.Nuts {
		n := nut.NewBytes(nr.Name, nut.Type(nr.Type), nut.ResolvedVersion(nr.Version), nr.Content)
		if nr.Source != "" {
			n.SetSource(nr.Source)
		}
		if nr.ProxyURI != "" {
			n.SetProxyURI(nr.ProxyURI)
		}
		n.SetSubResource(nr.SubResource)
		n.SetCompressed(nr.Compressed)
		nuts[i] = n
	}
	for i, nr := range rec.Nuts {
		for _, ref := range nr.Referenced {
			if ref < 0 || ref >= len(nuts) {
				return nil, fmt.Errorf("decode entry: nut %d references out-of-range index %d", i, ref)
			}
			nuts[i].AddReferenced(nuts[ref])
		}
	}

	roots := make([]*nut.Nut, 0, len(rec.Roots))
	for _, idx := range rec.Roots {
		if idx < 0 || idx >= len(nuts) {
			return nil, fmt.Errorf("decode entry: root index %d out of range", idx)
		}
		roots = append(roots, nuts[idx])
	}

	return &Entry{
		Key:        key,
		WorkflowID: rec.Workflow,
		Sources:    rec.Sources,
		Nuts:       roots,
		CreatedAt:  time.UnixMilli(rec.CreatedAt),
	}, nil
}
