package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/tool-recommender-bot/wuic/nut"
)

// Codec selects the algorithm applied by the compress stage.
type Codec string

const (
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
)

// ParseCodec maps a configuration label to its Codec.
func ParseCodec(s string) (Codec, error) {
	switch Codec(s) {
	case CodecGzip, CodecZstd:
		return Codec(s), nil
	case "":
		return CodecGzip, nil
	}
	return "", fmt.Errorf("unknown compression codec %q", s)
}

// CompressStage queues compression on every handled text nut's pipe and
// flags the nut compressed. Compression always runs last in a pipe, after
// rewrites and minification.
type CompressStage struct {
	enabled bool
	codec   Codec
}

// NewCompress creates the compression stage.
func NewCompress(codec Codec, enabled bool) *CompressStage {
	if codec == "" {
		codec = CodecGzip
	}
	return &CompressStage{enabled: enabled, codec: codec}
}

// Name implements Stage.
func (c *CompressStage) Name() string { return "compress" }

// Category implements Stage.
func (c *CompressStage) Category() Category { return CategoryCompress }

// Handles implements Stage. Binary image formats carry their own
// compression and are left alone.
func (c *CompressStage) Handles() []nut.Type {
	return []nut.Type{nut.TypeCSS, nut.TypeJavascript, nut.TypeHTML, nut.TypeSVG, nut.TypeSourceMap, nut.TypeAppCache}
}

// Transform implements Stage.
func (c *CompressStage) Transform(ctx context.Context, req *Request) ([]*nut.Nut, error) {
	nuts := req.Nuts()
	if !c.enabled {
		return nuts, nil
	}
	for _, n := range nuts {
		if !handles(c.Handles(), n.Type()) || n.Compressed() {
			continue
		}
		n.AddTransformer(&compressTransformer{order: int(CategoryCompress), codec: c.codec})
		n.SetCompressed(true)
	}
	return nuts, nil
}

// compressTransformer compresses a nut's materialized bytes.
type compressTransformer struct {
	order int
	codec Codec
}

func (t *compressTransformer) Transform(in io.Reader, out io.Writer, _ *nut.Nut) (bool, error) {
	switch t.codec {
	case CodecZstd:
		w, err := zstd.NewWriter(out)
		if err != nil {
			return false, err
		}
		if _, err := io.Copy(w, in); err != nil {
			w.Close()
			return false, err
		}
		return true, w.Close()
	default:
		w := gzip.NewWriter(out)
		if _, err := io.Copy(w, in); err != nil {
			w.Close()
			return false, err
		}
		return true, w.Close()
	}
}

func (t *compressTransformer) Order() int { return t.order }

// CanAggregate is false: compressed streams cannot be concatenated. The
// canonical chain compresses after aggregation anyway; the flag protects
// rebuilt chains that order differently.
func (t *compressTransformer) CanAggregate() bool { return false }

// Verify interface compliance at compile time.
var (
	_ Stage           = (*CompressStage)(nil)
	_ nut.Transformer = (*compressTransformer)(nil)
)
