package engine

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/tool-recommender-bot/wuic/nut"
)

func TestCompress_GzipRoundTrip(t *testing.T) {
	n := nut.NewBytes("a.css", nut.TypeCSS, nut.ResolvedVersion(1), []byte("body{margin:0}"))

	req := NewRequest("wf", "/", []*nut.Nut{n})
	out, err := NewCompress(CodecGzip, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out[0].Compressed() {
		t.Fatal("expected the nut flagged compressed")
	}

	data, err := out[0].Content(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		t.Fatalf("expected gzip magic, got % x", data[:2])
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(plain) != "body{margin:0}" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestCompress_ZstdRoundTrip(t *testing.T) {
	n := nut.NewBytes("a.js", nut.TypeJavascript, nut.ResolvedVersion(1), []byte("var x=1;"))

	req := NewRequest("wf", "/", []*nut.Nut{n})
	out, err := NewCompress(CodecZstd, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := out[0].Content(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(plain) != "var x=1;" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestCompress_AlreadyCompressedLeftAlone(t *testing.T) {
	n := nut.NewBytes("a.css", nut.TypeCSS, nut.ResolvedVersion(1), []byte("raw"))
	n.SetCompressed(true)

	req := NewRequest("wf", "/", []*nut.Nut{n})
	out, err := NewCompress(CodecGzip, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := out[0].Content(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "raw" {
		t.Fatalf("expected untouched content, got %q", data)
	}
}

func TestCompress_BinaryImagePassesThrough(t *testing.T) {
	n := nut.NewBytes("logo.png", nut.TypePNG, nut.ResolvedVersion(1), []byte{0x89, 'P', 'N', 'G'})

	req := NewRequest("wf", "/", []*nut.Nut{n})
	out, err := NewCompress(CodecGzip, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Compressed() {
		t.Fatal("expected images left uncompressed")
	}
}

func TestCompress_DisabledPassesThrough(t *testing.T) {
	n := nut.NewBytes("a.css", nut.TypeCSS, nut.ResolvedVersion(1), []byte("x"))

	req := NewRequest("wf", "/", []*nut.Nut{n})
	out, err := NewCompress(CodecGzip, false).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Compressed() {
		t.Fatal("expected no compression when disabled")
	}
}

func TestParseCodec(t *testing.T) {
	if c, err := ParseCodec(""); err != nil || c != CodecGzip {
		t.Fatalf("expected gzip default, got %s, %v", c, err)
	}
	if c, err := ParseCodec("zstd"); err != nil || c != CodecZstd {
		t.Fatalf("expected zstd, got %s, %v", c, err)
	}
	if _, err := ParseCodec("brotli"); err == nil {
		t.Fatal("expected an error for an unknown codec")
	}
}
