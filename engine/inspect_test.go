package engine

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/tool-recommender-bot/wuic/nut"
)

// stubResolver serves references from a fixed name table.
type stubResolver struct {
	nuts map[string]*nut.Nut
	err  error
}

func (r *stubResolver) Resolve(_ context.Context, name string) (*nut.Nut, error) {
	if r.err != nil {
		return nil, r.err
	}
	n, ok := r.nuts[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return n, nil
}

func (r *stubResolver) Exists(_ context.Context, name string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.nuts[name]
	return ok, nil
}

func TestInspector_RewritesCSSURLReference(t *testing.T) {
	sprite := nut.NewBytes("css/img/sprite.png", nut.TypePNG, nut.ResolvedVersion(7), nil)
	owner := nut.NewBytes("css/site.css", nut.TypeCSS, nut.ResolvedVersion(1),
		[]byte("div{background:url(img/sprite.png)}"))

	resolver := &stubResolver{nuts: map[string]*nut.Nut{"css/img/sprite.png": sprite}}
	req := NewRequest("site", "/assets", []*nut.Nut{owner})

	out, err := NewInspector(resolver, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refs := out[0].Referenced()
	if len(refs) != 1 || refs[0] != sprite {
		t.Fatalf("expected the sprite attached, got %v", refs)
	}
	if !sprite.SubResource() {
		t.Fatal("expected the sprite flagged as a sub-resource")
	}

	content, err := out[0].Content(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "url(/assets/site/7/css/img/sprite.png)"
	if !strings.Contains(string(content), want) {
		t.Fatalf("expected %q in %q", want, content)
	}
}

func TestInspector_RewritesCSSImport(t *testing.T) {
	reset := nut.NewBytes("reset.css", nut.TypeCSS, nut.ResolvedVersion(3), []byte("*{margin:0}"))
	owner := nut.NewBytes("site.css", nut.TypeCSS, nut.ResolvedVersion(1),
		[]byte("@import \"reset.css\";\nbody{}"))

	resolver := &stubResolver{nuts: map[string]*nut.Nut{"reset.css": reset}}
	req := NewRequest("site", "/", []*nut.Nut{owner})

	out, err := NewInspector(resolver, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := out[0].Content(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(content), "@import \"/site/3/reset.css\"") {
		t.Fatalf("expected the import rewritten, got %q", content)
	}
}

func TestInspector_ResolvesSourceMapReference(t *testing.T) {
	srcmap := nut.NewBytes("app.js.map", nut.TypeSourceMap, nut.ResolvedVersion(2), []byte("{}"))
	owner := nut.NewBytes("app.js", nut.TypeJavascript, nut.ResolvedVersion(1),
		[]byte("var x=1;\n//# sourceMappingURL=app.js.map"))

	resolver := &stubResolver{nuts: map[string]*nut.Nut{"app.js.map": srcmap}}
	req := NewRequest("site", "/", []*nut.Nut{owner})

	out, err := NewInspector(resolver, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refs := out[0].Referenced()
	if len(refs) != 1 || refs[0] != srcmap {
		t.Fatalf("expected the source map attached, got %v", refs)
	}
	content, err := out[0].Content(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(content), "sourceMappingURL=/site/2/app.js.map") {
		t.Fatalf("expected the map reference rewritten, got %q", content)
	}
}

func TestInspector_UnresolvableReferenceLeftUntouched(t *testing.T) {
	owner := nut.NewBytes("site.css", nut.TypeCSS, nut.ResolvedVersion(1),
		[]byte("div{background:url(missing.png)}"))

	resolver := &stubResolver{nuts: map[string]*nut.Nut{}}
	req := NewRequest("site", "/", []*nut.Nut{owner})

	out, err := NewInspector(resolver, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out[0].Referenced()) != 0 {
		t.Fatal("expected no references attached")
	}

	content, err := out[0].Content(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "div{background:url(missing.png)}" {
		t.Fatalf("expected untouched content, got %q", content)
	}
}

func TestInspector_ExternalReferenceIgnored(t *testing.T) {
	owner := nut.NewBytes("site.css", nut.TypeCSS, nut.ResolvedVersion(1),
		[]byte("div{background:url(https://cdn.example.com/a.png)}"))

	resolver := &stubResolver{nuts: map[string]*nut.Nut{}}
	req := NewRequest("site", "/", []*nut.Nut{owner})

	out, err := NewInspector(resolver, true).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out[0].Referenced()) != 0 {
		t.Fatal("expected external references ignored")
	}
}

func TestInspector_OriginFailureAborts(t *testing.T) {
	owner := nut.NewBytes("site.css", nut.TypeCSS, nut.ResolvedVersion(1),
		[]byte("div{background:url(sprite.png)}"))

	resolver := &stubResolver{err: fs.ErrPermission}
	req := NewRequest("site", "/", []*nut.Nut{owner})

	_, err := NewInspector(resolver, true).Transform(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error")
	}
	if Classify(err) != CodeSourceAccess {
		t.Fatalf("expected source access code, got %s", Classify(err))
	}
}

func TestInspector_ObservedVersionTracksReferences(t *testing.T) {
	sprite := nut.NewBytes("sprite.png", nut.TypePNG, nut.ResolvedVersion(7), nil)
	owner := nut.NewBytes("site.css", nut.TypeCSS, nut.ResolvedVersion(10),
		[]byte("div{background:url(sprite.png)}"))

	resolver := &stubResolver{nuts: map[string]*nut.Nut{"sprite.png": sprite}}
	chain, err := NewChainBuilder().Append(NewInspector(resolver, true)).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	out, err := chain.Run(ctx, NewRequest("site", "/", []*nut.Nut{owner}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, err := out[0].VersionNumber(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 13 { // 10 xor 7
		t.Fatalf("expected the reference version folded in, got %d", v)
	}
}
