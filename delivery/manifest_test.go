package delivery

import (
	"context"
	"testing"

	"github.com/tool-recommender-bot/wuic/nut"
)

func TestManifest_Layout(t *testing.T) {
	root := nut.NewBytes("app.css", nut.TypeCSS, nut.ResolvedVersion(10), []byte("a{}"))
	sprite := nut.NewBytes("sprite.png", nut.TypePNG, nut.ResolvedVersion(7), nil)
	root.AddReferenced(sprite)
	ctx := context.Background()

	m, err := Manifest(ctx, NewProvider("/", "site"), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Name() != "app.css.appcache" {
		t.Fatalf("unexpected name: %q", m.Name())
	}
	if m.Type() != nut.TypeAppCache {
		t.Fatalf("unexpected type: %v", m.Type())
	}
	if m.Aggregatable() {
		t.Fatal("expected the manifest excluded from aggregation")
	}
	v, err := m.VersionNumber(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 17 {
		t.Fatalf("expected the version sum 17, got %d", v)
	}

	content, err := m.Content(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "CACHE MANIFEST\n" +
		"# Version number: 17\n" +
		"/site/10/app.css\n" +
		"/site/7/sprite.png\n" +
		"NETWORK:\n" +
		"*"
	if string(content) != want {
		t.Fatalf("unexpected manifest:\n%s", content)
	}
}

func TestManifest_RootOnly(t *testing.T) {
	root := nut.NewBytes("app.css", nut.TypeCSS, nut.ResolvedVersion(3), []byte("a{}"))
	ctx := context.Background()

	m, err := Manifest(ctx, NewProvider("/assets", "site"), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err := m.Content(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "CACHE MANIFEST\n" +
		"# Version number: 3\n" +
		"/assets/site/3/app.css\n" +
		"NETWORK:\n" +
		"*"
	if string(content) != want {
		t.Fatalf("unexpected manifest:\n%s", content)
	}
}
