package workflow

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"

	"github.com/tool-recommender-bot/wuic/heap"
	"github.com/tool-recommender-bot/wuic/source"
)

func newTestResolver(h *heap.Heap) (*heapResolver, *[]string) {
	var (
		mu    sync.Mutex
		fired []string
	)
	hr := &heapResolver{
		h: h,
		onChange: func(sourceID, name string) {
			mu.Lock()
			defer mu.Unlock()
			fired = append(fired, sourceID+"/"+name)
		},
		seen: make(map[string]struct{}),
	}
	return hr, &fired
}

func TestHeapResolver_FirstOriginWins(t *testing.T) {
	primary := source.NewMemory("primary")
	primary.Put("img/sprite.png", []byte{0x89, 'P'})
	secondary := source.NewMemory("secondary")
	secondary.Put("img/sprite.png", []byte{0x89, 'Q'})

	h := heap.New("site",
		heap.Entry{Source: primary, Pattern: "css/*.css"},
		heap.Entry{Source: secondary, Pattern: "css/*.css"},
	)
	hr, _ := newTestResolver(h)
	ctx := context.Background()

	ok, err := hr.Exists(ctx, "img/sprite.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the reference found")
	}

	n, err := hr.Resolve(ctx, "img/sprite.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Source() != "primary" {
		t.Fatalf("expected the first origin to win, got %q", n.Source())
	}
}

func TestHeapResolver_MissingNameWrapsErrNotExist(t *testing.T) {
	src := source.NewMemory("static")
	h := heap.New("site", heap.Entry{Source: src, Pattern: "*.css"})
	hr, _ := newTestResolver(h)
	ctx := context.Background()

	ok, err := hr.Exists(ctx, "absent.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected the reference absent")
	}
	if _, err := hr.Resolve(ctx, "absent.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestHeapResolver_ObservesResolvedReferences(t *testing.T) {
	src := source.NewMemory("static")
	src.Put("img/sprite.png", []byte{0x89})
	h := heap.New("site", heap.Entry{Source: src, Pattern: "css/*.css"})
	hr, fired := newTestResolver(h)
	ctx := context.Background()

	if _, err := hr.Resolve(ctx, "img/sprite.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := hr.Resolve(ctx, "img/sprite.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src.Put("img/sprite.png", []byte{0x89, 0x50})
	if len(*fired) != 1 || (*fired)[0] != "static/img/sprite.png" {
		t.Fatalf("expected one change notification, got %v", *fired)
	}
}
