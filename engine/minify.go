package engine

import (
	"context"
	"io"

	"github.com/tool-recommender-bot/wuic/nut"
)

// Minifier strips redundant bytes from one content representation. The
// concrete algorithm is supplied by the host; the stage only adapts it into
// the chain.
type Minifier interface {
	Minify(in io.Reader, out io.Writer, t nut.Type) error
}

// MinifyStage queues the host minifier on every handled nut's pipe. The
// stage never touches bytes itself; minification happens at
// materialization, after any inspection rewrites.
type MinifyStage struct {
	enabled  bool
	minifier Minifier
}

// NewMinify creates the minification stage. With a nil minifier the stage
// passes everything through.
func NewMinify(m Minifier, enabled bool) *MinifyStage {
	return &MinifyStage{enabled: enabled, minifier: m}
}

// Name implements Stage.
func (m *MinifyStage) Name() string { return "minify" }

// Category implements Stage.
func (m *MinifyStage) Category() Category { return CategoryMinify }

// Handles implements Stage.
func (m *MinifyStage) Handles() []nut.Type {
	return []nut.Type{nut.TypeCSS, nut.TypeJavascript, nut.TypeHTML}
}

// Transform implements Stage.
func (m *MinifyStage) Transform(ctx context.Context, req *Request) ([]*nut.Nut, error) {
	nuts := req.Nuts()
	if !m.enabled || m.minifier == nil {
		return nuts, nil
	}
	for _, n := range nuts {
		if !handles(m.Handles(), n.Type()) {
			continue
		}
		n.AddTransformer(&minifyTransformer{order: int(CategoryMinify), minifier: m.minifier})
	}
	return nuts, nil
}

// minifyTransformer runs the host minifier inside a nut's pipe.
type minifyTransformer struct {
	order    int
	minifier Minifier
}

func (t *minifyTransformer) Transform(in io.Reader, out io.Writer, n *nut.Nut) (bool, error) {
	if err := t.minifier.Minify(in, out, n.Type()); err != nil {
		return false, err
	}
	return true, nil
}

func (t *minifyTransformer) Order() int { return t.order }

func (t *minifyTransformer) CanAggregate() bool { return true }

// Verify interface compliance at compile time.
var (
	_ Stage           = (*MinifyStage)(nil)
	_ nut.Transformer = (*minifyTransformer)(nil)
)
