// Package minify adapts the tdewolff minifiers to the pipeline's Minifier
// contract.
package minify

import (
	"fmt"
	"io"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/tool-recommender-bot/wuic/engine"
	"github.com/tool-recommender-bot/wuic/nut"
)

// TextMinifier minifies CSS, Javascript and HTML content by media type.
// Safe for concurrent use.
type TextMinifier struct {
	m *tdminify.M
}

// New builds a minifier covering every text type the minify stage handles.
func New() *TextMinifier {
	m := tdminify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("text/html", html.Minify)
	return &TextMinifier{m: m}
}

// Minify implements engine.Minifier.
func (t *TextMinifier) Minify(in io.Reader, out io.Writer, typ nut.Type) error {
	mt := typ.MimeType()
	if mt == "" {
		return fmt.Errorf("no media type for %s content", typ)
	}
	return t.m.Minify(mt, out, in)
}

// Verify interface compliance at compile time.
var _ engine.Minifier = (*TextMinifier)(nil)
