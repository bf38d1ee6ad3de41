package nut

import (
	"fmt"
	"path"
	"strings"
)

// Type identifies the kind of content a nut carries. Stages declare the
// types they handle and the delivery layer maps a type to its MIME type and
// preload hint metadata.
type Type int

const (
	TypeUnknown Type = iota
	TypeCSS
	TypeJavascript
	TypeSourceMap
	TypeHTML
	TypePNG
	TypeGIF
	TypeJPEG
	TypeSVG
	TypeICO
	TypeWOFF
	TypeAppCache
)

// typeInfo is the static metadata attached to one Type.
type typeInfo struct {
	label      string
	extensions []string
	mime       string
	text       bool
	hint       string
}

var typeInfos = map[Type]typeInfo{
	TypeCSS:        {"css", []string{".css"}, "text/css", true, "style"},
	TypeJavascript: {"javascript", []string{".js"}, "text/javascript", true, "script"},
	TypeSourceMap:  {"sourcemap", []string{".map"}, "application/json", true, ""},
	TypeHTML:       {"html", []string{".html", ".htm"}, "text/html", true, "document"},
	TypePNG:        {"png", []string{".png"}, "image/png", false, "image"},
	TypeGIF:        {"gif", []string{".gif"}, "image/gif", false, "image"},
	TypeJPEG:       {"jpeg", []string{".jpg", ".jpeg"}, "image/jpeg", false, "image"},
	TypeSVG:        {"svg", []string{".svg"}, "image/svg+xml", true, "image"},
	TypeICO:        {"ico", []string{".ico"}, "image/x-icon", false, "image"},
	TypeWOFF:       {"woff", []string{".woff", ".woff2"}, "font/woff", false, "font"},
	TypeAppCache:   {"appcache", []string{".appcache"}, "text/cache-manifest", true, ""},
}

// extIndex maps a lowercase file extension to its Type.
var extIndex = func() map[string]Type {
	idx := make(map[string]Type)
	for t, info := range typeInfos {
		for _, ext := range info.extensions {
			idx[ext] = t
		}
	}
	return idx
}()

// Types lists every registered type in declaration order.
func Types() []Type {
	out := make([]Type, 0, len(typeInfos))
	for t := TypeCSS; t <= TypeAppCache; t++ {
		out = append(out, t)
	}
	return out
}

// String returns the short label used in logs and configuration files.
func (t Type) String() string {
	if info, ok := typeInfos[t]; ok {
		return info.label
	}
	return "unknown"
}

// Extensions lists the file extensions mapped to the type, leading dot
// included. The first entry is the canonical one.
func (t Type) Extensions() []string {
	info, ok := typeInfos[t]
	if !ok {
		return nil
	}
	out := make([]string, len(info.extensions))
	copy(out, info.extensions)
	return out
}

// MimeType returns the MIME type served for the type.
func (t Type) MimeType() string {
	return typeInfos[t].mime
}

// IsText reports whether content of the type is processed as text rather
// than opaque bytes.
func (t Type) IsText() bool {
	return typeInfos[t].text
}

// HintKind returns the value of the "as" attribute carried by a preload
// hint for the type. An empty string means the hint carries no kind.
func (t Type) HintKind() string {
	return typeInfos[t].hint
}

// TypeOf resolves the type of a name from its extension.
func TypeOf(name string) (Type, error) {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := extIndex[ext]; ok {
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("no type registered for extension %q", ext)
}
