package engine

import (
	"context"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/tool-recommender-bot/wuic/delivery"
	"github.com/tool-recommender-bot/wuic/logger"
	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/pathutil"
)

// ReferenceResolver resolves a name discovered inside content into a nut.
// The origin access layer satisfies it.
type ReferenceResolver interface {
	Resolve(ctx context.Context, name string) (*nut.Nut, error)
	Exists(ctx context.Context, name string) (bool, error)
}

var (
	sourceMapPattern = regexp.MustCompile(`(?m)//#\s*sourceMappingURL=(\S+)`)
	cssURLPattern    = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
	cssImportPattern = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)
)

// Inspector scans text nuts for references to other assets (source maps,
// sprites, imports), attaches the resolved nuts to the referenced graph as
// sub-resources, and queues a rewrite of every occurrence to its versioned
// URL. References it cannot resolve are left untouched.
type Inspector struct {
	enabled  bool
	resolver ReferenceResolver
}

// NewInspector creates the inspection stage backed by the given resolver.
func NewInspector(resolver ReferenceResolver, enabled bool) *Inspector {
	return &Inspector{enabled: enabled, resolver: resolver}
}

// Name implements Stage.
func (i *Inspector) Name() string { return "inspect" }

// Category implements Stage.
func (i *Inspector) Category() Category { return CategoryInspect }

// Handles implements Stage.
func (i *Inspector) Handles() []nut.Type {
	return []nut.Type{nut.TypeCSS, nut.TypeJavascript, nut.TypeHTML}
}

// Transform implements Stage.
func (i *Inspector) Transform(ctx context.Context, req *Request) ([]*nut.Nut, error) {
	if !i.enabled || i.resolver == nil {
		return req.Nuts(), nil
	}

	nuts := req.Nuts()
	for _, n := range nuts {
		if !handles(i.Handles(), n.Type()) || !n.Type().IsText() {
			continue
		}
		if err := i.inspect(ctx, req, n); err != nil {
			return nil, err
		}
	}
	return nuts, nil
}

// inspect reads the raw content of n, resolves every referenced name and
// installs the URL rewrite transformer. The raw stream is used on purpose:
// materializing through Content here would freeze the pipe before later
// stages contribute their transformers.
func (i *Inspector) inspect(ctx context.Context, req *Request, n *nut.Nut) error {
	rc, err := n.Open(ctx)
	if err != nil {
		return NewSourceAccessError(err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return NewSourceAccessError(err)
	}

	urls := make(map[string]string)
	for _, name := range referencedNames(n.Type(), string(data)) {
		resolved := pathutil.Relative(n.Name(), name)
		ok, err := i.resolver.Exists(ctx, resolved)
		if err != nil {
			return NewSourceAccessError(err)
		}
		if !ok {
			logger.Named("inspect").Debug("reference not resolvable", "nut", n.Name(), "ref", name)
			continue
		}
		ref, err := i.resolver.Resolve(ctx, resolved)
		if err != nil {
			return NewSourceAccessError(err)
		}
		ref.SetSubResource(true)
		n.AddReferenced(ref)

		url, err := delivery.URL(ctx, req.ContextPath(), req.WorkflowID(), ref)
		if err != nil {
			return err
		}
		urls[name] = url
	}

	if len(urls) > 0 {
		n.AddTransformer(&rewriteTransformer{order: int(CategoryInspect), urls: urls})
	}
	return nil
}

// VersionCallback implements VersionTransformer: a rewritten nut embeds the
// URLs of its references, so its observed version must change whenever a
// referenced version does.
func (i *Inspector) VersionCallback() nut.VersionCallback {
	return func(n *nut.Nut, v int64) int64 {
		for _, ref := range n.Referenced() {
			if ver := ref.Version(); ver != nil && ver.Resolved() {
				if rv, err := ver.Get(context.Background()); err == nil {
					v ^= rv
				}
			}
		}
		return v
	}
}

// referencedNames extracts the referenced asset names for the given type,
// deduplicated in first-seen order. External and inline references are not
// extracted.
func referencedNames(typ nut.Type, content string) []string {
	var matches [][]string
	switch typ {
	case nut.TypeJavascript:
		matches = sourceMapPattern.FindAllStringSubmatch(content, -1)
	case nut.TypeCSS:
		matches = append(cssURLPattern.FindAllStringSubmatch(content, -1),
			cssImportPattern.FindAllStringSubmatch(content, -1)...)
	case nut.TypeHTML:
		matches = append(cssURLPattern.FindAllStringSubmatch(content, -1),
			sourceMapPattern.FindAllStringSubmatch(content, -1)...)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" || external(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// external reports whether a reference points outside the workflow.
func external(name string) bool {
	return strings.HasPrefix(name, "http://") ||
		strings.HasPrefix(name, "https://") ||
		strings.HasPrefix(name, "//") ||
		strings.HasPrefix(name, "data:") ||
		strings.HasPrefix(name, "#")
}

// rewriteTransformer replaces referenced names with their versioned URLs at
// materialization time. Longer names are replaced first so one name being a
// suffix of another cannot corrupt the output.
type rewriteTransformer struct {
	order int
	urls  map[string]string
}

func (t *rewriteTransformer) Transform(in io.Reader, out io.Writer, _ *nut.Nut) (bool, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return false, err
	}

	names := make([]string, 0, len(t.urls))
	for name := range t.urls {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	content := string(data)
	for _, name := range names {
		content = strings.ReplaceAll(content, name, t.urls[name])
	}
	_, err = io.WriteString(out, content)
	return true, err
}

func (t *rewriteTransformer) Order() int { return t.order }

func (t *rewriteTransformer) CanAggregate() bool { return true }

// Verify interface compliance at compile time.
var (
	_ Stage              = (*Inspector)(nil)
	_ VersionTransformer = (*Inspector)(nil)
	_ nut.Transformer    = (*rewriteTransformer)(nil)
)
