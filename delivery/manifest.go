package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/tool-recommender-bot/wuic/nut"
)

// Manifest builds the offline-cache document for root: a header line, a
// version comment derived from every listed asset, one URL per line for the
// root and each referenced asset, then a NETWORK section with a wildcard
// entry so everything unlisted stays online-only. The manifest nut is named
// after the root with an .appcache suffix.
func Manifest(ctx context.Context, p *Provider, root *nut.Nut) (*nut.Nut, error) {
	var (
		urls  []string
		total int64
	)
	err := nut.Walk(root, func(n *nut.Nut) error {
		url, err := p.URL(ctx, n)
		if err != nil {
			return err
		}
		v, err := n.VersionNumber(ctx)
		if err != nil {
			return err
		}
		urls = append(urls, url)
		total += v
		return nil
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CACHE MANIFEST\n# Version number: %d\n", total)
	b.WriteString(strings.Join(urls, "\n"))
	b.WriteString("\nNETWORK:\n*")

	body := []byte(b.String())
	m := nut.NewBytes(root.Name()+".appcache", nut.TypeAppCache, nut.ResolvedVersion(total), body)
	m.SetAggregatable(false)
	return m, nil
}
