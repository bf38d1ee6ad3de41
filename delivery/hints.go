package delivery

import (
	"context"
	"fmt"

	"github.com/tool-recommender-bot/wuic/nut"
)

// Strategy tells a client how to fetch a referenced asset ahead of use.
type Strategy string

const (
	// StrategyPreload marks a sub-resource the current document needs
	// during its own load.
	StrategyPreload Strategy = "preload"
	// StrategyPrefetch marks a secondary asset likely needed soon.
	StrategyPrefetch Strategy = "prefetch"
)

// Hint is one delivery hint tuple for a referenced asset.
type Hint struct {
	URL      string
	Strategy Strategy
	As       string
}

// LinkTag renders the hint as an HTML link element.
func (h Hint) LinkTag() string {
	as := ""
	if h.As != "" {
		as = fmt.Sprintf(" as=%q", h.As)
	}
	return fmt.Sprintf("<link rel=%q href=%q%s />", string(h.Strategy), h.URL, as)
}

// CollectHints walks the referenced graph of root exactly once and returns
// one hint per referenced asset, in discovery order. The root itself is the
// document being served and gets no hint. Sub-resources hint preload, the
// rest prefetch; the content kind comes from the asset type and may be
// empty.
func CollectHints(ctx context.Context, p *Provider, root *nut.Nut) ([]Hint, error) {
	var hints []Hint
	err := nut.Walk(root, func(n *nut.Nut) error {
		if n == root {
			return nil
		}
		url, err := p.URL(ctx, n)
		if err != nil {
			return err
		}
		strategy := StrategyPrefetch
		if n.SubResource() {
			strategy = StrategyPreload
		}
		hints = append(hints, Hint{URL: url, Strategy: strategy, As: n.Type().HintKind()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hints, nil
}
