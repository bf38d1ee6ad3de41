package delivery

import (
	"context"
	"strconv"
	"strings"

	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/pathutil"
)

// URL returns the externally addressable path of a nut, built from the
// context path, the workflow, the observed version number and the name. A
// nut carrying a proxy URI, or named by an absolute URL, is addressed
// verbatim.
func URL(ctx context.Context, contextPath, workflowID string, n *nut.Nut) (string, error) {
	if uri := n.ProxyURI(); uri != "" {
		return uri, nil
	}
	if strings.HasPrefix(n.Name(), "http://") || strings.HasPrefix(n.Name(), "https://") {
		return n.Name(), nil
	}

	v, err := n.VersionNumber(ctx)
	if err != nil {
		return "", err
	}
	return pathutil.Merge(contextPath, workflowID, strconv.FormatInt(v, 10), n.Name()), nil
}

// Provider binds URL generation to one workflow's identifiers.
type Provider struct {
	contextPath string
	workflowID  string
}

// NewProvider creates a URL provider for the workflow.
func NewProvider(contextPath, workflowID string) *Provider {
	return &Provider{contextPath: contextPath, workflowID: workflowID}
}

// URL resolves the addressable path of n under this provider's workflow.
func (p *Provider) URL(ctx context.Context, n *nut.Nut) (string, error) {
	return URL(ctx, p.contextPath, p.workflowID, n)
}
