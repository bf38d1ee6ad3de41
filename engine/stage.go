package engine

import (
	"context"

	"github.com/tool-recommender-bot/wuic/nut"
)

// Stage is one processing unit of a chain.
type Stage interface {
	// Name identifies the concrete stage kind. The chain builder keeps a
	// single instance per name, and the executor uses it for spans and logs.
	Name() string
	// Category places the stage in the canonical chain order.
	Category() Category
	// Handles lists the nut types the stage processes; version callbacks
	// only propagate to these.
	Handles() []nut.Type
	// Transform runs the stage over the request nuts and returns the nuts
	// handed to the next stage.
	Transform(ctx context.Context, req *Request) ([]*nut.Nut, error)
}

// Next runs the remainder of a chain from the stage after the current one.
type Next func(ctx context.Context, req *Request) ([]*nut.Nut, error)

// Forwarder is the optional capability of stages that drive the tail of the
// chain themselves instead of relying on the executor's default forwarding.
// The cache stage implements it: a hit returns without running the tail, a
// miss runs the tail and stores its output.
type Forwarder interface {
	ProcessChain(ctx context.Context, req *Request, next Next) ([]*nut.Nut, error)
}

// VersionTransformer is the optional capability of stages that adjust the
// externally observed version numbers of the nuts they produce. After the
// stage runs, the executor attaches the callback to every result nut of a
// handled type and to every matching nut reachable through references.
type VersionTransformer interface {
	VersionCallback() nut.VersionCallback
}

// handles reports whether types contains t.
func handles(types []nut.Type, t nut.Type) bool {
	for _, h := range types {
		if h == t {
			return true
		}
	}
	return false
}
