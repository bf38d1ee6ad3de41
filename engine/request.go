package engine

import (
	"github.com/google/uuid"

	"github.com/tool-recommender-bot/wuic/nut"
)

// Request carries one workflow's nuts through a chain. A Request value is
// immutable once built; forwarding to the next stage derives a fresh value
// through WithNuts.
type Request struct {
	id          string
	workflowID  string
	contextPath string
	nuts        []*nut.Nut
	skip        map[Category]struct{}
}

// RequestOption adjusts a request under construction.
type RequestOption func(*Request)

// WithSkip excludes the given categories from the run; skipped stages
// forward the request untouched.
func WithSkip(categories ...Category) RequestOption {
	return func(r *Request) {
		for _, c := range categories {
			r.skip[c] = struct{}{}
		}
	}
}

// NewRequest builds the request handed to the head of a chain.
func NewRequest(workflowID, contextPath string, nuts []*nut.Nut, opts ...RequestOption) *Request {
	r := &Request{
		id:          uuid.NewString(),
		workflowID:  workflowID,
		contextPath: contextPath,
		nuts:        make([]*nut.Nut, len(nuts)),
		skip:        make(map[Category]struct{}),
	}
	copy(r.nuts, nuts)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithNuts derives the request forwarded to the next stage, sharing the
// identifiers and skip-set but carrying the stage's results.
func (r *Request) WithNuts(nuts []*nut.Nut) *Request {
	next := &Request{
		id:          r.id,
		workflowID:  r.workflowID,
		contextPath: r.contextPath,
		nuts:        make([]*nut.Nut, len(nuts)),
		skip:        r.skip,
	}
	copy(next.nuts, nuts)
	return next
}

// ID returns the per-run correlation identifier.
func (r *Request) ID() string { return r.id }

// WorkflowID returns the workflow the request processes.
func (r *Request) WorkflowID() string { return r.workflowID }

// ContextPath returns the base path assets are served under.
func (r *Request) ContextPath() string { return r.contextPath }

// Nuts returns a copy of the request's asset list.
func (r *Request) Nuts() []*nut.Nut {
	out := make([]*nut.Nut, len(r.nuts))
	copy(out, r.nuts)
	return out
}

// Skipped reports whether the category is excluded from this run.
func (r *Request) Skipped(c Category) bool {
	_, ok := r.skip[c]
	return ok
}
