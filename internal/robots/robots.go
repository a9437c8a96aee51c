// Package robots answers Allowed(userAgent, path) against whatever cached
// robots.txt text is attached to a Host row. Fetching that text over the
// network stays an external, out-of-scope concern; parsing a policy that's
// already on the row is this package's entire job.
package robots

import (
	"github.com/temoto/robotstxt"

	"github.com/alpes214/crawler/internal/apperrors"
)

// Policy wraps a parsed robots.txt document for one host.
type Policy struct {
	doc *robotstxt.RobotsData
}

// Parse compiles cached robots.txt text into a queryable Policy. An empty
// or whitespace-only cachedText is treated as "no policy": everything is
// allowed, matching robots.txt's own convention that a missing file grants
// full access.
func Parse(cachedText string) (*Policy, error) {
	doc, err := robotstxt.FromString(cachedText)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Validation, "invalid robots.txt policy", err)
	}
	return &Policy{doc: doc}, nil
}

// Allowed reports whether userAgent may fetch path under this policy.
func (p *Policy) Allowed(userAgent, path string) bool {
	if p == nil || p.doc == nil {
		return true
	}
	group := p.doc.FindGroup(userAgent)
	if group == nil {
		return true
	}
	return group.Test(path)
}
