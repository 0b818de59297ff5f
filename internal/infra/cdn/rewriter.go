// Package cdn maps origin media URLs onto a CDN edge host.
package cdn

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// Rewriter swaps the scheme and host of URLs served from one of the origin hosts
// for the CDN base. Other URLs pass through unchanged.
type Rewriter struct {
	base    *url.URL
	origins map[string]struct{}
}

// NewRewriter creates a rewriter. An empty or invalid base disables rewriting.
func NewRewriter(base string, origins ...string) *Rewriter {
	r := &Rewriter{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			r.origins[o] = struct{}{}
		}
	}

	if base == "" {
		return r
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		log.Warn().Str("base", base).Msg("Invalid CDN base URL, rewriting disabled")
		return r
	}
	u.Path = strings.TrimRight(u.Path, "/")
	r.base = u
	return r
}

// Enabled reports whether URLs are rewritten.
func (r *Rewriter) Enabled() bool {
	return r.base != nil
}

// Rewrite returns the CDN URL for raw.
func (r *Rewriter) Rewrite(raw string) string {
	if r.base == nil || raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if len(r.origins) > 0 {
		if _, ok := r.origins[strings.ToLower(u.Hostname())]; !ok {
			return raw
		}
	}

	out := *u
	out.Scheme = r.base.Scheme
	out.Host = r.base.Host
	out.Path = r.base.Path + u.Path
	out.RawPath = ""
	return out.String()
}
