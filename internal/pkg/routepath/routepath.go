// Package routepath holds the URL composition rules for dynamic endpoints and
// stored pages: normalization, per-project anchoring, and the reserved system
// prefixes that user routes may never shadow.
package routepath

import "strings"

// APIPrefix is the namespace all dynamic endpoints live under.
const APIPrefix = "/api"

// reserved are the first path segments under /api/ owned by the system router.
var reserved = map[string]bool{
	"projects":  true,
	"pages":     true,
	"endpoints": true,
	"debug":     true,
	"auth":      true,
}

// Normalize ensures a leading slash and strips a single trailing slash,
// leaving "/" untouched.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

// Canonical converts a raw request path into the registry lookup key.
func Canonical(p string) string {
	return Normalize(p)
}

// IsReserved reports whether an endpoint path would shadow a system route,
// i.e. its form is /api/<reserved>/... or exactly /api/<reserved>.
func IsReserved(fullPath string) bool {
	rest, ok := strings.CutPrefix(fullPath, APIPrefix+"/")
	if !ok {
		return false
	}
	first := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		first = rest[:i]
	}
	return reserved[first]
}

// ComposeEndpoint builds the full endpoint path /api/<slug><path>. A proposed
// path already anchored under /api is re-anchored instead of doubled; an
// unanchored path is taken literally even when it starts with the slug.
func ComposeEndpoint(slug, userPath string) string {
	p := Normalize(userPath)
	if rest, ok := strings.CutPrefix(p, APIPrefix+"/"); ok {
		p = stripSlug(Normalize(rest), slug)
	} else if p == APIPrefix {
		p = "/"
	}
	if p == "/" {
		return APIPrefix + "/" + slug
	}
	return APIPrefix + "/" + slug + p
}

// UnderAPI reports whether a proposed path sits in the /api/ namespace.
// Pages may not live there; callers reject such paths before composing.
func UnderAPI(p string) bool {
	p = Normalize(p)
	return p == APIPrefix || strings.HasPrefix(p, APIPrefix+"/")
}

// ComposePage builds the full page path /<slug><path>. The proposed path is
// taken literally; /api-anchored proposals never reach this (they are
// rejected).
func ComposePage(slug, userPath string) string {
	p := Normalize(userPath)
	if p == "/" {
		return "/" + slug
	}
	return "/" + slug + p
}

// stripSlug removes one leading /<slug> segment so re-anchored /api proposals
// never read /api/<slug>/<slug>/...
func stripSlug(p, slug string) string {
	if p == "/"+slug {
		return "/"
	}
	if rest, ok := strings.CutPrefix(p, "/"+slug+"/"); ok {
		return "/" + rest
	}
	return p
}
