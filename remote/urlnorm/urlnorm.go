// Package urlnorm implements the normalization rule used for
// deduplicating mirrors and relays: trailing slash stripped, scheme
// and host lowercased. It exists as its own tiny package because both
// the announcement merge and the resolver need the identical rule and
// must agree on it byte-for-byte.
package urlnorm

import (
	"net/url"
	"strings"
)

// Normalize lowercases the scheme and host of rawurl and strips a
// trailing slash from the path. Values that do not parse as a URL
// (e.g. a bare filesystem path) are returned with only the trailing
// slash stripped.
func Normalize(rawurl string) string {
	trimmed := strings.TrimSuffix(rawurl, "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// DedupURLs removes duplicate URLs (by Normalize) while preserving the
// order of first occurrence.
func DedupURLs(urls []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range urls {
		n := Normalize(u)
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, u)
	}
	return out
}

// ContainsURL reports whether urls already contains a URL that
// normalizes the same as candidate.
func ContainsURL(urls []string, candidate string) bool {
	n := Normalize(candidate)
	for _, u := range urls {
		if Normalize(u) == n {
			return true
		}
	}
	return false
}
