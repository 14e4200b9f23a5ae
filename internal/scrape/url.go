package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// NormalizeURL standardizes a URL to avoid duplicates. It lowercases the
// scheme and host, removes default ports and fragments, and sorts query
// parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// Origin returns the scheme://host portion of a URL, or "" when it cannot
// be parsed.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// SameSite reports whether href points at the same host as base. Relative
// hrefs count as same-site.
func SameSite(href, base string) bool {
	a, err := url.Parse(href)
	if err != nil {
		return true
	}
	b, err := url.Parse(base)
	if err != nil {
		return true
	}
	host := a.Host
	if host == "" {
		host = b.Host
	}
	return host == b.Host
}

var junkSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "blob:", "about:"}

// ResolveHref turns a raw anchor href into an absolute http(s) URL against
// base, or "" for junk links (scripts, anchors, bare slashes). Query-only
// hrefs are kept because some storefront themes link products via query
// parameters.
func ResolveHref(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "/" || href == "#" {
		return ""
	}
	low := strings.ToLower(href)
	for _, s := range junkSchemes {
		if strings.HasPrefix(low, s) {
			return ""
		}
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(low, "http://") || strings.HasPrefix(low, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := b.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

var onclickURLPattern = regexp.MustCompile(`location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`)

// HrefFromOnclick extracts a navigation target from an onclick handler body.
func HrefFromOnclick(onclick string) string {
	m := onclickURLPattern.FindStringSubmatch(onclick)
	if m == nil {
		return ""
	}
	return m[1]
}

// StripQuery removes the query string and fragment from a URL. Used as the
// deduplication key for image URLs that differ only in sizing parameters.
func StripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
