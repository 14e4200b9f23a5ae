// Package batch normalizes caller-submitted scrape batches before they reach
// the pipeline.
package batch

import (
	"strings"

	"github.com/storefront-tools/skuscraper/internal/scrape"
)

// Normalize trims whitespace, drops rows carrying neither an identifier nor a
// URL, and removes duplicates. Two rows are duplicates when their identifiers
// match case-insensitively, or when both lack identifiers and their URLs
// match. Order is preserved; the first occurrence wins.
func Normalize(requests []scrape.Request) []scrape.Request {
	seenIDs := make(map[string]struct{})
	seenURLs := make(map[string]struct{})
	out := make([]scrape.Request, 0, len(requests))

	for _, req := range requests {
		req.Identifier = strings.TrimSpace(req.Identifier)
		req.URL = strings.TrimSpace(req.URL)
		if req.Identifier == "" && req.URL == "" {
			continue
		}

		if req.Identifier != "" {
			key := strings.ToLower(req.Identifier)
			if _, dup := seenIDs[key]; dup {
				continue
			}
			seenIDs[key] = struct{}{}
		} else {
			key := strings.TrimRight(req.URL, "/")
			if _, dup := seenURLs[key]; dup {
				continue
			}
			seenURLs[key] = struct{}{}
		}
		out = append(out, req)
	}
	return out
}
