package scrape

import (
	"errors"
	"fmt"
)

// Sentinel errors for the per-item failure taxonomy. Every failure is caught
// at the item boundary and converted into a Result carrying the error text;
// nothing in this taxonomy aborts sibling items.
var (
	// ErrNoURL means neither an explicit URL nor a constructable one exists.
	ErrNoURL = errors.New("no URL could be constructed (supply URL or pattern)")

	// ErrParseTimeout means extraction exceeded its wall-clock budget.
	ErrParseTimeout = errors.New("parse timeout")

	// ErrParse wraps an internal extraction fault.
	ErrParse = errors.New("parse error")

	// ErrCatalogMiss means the identifier is absent from a built, non-empty
	// snapshot. Strict-match policy: no fallback to a guessed fetch.
	ErrCatalogMiss = errors.New("strict match failed: identifier not found in site catalog")

	// ErrSnapshotNotReady means a lookup ran before the indexing run finished.
	ErrSnapshotNotReady = errors.New("catalog snapshot not ready")

	// ErrCatalogUnavailable means the feed endpoint produced an empty
	// snapshot; callers degrade to direct per-item fetching.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrRateLimited is surfaced by the catalog indexer after exhausting its
	// 429 retry budget for a page.
	ErrRateLimited = errors.New("rate limited")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// NewStatusError builds a StatusError for the given status code.
func NewStatusError(code int) *StatusError {
	return &StatusError{Code: code}
}
