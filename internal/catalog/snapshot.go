// Package catalog mirrors a storefront's paginated machine catalog feed into
// an immutable in-memory snapshot keyed by normalized identifier.
package catalog

import (
	"strings"

	"github.com/storefront-tools/skuscraper/internal/scrape"
)

// Entry is one storefront variant as indexed from the catalog feed.
type Entry struct {
	// Identifier keeps the feed's original casing for display.
	Identifier   string
	GroupID      string
	VariantID    string
	Title        string
	VariantTitle string
	// Name is the display name: title plus variant title unless the variant
	// is the feed's placeholder default.
	Name         string
	Price        *float64
	ComparePrice *float64
	Available    bool
	ProductType  string
	PublishedAt  string
	// Images holds up to five product image URLs, primary first.
	Images       []string
	CanonicalURL string
	// SiblingVariantIDs is populated at lookup time from the group map, not
	// stored per entry.
	SiblingVariantIDs []string
}

// NormalizeKey produces the index key for an identifier: lowercase with
// leading zeros stripped. Stripping to nothing falls back to the un-stripped
// lowercase form, so "0" and "00" both key as themselves.
func NormalizeKey(identifier string) string {
	s := strings.ToLower(strings.TrimSpace(identifier))
	key := strings.TrimLeft(s, "0")
	if key == "" {
		return s
	}
	return key
}

// Snapshot is the finished index for one storefront origin. Immutable after
// the indexing run completes; concurrent lookups are safe. Duplicate
// normalized keys overwrite silently during the build (last page wins) —
// normalization is assumed collision-free per storefront.
type Snapshot struct {
	origin  string
	entries map[string]Entry
	groups  map[string][]string
	ready   bool
}

func newSnapshot(origin string) *Snapshot {
	return &Snapshot{
		origin:  origin,
		entries: make(map[string]Entry),
		groups:  make(map[string][]string),
	}
}

// Origin returns the storefront origin this snapshot was built from.
func (s *Snapshot) Origin() string {
	return s.origin
}

// Len reports the number of indexed variants. A completed snapshot with zero
// entries signals an unavailable feed; callers degrade to direct fetching.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Ready reports whether the indexing run has completed.
func (s *Snapshot) Ready() bool {
	return s != nil && s.ready
}

// Lookup resolves an identifier against the snapshot. The returned entry is
// enriched with the full sibling variant id list for its group. Errors:
// ErrSnapshotNotReady before the build completes, ErrCatalogMiss when the
// identifier is absent.
func (s *Snapshot) Lookup(identifier string) (Entry, error) {
	if !s.Ready() {
		return Entry{}, scrape.ErrSnapshotNotReady
	}
	entry, ok := s.entries[NormalizeKey(identifier)]
	if !ok {
		return Entry{}, scrape.ErrCatalogMiss
	}
	if siblings := s.groups[entry.GroupID]; len(siblings) > 0 {
		entry.SiblingVariantIDs = append([]string(nil), siblings...)
	}
	return entry, nil
}

func (s *Snapshot) add(entry Entry) {
	s.entries[NormalizeKey(entry.Identifier)] = entry
}

func (s *Snapshot) setGroup(groupID string, variantIDs []string) {
	if groupID == "" {
		return
	}
	s.groups[groupID] = variantIDs
}
