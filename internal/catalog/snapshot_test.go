package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storefront-tools/skuscraper/internal/scrape"
)

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "ABC-100", "abc-100"},
		{"strips leading zeros", "073302", "73302"},
		{"zero stays zero", "0", "0"},
		{"double zero keeps fallback", "00", "00"},
		{"trims whitespace", "  SKU9 ", "sku9"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizeKey(tc.in))
		})
	}
}

func TestSnapshotLookupBeforeReady(t *testing.T) {
	t.Parallel()

	snap := newSnapshot("https://shop.example.com")
	snap.add(Entry{Identifier: "ABC-100"})

	_, err := snap.Lookup("ABC-100")
	require.ErrorIs(t, err, scrape.ErrSnapshotNotReady)
}

func TestSnapshotLookup(t *testing.T) {
	t.Parallel()

	snap := newSnapshot("https://shop.example.com")
	snap.add(Entry{Identifier: "073302", GroupID: "g1", VariantID: "v1"})
	snap.setGroup("g1", []string{"v1", "v2"})
	snap.ready = true

	entry, err := snap.Lookup("73302")
	require.NoError(t, err)
	require.Equal(t, "073302", entry.Identifier)
	require.Equal(t, []string{"v1", "v2"}, entry.SiblingVariantIDs)

	entry, err = snap.Lookup("0073302")
	require.NoError(t, err)
	require.Equal(t, "073302", entry.Identifier)

	_, err = snap.Lookup("MISSING")
	require.ErrorIs(t, err, scrape.ErrCatalogMiss)
}

func TestSnapshotLenNilSafe(t *testing.T) {
	t.Parallel()

	var snap *Snapshot
	require.Zero(t, snap.Len())
	require.False(t, snap.Ready())
}
