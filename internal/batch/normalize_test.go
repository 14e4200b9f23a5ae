package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storefront-tools/skuscraper/internal/scrape"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := []scrape.Request{
		{Identifier: " ABC-100 "},
		{Identifier: "abc-100", URL: "https://shop.example.com/p/abc-100"},
		{URL: "https://shop.example.com/p/other"},
		{URL: "https://shop.example.com/p/other/"},
		{Identifier: "", URL: ""},
		{Identifier: "DEF-200"},
	}

	out := Normalize(in)
	require.Equal(t, []scrape.Request{
		{Identifier: "ABC-100"},
		{URL: "https://shop.example.com/p/other"},
		{Identifier: "DEF-200"},
	}, out)
}

func TestNormalizeKeepsDistinctURLs(t *testing.T) {
	t.Parallel()

	in := []scrape.Request{
		{URL: "https://shop.example.com/p/a"},
		{URL: "https://shop.example.com/p/b"},
	}
	require.Len(t, Normalize(in), 2)
}

func TestNormalizeEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, Normalize(nil))
	require.Empty(t, Normalize([]scrape.Request{{}}))
}
