package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storefront-tools/skuscraper/internal/catalog"
	"github.com/storefront-tools/skuscraper/internal/extract"
	"github.com/storefront-tools/skuscraper/internal/profile"
	"github.com/storefront-tools/skuscraper/internal/scrape"
)

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]scrape.FetchResponse
	errs      map[string]error
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req scrape.FetchRequest) (scrape.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)
	if err, ok := f.errs[req.URL]; ok {
		return scrape.FetchResponse{}, err
	}
	resp, ok := f.responses[req.URL]
	if !ok {
		return scrape.FetchResponse{URL: req.URL, StatusCode: 404}, nil
	}
	if resp.URL == "" {
		resp.URL = req.URL
	}
	return resp, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

const origin = "https://shop.example.com"

const productPage = `<html><body>
<nav class="breadcrumb"><a href="/">Home</a><a href="/widgets">Widgets</a><a href="#">Page Widget</a></nav>
<h1 itemprop="name">Page Widget</h1>
<span class="productpricetext">$60.00</span>
</body></html>`

const catalogFeed = `{"products":[
  {"id":9,"handle":"widget","title":"Catalog Widget","product_type":"Widgets",
   "images":[{"src":"https://cdn.example.com/catalog-widget.jpg"}],
   "variants":[{"id":77,"sku":"ABC-1","title":"Default Title","price":"66.37","compare_at_price":"94.95","available":true}]}
]}`

func buildSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/products.json?limit=250&page=1": {StatusCode: 200, Body: []byte(catalogFeed)},
		origin + "/products.json?limit=250&page=2": {StatusCode: 200, Body: []byte(`{"products":[]}`)},
	}}
	cfg := catalog.Config{PageDelay: time.Millisecond, RetryBackoff: time.Millisecond}
	snap, err := catalog.NewIndexer(fetcher, cfg, nil).Build(context.Background(), origin)
	require.NoError(t, err)
	return snap
}

func newPipeline(fetcher scrape.Fetcher) *Pipeline {
	return New(fetcher, extract.New(nil), nil, nil)
}

func testOptions() Options {
	return Options{Family: profile.FamilyNeto, Origin: origin, ParseTimeout: 5 * time.Second}
}

func TestRunOneResultPerRequestInOrder(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/p/ABC-1": {StatusCode: 200, Body: []byte(productPage)},
	}}
	p := newPipeline(fetcher)

	requests := []scrape.Request{
		{},
		{Identifier: "ABC-1"},
		{URL: origin + "/p/GONE-404"},
	}
	results := p.Run(context.Background(), requests, nil, testOptions())
	require.Len(t, results, len(requests))

	require.Contains(t, results[0].Error, "no URL could be constructed")

	require.Empty(t, results[1].Error)
	require.Equal(t, "ABC-1", results[1].Identifier)
	require.Equal(t, "Page Widget", results[1].Name)
	require.Equal(t, "Home > Widgets > Page Widget", results[1].Breadcrumbs)
	require.Equal(t, "Widgets", results[1].Category)
	require.NotNil(t, results[1].Price)
	require.InDelta(t, 60.0, *results[1].Price, 0.001)

	require.Contains(t, results[2].Error, "HTTP 404")
	require.Equal(t, origin+"/p/GONE-404", results[2].InputURL)
}

func TestRunTransportError(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{errs: map[string]error{
		origin + "/p/ABC-1": errors.New("connection refused"),
	}}
	p := newPipeline(fetcher)

	results := p.Run(context.Background(), []scrape.Request{{Identifier: "ABC-1"}}, nil, testOptions())
	require.Len(t, results, 1)
	require.Contains(t, results[0].Error, "connection refused")
	require.Equal(t, "ABC-1", results[0].Identifier)
}

func TestRunStrictCatalogMiss(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t)
	fetcher := &fakeFetcher{}
	p := newPipeline(fetcher)

	results := p.Run(context.Background(), []scrape.Request{{Identifier: "MISSING"}}, snap, testOptions())
	require.Len(t, results, 1)
	require.Contains(t, results[0].Error, "strict match failed")
	require.Empty(t, results[0].ProductURL)
	// No guessed product fetch happens on a miss.
	require.Empty(t, fetcher.fetched())
}

func TestRunFastModeEmitsCatalogRecord(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t)
	fetcher := &fakeFetcher{}
	p := newPipeline(fetcher)

	opts := testOptions()
	opts.Fast = true
	results := p.Run(context.Background(), []scrape.Request{{Identifier: "abc-1"}}, snap, opts)
	require.Len(t, results, 1)
	res := results[0]

	require.Empty(t, res.Error)
	require.Empty(t, fetcher.fetched())
	require.Equal(t, "ABC-1", res.Identifier)
	require.Equal(t, "Catalog Widget", res.Name)
	require.Equal(t, "Widgets", res.Category)
	require.Equal(t, origin+"/products/widget?variant=77", res.ProductURL)
	require.Equal(t, "9", res.GroupID)
	require.Equal(t, "77", res.VariantID)
	require.Equal(t, []string{"77"}, res.SiblingVariantIDs)
	require.Equal(t, []string{"https://cdn.example.com/catalog-widget.jpg"}, res.Images)

	// Fast mode rounds the discount to a whole number.
	require.NotNil(t, res.DiscountPercent)
	require.Equal(t, 30.0, *res.DiscountPercent)
}

func TestRunCatalogMergeAuthority(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t)
	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/products/widget?variant=77": {StatusCode: 200, Body: []byte(productPage)},
	}}
	p := newPipeline(fetcher)

	results := p.Run(context.Background(), []scrape.Request{{Identifier: "ABC-1"}}, snap, testOptions())
	require.Len(t, results, 1)
	res := results[0]
	require.Empty(t, res.Error)

	// Identity comes from the catalog.
	require.Equal(t, "ABC-1", res.Identifier)
	require.Equal(t, "9", res.GroupID)
	require.Equal(t, "77", res.VariantID)

	// Display fields come from the page when present.
	require.Equal(t, "Page Widget", res.Name)
	require.Equal(t, "Home > Widgets > Page Widget", res.Breadcrumbs)
	require.NotNil(t, res.Price)
	require.InDelta(t, 60.0, *res.Price, 0.001)

	// Missing page fields fall back to the catalog.
	require.NotNil(t, res.ComparePrice)
	require.InDelta(t, 94.95, *res.ComparePrice, 0.001)
	require.Equal(t, []string{"https://cdn.example.com/catalog-widget.jpg"}, res.Images)

	// Discount recomputed from the merged pair, two decimals.
	require.NotNil(t, res.DiscountPercent)
	require.InDelta(t, 36.81, *res.DiscountPercent, 0.01)
}

func TestRunEmptySnapshotFallsBackToDirectFetch(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/products.json?limit=250&page=1": {StatusCode: 200, Body: []byte(`{"products":[]}`)},
		origin + "/p/ABC-1":                        {StatusCode: 200, Body: []byte(productPage)},
	}}
	cfg := catalog.Config{PageDelay: time.Millisecond, RetryBackoff: time.Millisecond}
	snap, err := catalog.NewIndexer(fetcher, cfg, nil).Build(context.Background(), origin)
	require.NoError(t, err)
	require.Zero(t, snap.Len())

	// An empty snapshot means the feed was unavailable, not that the item is
	// absent; the item scrapes through the direct fetch path.
	p := newPipeline(fetcher)
	results := p.Run(context.Background(), []scrape.Request{{Identifier: "ABC-1"}}, snap, testOptions())
	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)
	require.Equal(t, "Page Widget", results[0].Name)
	require.Equal(t, "ABC-1", results[0].Identifier)
}

func TestRunCatalogFetchFailureDegrades(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t)
	fetcher := &fakeFetcher{} // every page fetch 404s
	p := newPipeline(fetcher)

	results := p.Run(context.Background(), []scrape.Request{{Identifier: "ABC-1"}}, snap, testOptions())
	require.Len(t, results, 1)
	res := results[0]

	require.Contains(t, res.Error, "HTTP 404")
	// The catalog record survives the failed page fetch.
	require.Equal(t, "Catalog Widget", res.Name)
	require.NotNil(t, res.Price)
	require.InDelta(t, 66.37, *res.Price, 0.001)
}

func TestScrapeListingExpandsLinks(t *testing.T) {
	t.Parallel()

	listing := `<html><body>
<div class="product"><a href="/p/A-1">One</a></div>
<div class="product"><a href="/p/A-2">Two</a></div>
</body></html>`

	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/specials": {StatusCode: 200, Body: []byte(listing)},
		origin + "/p/A-1":    {StatusCode: 200, Body: []byte(productPage)},
		origin + "/p/A-2":    {StatusCode: 200, Body: []byte(productPage)},
	}}
	p := newPipeline(fetcher)

	results, err := p.ScrapeListing(context.Background(), origin+"/specials", nil, testOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, origin+"/p/A-1", results[0].InputURL)
	require.Equal(t, origin+"/p/A-2", results[1].InputURL)
	require.Empty(t, results[0].Error)
	require.Empty(t, results[1].Error)
}

func TestScrapeListingMaxItems(t *testing.T) {
	t.Parallel()

	listing := `<html><body>
<div class="product"><a href="/p/A-1">One</a></div>
<div class="product"><a href="/p/A-2">Two</a></div>
<div class="product"><a href="/p/A-3">Three</a></div>
</body></html>`

	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/specials": {StatusCode: 200, Body: []byte(listing)},
		origin + "/p/A-1":    {StatusCode: 200, Body: []byte(productPage)},
		origin + "/p/A-2":    {StatusCode: 200, Body: []byte(productPage)},
	}}
	p := newPipeline(fetcher)

	opts := testOptions()
	opts.MaxItems = 2
	results, err := p.ScrapeListing(context.Background(), origin+"/specials", nil, opts)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, origin+"/p/A-1", results[0].InputURL)
	require.Equal(t, origin+"/p/A-2", results[1].InputURL)
	require.NotContains(t, fetcher.fetched(), origin+"/p/A-3")
}

func TestScrapeListingIdentifierFallbackAutoDetect(t *testing.T) {
	t.Parallel()

	// No product links, only identifier-bearing tiles; the profile detected
	// from the listing supplies the URL shape for the expanded batch.
	listing := `<html><body>
<div class="product"><span data-sku="WID-100">Widget One</span></div>
<div class="product"><span data-sku="WID-200">Widget Two</span></div>
</body></html>`

	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/clearance": {StatusCode: 200, Body: []byte(listing)},
		origin + "/p/WID-100": {StatusCode: 200, Body: []byte(productPage)},
		origin + "/p/WID-200": {StatusCode: 200, Body: []byte(productPage)},
	}}
	p := newPipeline(fetcher)

	opts := Options{ParseTimeout: 5 * time.Second} // auto-detect, no origin
	results, err := p.ScrapeListing(context.Background(), origin+"/clearance", nil, opts)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Empty(t, results[0].Error)
	require.Empty(t, results[1].Error)
	require.Equal(t, "WID-100", results[0].Identifier)
	require.Equal(t, "WID-200", results[1].Identifier)
	require.Contains(t, fetcher.fetched(), origin+"/p/WID-100")
	require.Contains(t, fetcher.fetched(), origin+"/p/WID-200")
}

func TestScrapeListingFallsBackToSingleProduct(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResponse{
		origin + "/p/ONLY-1": {StatusCode: 200, Body: []byte(productPage)},
	}}
	p := newPipeline(fetcher)

	results, err := p.ScrapeListing(context.Background(), origin+"/p/ONLY-1", nil, testOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Page Widget", results[0].Name)
	require.Equal(t, origin+"/p/ONLY-1", results[0].InputURL)
}

func TestScrapeListingFetchError(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{errs: map[string]error{
		origin + "/specials": errors.New("connection reset"),
	}}
	p := newPipeline(fetcher)

	_, err := p.ScrapeListing(context.Background(), origin+"/specials", nil, testOptions())
	require.ErrorContains(t, err, "connection reset")
}
