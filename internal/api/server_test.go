package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storefront-tools/skuscraper/internal/catalog"
	"github.com/storefront-tools/skuscraper/internal/config"
	"github.com/storefront-tools/skuscraper/internal/extract"
	"github.com/storefront-tools/skuscraper/internal/pipeline"
	"github.com/storefront-tools/skuscraper/internal/scrape"
)

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]scrape.FetchResponse
}

func (f *fakeFetcher) Fetch(_ context.Context, req scrape.FetchRequest) (scrape.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.responses[req.URL]
	if !ok {
		return scrape.FetchResponse{URL: req.URL, StatusCode: 404}, nil
	}
	resp.URL = req.URL
	return resp, nil
}

const testOrigin = "https://shop.example.com"

const testFeed = `{"products":[
  {"id":9,"handle":"widget","title":"Catalog Widget","product_type":"Widgets",
   "variants":[{"id":77,"sku":"ABC-1","title":"Default Title","price":"50.00","compare_at_price":"100.00","available":true}]}
]}`

func newTestServer(t *testing.T, fetcher scrape.Fetcher) *Server {
	t.Helper()
	cfg := config.Config{}
	cfg.Scrape.Concurrency = 2
	cfg.Scrape.TimeoutSeconds = 5
	cfg.Scrape.ParseTimeoutSec = 5

	pipe := pipeline.New(fetcher, extract.New(nil), nil, nil)
	indexer := catalog.NewIndexer(fetcher, catalog.Config{
		PageDelay:    time.Millisecond,
		RetryBackoff: time.Millisecond,
	}, nil)
	return NewServer(pipe, indexer, cfg, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeFetcher{})
	rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)
}

func TestScrapeBatchValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeFetcher{})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/scrape", map[string]any{
		"items": []map[string]string{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/v1/scrape", map[string]any{
		"items":  []map[string]string{{"identifier": "ABC-1"}},
		"family": "magento",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", bytes.NewBufferString("{not json"))
	recRaw := httptest.NewRecorder()
	s.Handler().ServeHTTP(recRaw, req)
	require.Equal(t, http.StatusBadRequest, recRaw.Code)
}

func TestScrapeBatch(t *testing.T) {
	t.Parallel()

	page := `<html><body><h1 itemprop="name">Blue Widget</h1><span class="productpricetext">$49.95</span></body></html>`
	s := newTestServer(t, &fakeFetcher{responses: map[string]scrape.FetchResponse{
		testOrigin + "/p/ABC-1": {StatusCode: 200, Body: []byte(page)},
	}})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/scrape", map[string]any{
		"items":  []map[string]string{{"identifier": "ABC-1"}, {"identifier": "abc-1"}},
		"origin": testOrigin,
		"family": "neto",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The duplicate identifier is dropped by input normalization.
	require.Len(t, resp.Results, 1)
	require.Zero(t, resp.Failed)
	require.Equal(t, "Blue Widget", resp.Results[0].Name)
}

func TestCatalogBuildAndFastScrape(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeFetcher{responses: map[string]scrape.FetchResponse{
		testOrigin + "/products.json?limit=250&page=1": {StatusCode: 200, Body: []byte(testFeed)},
		testOrigin + "/products.json?limit=250&page=2": {StatusCode: 200, Body: []byte(`{"products":[]}`)},
	}})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/catalog", catalogRequest{Origin: testOrigin})
	require.Equal(t, http.StatusOK, rec.Code)
	var built map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &built))
	require.EqualValues(t, 1, built["variants"])

	rec = doJSON(t, s.Handler(), http.MethodPost, "/v1/scrape", map[string]any{
		"items":  []map[string]string{{"identifier": "ABC-1"}},
		"origin": testOrigin,
		"family": "shopify",
		"fast":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Zero(t, resp.Failed)
	require.Equal(t, "Catalog Widget", resp.Results[0].Name)
	require.NotNil(t, resp.Results[0].DiscountPercent)
	require.Equal(t, 50.0, *resp.Results[0].DiscountPercent)
}

func TestCatalogInvalidate(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeFetcher{responses: map[string]scrape.FetchResponse{
		testOrigin + "/products.json?limit=250&page=1": {StatusCode: 200, Body: []byte(`{"products":[]}`)},
	}})
	s.storeSnapshot(testOrigin, nil)

	path := "/v1/catalog?origin=" + url.QueryEscape(testOrigin)
	rec := doJSON(t, s.Handler(), http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingListingURL(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeFetcher{})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/scrape/listing", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeListingMaxItems(t *testing.T) {
	t.Parallel()

	listing := `<html><body>
<div class="product"><a href="/p/A-1">One</a></div>
<div class="product"><a href="/p/A-2">Two</a></div>
</body></html>`
	page := `<html><body><h1 itemprop="name">Blue Widget</h1><span class="productpricetext">$49.95</span></body></html>`
	s := newTestServer(t, &fakeFetcher{responses: map[string]scrape.FetchResponse{
		testOrigin + "/specials": {StatusCode: 200, Body: []byte(listing)},
		testOrigin + "/p/A-1":    {StatusCode: 200, Body: []byte(page)},
	}})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/scrape/listing", map[string]any{
		"url":       testOrigin + "/specials",
		"family":    "neto",
		"max_items": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, testOrigin+"/p/A-1", resp.Results[0].InputURL)
	require.Equal(t, "Blue Widget", resp.Results[0].Name)
}
