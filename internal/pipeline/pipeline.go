// Package pipeline orchestrates a scrape batch: URL resolution, catalog
// lookup, bounded concurrent fetching, extraction, and authoritative merge.
// Every input item yields exactly one result; failures never cross item
// boundaries.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront-tools/skuscraper/internal/catalog"
	"github.com/storefront-tools/skuscraper/internal/discovery"
	"github.com/storefront-tools/skuscraper/internal/extract"
	"github.com/storefront-tools/skuscraper/internal/profile"
	"github.com/storefront-tools/skuscraper/internal/ratelimit"
	"github.com/storefront-tools/skuscraper/internal/scrape"
	"github.com/storefront-tools/skuscraper/internal/telemetry"
)

// Options are the per-batch knobs supplied by the caller.
type Options struct {
	// Family selects the storefront profile; FamilyAuto detects per document.
	Family profile.Family
	// Origin is the storefront origin used for URL construction.
	Origin string
	// URLTemplate overrides the family URL shape; {sku} is the placeholder.
	URLTemplate string
	// Concurrency bounds in-flight fetches.
	Concurrency int
	// Fast emits catalog records directly without fetching product pages.
	// Ignored without a snapshot.
	Fast bool
	// MaxItems caps how many discovered items a listing expands into; zero
	// means no cap. Explicit batches are never truncated.
	MaxItems int
	// FetchTimeout bounds each document fetch.
	FetchTimeout time.Duration
	// ParseTimeout bounds each extraction run.
	ParseTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Family == "" {
		o.Family = profile.FamilyAuto
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 40 * time.Second
	}
	if o.ParseTimeout <= 0 {
		o.ParseTimeout = 30 * time.Second
	}
	return o
}

// Pipeline wires the fetcher, extraction engine, and rate limiter into the
// per-item state machine. Safe for concurrent batches.
type Pipeline struct {
	fetcher scrape.Fetcher
	engine  *extract.Engine
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// New constructs a Pipeline. A nil limiter disables inter-request delays; a
// nil logger is replaced with a no-op.
func New(fetcher scrape.Fetcher, engine *extract.Engine, limiter *ratelimit.Limiter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{fetcher: fetcher, engine: engine, limiter: limiter, logger: logger}
}

// Run scrapes one batch. The result slice has exactly one entry per request,
// in request order. snap may be nil or empty; when it holds entries,
// identifier-bearing items resolve strictly against it and a miss is terminal
// for that item. Run returns only when every item has settled.
func (p *Pipeline) Run(ctx context.Context, requests []scrape.Request, snap *catalog.Snapshot, opts Options) []scrape.Result {
	opts = opts.withDefaults()
	batchID := uuid.NewString()
	log := p.logger.With(zap.String("batch_id", batchID))
	log.Info("batch started",
		zap.Int("items", len(requests)),
		zap.String("family", string(opts.Family)),
		zap.Bool("fast", opts.Fast),
	)
	telemetry.ObserveBatchSize(len(requests))

	prof := p.staticProfile(opts.Family)

	results := make([]scrape.Result, len(requests))
	permits := make(chan struct{}, opts.Concurrency)
	done := make(chan int)
	for idx, req := range requests {
		go func(idx int, req scrape.Request) {
			defer func() { done <- idx }()
			results[idx] = p.scrapeItem(ctx, req, snap, prof, opts, permits)
		}(idx, req)
	}
	for range requests {
		<-done
	}

	failed := 0
	for i := range results {
		if results[i].Error != "" {
			failed++
			telemetry.ObserveItem("error")
		} else {
			telemetry.ObserveItem("ok")
		}
	}
	log.Info("batch finished",
		zap.Int("items", len(requests)),
		zap.Int("failed", failed),
	)
	return results
}

// staticProfile resolves the batch profile, or nil for auto-detection.
func (p *Pipeline) staticProfile(f profile.Family) *profile.Profile {
	if f == profile.FamilyAuto {
		return nil
	}
	prof, err := profile.ForFamily(f)
	if err != nil {
		return nil
	}
	return prof
}

// scrapeItem runs the full state machine for one request.
func (p *Pipeline) scrapeItem(
	ctx context.Context,
	req scrape.Request,
	snap *catalog.Snapshot,
	prof *profile.Profile,
	opts Options,
	permits chan struct{},
) scrape.Result {
	// An empty snapshot means the feed was unavailable; those items fall
	// through to the direct fetch path instead of terminal-missing.
	if snap.Len() > 0 && req.Identifier != "" {
		return p.scrapeCatalogItem(ctx, req, snap, prof, opts, permits)
	}

	pageURL := p.resolveURL(req, prof, opts)
	if pageURL == "" {
		return errorResult(req, "", scrape.ErrNoURL)
	}
	body, finalURL, err := p.fetchDocument(ctx, pageURL, opts, permits)
	if err != nil {
		return errorResult(req, pageURL, err)
	}
	parsed, err := p.parseDocument(ctx, body, finalURL, prof, req.Identifier, opts)
	if err != nil {
		return errorResult(req, finalURL, err)
	}
	parsed.InputURL = req.URL
	if parsed.Identifier == "" {
		parsed.Identifier = req.Identifier
	}
	return *parsed
}

// scrapeCatalogItem handles the strict catalog path: lookup, optional fast
// emit, then fetch and merge. Fetch and parse failures degrade to the catalog
// record with an explanatory error instead of losing the item.
func (p *Pipeline) scrapeCatalogItem(
	ctx context.Context,
	req scrape.Request,
	snap *catalog.Snapshot,
	prof *profile.Profile,
	opts Options,
	permits chan struct{},
) scrape.Result {
	entry, err := snap.Lookup(req.Identifier)
	if err != nil {
		return errorResult(req, "", err)
	}
	if opts.Fast {
		return resultFromCatalog(entry, req)
	}

	pageURL := req.URL
	if pageURL == "" {
		pageURL = entry.CanonicalURL
	}
	body, finalURL, err := p.fetchDocument(ctx, pageURL, opts, permits)
	if err != nil {
		res := resultFromCatalog(entry, req)
		res.Error = err.Error()
		return res
	}
	parsed, err := p.parseDocument(ctx, body, finalURL, prof, entry.Identifier, opts)
	if err != nil {
		res := resultFromCatalog(entry, req)
		res.Error = err.Error()
		return res
	}
	parsed.InputURL = req.URL
	return mergeWithCatalog(*parsed, entry)
}

// resolveURL picks the document URL for an item: the explicit URL wins, then
// the profile's URL shape for the identifier.
func (p *Pipeline) resolveURL(req scrape.Request, prof *profile.Profile, opts Options) string {
	if req.URL != "" {
		if u, err := scrape.NormalizeURL(req.URL); err == nil {
			return u
		}
		return req.URL
	}
	if prof == nil {
		if opts.URLTemplate != "" && req.Identifier != "" {
			return profileless.ProductURL(req.Identifier, opts.Origin, opts.URLTemplate)
		}
		return ""
	}
	return prof.ProductURL(req.Identifier, opts.Origin, opts.URLTemplate)
}

// profileless backs template-only URL construction in auto mode.
var profileless = &profile.Profile{Family: profile.FamilyAuto}

// fetchDocument acquires a fetch permit, waits out the per-origin delay, and
// retrieves the document. Non-2xx statuses are errors here; the catalog path
// converts them into degraded results.
func (p *Pipeline) fetchDocument(ctx context.Context, pageURL string, opts Options, permits chan struct{}) ([]byte, string, error) {
	select {
	case permits <- struct{}{}:
	case <-ctx.Done():
		return nil, "", fmt.Errorf("fetch canceled: %w", ctx.Err())
	}
	defer func() { <-permits }()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, pageURL); err != nil {
			return nil, "", err
		}
	}
	resp, err := p.fetcher.Fetch(ctx, scrape.FetchRequest{URL: pageURL, Timeout: opts.FetchTimeout})
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.URL, scrape.NewStatusError(resp.StatusCode)
	}
	return resp.Body, resp.URL, nil
}

// parseDocument offloads extraction to its own goroutine and bounds it with
// the parse timeout. A timed-out extraction keeps running in the background
// until it finishes; its result is discarded.
func (p *Pipeline) parseDocument(
	ctx context.Context,
	body []byte,
	pageURL string,
	prof *profile.Profile,
	targetID string,
	opts Options,
) (*scrape.Result, error) {
	family := profile.FamilyAuto
	if prof != nil {
		family = prof.Family
	}
	start := time.Now()
	out := make(chan *scrape.Result, 1)
	go func() {
		out <- p.engine.Parse(body, pageURL, prof, targetID)
	}()

	select {
	case res := <-out:
		telemetry.ObserveExtraction(string(family), time.Since(start))
		if res.Error != "" {
			return nil, errors.New(res.Error)
		}
		return res, nil
	case <-time.After(opts.ParseTimeout):
		return nil, fmt.Errorf("%w after %s", scrape.ErrParseTimeout, opts.ParseTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("parse canceled: %w", ctx.Err())
	}
}

// ScrapeListing expands one listing page into a scraped batch. Discovered
// product links are scraped as URL items; when the page links nothing
// directly, candidate identifiers are tried, and as a last resort the page
// itself is parsed as a single product.
func (p *Pipeline) ScrapeListing(ctx context.Context, listingURL string, snap *catalog.Snapshot, opts Options) ([]scrape.Result, error) {
	opts = opts.withDefaults()
	permits := make(chan struct{}, opts.Concurrency)

	pageURL := listingURL
	if u, err := scrape.NormalizeURL(listingURL); err == nil {
		pageURL = u
	}
	body, finalURL, err := p.fetchDocument(ctx, pageURL, opts, permits)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	prof := p.staticProfile(opts.Family)
	if prof == nil {
		doc, derr := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if derr != nil {
			return nil, fmt.Errorf("parse listing: %w", derr)
		}
		prof = profile.Detect(doc)
	}

	links, err := discovery.ProductLinks(body, finalURL, prof)
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		if opts.MaxItems > 0 && len(links) > opts.MaxItems {
			links = links[:opts.MaxItems]
		}
		p.logger.Info("listing expanded",
			zap.String("url", finalURL),
			zap.Int("links", len(links)),
		)
		requests := make([]scrape.Request, len(links))
		for i, link := range links {
			requests[i] = scrape.Request{URL: link}
		}
		return p.Run(ctx, requests, snap, opts), nil
	}

	ids, err := discovery.CandidateIdentifiers(body)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if opts.MaxItems > 0 && len(ids) > opts.MaxItems {
			ids = ids[:opts.MaxItems]
		}
		p.logger.Info("listing expanded via identifiers",
			zap.String("url", finalURL),
			zap.Int("identifiers", len(ids)),
		)
		requests := make([]scrape.Request, len(ids))
		for i, id := range ids {
			requests[i] = scrape.Request{Identifier: id}
		}
		if opts.Origin == "" {
			opts.Origin = scrape.Origin(finalURL)
		}
		// Identifier items need the detected profile's URL shape; the batch
		// would otherwise re-enter auto mode with no way to build URLs.
		opts.Family = prof.Family
		return p.Run(ctx, requests, snap, opts), nil
	}

	// Some "listings" are a single product page; parse it directly.
	parsed, err := p.parseDocument(ctx, body, finalURL, prof, "", opts)
	if err != nil {
		return nil, err
	}
	parsed.InputURL = listingURL
	return []scrape.Result{*parsed}, nil
}

func errorResult(req scrape.Request, pageURL string, err error) scrape.Result {
	return scrape.Result{
		Identifier: req.Identifier,
		InputURL:   req.URL,
		ProductURL: pageURL,
		Error:      err.Error(),
	}
}
