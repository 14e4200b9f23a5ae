package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/storefront-tools/skuscraper/internal/extract"
	"github.com/storefront-tools/skuscraper/internal/scrape"
	"github.com/storefront-tools/skuscraper/internal/telemetry"
)

// Config controls indexing behavior.
type Config struct {
	// PageSize is the feed page size (feed maximum is 250).
	PageSize int
	// PageDelay is applied unconditionally between pages to stay under the
	// feed's rate limits.
	PageDelay time.Duration
	// RetryAttempts bounds same-page retries on HTTP 429.
	RetryAttempts int
	// RetryBackoff is the linear backoff unit: attempt N waits N times this.
	RetryBackoff time.Duration
	// FetchTimeout bounds each page request.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 250
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 100 * time.Millisecond
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	return c
}

// Indexer builds catalog snapshots by walking a storefront's paginated feed.
type Indexer struct {
	fetcher scrape.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewIndexer constructs an Indexer. A nil logger is replaced with a no-op.
func NewIndexer(fetcher scrape.Fetcher, cfg Config, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{fetcher: fetcher, cfg: cfg.withDefaults(), logger: logger}
}

// Feed page shapes, matching the storefront's products.json contract.
type feedPage struct {
	Products []feedProduct `json:"products"`
}

type feedProduct struct {
	ID          json.Number   `json:"id"`
	Handle      string        `json:"handle"`
	Title       string        `json:"title"`
	ProductType string        `json:"product_type"`
	PublishedAt string        `json:"published_at"`
	Images      []feedImage   `json:"images"`
	Variants    []feedVariant `json:"variants"`
}

type feedImage struct {
	Src string `json:"src"`
}

type feedVariant struct {
	ID             json.Number `json:"id"`
	SKU            string      `json:"sku"`
	Title          string      `json:"title"`
	Price          string      `json:"price"`
	CompareAtPrice *string     `json:"compare_at_price"`
	Available      bool        `json:"available"`
}

// Build walks the feed page by page until a page returns zero products. On
// HTTP 429 the same page is retried with linear backoff before giving up; on
// any other failure the run aborts. Either way every page indexed so far is
// retained and the returned snapshot is complete and queryable — the error,
// when non-nil, explains why the run stopped early. A failed run cannot be
// resumed; rebuild from page one.
func (i *Indexer) Build(ctx context.Context, origin string) (*Snapshot, error) {
	snap := newSnapshot(origin)
	host := hostOf(origin)

	var runErr error
	for page := 1; ; page++ {
		body, err := i.fetchPage(ctx, origin, page)
		if err != nil {
			runErr = err
			break
		}

		var feed feedPage
		if err := json.Unmarshal(body, &feed); err != nil {
			runErr = fmt.Errorf("decode catalog page %d: %w", page, err)
			break
		}
		if len(feed.Products) == 0 {
			break
		}

		variants := 0
		for _, product := range feed.Products {
			variants += i.indexProduct(snap, origin, product)
		}
		telemetry.ObserveCatalogPage(host, variants)
		i.logger.Debug("catalog page indexed",
			zap.String("origin", origin),
			zap.Int("page", page),
			zap.Int("variants", variants),
		)

		select {
		case <-ctx.Done():
			runErr = fmt.Errorf("catalog indexing canceled: %w", ctx.Err())
		case <-time.After(i.cfg.PageDelay):
		}
		if runErr != nil {
			break
		}
	}

	snap.ready = true
	i.logger.Info("catalog indexing finished",
		zap.String("origin", origin),
		zap.Int("variants", snap.Len()),
		zap.Error(runErr),
	)
	return snap, runErr
}

func (i *Indexer) fetchPage(ctx context.Context, origin string, page int) ([]byte, error) {
	pageURL := fmt.Sprintf("%s/products.json?limit=%d&page=%d", origin, i.cfg.PageSize, page)

	for attempt := 1; ; attempt++ {
		resp, err := i.fetcher.Fetch(ctx, scrape.FetchRequest{
			URL:     pageURL,
			Timeout: i.cfg.FetchTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch catalog page %d: %w", page, err)
		}
		if resp.StatusCode == 429 {
			if attempt >= i.cfg.RetryAttempts {
				return nil, fmt.Errorf("catalog page %d: %w after %d attempts", page, scrape.ErrRateLimited, attempt)
			}
			wait := time.Duration(attempt) * i.cfg.RetryBackoff
			i.logger.Warn("catalog feed rate limited",
				zap.Int("page", page),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("catalog indexing canceled: %w", ctx.Err())
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("catalog page %d: %w", page, scrape.NewStatusError(resp.StatusCode))
		}
		return resp.Body, nil
	}
}

// indexProduct adds every identifier-bearing variant of one feed product to
// the snapshot and records the group's variant list. Returns the number of
// variants indexed.
func (i *Indexer) indexProduct(snap *Snapshot, origin string, product feedProduct) int {
	groupID := product.ID.String()

	var images []string
	for _, img := range product.Images {
		if img.Src == "" {
			continue
		}
		images = append(images, img.Src)
		if len(images) == 5 {
			break
		}
	}

	var variantIDs []string
	for _, v := range product.Variants {
		if id := v.ID.String(); id != "" {
			variantIDs = append(variantIDs, id)
		}
	}
	snap.setGroup(groupID, variantIDs)

	indexed := 0
	for _, v := range product.Variants {
		if v.SKU == "" {
			continue
		}
		name := product.Title
		if v.Title != "" && v.Title != "Default Title" {
			name = product.Title + " - " + v.Title
		}
		var compare *float64
		if v.CompareAtPrice != nil {
			compare = extract.CleanAmount(*v.CompareAtPrice)
		}
		snap.add(Entry{
			Identifier:   v.SKU,
			GroupID:      groupID,
			VariantID:    v.ID.String(),
			Title:        product.Title,
			VariantTitle: v.Title,
			Name:         name,
			Price:        extract.CleanAmount(v.Price),
			ComparePrice: compare,
			Available:    v.Available,
			ProductType:  product.ProductType,
			PublishedAt:  product.PublishedAt,
			Images:       images,
			CanonicalURL: fmt.Sprintf("%s/products/%s?variant=%s", origin, product.Handle, v.ID.String()),
		})
		indexed++
	}
	return indexed
}

func hostOf(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}
