// Package extract derives structured product fields from a fetched document.
// Every field is resolved through an ordered cascade of in-document sources:
// inline script variables first, then structured linked data, then profile
// selector lists, then generic structural fallbacks. The first source
// yielding a non-empty value wins; sources are never merged within one
// document. The engine performs no network calls.
package extract

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/storefront-tools/skuscraper/internal/profile"
	"github.com/storefront-tools/skuscraper/internal/scrape"
)

// Engine turns documents into scrape results. Safe for concurrent use; it
// holds no per-document state.
type Engine struct {
	logger *zap.Logger
}

// New constructs an Engine. A nil logger is replaced with a no-op.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Parse extracts every output field from one document. A nil profile enables
// auto-detection against the document itself. targetID, when set, is kept as
// the result identifier and steers variant matching. Parse never panics past
// its boundary: any internal fault yields a result whose fields are empty
// and whose Error describes the fault. Partial extraction is normal, not a
// failure.
func (e *Engine) Parse(html []byte, pageURL string, p *profile.Profile, targetID string) (res *scrape.Result) {
	res = &scrape.Result{Identifier: targetID, ProductURL: pageURL}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction fault",
				zap.String("url", pageURL),
				zap.Any("panic", r),
			)
			*res = scrape.Result{
				Identifier: targetID,
				ProductURL: pageURL,
				Error:      fmt.Sprintf("%v: %v", scrape.ErrParse, r),
			}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		res.Error = fmt.Sprintf("%v: %v", scrape.ErrParse, err)
		return res
	}
	if p == nil {
		p = profile.Detect(doc)
	}

	scripts := inlineScripts(doc)
	blocks := decodeLinkedData(doc)
	origin := scrape.Origin(pageURL)

	identifier := targetID
	if identifier == "" {
		identifier = bestIdentifier(doc, scripts, blocks, p, pageURL)
	}
	res.Identifier = identifier

	res.Name = extractName(doc, scripts, p)

	trail := collectBreadcrumbs(doc, scripts, blocks, p)
	res.Breadcrumbs = strings.Join(trail, " > ")
	res.Category = categoryFromTrail(trail)

	res.Price = extractPrice(doc, scripts, blocks, p)
	res.ComparePrice = extractComparePrice(doc, scripts, p)
	res.Images = collectImages(doc, scripts, blocks, p, origin)
	res.AllIdentifiers = allIdentifiers(doc, scripts, blocks, p)

	identity := collectVariantIdentity(doc, scripts, blocks, identifier)
	res.GroupID = identity.GroupID
	res.VariantID = identity.VariantID
	res.SiblingVariantIDs = identity.SiblingIDs

	res.DiscountPercent = extractDiscountBadge(doc, p)
	if res.DiscountPercent == nil {
		res.DiscountPercent = ComputeDiscount(res.Price, res.ComparePrice)
	}
	return res
}

// ComputeDiscount returns the discount percentage implied by a price and a
// higher compare-at price, rounded to two decimals. Nil when either value is
// missing or the compare price does not exceed the price.
func ComputeDiscount(price, compare *float64) *float64 {
	if price == nil || compare == nil || *compare <= 0 || *compare <= *price {
		return nil
	}
	pct := (1 - *price / *compare) * 100
	pct = math.Round(pct*100) / 100
	return &pct
}
