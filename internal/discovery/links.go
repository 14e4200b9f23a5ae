// Package discovery turns one listing or category document into candidate
// product URLs, falling back to candidate identifiers when the page links
// products indirectly.
package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/storefront-tools/skuscraper/internal/profile"
	"github.com/storefront-tools/skuscraper/internal/scrape"
)

var productQueryKeys = []string{"product", "sku", "code", "id", "item", "prod", "variant"}

// ProductLinks extracts deduplicated same-site product URLs from a listing
// document, walking the profile's link selectors and JSON-LD ItemList and
// Product blocks. Off-site links and links back to the listing itself are
// excluded.
func ProductLinks(html []byte, baseURL string, p *profile.Profile) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	add := func(href string) {
		if href == "" || !scrape.SameSite(href, baseURL) || !looksLikeProductURL(href, p) {
			return
		}
		if strings.TrimRight(href, "/") == strings.TrimRight(baseURL, "/") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	}

	for _, sel := range p.ProductLinkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			add(linkTarget(s, baseURL))
		})
	}
	for _, u := range linkedDataProductURLs(doc, baseURL) {
		add(scrape.ResolveHref(u, baseURL))
	}

	// Shopify search results: some themes wrap product tiles in markup the
	// selector list misses, so sweep every /products/ anchor as well.
	if p.Family == profile.FamilyShopify {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if strings.Contains(href, "/products/") {
				add(scrape.ResolveHref(href, baseURL))
			}
		})
	}
	return links, nil
}

// linkTarget pulls a navigation target from an anchor-like element: href and
// data attributes first, then an onclick location assignment.
func linkTarget(s *goquery.Selection, baseURL string) string {
	for _, attr := range []string{"href", "data-href", "data-url", "data-product-url"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return scrape.ResolveHref(v, baseURL)
		}
	}
	if onclick, ok := s.Attr("onclick"); ok {
		if href := scrape.HrefFromOnclick(onclick); href != "" {
			return scrape.ResolveHref(href, baseURL)
		}
	}
	return ""
}

// looksLikeProductURL filters listing links down to plausible product pages.
// Query-driven product links are accepted for every family; otherwise the
// profile's path hint decides, with a generic segment heuristic for families
// that have none.
func looksLikeProductURL(href string, p *profile.Profile) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	q := u.Query()
	for _, key := range productQueryKeys {
		if q.Has(key) {
			return true
		}
	}
	if p.ProductPathHint != "" {
		return strings.Contains(u.Path, p.ProductPathHint)
	}
	if strings.Contains(u.Path, "/product/") || strings.Contains(u.Path, "/p/") {
		return true
	}
	segments := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments++
		}
	}
	return segments >= 3
}

// linkedDataProductURLs reads product URLs out of JSON-LD ItemList and
// Product blocks.
func linkedDataProductURLs(doc *goquery.Document, baseURL string) []string {
	var urls []string
	seen := make(map[string]struct{})
	add := func(href string) {
		if href == "" || !scrape.SameSite(href, baseURL) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		urls = append(urls, href)
	}

	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		blocks, ok := raw.([]any)
		if !ok {
			blocks = []any{raw}
		}
		for _, b := range blocks {
			d, ok := b.(map[string]any)
			if !ok {
				continue
			}
			switch d["@type"] {
			case "ItemList":
				items, _ := d["itemListElement"].([]any)
				for _, it := range items {
					m, ok := it.(map[string]any)
					if !ok {
						continue
					}
					var href string
					switch item := m["item"].(type) {
					case map[string]any:
						href, _ = item["url"].(string)
					case string:
						href = item
					}
					if href == "" {
						href, _ = m["url"].(string)
					}
					add(scrape.ResolveHref(href, baseURL))
				}
			case "Product":
				if href, ok := d["url"].(string); ok {
					add(scrape.ResolveHref(href, baseURL))
				}
			}
		}
	})
	return urls
}

var (
	labeledCodePattern = regexp.MustCompile(`(?i)(?:SKU|Code)\s*[:#-]?\s*([A-Za-z0-9._-]{3,})`)
	tileTokenPattern   = regexp.MustCompile(`\b[A-Za-z0-9][A-Za-z0-9._-]{2,}\b`)
	digitPattern       = regexp.MustCompile(`\d`)
)

var tileStopwords = map[string]struct{}{
	"add": {}, "view": {}, "sale": {}, "price": {}, "cart": {},
	"colour": {}, "color": {}, "size": {},
}

const maxTileScan = 500

// CandidateIdentifiers extracts product identifiers from a listing page that
// does not link products directly: JSON-LD skus, data attributes, visible
// SKU/Code labels, and a token scan over product tiles.
func CandidateIdentifiers(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, id := range linkedDataIdentifiers(doc) {
		add(id)
	}

	for _, attr := range []string{"data-sku", "data-code", "data-product-code", "data-product", "data-id"} {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			v, _ := s.Attr(attr)
			add(v)
		})
	}

	doc.Find(".sku, .code, .product-code, .product_sku, [class*='sku'], [class*='code']").Each(func(_ int, s *goquery.Selection) {
		if m := labeledCodePattern.FindStringSubmatch(s.Text()); m != nil {
			add(m[1])
		}
	})

	doc.Find(".product, .product-item, .product-tile, li, .grid-item").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxTileScan {
			return false
		}
		for _, tok := range tileTokenPattern.FindAllString(s.Text(), -1) {
			if len(tok) < 3 || len(tok) > 40 {
				continue
			}
			if _, stop := tileStopwords[strings.ToLower(tok)]; stop {
				continue
			}
			if !digitPattern.MatchString(tok) {
				continue
			}
			add(tok)
		}
		return true
	})

	return ids, nil
}

func linkedDataIdentifiers(doc *goquery.Document) []string {
	var ids []string
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		blocks, ok := raw.([]any)
		if !ok {
			blocks = []any{raw}
		}
		for _, b := range blocks {
			d, ok := b.(map[string]any)
			if !ok {
				continue
			}
			switch d["@type"] {
			case "Product", "Offer":
				if sku := skuString(d["sku"]); sku != "" {
					ids = append(ids, sku)
				}
				if offered, ok := d["itemOffered"].(map[string]any); ok {
					if sku := skuString(offered["sku"]); sku != "" {
						ids = append(ids, sku)
					}
				}
			case "ItemList":
				items, _ := d["itemListElement"].([]any)
				for _, it := range items {
					m, ok := it.(map[string]any)
					if !ok {
						continue
					}
					if item, ok := m["item"].(map[string]any); ok {
						if sku := skuString(item["sku"]); sku != "" {
							ids = append(ids, sku)
						}
					}
				}
			}
		}
	})
	return ids
}

func skuString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(strings.TrimSuffix(fmt.Sprintf("%v", t), ".0"))
	}
	return ""
}
