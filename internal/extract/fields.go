package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/storefront-tools/skuscraper/internal/profile"
)

// extractPrice walks the price cascade: profile script pattern, "var item"
// payload, JSON-LD offers, profile selectors, then a raw numeric text scan.
func extractPrice(doc *goquery.Document, scripts []string, blocks []linkedData, p *profile.Profile) *float64 {
	if p.PriceScriptPattern != nil {
		for _, s := range scripts {
			if m := p.PriceScriptPattern.FindStringSubmatch(s); m != nil {
				if v := CleanAmount(m[1]); v != nil {
					return v
				}
			}
		}
	}

	if raw := itemScriptField(scripts, itemPricePattern); raw != "" {
		if v := CleanAmount(raw); v != nil {
			return v
		}
	}
	if raw := itemScriptField(scripts, itemValuePattern); raw != "" {
		if v := CleanAmount(raw); v != nil {
			return v
		}
	}

	if v := linkedDataPrice(blocks); v != nil {
		return v
	}

	for _, sel := range p.PriceSelectors {
		if v := CleanAmount(selectorValue(doc, sel)); v != nil {
			return v
		}
	}

	if raw := firstAmountText(doc, p.AmountPattern); raw != "" {
		return CleanAmount(raw)
	}
	return nil
}

// extractComparePrice reads the compare-at (RRP) price: "var item" payload
// first, then profile selectors.
func extractComparePrice(doc *goquery.Document, scripts []string, p *profile.Profile) *float64 {
	if raw := itemScriptField(scripts, itemComparePattern); raw != "" {
		if v := CleanAmount(raw); v != nil && *v > 0 {
			return v
		}
	}
	for _, sel := range p.CompareSelectors {
		if v := CleanAmount(selectorValue(doc, sel)); v != nil {
			return v
		}
	}
	return nil
}

// extractName reads the product name: "var item" payload, profile selectors,
// first heading, then the URL slug of the document's canonical URL.
func extractName(doc *goquery.Document, scripts []string, p *profile.Profile) string {
	if name := itemScriptField(scripts, itemNamePattern); name != "" {
		return name
	}
	for _, sel := range p.NameSelectors {
		if v := selectorValue(doc, sel); v != "" {
			return v
		}
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return slugToName(documentURL(doc))
}

var (
	percentPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	percentOffPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)%\s*OFF`)
)

var badgeClassFragments = []string{
	"c-badge__item--percentage-off", "percentage-off", "discount-badge",
	"sale-badge", "badge--sale", "product-badge",
}

// extractDiscountBadge reads a percentage from a sale-badge element. Profile
// selectors are tried first; the generic badge-class scan skips elements
// inside navigation or breadcrumb containers to avoid false positives, and a
// final pass looks for "% OFF" text within the main product area.
func extractDiscountBadge(doc *goquery.Document, p *profile.Profile) *float64 {
	for _, sel := range p.DiscountSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if v := parsePercent(el.Text()); v != nil {
			return v
		}
	}

	var found *float64
	for _, frag := range badgeClassFragments {
		doc.Find("[class*='" + frag + "']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if insideNavigation(s) {
				return true
			}
			if v := parsePercent(s.Text()); v != nil {
				found = v
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}

	area := doc.Find("main, article").First()
	if area.Length() == 0 {
		area = doc.Find("[class*='product'], [class*='item']").First()
	}
	if area.Length() == 0 {
		area = doc.Find("body").First()
	}
	if m := percentOffPattern.FindStringSubmatch(area.Text()); m != nil {
		return CleanAmount(m[1])
	}
	return nil
}

func parsePercent(text string) *float64 {
	m := percentPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil
	}
	return CleanAmount(m[1])
}

func insideNavigation(s *goquery.Selection) bool {
	if s.Closest("nav").Length() > 0 {
		return true
	}
	return s.ParentsFiltered("[class*='breadcrumb'], [class*='navigation']").Length() > 0
}

// selectorValue returns the content attribute or trimmed text of the first
// element matching sel.
func selectorValue(doc *goquery.Document, sel string) string {
	el := doc.Find(sel).First()
	if el.Length() == 0 {
		return ""
	}
	if content, ok := el.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(el.Text())
}

// firstAmountText finds the first leaf element outside scripts whose own
// text contains a numeric token. Last-resort price source.
func firstAmountText(doc *goquery.Document, pattern *regexp.Regexp) string {
	if pattern == nil {
		return ""
	}
	var found string
	doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Is("script, style, noscript") {
			return true
		}
		own := strings.TrimSpace(s.Contents().Not("*").Text())
		if own != "" && pattern.MatchString(own) {
			found = own
			return false
		}
		return true
	})
	return found
}

// documentURL returns the page's own canonical URL, preferring the canonical
// link over og:url.
func documentURL(doc *goquery.Document) string {
	if href, ok := doc.Find("link[rel='canonical']").Attr("href"); ok && href != "" {
		return href
	}
	if u, ok := doc.Find("meta[property='og:url']").Attr("content"); ok {
		return u
	}
	return ""
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// slugToName converts the last path segment of a URL into a display name.
func slugToName(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	seg := path[strings.LastIndex(path, "/")+1:]
	if seg == "" {
		return ""
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(seg, " "))
}
