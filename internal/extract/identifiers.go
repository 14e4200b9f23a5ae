package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/storefront-tools/skuscraper/internal/profile"
)

var (
	labeledIDPattern  = regexp.MustCompile(`(?i)(?:SKU\s*[:#-]?\s*)?([A-Za-z0-9._-]{3,})`)
	strictSKUPattern  = regexp.MustCompile(`(?i)SKU\s*[:#-]?\s*([A-Za-z0-9._-]{3,})`)
	productPathIDPatt = regexp.MustCompile(`/p/([^/?#]+)/?`)
)

// bestIdentifier derives the single best product identifier from a document.
// Cascade: JSON-LD Product sku, profile selector, profile script pattern,
// generic sku microdata, visible "SKU:" labels, the /p/ URL segment, and
// finally Shopify analytics or state scripts.
func bestIdentifier(doc *goquery.Document, scripts []string, blocks []linkedData, p *profile.Profile, pageURL string) string {
	for _, d := range blocks {
		if d.isType("Product") {
			if sku := strings.TrimSpace(d.stringField("sku")); sku != "" {
				return sku
			}
		}
	}

	if p != nil {
		for _, sel := range p.IdentifierSelectors {
			el := doc.Find(sel).First()
			if el.Length() == 0 {
				continue
			}
			txt := strings.TrimSpace(el.Text())
			if txt == "" {
				txt, _ = el.Attr("content")
			}
			if txt == "" {
				continue
			}
			if m := labeledIDPattern.FindStringSubmatch(txt); m != nil {
				return m[1]
			}
			return strings.TrimSpace(txt)
		}
		if p.IdentifierScriptPattern != nil {
			for _, s := range scripts {
				if m := p.IdentifierScriptPattern.FindStringSubmatch(s); m != nil {
					return strings.TrimSpace(m[1])
				}
			}
		}
	}

	el := doc.Find("[itemprop='sku'], meta[itemprop='sku']").First()
	if el.Length() > 0 {
		if txt := strings.TrimSpace(el.Text()); txt != "" {
			return txt
		}
		if content, ok := el.Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}

	for _, sel := range []string{".product-sku", "#sku", ".sku"} {
		t := strings.TrimSpace(doc.Find(sel).First().Text())
		if t == "" {
			continue
		}
		if m := strictSKUPattern.FindStringSubmatch(t); m != nil {
			return m[1]
		}
	}

	if pageURL != "" {
		if m := productPathIDPatt.FindStringSubmatch(pageURL); m != nil {
			return m[1]
		}
	}

	for _, s := range scripts {
		if strings.Contains(s, "ShopifyAnalytics") || strings.Contains(s, "var meta =") {
			if m := analyticsSKUPattern.FindStringSubmatch(s); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// allIdentifiers collects the full set of identifiers present anywhere in
// the document. The set feeds catalog cross-referencing; it never overrides
// the best identifier.
func allIdentifiers(doc *goquery.Document, scripts []string, blocks []linkedData, p *profile.Profile) []string {
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

	for _, v := range metaVariants(scripts) {
		add(v.SKU)
	}
	for _, id := range analyticsIdentifiers(scripts) {
		add(id)
	}
	for _, id := range linkedDataIdentifiers(blocks) {
		add(id)
	}
	add(bestIdentifier(doc, scripts, blocks, p, ""))

	return ids
}
