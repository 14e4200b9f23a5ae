package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/storefront-tools/skuscraper/internal/profile"
)

var genericBreadcrumbSelectors = []string{
	"nav.breadcrumb a", ".breadcrumb a", ".woocommerce-breadcrumb a",
	"ol.breadcrumb li a", "ul.breadcrumb li a", "nav[aria-label='breadcrumb'] a",
}

// collectBreadcrumbs returns the ordered breadcrumb trail. Sources in
// priority order: the "var item" Categories array, JSON-LD BreadcrumbList,
// list-item microdata, then profile and generic selector lists.
func collectBreadcrumbs(doc *goquery.Document, scripts []string, blocks []linkedData, p *profile.Profile) []string {
	if cats := itemScriptCategories(scripts); len(cats) > 0 {
		return cats
	}
	if names := linkedDataBreadcrumbs(blocks); len(names) > 0 {
		return names
	}

	var micro []string
	doc.Find("[itemprop='itemListElement'][itemscope][itemtype*='ListItem']").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Find("[itemprop='item']").First().Text()); t != "" {
			micro = append(micro, t)
		}
	})
	if len(micro) > 0 {
		return micro
	}

	for _, sel := range p.BreadcrumbSelectors {
		if names := linkTexts(doc, sel); len(names) > 0 {
			return names
		}
	}
	for _, sel := range genericBreadcrumbSelectors {
		if names := linkTexts(doc, sel); len(names) > 0 {
			return names
		}
	}
	return nil
}

func linkTexts(doc *goquery.Document, sel string) []string {
	var names []string
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			names = append(names, t)
		}
	})
	return names
}

// categoryFromTrail picks the category from a breadcrumb trail: the
// second-to-last crumb, or the last when the trail has a single entry.
func categoryFromTrail(trail []string) string {
	switch {
	case len(trail) >= 2:
		return trail[len(trail)-2]
	case len(trail) == 1:
		return trail[0]
	}
	return ""
}
