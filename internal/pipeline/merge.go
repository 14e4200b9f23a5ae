package pipeline

import (
	"math"

	"github.com/storefront-tools/skuscraper/internal/catalog"
	"github.com/storefront-tools/skuscraper/internal/extract"
	"github.com/storefront-tools/skuscraper/internal/scrape"
)

// resultFromCatalog converts a catalog entry into a result without touching
// the product page. The discount here is rounded to a whole number, unlike
// the parsed path's two decimals; see DESIGN.md.
func resultFromCatalog(entry catalog.Entry, req scrape.Request) scrape.Result {
	res := scrape.Result{
		Identifier:        entry.Identifier,
		InputURL:          req.URL,
		ProductURL:        entry.CanonicalURL,
		Name:              entry.Name,
		Category:          entry.ProductType,
		Price:             entry.Price,
		ComparePrice:      entry.ComparePrice,
		Images:            append([]string(nil), entry.Images...),
		GroupID:           entry.GroupID,
		VariantID:         entry.VariantID,
		SiblingVariantIDs: append([]string(nil), entry.SiblingVariantIDs...),
	}
	if entry.Price != nil && entry.ComparePrice != nil && *entry.ComparePrice > *entry.Price {
		pct := math.Round((1 - *entry.Price / *entry.ComparePrice) * 100)
		res.DiscountPercent = &pct
	}
	return res
}

// mergeWithCatalog combines a parsed result with its catalog entry. The
// catalog is authoritative for identity (identifier, group, variant,
// siblings); the page is authoritative for display fields, with the catalog
// as fallback. Breadcrumbs come only from the page.
func mergeWithCatalog(parsed scrape.Result, entry catalog.Entry) scrape.Result {
	res := parsed

	res.Identifier = entry.Identifier
	if entry.GroupID != "" {
		res.GroupID = entry.GroupID
	}
	if entry.VariantID != "" {
		res.VariantID = entry.VariantID
	}
	if len(entry.SiblingVariantIDs) > 0 {
		res.SiblingVariantIDs = append([]string(nil), entry.SiblingVariantIDs...)
	}

	if res.Name == "" {
		res.Name = entry.Name
	}
	if res.Category == "" {
		res.Category = entry.ProductType
	}
	if res.Price == nil {
		res.Price = entry.Price
	}
	if res.ComparePrice == nil {
		res.ComparePrice = entry.ComparePrice
	}
	if len(res.Images) == 0 {
		res.Images = append([]string(nil), entry.Images...)
	}
	if res.ProductURL == "" {
		res.ProductURL = entry.CanonicalURL
	}
	if res.DiscountPercent == nil {
		res.DiscountPercent = extract.ComputeDiscount(res.Price, res.ComparePrice)
	}
	return res
}
