// Package profile holds the immutable selector and pattern bundles for the
// supported storefront families. One profile is chosen per batch, or per
// document in auto-detect mode.
package profile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Family discriminates the supported storefront template families.
type Family string

// Supported families. FamilyAuto defers the choice to Detect per document.
const (
	FamilyAuto        Family = "auto"
	FamilyNeto        Family = "neto"
	FamilyShopify     Family = "shopify"
	FamilyWooCommerce Family = "woocommerce"
)

// ParseFamily maps a caller-supplied family name onto a Family value.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyAuto, "":
		return FamilyAuto, nil
	case FamilyNeto:
		return FamilyNeto, nil
	case FamilyShopify:
		return FamilyShopify, nil
	case FamilyWooCommerce, "woo":
		return FamilyWooCommerce, nil
	}
	return "", fmt.Errorf("unknown storefront family %q", s)
}

// Profile bundles the selectors and embedded-script patterns for one family.
// Selector lists are ordered; extraction walks each list and stops at the
// first selector that matches any element. Profiles are package-level
// constants in spirit: never mutate one after construction.
type Profile struct {
	Family Family

	NameSelectors       []string
	PriceSelectors      []string
	CompareSelectors    []string
	ImageSelectors      []string
	DiscountSelectors   []string
	BreadcrumbSelectors []string
	IdentifierSelectors []string

	// Script patterns applied to inline <script> contents. These outrank
	// every other source because they encode the live rendering data model.
	IdentifierScriptPattern *regexp.Regexp
	PriceScriptPattern      *regexp.Regexp

	// AmountPattern is the last-resort numeric text scan for prices.
	AmountPattern *regexp.Regexp

	// ProductLinkSelectors drive link discovery on listing pages.
	ProductLinkSelectors []string

	// ProductPathHint marks URL paths that look like product pages for this
	// family ("" means use the generic heuristics only).
	ProductPathHint string

	// URLTemplate is the family's direct product URL shape relative to an
	// origin, with {sku} as the placeholder. Empty when the family has no
	// inferable shape.
	URLTemplate string

	// SearchPath is the family's native search endpoint used when no direct
	// URL shape applies. Empty disables search fallback.
	SearchPath string
}

var defaultAmountPattern = regexp.MustCompile(`[\d.,]+`)

var neto = &Profile{
	Family: FamilyNeto,
	NameSelectors: []string{
		"h1[itemprop='name']", ".product-title", ".product_title",
		"meta[property='og:title']", "meta[name='twitter:title']",
	},
	PriceSelectors: []string{
		".h1[itemprop='price']", "[itemprop='price']",
		".productpricetext", ".price .amount", ".summary .price",
		".woocommerce-Price-amount",
	},
	CompareSelectors: []string{
		".productrrp", ".rrp", ".was-price", ".price .compare", ".compare-at",
	},
	ImageSelectors: []string{
		"a[data-lightbox='product-lightbox']",
		".product-image a", "#main-image a", ".productView-image a",
		"img[itemprop='image']", "#main-image img", ".productView-image img",
		".product-image img", ".woocommerce-product-gallery__image img", ".product-gallery img",
		".product-thumbnails img", ".product-thumbnails a",
		".owl-item .thumbnail-image", ".thumb-image",
		".embed-responsive-item img", ".product-image-small",
		"meta[property='og:image']", "meta[name='twitter:image']", "link[rel='image_src']",
	},
	DiscountSelectors: []string{
		".productsave", ".mm_off", ".badge--sale", ".product__badge--save",
	},
	BreadcrumbSelectors: []string{
		"[itemprop='itemListElement'] [itemprop='item']",
		"nav.breadcrumb a", ".breadcrumb a", ".woocommerce-breadcrumb a",
		"ol.breadcrumb li a", "ul.breadcrumb li a", "nav[aria-label='breadcrumb'] a",
	},
	IdentifierSelectors: []string{
		"[itemprop='sku']", ".sku", ".product-sku", "span[itemprop='sku']",
	},
	IdentifierScriptPattern: regexp.MustCompile(`(?is)k4n\s*=\s*\{.*?sku\s*:\s*["']([^"']+)["']`),
	PriceScriptPattern:      regexp.MustCompile(`(?is)k4n\s*=\s*\{.*?price\s*:\s*["']([\d.,]+)["']`),
	AmountPattern:           defaultAmountPattern,
	ProductLinkSelectors: []string{
		"a[href*='/product/']",
		"a[href*='/p/']",
		".product a[href], .product [data-href], .product [data-url], .product [data-product-url], .product [onclick]",
		".product-item a[href], .product-item [data-href], .product-item [data-url], .product-item [data-product-url], .product-item [onclick]",
		".product-title a[href], .product-title [data-href], .product-title [data-url], .product-title [data-product-url], .product-title [onclick]",
		"h3 a[href], h4 a[href], h5 a[href]",
	},
	URLTemplate: "{origin}/p/{sku}",
}

var shopify = &Profile{
	Family: FamilyShopify,
	NameSelectors: []string{
		"h1.product__title", "h1.product-single__title", "h1.title",
		"meta[property='og:title']", "meta[name='twitter:title']",
	},
	PriceSelectors: []string{
		"meta[property='og:price:amount']", "meta[property='product:price:amount']",
		".price-item--sale", ".price-item--regular", ".product__price", ".price .amount",
		"#ProductPrice-product-template", ".product-single__price", ".current_price",
	},
	CompareSelectors: []string{
		".price__compare", ".price--compare", ".compare-at", ".product-single__price--compare-at",
		"s.price-item--regular", ".old-price", ".was_price",
	},
	ImageSelectors: []string{
		"meta[property='og:image']", "meta[name='twitter:image']",
		"img[src*='/products/'][data-src]", "img[src*='/cdn/shop/products/']",
		"img[data-gallery='gallery']",
		".product-single__photo img", ".product__media img",
		".c-product-main__media img", ".swiper-slide img",
		".c-product-main__info-thumbnails__thumbnail img", ".u-object-image",
	},
	DiscountSelectors: []string{
		".badge--sale", ".price__badge-sale", ".product-label--sale",
		".sale-label", ".product-tag--sale",
	},
	BreadcrumbSelectors: []string{
		"nav.breadcrumb a", ".breadcrumb a", ".breadcrumbs a",
	},
	AmountPattern: defaultAmountPattern,
	ProductLinkSelectors: []string{
		"a[href*='/products/']",
		".product-card a[href], .product-item a[href], .grid-product__content a[href]",
	},
	ProductPathHint: "/products/",
	SearchPath:      "/search?type=product&q={sku}",
}

var woocommerce = &Profile{
	Family: FamilyWooCommerce,
	NameSelectors: []string{
		"h1.product_title", "[itemprop='name']", "meta[property='og:title']",
	},
	PriceSelectors: []string{
		".summary .price", ".woocommerce-Price-amount",
	},
	CompareSelectors: []string{
		".price del .amount", ".price .woocommerce-Price-currencySymbol + del .amount",
	},
	ImageSelectors: []string{
		"meta[property='og:image']", "img.wp-post-image", ".woocommerce-product-gallery__image img",
	},
	DiscountSelectors: []string{
		".onsale", ".badge--sale",
	},
	BreadcrumbSelectors: []string{
		".woocommerce-breadcrumb a", "nav.breadcrumb a", ".breadcrumb a",
	},
	AmountPattern: defaultAmountPattern,
	ProductLinkSelectors: []string{
		".products a.woocommerce-LoopProduct-link",
		".product a.woocommerce-LoopProduct-link",
		".product a[href*='/product/']",
	},
	ProductPathHint: "/product/",
}

// ForFamily returns the profile for a concrete family. FamilyAuto has no
// static profile; resolve it per document with Detect.
func ForFamily(f Family) (*Profile, error) {
	switch f {
	case FamilyNeto:
		return neto, nil
	case FamilyShopify:
		return shopify, nil
	case FamilyWooCommerce:
		return woocommerce, nil
	}
	return nil, fmt.Errorf("no profile for family %q", f)
}

// Detect sniffs a document and picks the best-fitting profile. Unrecognized
// documents fall back to the Neto profile, whose selector lists double as
// the generic set.
func Detect(doc *goquery.Document) *Profile {
	if gen, ok := doc.Find("meta[name='generator']").Attr("content"); ok {
		low := strings.ToLower(gen)
		if strings.Contains(low, "neto") {
			return neto
		}
		if strings.Contains(low, "woocommerce") || strings.Contains(low, "wordpress") {
			return woocommerce
		}
	}
	if doc.Find(".productpricetext, .productrrp").Length() > 0 {
		return neto
	}
	if doc.Find("img[src*='cdn.shopify.com'], img[src*='/cdn/shop/']").Length() > 0 {
		return shopify
	}
	found := shopifyScriptMarker(doc)
	if found {
		return shopify
	}
	if doc.Find(".woocommerce-Price-amount, .woocommerce-breadcrumb").Length() > 0 {
		return woocommerce
	}
	return neto
}

func shopifyScriptMarker(doc *goquery.Document) bool {
	marker := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, "ShopifyAnalytics") || strings.Contains(text, "window.Shopify") {
			marker = true
			return false
		}
		return true
	})
	return marker
}

// ProductURL constructs a direct product URL for an identifier. An explicit
// template (with a {sku} placeholder) wins; otherwise the family shape or
// search endpoint applies. Returns "" when nothing is derivable.
func (p *Profile) ProductURL(identifier, origin, template string) string {
	if identifier == "" {
		return ""
	}
	if template != "" && strings.Contains(template, "{sku}") {
		return strings.ReplaceAll(template, "{sku}", identifier)
	}
	if p.URLTemplate != "" && origin != "" {
		u := strings.ReplaceAll(p.URLTemplate, "{origin}", strings.TrimRight(origin, "/"))
		return strings.ReplaceAll(u, "{sku}", identifier)
	}
	if p.SearchPath != "" && origin != "" {
		u := strings.TrimRight(origin, "/") + p.SearchPath
		return strings.ReplaceAll(u, "{sku}", identifier)
	}
	return ""
}
