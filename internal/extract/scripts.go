package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Inline script sources, in cascade priority order: the interaction-tracking
// "var item" payload, the Shopify "var meta" catalog state, pixel
// "data-events" attributes, and ShopifyAnalytics identifiers.

var (
	itemPricePattern     = regexp.MustCompile(`Price\s*:\s*"([^"]+)"`)
	itemValuePattern     = regexp.MustCompile(`Value\s*:\s*"([^"]+)"`)
	itemComparePattern   = regexp.MustCompile(`CompareAtPrice\s*:\s*"([^"]+)"`)
	itemImagePattern     = regexp.MustCompile(`ImageURL\s*:\s*"([^"]+)"`)
	itemNamePattern      = regexp.MustCompile(`Name\s*:\s*"([^"]+)"`)
	itemCategoryPattern  = regexp.MustCompile(`(?s)Categories\s*:\s*\[(.*?)\]`)
	quotedStringPattern  = regexp.MustCompile(`"([^"]+)"`)
	metaImagesPattern    = regexp.MustCompile(`(?s)"images"\s*:\s*(\[.*?\])`)
	metaVariantsPattern  = regexp.MustCompile(`(?s)"variants"\s*:\s*(\[.*?\])`)
	metaProductIDPattern = regexp.MustCompile(`"product"\s*:\s*\{[^}]*"id"\s*:\s*(\d+)`)
	analyticsSKUPattern  = regexp.MustCompile(`"sku"\s*:\s*"([^"]+)"`)
)

// inlineScripts returns the text of every inline <script> block.
func inlineScripts(doc *goquery.Document) []string {
	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); text != "" {
			scripts = append(scripts, text)
		}
	})
	return scripts
}

// itemScript returns the first script containing the "var item" payload.
func itemScript(scripts []string) (string, bool) {
	for _, s := range scripts {
		if strings.Contains(s, "var item") {
			return s, true
		}
	}
	return "", false
}

// metaScript returns the first script containing the "var meta =" state.
func metaScript(scripts []string) (string, bool) {
	for _, s := range scripts {
		if strings.Contains(s, "var meta =") {
			return s, true
		}
	}
	return "", false
}

func itemScriptField(scripts []string, pattern *regexp.Regexp) string {
	s, ok := itemScript(scripts)
	if !ok {
		return ""
	}
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// itemScriptCategories parses the Categories array of the "var item" payload.
func itemScriptCategories(scripts []string) []string {
	s, ok := itemScript(scripts)
	if !ok {
		return nil
	}
	m := itemCategoryPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	var names []string
	for _, q := range quotedStringPattern.FindAllStringSubmatch(m[1], -1) {
		if c := strings.TrimSpace(q[1]); c != "" {
			names = append(names, c)
		}
	}
	return names
}

// metaImages parses the "images" array out of the Shopify state script.
func metaImages(scripts []string) []string {
	s, ok := metaScript(scripts)
	if !ok {
		return nil
	}
	m := metaImagesPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	var raw []any
	if err := json.Unmarshal([]byte(m[1]), &raw); err != nil {
		return nil
	}
	var images []string
	for _, v := range raw {
		if u, ok := v.(string); ok {
			images = append(images, u)
		}
	}
	return images
}

// metaVariant is one entry of the Shopify state variants array.
type metaVariant struct {
	ID  json.Number `json:"id"`
	SKU string      `json:"sku"`
}

// metaVariants parses the variants array out of the Shopify state script.
func metaVariants(scripts []string) []metaVariant {
	s, ok := metaScript(scripts)
	if !ok {
		return nil
	}
	m := metaVariantsPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	var variants []metaVariant
	if err := json.Unmarshal([]byte(m[1]), &variants); err != nil {
		return nil
	}
	return variants
}

// metaGroupID parses the product id out of the Shopify state script.
func metaGroupID(scripts []string) string {
	s, ok := metaScript(scripts)
	if !ok {
		return ""
	}
	m := metaProductIDPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// analyticsIdentifiers collects every "sku" reported by ShopifyAnalytics
// payloads.
func analyticsIdentifiers(scripts []string) []string {
	var ids []string
	for _, s := range scripts {
		if !strings.Contains(s, "ShopifyAnalytics") {
			continue
		}
		for _, m := range analyticsSKUPattern.FindAllStringSubmatch(s, -1) {
			if id := strings.TrimSpace(m[1]); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// trackedVariant is the product_viewed payload carried by pixel scripts in
// their data-events attribute. It reports the variant currently in view.
type trackedVariant struct {
	VariantID  string
	Identifier string
	GroupID    string
}

type productViewedData struct {
	ProductVariant struct {
		ID      json.Number `json:"id"`
		SKU     string      `json:"sku"`
		Product struct {
			ID json.Number `json:"id"`
		} `json:"product"`
	} `json:"productVariant"`
}

// trackedVariants decodes every product_viewed event found in script
// data-events attributes, in document order.
func trackedVariants(doc *goquery.Document) []trackedVariant {
	var out []trackedVariant
	doc.Find("script[data-events]").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("data-events")
		if !ok || raw == "" {
			return
		}
		var events []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			return
		}
		for _, evt := range events {
			var pair []json.RawMessage
			if err := json.Unmarshal(evt, &pair); err != nil || len(pair) < 2 {
				continue
			}
			var name string
			if err := json.Unmarshal(pair[0], &name); err != nil || name != "product_viewed" {
				continue
			}
			var data productViewedData
			if err := json.Unmarshal(pair[1], &data); err != nil {
				continue
			}
			out = append(out, trackedVariant{
				VariantID:  data.ProductVariant.ID.String(),
				Identifier: strings.TrimSpace(data.ProductVariant.SKU),
				GroupID:    data.ProductVariant.Product.ID.String(),
			})
		}
	})
	return out
}
