package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkedData is one decoded JSON-LD block. Malformed blocks are skipped;
// top-level arrays are flattened into their member objects.
type linkedData map[string]any

func decodeLinkedData(doc *goquery.Document) []linkedData {
	var blocks []linkedData
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		switch v := raw.(type) {
		case map[string]any:
			blocks = append(blocks, v)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					blocks = append(blocks, m)
				}
			}
		}
	})
	return blocks
}

func (d linkedData) isType(t string) bool {
	switch v := d["@type"].(type) {
	case string:
		return v == t
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == t {
				return true
			}
		}
	}
	return false
}

func (d linkedData) stringField(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

// linkedDataPrice returns the first offer price on a Product block.
func linkedDataPrice(blocks []linkedData) *float64 {
	for _, d := range blocks {
		if !d.isType("Product") {
			continue
		}
		switch offers := d["offers"].(type) {
		case map[string]any:
			if p := CleanAmount(anyToString(offers["price"])); p != nil {
				return p
			}
		case []any:
			for _, o := range offers {
				m, ok := o.(map[string]any)
				if !ok {
					continue
				}
				if p := CleanAmount(anyToString(m["price"])); p != nil {
					return p
				}
			}
		}
	}
	return nil
}

// linkedDataImages collects image URLs from Product and Offer blocks.
func linkedDataImages(blocks []linkedData) []string {
	var images []string
	for _, d := range blocks {
		if !d.isType("Product") && !d.isType("Offer") {
			continue
		}
		switch img := d["image"].(type) {
		case string:
			images = append(images, img)
		case []any:
			for _, i := range img {
				images = append(images, anyToString(i))
			}
		}
	}
	return images
}

// linkedDataIdentifiers collects every sku on Product blocks and their offers.
func linkedDataIdentifiers(blocks []linkedData) []string {
	var ids []string
	for _, d := range blocks {
		if !d.isType("Product") {
			continue
		}
		if sku := d.stringField("sku"); sku != "" {
			ids = append(ids, sku)
		}
		if offers, ok := d["offers"].([]any); ok {
			for _, o := range offers {
				if m, ok := o.(map[string]any); ok {
					if sku := linkedData(m).stringField("sku"); sku != "" {
						ids = append(ids, sku)
					}
				}
			}
		}
	}
	return ids
}

// linkedDataGroupID returns the productID of the first Product block.
func linkedDataGroupID(blocks []linkedData) string {
	for _, d := range blocks {
		if d.isType("Product") {
			if id := d.stringField("productID"); id != "" {
				return id
			}
		}
	}
	return ""
}

// linkedDataBreadcrumbs returns the ordered labels of the first
// BreadcrumbList block. Item entries may carry the name directly or nested
// under "item".
func linkedDataBreadcrumbs(blocks []linkedData) []string {
	for _, d := range blocks {
		if !d.isType("BreadcrumbList") {
			continue
		}
		items, ok := d["itemListElement"].([]any)
		if !ok {
			continue
		}
		var names []string
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			name := linkedData(m).stringField("name")
			if name == "" {
				if inner, ok := m["item"].(map[string]any); ok {
					name = linkedData(inner).stringField("name")
				}
			}
			if name != "" {
				names = append(names, strings.TrimSpace(name))
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	return nil
}

func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}
