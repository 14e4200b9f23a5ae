package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/storefront-tools/skuscraper/internal/profile"
	"github.com/storefront-tools/skuscraper/internal/scrape"
)

const maxImages = 5

// collectImages gathers product images from every source: all profile
// selector hits, the Shopify state image array, JSON-LD image lists, and the
// og:image fallback. URLs are normalized, share/vector assets filtered, and
// duplicates removed on the query-stripped URL preserving first-seen order.
func collectImages(doc *goquery.Document, scripts []string, blocks []linkedData, p *profile.Profile, origin string) []string {
	var raw []string

	for _, sel := range p.ImageSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if u := imageAttr(s); u != "" {
				raw = append(raw, u)
			}
		})
	}

	raw = append(raw, metaImages(scripts)...)
	if len(raw) == 0 {
		if u := itemScriptField(scripts, itemImagePattern); u != "" {
			raw = append(raw, u)
		}
	}

	raw = append(raw, linkedDataImages(blocks)...)

	if u, ok := doc.Find("meta[property='og:image']").Attr("content"); ok && u != "" {
		raw = append(raw, u)
	}

	seen := make(map[string]struct{}, len(raw))
	var images []string
	for _, r := range raw {
		u := normalizeImageURL(r, origin)
		if u == "" || isShareImage(u) {
			continue
		}
		key := scrape.StripQuery(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		images = append(images, u)
		if len(images) == maxImages {
			break
		}
	}
	return images
}

func imageAttr(s *goquery.Selection) string {
	for _, attr := range []string{"content", "src", "href", "data-src"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// normalizeImageURL makes an image URL absolute and https. Protocol-relative
// URLs gain https, root-relative ones are prefixed with the document origin.
func normalizeImageURL(raw, origin string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "http:") {
		return "https:" + strings.TrimPrefix(raw, "http:")
	}
	if strings.HasPrefix(raw, "/") && origin != "" {
		return origin + raw
	}
	return raw
}

// isShareImage filters vector assets and social-share imagery out of the
// gallery.
func isShareImage(u string) bool {
	low := strings.ToLower(u)
	if strings.Contains(low, ".svg") {
		return true
	}
	if strings.Contains(low, "social-share") {
		return true
	}
	return strings.Contains(low, "social") && strings.Contains(low, "share")
}
