package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// variantIdentity is the storefront variant/group identity of a document.
type variantIdentity struct {
	GroupID    string
	VariantID  string
	SiblingIDs []string
}

// collectVariantIdentity reads variant and group ids in priority order:
// pixel product_viewed payloads (most current, report the variant in view),
// the inline catalog-state script (authoritative sibling list), then JSON-LD
// (group id only). When a target identifier is supplied, a script-reported
// variant is accepted only if its own identifier matches case-insensitively,
// or no identifier-bearing alternative exists.
func collectVariantIdentity(doc *goquery.Document, scripts []string, blocks []linkedData, targetID string) variantIdentity {
	var id variantIdentity
	target := strings.ToLower(strings.TrimSpace(targetID))

	for _, tv := range trackedVariants(doc) {
		if tv.GroupID != "" {
			id.GroupID = tv.GroupID
		}
		if tv.VariantID == "" {
			continue
		}
		reported := strings.ToLower(tv.Identifier)
		if target == "" || reported == target || id.VariantID == "" {
			id.VariantID = tv.VariantID
		}
		if id.VariantID == tv.VariantID && !contains(id.SiblingIDs, tv.VariantID) {
			id.SiblingIDs = append(id.SiblingIDs, tv.VariantID)
		}
	}

	if id.GroupID == "" {
		if gid := metaGroupID(scripts); gid != "" {
			id.GroupID = gid
		}
	}
	for _, v := range metaVariants(scripts) {
		vid := v.ID.String()
		if vid == "" {
			continue
		}
		if !contains(id.SiblingIDs, vid) {
			id.SiblingIDs = append(id.SiblingIDs, vid)
		}
		if target != "" && strings.ToLower(strings.TrimSpace(v.SKU)) == target {
			id.VariantID = vid
		}
	}

	if id.GroupID == "" {
		id.GroupID = linkedDataGroupID(blocks)
	}
	return id
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
