// Package scrape defines the core types and interfaces shared across the
// scraping subsystems: batch requests, per-item results, and the fetcher
// contract implemented by the transport layer.
package scrape

import (
	"context"
	"net/http"
	"time"
)

// Request is one item of a scrape batch. At least one of Identifier or URL
// must be set; input normalization upstream drops rows with neither.
type Request struct {
	Identifier string `json:"identifier,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Result is the output record produced for every Request. Exactly one Result
// is emitted per Request; a failed item carries whatever partial data was
// gathered plus a non-empty Error.
type Result struct {
	Identifier        string   `json:"identifier,omitempty"`
	InputURL          string   `json:"url,omitempty"`
	ProductURL        string   `json:"product_url,omitempty"`
	Name              string   `json:"name,omitempty"`
	Category          string   `json:"category,omitempty"`
	Breadcrumbs       string   `json:"breadcrumbs,omitempty"`
	Price             *float64 `json:"price,omitempty"`
	ComparePrice      *float64 `json:"compare_price,omitempty"`
	DiscountPercent   *float64 `json:"discount_percent,omitempty"`
	Images            []string `json:"images,omitempty"`
	GroupID           string   `json:"group_id,omitempty"`
	VariantID         string   `json:"variant_id,omitempty"`
	SiblingVariantIDs []string `json:"sibling_variant_ids,omitempty"`
	AllIdentifiers    []string `json:"all_identifiers,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// PrimaryImage returns the first image URL, or "" when none were extracted.
func (r *Result) PrimaryImage() string {
	if len(r.Images) == 0 {
		return ""
	}
	return r.Images[0]
}

// FetchRequest captures everything needed to fetch a document.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation. URL is
// the final URL after redirects.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves a single document. Implementations are stateless aside
// from a shared connection pool and safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Float boxes a float64 for the nullable numeric result fields.
func Float(v float64) *float64 {
	return &v
}
