package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/storefront-tools/skuscraper/internal/batch"
	"github.com/storefront-tools/skuscraper/internal/pipeline"
	"github.com/storefront-tools/skuscraper/internal/profile"
	"github.com/storefront-tools/skuscraper/internal/scrape"
)

type scrapeBatchRequest struct {
	Items       []scrape.Request `json:"items"`
	Origin      string           `json:"origin"`
	Family      string           `json:"family"`
	URLTemplate string           `json:"url_template"`
	Fast        bool             `json:"fast"`
}

type scrapeListingRequest struct {
	URL      string `json:"url"`
	Origin   string `json:"origin"`
	Family   string `json:"family"`
	Fast     bool   `json:"fast"`
	MaxItems int    `json:"max_items"`
}

type scrapeResponse struct {
	Results []scrape.Result `json:"results"`
	Failed  int             `json:"failed"`
}

type catalogRequest struct {
	Origin string `json:"origin"`
}

func (s *Server) scrapeBatch(w http.ResponseWriter, r *http.Request) {
	var req scrapeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	family, err := profile.ParseFamily(req.Family)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items := batch.Normalize(req.Items)
	if len(items) == 0 {
		s.writeError(w, http.StatusBadRequest, "no scrapeable items")
		return
	}
	if req.Origin != "" {
		if normalized, err := scrape.NormalizeURL(req.Origin); err == nil {
			if o := scrape.Origin(normalized); o != "" {
				req.Origin = o
			}
		}
	}

	opts := s.pipelineOptions(family, req.Origin, req.URLTemplate, req.Fast)
	results := s.pipeline.Run(r.Context(), items, s.snapshot(req.Origin), opts)
	s.writeJSON(w, http.StatusOK, scrapeResponse{Results: results, Failed: countFailed(results)})
}

func (s *Server) scrapeListing(w http.ResponseWriter, r *http.Request) {
	var req scrapeListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "missing listing url")
		return
	}
	family, err := profile.ParseFamily(req.Family)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	origin := req.Origin
	if origin == "" {
		origin = scrape.Origin(req.URL)
	}

	opts := s.pipelineOptions(family, origin, "", req.Fast)
	opts.MaxItems = req.MaxItems
	results, err := s.pipeline.ScrapeListing(r.Context(), req.URL, s.snapshot(origin), opts)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, scrapeResponse{Results: results, Failed: countFailed(results)})
}

func (s *Server) buildCatalog(w http.ResponseWriter, r *http.Request) {
	var req catalogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Origin == "" {
		s.writeError(w, http.StatusBadRequest, "missing origin")
		return
	}
	normalized, err := scrape.NormalizeURL(req.Origin)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid origin")
		return
	}
	origin := scrape.Origin(normalized)
	if origin == "" {
		s.writeError(w, http.StatusBadRequest, "invalid origin")
		return
	}

	snap, err := s.indexer.Build(r.Context(), origin)
	if snap != nil && snap.Len() > 0 {
		s.storeSnapshot(origin, snap)
	}
	if err != nil {
		s.logger.Warn("catalog build incomplete",
			zap.String("origin", origin),
			zap.Int("variants", snap.Len()),
			zap.Error(err),
		)
		s.writeJSON(w, http.StatusOK, map[string]any{
			"origin":   origin,
			"variants": snap.Len(),
			"partial":  true,
			"error":    err.Error(),
		})
		return
	}
	if snap.Len() == 0 {
		// An empty feed never caches; items for this origin keep using the
		// direct fetch path.
		s.writeJSON(w, http.StatusOK, map[string]any{
			"origin":   origin,
			"variants": 0,
			"error":    scrape.ErrCatalogUnavailable.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"origin":   origin,
		"variants": snap.Len(),
	})
}

func (s *Server) invalidateCatalog(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	if origin == "" {
		s.writeError(w, http.StatusBadRequest, "missing origin")
		return
	}
	if normalized, err := scrape.NormalizeURL(origin); err == nil {
		origin = scrape.Origin(normalized)
	}
	if !s.dropSnapshot(origin) {
		s.writeError(w, http.StatusNotFound, "no snapshot for origin")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"origin": origin, "status": "invalidated"})
}

func (s *Server) pipelineOptions(family profile.Family, origin, template string, fast bool) pipeline.Options {
	return pipeline.Options{
		Family:       family,
		Origin:       origin,
		URLTemplate:  template,
		Concurrency:  s.cfg.Scrape.Concurrency,
		Fast:         fast,
		FetchTimeout: s.cfg.FetchTimeout(),
		ParseTimeout: s.cfg.ParseTimeout(),
	}
}

func countFailed(results []scrape.Result) int {
	failed := 0
	for i := range results {
		if results[i].Error != "" {
			failed++
		}
	}
	return failed
}
