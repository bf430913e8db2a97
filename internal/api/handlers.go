package api

import (
	"net/http"
)

// handleLatest handles GET /latest - most recent stored snapshot plus a live
// provider readout.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	result, err := s.queryService.Latest(r.Context())
	if err != nil {
		respondCategorized(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleSnapshots handles GET /snapshots?range=&resolution= - range-limited,
// resolution-aware history reads.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.queryService.Range(r.Context(), q.Get("range"), q.Get("resolution"))
	if err != nil {
		respondCategorized(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleCollect handles POST /collect - the bearer-gated ingestion trigger.
// A snapshot already present for the current hour reports skipped, not an
// error.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	result, err := s.collectService.Collect(r.Context())
	if err != nil {
		respondCategorized(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
