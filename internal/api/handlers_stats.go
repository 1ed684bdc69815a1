package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.store.Totals(r.Context())
	if err != nil {
		jsonError(w, "failed to count records: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"parse":       s.orchestrator.Stats(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"totals":      totals,
	})
}
