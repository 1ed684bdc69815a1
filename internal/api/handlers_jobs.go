package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aadjones/kent-repertory-etl/internal/fetch"
	"github.com/aadjones/kent-repertory-etl/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// maxJobSources bounds the number of sources in one job request.
const maxJobSources = 500

type createJobRequest struct {
	Sources []string `json:"sources"`
	pipeline.Hints
}

// handleCreateJob queues a batch conversion of remote URLs or corpus
// identifiers. Local paths are refused.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Sources) == 0 {
		jsonError(w, "at least one source is required", http.StatusBadRequest)
		return
	}
	if len(req.Sources) > maxJobSources {
		jsonError(w, fmt.Sprintf("too many sources (max %d)", maxJobSources), http.StatusBadRequest)
		return
	}
	sources := make([]string, 0, len(req.Sources))
	for _, src := range req.Sources {
		src = strings.TrimSpace(src)
		if !fetch.IsRemote(src) && !fetch.IsIdentifier(src) {
			jsonError(w, fmt.Sprintf("unsupported source %q: use an http(s) URL or a file number", src), http.StatusBadRequest)
			return
		}
		sources = append(sources, src)
	}

	job := pipeline.NewJob(sources, req.Hints)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	jsonResponse(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, job.Snapshot())
}
