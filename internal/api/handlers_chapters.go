package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aadjones/kent-repertory-etl/internal/pipeline"
	"github.com/aadjones/kent-repertory-etl/internal/store"
	"github.com/go-chi/chi/v5"
)

type chapterSummary struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Section      string    `json:"section"`
	PagesCovered string    `json:"pages_covered,omitempty"`
	ContentHash  string    `json:"content_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// handleListChapters lists stored chapters without their contents.
func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.store.ListChapters(r.Context())
	if err != nil {
		jsonError(w, "failed to list chapters: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]chapterSummary, 0, len(chapters))
	for _, c := range chapters {
		out = append(out, chapterSummary{
			ID:           c.ID,
			Title:        c.Title,
			Section:      c.Section,
			PagesCovered: c.PagesCovered,
			ContentHash:  c.ContentHash,
			CreatedAt:    c.CreatedAt,
		})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"chapters": out})
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := chapterID(w, r)
	if !ok {
		return
	}
	doc, err := s.store.LoadDocument(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "chapter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to load chapter: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = pipeline.EncodeChapter(w, doc)
}

// handleDeleteChapter deletes a chapter and all its records.
func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := chapterID(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteChapter(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "chapter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to delete chapter: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"deleted": id})
}

func chapterID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil || n == 0 {
		jsonError(w, "invalid chapter id", http.StatusBadRequest)
		return 0, false
	}
	return uint(n), true
}
