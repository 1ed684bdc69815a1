package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aadjones/kent-repertory-etl/internal/fetch"
	"github.com/aadjones/kent-repertory-etl/internal/parser"
	"github.com/aadjones/kent-repertory-etl/internal/pipeline"
	"go.uber.org/zap"
)

// handleConvert parses an uploaded page and returns the canonical document.
// Nothing is stored.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	data, filename, err := s.readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, errUploadTooLarge) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		jsonError(w, "empty document", http.StatusBadRequest)
		return
	}

	markup, err := fetch.Decode(data)
	if err != nil {
		jsonError(w, "failed to decode document: "+err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	hints := pipeline.Hints{
		Section:   q.Get("section"),
		StartPage: q.Get("start_page"),
		PageInfo:  q.Get("page_info"),
	}

	res, err := s.orchestrator.Converter().Parse(filename, markup, hints)
	if err != nil {
		if errors.Is(err, parser.ErrTooDeep) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Error("convert failed", zap.String("filename", filename), zap.Error(err))
		jsonError(w, "convert failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Content-Hash", res.ContentHash)
	w.Header().Set("Content-Type", "application/json")
	_ = pipeline.EncodeChapter(w, res.Canonical)
}

var errUploadTooLarge = errors.New("upload too large")

// readUpload returns the document bytes from a multipart "file" field or,
// for any other content type, from the raw body.
func (s *Server) readUpload(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := readLimited(r.Body, s.cfg.MaxUploadBytes)
		return data, "upload.html", err
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, "", fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	data, err := readLimited(file, s.cfg.MaxUploadBytes)
	return data, sanitizeFilename(header.Filename), err
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func jsonResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonResponse(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
