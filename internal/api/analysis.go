package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"healthcare-call-insights/internal/dataset"
	"healthcare-call-insights/internal/pipeline"
)

const defaultResultsLimit = 50

type analyzeRequest struct {
	FilePath string `json:"file_path"`
}

type batchRequest struct {
	ManifestPath string `json:"manifest_path"`
	TimeoutSec   int    `json:"timeout_sec"`
	Wait         bool   `json:"wait"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body: "+err.Error()))
		return
	}
	if req.FilePath == "" {
		s.writeError(w, r, badRequest("file_path is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.settings.Snapshot().AnalysisTimeout())
	defer cancel()
	snap, err := s.proc.Analyze(ctx, req.FilePath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// analyzeBatch runs every entry of an xlsx manifest stored in the audio
// library. Without "wait" the batch runs in the background and only the
// entry count is returned.
func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body: "+err.Error()))
		return
	}
	if req.ManifestPath == "" {
		s.writeError(w, r, badRequest("manifest_path is required"))
		return
	}
	full, err := s.files.FullPath(req.ManifestPath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := dataset.LoadManifest(full, s.log)
	if err != nil {
		s.writeError(w, r, badRequest("manifest: "+err.Error()))
		return
	}
	timeout := time.Duration(req.TimeoutSec) * time.Second

	if req.Wait {
		writeJSON(w, http.StatusOK, pipeline.RunBatch(r.Context(), s.proc, entries, timeout, s.log))
		return
	}
	go pipeline.RunBatch(context.WithoutCancel(r.Context()), s.proc, entries, timeout, s.log)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message": "Batch analysis started",
		"total":   len(entries),
	})
}

// resultsLimit reads ?limit, which must be positive.
func resultsLimit(r *http.Request) (int, error) {
	limit, err := intParam(r, "limit", defaultResultsLimit)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, badRequest("limit must be positive")
	}
	return limit, nil
}

func (s *Server) recentResults(w http.ResponseWriter, r *http.Request) {
	limit, err := resultsLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.results.ListRecent(limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) exportResults(w http.ResponseWriter, r *http.Request) {
	limit, err := resultsLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.results.ListRecent(limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := dataset.ExportResults(&buf, results); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="healthcare_call_results.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) latestResult(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("file_path")
	if fp == "" {
		s.writeError(w, r, badRequest("file_path is required"))
		return
	}
	snap, err := s.results.Latest(fp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) resultVersions(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("file_path")
	if fp == "" {
		s.writeError(w, r, badRequest("file_path is required"))
		return
	}
	versions, err := s.results.ListVersions(fp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions, "count": len(versions)})
}

func (s *Server) resultVersion(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("file_path")
	if fp == "" {
		s.writeError(w, r, badRequest("file_path is required"))
		return
	}
	n, err := intParam(r, "version", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if n <= 0 {
		s.writeError(w, r, badRequest("version must be a positive integer"))
		return
	}
	snap, err := s.results.Version(fp, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
