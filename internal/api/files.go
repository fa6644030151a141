package api

import (
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"healthcare-call-insights/internal/config"
	"healthcare-call-insights/internal/files"
)

func (s *Server) browse(w http.ResponseWriter, r *http.Request) {
	tree, err := s.files.Tree(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, badRequest("multipart field \"file\" is required: "+err.Error()))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !files.AudioExtensions[ext] {
		allowed := make([]string, 0, len(files.AudioExtensions))
		for e := range files.AudioExtensions {
			allowed = append(allowed, e)
		}
		sort.Strings(allowed)
		s.writeError(w, r, badRequest("invalid file type. Allowed: "+strings.Join(allowed, ", ")))
		return
	}

	rel, err := s.files.Save(r.URL.Query().Get("folder_path"), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "File uploaded successfully",
		"path":     rel,
		"filename": header.Filename,
	})
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if err := s.files.Delete(rel); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully", "path": rel})
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rel, err := s.files.CreateFolder(q.Get("path"), q.Get("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Folder created successfully", "path": rel})
}
