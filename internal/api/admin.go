package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"healthcare-call-insights/internal/health"
	"healthcare-call-insights/internal/search"
	"healthcare-call-insights/internal/types"
)

// healthSummary is the legacy service overview; it never probes.
func (s *Server) healthSummary(w http.ResponseWriter, _ *http.Request) {
	asr := s.collab.Health().Cached().Services[health.ASRService]
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"services": map[string]any{
			"file_manager":  "operational",
			"transcription": asr,
			"analytics":     "operational",
		},
	})
}

func (s *Server) healthStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collab.Health().Cached())
}

func (s *Server) healthRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collab.Health().CheckAll(r.Context()))
}

func (s *Server) solrStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collab.Search().CheckConnection(r.Context()))
}

func (s *Server) solrPush(w http.ResponseWriter, r *http.Request) {
	var snap types.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body: "+err.Error()))
		return
	}
	res, err := s.collab.Search().Index(r.Context(), &snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Document indexed successfully",
		"document_id": res.DocumentID,
		"collection":  res.Collection,
	})
}

// solrQuery accepts q, rows, start, sort and repeated filter=field:value.
func (s *Server) solrQuery(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	in := search.Query{Q: qs.Get("q"), Sort: qs.Get("sort"), Filters: map[string]string{}}
	if in.Sort == "" {
		in.Sort = "timestamp desc"
	}
	var err error
	if in.Rows, err = intParam(r, "rows", 20); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.Start, err = intParam(r, "start", 0); err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, f := range qs["filter"] {
		field, value, ok := strings.Cut(f, ":")
		if !ok || field == "" {
			s.writeError(w, r, badRequest(fmt.Sprintf("invalid filter %q, want field:value", f)))
			return
		}
		in.Filters[field] = value
	}

	res, err := s.collab.Search().Query(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) solrFacets(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	facets, err := s.collab.Search().Facet(r.Context(), field, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": field, "facets": facets})
}

func (s *Server) solrStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.collab.Search().Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) solrFieldStats(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	client := s.collab.Search()
	st, err := client.FieldStats(r.Context(), field)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": client.Collection(), "field": field, "stats": st})
}

func (s *Server) solrCategoricalFacets(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	facets, err := s.collab.Search().CategoricalFacets(r.Context(), category, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category, "facets": facets})
}

func (s *Server) tokenStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"auto_renewal_enabled": s.settings.Snapshot().AutoRenewTokens,
		"tokens":               s.tokens.Status(),
	})
}

func (s *Server) setupCheck(w http.ResponseWriter, _ *http.Request) {
	cfg := s.settings.Snapshot()
	items := cfg.SetupCheck()
	missing := []string{}
	for _, it := range items {
		if it.Required && !it.OK {
			missing = append(missing, it.Message)
		}
	}
	ready := len(missing) == 0
	msg := "Application is configured"
	if !ready {
		msg = "Please configure the application in Settings"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"needs_setup":   !ready,
		"is_configured": ready,
		"missing_items": missing,
		"items":         items,
		"message":       msg,
	})
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Snapshot().Public())
}

// updateSettings accepts a flat JSON object of KEY: value. Non-string values
// are written in their JSON form.
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body: "+err.Error()))
		return
	}
	updates := make(map[string]string, len(body))
	for k, v := range body {
		switch v := v.(type) {
		case string:
			updates[k] = v
		case nil:
			updates[k] = ""
		default:
			b, _ := json.Marshal(v)
			updates[k] = string(b)
		}
	}
	cfg, err := s.settings.Update(updates)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Settings updated",
		"settings": cfg.Public(),
	})
}
