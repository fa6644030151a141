package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-call-insights/internal/types"
)

// fakeSolr is a minimal in-memory collections API.
type fakeSolr struct {
	mu          sync.Mutex
	collections []string
	docs        []map[string]any
	autoFields  bool
	selects     []string
	t           *testing.T
}

func (f *fakeSolr) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(f.t, "Bearer tok", r.Header.Get("Authorization"))
	assert.Equal(f.t, "json", r.URL.Query().Get("wt"))
	q := r.URL.Query()

	switch {
	case r.URL.Path == "/solr/admin/collections" && q.Get("action") == "LIST":
		_ = json.NewEncoder(w).Encode(map[string]any{"collections": f.collections})
	case r.URL.Path == "/solr/admin/collections" && q.Get("action") == "CREATE":
		assert.Equal(f.t, "1", q.Get("numShards"))
		f.collections = append(f.collections, q.Get("name"))
		_, _ = w.Write([]byte(`{}`))
	case r.URL.Path == "/solr/calls/config":
		var body map[string]map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.autoFields = body["set-user-property"]["update.autoCreateFields"] == "true"
		_, _ = w.Write([]byte(`{}`))
	case r.URL.Path == "/solr/calls/update/json/docs":
		assert.Equal(f.t, "true", q.Get("commit"))
		var doc map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&doc))
		f.docs = append(f.docs, doc)
		_, _ = w.Write([]byte(`{}`))
	case r.URL.Path == "/solr/calls/select":
		f.selects = append(f.selects, r.URL.RawQuery)
		f.selectResp(w, q)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeSolr) selectResp(w http.ResponseWriter, q map[string][]string) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	resp := map[string]any{"response": map[string]any{"numFound": len(f.docs), "start": 0, "docs": []any{}}}
	switch {
	case get("facet") == "true":
		field := get("facet.field")
		resp["facet_counts"] = map[string]any{"facet_fields": map[string]any{field: []any{"low", 3, "high", 1}}}
	case get("stats") == "true":
		resp["stats"] = map[string]any{"stats_fields": map[string]any{get("stats.field"): map[string]any{"min": 1, "max": 9}}}
	case get("fl") != "":
		field := get("fl")
		resp["response"] = map[string]any{"numFound": 3, "start": 0, "docs": []any{
			map[string]any{field: []any{"Metformin", "Lisinopril"}},
			map[string]any{field: []any{"Lisinopril", "Aspirin"}},
			map[string]any{field: "Aspirin"},
		}}
	case get("rows") != "0":
		resp["response"] = map[string]any{"numFound": len(f.docs), "start": 0, "docs": f.docs}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newFake(t *testing.T, collections ...string) (*fakeSolr, *Client) {
	f := &fakeSolr{t: t, collections: collections}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c := New(Config{Enabled: true, BaseURL: srv.URL + "/solr/", Collection: "calls", Token: "tok", Timeout: 2 * time.Second}, nil, nil)
	return f, c
}

func snapshot() *types.Snapshot {
	return &types.Snapshot{
		FilePath:  "clinic/day one/visit.wav",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		HealthcareInsights: types.InsightRecord{
			CallType:    types.CallTypeClinical,
			Medications: []types.Medication{{Name: "Metformin"}},
		},
	}
}

func TestDocumentID(t *testing.T) {
	id := DocumentID("clinic/day one/visit.wav", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, "clinic_day_one_visit.wav_2026-03-01T09:00:00Z", id)
}

func TestIndexCreatesCollectionOnce(t *testing.T) {
	f, c := newFake(t)

	res, err := c.Index(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, "calls", res.Collection)
	assert.Equal(t, "clinic_day_one_visit.wav_2026-03-01T09:00:00Z", res.DocumentID)

	_, err = c.Index(context.Background(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, []string{"calls"}, f.collections)
	assert.True(t, f.autoFields)
	require.Len(t, f.docs, 2)
	assert.Equal(t, res.DocumentID, f.docs[0]["id"])
	insights := f.docs[0]["healthcare_insights"].(map[string]any)
	assert.Equal(t, "clinical", insights["call_type"])
}

func TestIndexDisabled(t *testing.T) {
	c := New(Config{Enabled: false}, nil, nil)
	_, err := c.Index(context.Background(), snapshot())
	assert.ErrorIs(t, err, types.ErrNotConfigured)
	assert.Equal(t, "disabled", c.CheckConnection(context.Background()).Status)
}

func TestQueryEmptyCollectionShortCircuits(t *testing.T) {
	f, c := newFake(t, "calls")
	res, err := c.Query(context.Background(), Query{Q: "call_type:clinical"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumFound)
	assert.Empty(t, res.Docs)
	assert.NotEmpty(t, res.Message)
	assert.Len(t, f.selects, 1)
}

func TestQueryPassesFilters(t *testing.T) {
	f, c := newFake(t, "calls")
	_, err := c.Index(context.Background(), snapshot())
	require.NoError(t, err)

	res, err := c.Query(context.Background(), Query{Rows: 5, Sort: "timestamp desc", Filters: map[string]string{"b": "2", "a": "1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NumFound)
	require.Len(t, res.Docs, 1)

	last := f.selects[len(f.selects)-1]
	assert.Contains(t, last, "fq=a%3A1&fq=b%3A2")
	assert.Contains(t, last, "sort=timestamp+desc")
	assert.Contains(t, last, "rows=5")
}

func TestFacetAndStats(t *testing.T) {
	_, c := newFake(t, "calls")
	_, err := c.Index(context.Background(), snapshot())
	require.NoError(t, err)

	got, err := c.Facet(context.Background(), FieldUrgency, 5)
	require.NoError(t, err)
	assert.Equal(t, []FacetCount{{"low", 3}, {"high", 1}}, got)

	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalCalls)
	assert.Len(t, st.CallTypeDistribution, 2)

	fs, err := c.FieldStats(context.Background(), "processing_time")
	require.NoError(t, err)
	assert.Equal(t, float64(9), fs["max"])
}

func TestCategoricalFacets(t *testing.T) {
	_, c := newFake(t, "calls")
	_, err := c.Index(context.Background(), snapshot())
	require.NoError(t, err)

	got, err := c.CategoricalFacets(context.Background(), "medications", 2)
	require.NoError(t, err)
	assert.Equal(t, []FacetCount{{"Aspirin", 2}, {"Lisinopril", 2}}, got)

	_, err = c.CategoricalFacets(context.Background(), "allergies", 2)
	assert.ErrorIs(t, err, types.ErrBadRequest)
}

func TestCheckConnection(t *testing.T) {
	_, c := newFake(t, "other", "calls")
	st := c.CheckConnection(context.Background())
	assert.Equal(t, "online", st.Status)
	assert.Equal(t, 2, st.CollectionsCount)
	assert.True(t, st.CollectionExists)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(strings.Repeat("x", 10)))
	}))
	defer srv.Close()

	c := New(Config{Enabled: true, BaseURL: srv.URL, Collection: "calls", Token: "tok", Timeout: time.Second}, nil, nil)
	st := c.CheckConnection(context.Background())
	assert.Equal(t, "error", st.Status)
	assert.Equal(t, 1, calls)
}
