package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"healthcare-call-insights/internal/types"
)

type Query struct {
	Q       string
	Rows    int
	Start   int
	Sort    string
	Filters map[string]string
}

type QueryResult struct {
	NumFound int              `json:"numFound"`
	Start    int              `json:"start"`
	Docs     []map[string]any `json:"docs"`
	Message  string           `json:"message,omitempty"`
}

type selectResponse struct {
	Response struct {
		NumFound int              `json:"numFound"`
		Start    int              `json:"start"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	FacetCounts struct {
		FacetFields map[string][]any `json:"facet_fields"`
	} `json:"facet_counts"`
	Stats struct {
		StatsFields map[string]json.RawMessage `json:"stats_fields"`
	} `json:"stats"`
}

func (c *Client) selectDocs(ctx context.Context, q url.Values) (*selectResponse, error) {
	var resp selectResponse
	if err := c.getJSON(ctx, c.cfg.Collection+"/select", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// count returns the number of documents in the collection.
func (c *Client) count(ctx context.Context) (int, error) {
	resp, err := c.selectDocs(ctx, url.Values{"q": {"*:*"}, "rows": {"0"}})
	if err != nil {
		return 0, err
	}
	return resp.Response.NumFound, nil
}

// prepare checks the client is usable and the collection has documents.
func (c *Client) prepare(ctx context.Context) (empty bool, err error) {
	if !c.Enabled() {
		return false, c.notEnabled()
	}
	if err := c.ensureCollection(ctx); err != nil {
		return false, err
	}
	n, err := c.count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Query runs a select. An empty collection short-circuits with no docs.
func (c *Client) Query(ctx context.Context, in Query) (*QueryResult, error) {
	empty, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return &QueryResult{Docs: []map[string]any{}, Message: "Collection is empty. Push some call analyses to Solr first."}, nil
	}

	if in.Q == "" {
		in.Q = "*:*"
	}
	if in.Rows <= 0 {
		in.Rows = 100
	}
	q := url.Values{
		"q":     {in.Q},
		"rows":  {strconv.Itoa(in.Rows)},
		"start": {strconv.Itoa(in.Start)},
	}
	if in.Sort != "" {
		q.Set("sort", in.Sort)
	}
	keys := make([]string, 0, len(in.Filters))
	for k := range in.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Add("fq", k+":"+in.Filters[k])
	}

	resp, err := c.selectDocs(ctx, q)
	if err != nil {
		return nil, err
	}
	docs := resp.Response.Docs
	if docs == nil {
		docs = []map[string]any{}
	}
	return &QueryResult{NumFound: resp.Response.NumFound, Start: resp.Response.Start, Docs: docs}, nil
}

// FacetCount is one value of a facet with its document count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facet returns server-side facet counts for a field, in Solr's order.
func (c *Client) Facet(ctx context.Context, field string, limit int) ([]FacetCount, error) {
	empty, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return []FacetCount{}, nil
	}
	return c.facet(ctx, field, limit)
}

func (c *Client) facet(ctx context.Context, field string, limit int) ([]FacetCount, error) {
	if limit <= 0 {
		limit = 10
	}
	resp, err := c.selectDocs(ctx, url.Values{
		"q":              {"*:*"},
		"rows":           {"0"},
		"facet":          {"true"},
		"facet.field":    {field},
		"facet.limit":    {strconv.Itoa(limit)},
		"facet.mincount": {"1"},
	})
	if err != nil {
		return nil, err
	}
	return pairs(resp.FacetCounts.FacetFields[field]), nil
}

// pairs converts Solr's flat [value, count, value, count...] list.
func pairs(flat []any) []FacetCount {
	out := []FacetCount{}
	for i := 0; i+1 < len(flat); i += 2 {
		n, ok := flat[i+1].(float64)
		if !ok {
			continue
		}
		out = append(out, FacetCount{Value: fmt.Sprint(flat[i]), Count: int(n)})
	}
	return out
}

// CategoricalFacets counts medications, conditions or symptoms across
// documents. Nested values are flattened by Solr into multi-valued fields,
// so they are counted here rather than faceted server-side.
func (c *Client) CategoricalFacets(ctx context.Context, category string, limit int) ([]FacetCount, error) {
	field, ok := Categories[category]
	if !ok {
		return nil, fmt.Errorf("%w: invalid category %q", types.ErrBadRequest, category)
	}
	empty, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return []FacetCount{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := c.selectDocs(ctx, url.Values{
		"q":    {"*:*"},
		"rows": {strconv.Itoa(maxCategoricalDocs)},
		"fl":   {field},
	})
	if err != nil {
		return nil, err
	}
	c.log.WithField("category", category).WithField("docs", len(resp.Response.Docs)).Debug("categorical facet scan")
	return topCounts(resp.Response.Docs, field, limit), nil
}

func topCounts(docs []map[string]any, field string, limit int) []FacetCount {
	counts := map[string]int{}
	for _, doc := range docs {
		switch v := doc[field].(type) {
		case []any:
			for _, x := range v {
				if s, ok := x.(string); ok && s != "" {
					counts[s]++
				}
			}
		case string:
			if v != "" {
				counts[v]++
			}
		}
	}
	out := make([]FacetCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, FacetCount{Value: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats summarizes the indexed calls.
type Stats struct {
	TotalCalls            int          `json:"total_calls"`
	UrgencyDistribution   []FacetCount `json:"urgency_distribution"`
	CallTypeDistribution  []FacetCount `json:"call_type_distribution"`
	SentimentDistribution []FacetCount `json:"sentiment_distribution"`
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	if !c.Enabled() {
		return nil, c.notEnabled()
	}
	if err := c.ensureCollection(ctx); err != nil {
		return nil, err
	}
	total, err := c.count(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalCalls: total, UrgencyDistribution: []FacetCount{}, CallTypeDistribution: []FacetCount{}, SentimentDistribution: []FacetCount{}}
	if total == 0 {
		return st, nil
	}
	if st.UrgencyDistribution, err = c.facet(ctx, FieldUrgency, 10); err != nil {
		return nil, err
	}
	if st.CallTypeDistribution, err = c.facet(ctx, FieldCallType, 10); err != nil {
		return nil, err
	}
	if st.SentimentDistribution, err = c.facet(ctx, FieldSentiment, 10); err != nil {
		return nil, err
	}
	return st, nil
}

// FieldStats returns Solr's stats component output for one field.
func (c *Client) FieldStats(ctx context.Context, field string) (map[string]any, error) {
	if !c.Enabled() {
		return nil, c.notEnabled()
	}
	resp, err := c.selectDocs(ctx, url.Values{
		"q":           {"*:*"},
		"rows":        {"0"},
		"stats":       {"true"},
		"stats.field": {field},
	})
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if raw, ok := resp.Stats.StatsFields[field]; ok && len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, types.NewCollaboratorError(serviceName, types.ErrMalformedResponse, 0, err.Error(), "")
		}
	}
	return out, nil
}
