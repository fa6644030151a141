// Package search indexes analysis snapshots into a Solr collection and runs
// the aggregate queries behind the analytics views.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/types"
)

const serviceName = "solr"

// Flattened field names as Solr stores the nested snapshot document.
const (
	FieldMedication = "healthcare_insights.medications.name"
	FieldCondition  = "healthcare_insights.medical_conditions.condition"
	FieldSymptom    = "healthcare_insights.symptoms.symptom"
	FieldUrgency    = "healthcare_insights.urgency_level.level"
	FieldCallType   = "healthcare_insights.call_type"
	FieldSentiment  = "healthcare_insights.sentiment_analysis.overall_sentiment"
)

// Categories maps a categorical facet name to its flattened field.
var Categories = map[string]string{
	"medications": FieldMedication,
	"conditions":  FieldCondition,
	"symptoms":    FieldSymptom,
}

// maxCategoricalDocs bounds the documents scanned for categorical facets.
const maxCategoricalDocs = 1000

type Config struct {
	Enabled      bool
	BaseURL      string
	Collection   string
	Token        string
	Timeout      time.Duration
	MaxRetryTime time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	log     *logger.Logger
	metrics *metrics.AnalysisMetrics

	mu    sync.Mutex
	ready bool
}

func New(cfg Config, log *logger.Logger, m *metrics.AnalysisMetrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = cfg.Timeout
	}
	if cfg.Collection == "" {
		cfg.Collection = "healthcare_calls"
	}
	l := logger.OrDiscard(log).Component("search")
	if cfg.Enabled && cfg.Token == "" {
		l.Warn("solr enabled but no token available")
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     l,
		metrics: m,
	}
}

// Enabled reports whether indexing is switched on and fully configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled && c.cfg.BaseURL != "" && c.cfg.Token != ""
}

// Collection returns the target collection name.
func (c *Client) Collection() string { return c.cfg.Collection }

func (c *Client) notEnabled() error {
	return types.NewCollaboratorError(serviceName, types.ErrNotConfigured, 0,
		"Solr is not enabled", "Set SOLR_ENABLED, SOLR_BASE_URL and SOLR_TOKEN in Settings")
}

func (c *Client) endpoint(p string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
}

// do runs one Solr call with retries on transport errors and 5xx.
func (c *Client) do(ctx context.Context, method, p string, q url.Values, body []byte) ([]byte, error) {
	target := c.endpoint(p)
	if q == nil {
		q = url.Values{}
	}
	q.Set("wt", "json")
	target += "?" + q.Encode()

	reqID := uuid.New().String()
	log := c.log.WithField("req_id", reqID).WithField("path", p)

	start := time.Now()
	var out []byte
	op := func() error {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(logger.RequestIDHeader, reqID)

		resp, err := c.http.Do(req)
		if err != nil {
			log.WithError(err).Warn("solr request failed")
			if ctx.Err() != nil {
				return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrTimeout, 0, err.Error(), ""))
			}
			return types.NewCollaboratorError(serviceName, types.ErrTransport, 0, err.Error(), "Check that SOLR_BASE_URL is reachable")
		}
		defer resp.Body.Close()

		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			cerr := types.NewCollaboratorError(serviceName, types.KindForStatus(resp.StatusCode), resp.StatusCode, truncate(string(b), 300), "")
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(cerr)
			}
			return cerr
		}
		out = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.cfg.MaxRetryTime
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	c.metrics.ObserveCollaborator(serviceName, err, time.Since(start).Seconds())
	if err != nil {
		var cerr *types.CollaboratorError
		if errors.As(err, &cerr) {
			return nil, cerr
		}
		return nil, fmt.Errorf("solr %s: %w", p, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, p string, q url.Values, v any) error {
	b, err := c.do(ctx, http.MethodGet, p, q, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return types.NewCollaboratorError(serviceName, types.ErrMalformedResponse, http.StatusOK, err.Error(), "")
	}
	return nil
}

func (c *Client) listCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Collections []string `json:"collections"`
	}
	q := url.Values{"action": {"LIST"}}
	if err := c.getJSON(ctx, "admin/collections", q, &resp); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

// ensureCollection creates the collection with automatic field creation the
// first time it is missing. Success is remembered for the client's lifetime.
func (c *Client) ensureCollection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	cols, err := c.listCollections(ctx)
	if err != nil {
		return err
	}
	for _, name := range cols {
		if name == c.cfg.Collection {
			c.ready = true
			return nil
		}
	}

	c.log.WithField("collection", c.cfg.Collection).Info("creating solr collection")
	q := url.Values{
		"action":            {"CREATE"},
		"name":              {c.cfg.Collection},
		"numShards":         {"1"},
		"replicationFactor": {"1"},
	}
	if _, err := c.do(ctx, http.MethodGet, "admin/collections", q, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"set-user-property": map[string]string{"update.autoCreateFields": "true"},
	})
	if _, err := c.do(ctx, http.MethodPost, c.cfg.Collection+"/config", nil, payload); err != nil {
		return fmt.Errorf("enable auto fields: %w", err)
	}
	c.ready = true
	return nil
}

// DocumentID derives the Solr id of a snapshot from its source path and
// analysis timestamp.
func DocumentID(filePath string, ts time.Time) string {
	id := filePath + "_" + ts.Format(time.RFC3339Nano)
	return strings.NewReplacer("/", "_", " ", "_").Replace(id)
}

type IndexResult struct {
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
}

// Index writes one snapshot as a document and commits it.
func (c *Client) Index(ctx context.Context, snap *types.Snapshot) (*IndexResult, error) {
	if !c.Enabled() {
		return nil, c.notEnabled()
	}
	if err := c.ensureCollection(ctx); err != nil {
		c.metrics.ObserveIndex("error")
		return nil, err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}
	id := DocumentID(snap.FilePath, snap.Timestamp)
	doc["id"] = id
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	q := url.Values{"commit": {"true"}}
	if _, err := c.do(ctx, http.MethodPost, c.cfg.Collection+"/update/json/docs", q, body); err != nil {
		c.metrics.ObserveIndex("error")
		return nil, err
	}
	c.metrics.ObserveIndex("ok")
	c.log.WithField("document_id", id).Info("document indexed")
	return &IndexResult{Collection: c.cfg.Collection, DocumentID: id}, nil
}

// ConnectionStatus is the Solr part of the status endpoint.
type ConnectionStatus struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	CollectionsCount int    `json:"collections_count,omitempty"`
	TargetCollection string `json:"target_collection,omitempty"`
	CollectionExists bool   `json:"collection_exists"`
}

// CheckConnection lists collections and reports whether the target exists.
func (c *Client) CheckConnection(ctx context.Context) ConnectionStatus {
	if c == nil || !c.cfg.Enabled {
		return ConnectionStatus{Status: "disabled", Message: "Solr is not enabled"}
	}
	if c.cfg.BaseURL == "" {
		return ConnectionStatus{Status: "error", Message: "Solr base URL not configured"}
	}
	if c.cfg.Token == "" {
		return ConnectionStatus{Status: "error", Message: "Solr token not configured"}
	}
	cols, err := c.listCollections(ctx)
	if err != nil {
		msg := "Connection failed: " + err.Error()
		if errors.Is(err, types.ErrTimeout) {
			msg = "Connection timeout"
		}
		return ConnectionStatus{Status: "error", Message: msg}
	}
	exists := false
	for _, name := range cols {
		exists = exists || name == c.cfg.Collection
	}
	return ConnectionStatus{
		Status:           "online",
		Message:          "Connected to Solr",
		CollectionsCount: len(cols),
		TargetCollection: c.cfg.Collection,
		CollectionExists: exists,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
