// Package health probes the speech and language model endpoints.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"healthcare-call-insights/internal/llm"
	"healthcare-call-insights/internal/logger"
)

const (
	StatusOnline        = "online"
	StatusOffline       = "offline"
	StatusError         = "error"
	StatusNotConfigured = "not_configured"
	StatusDisabled      = "disabled"
	StatusUnknown       = "unknown"
	StatusDegraded      = "degraded"
)

// Target names used by the analysis gate.
const (
	ASRService = "riva_asr"
	LLMService = "nemotron"
)

const checkTimeout = 10 * time.Second

// Target is one model endpoint to probe.
type Target struct {
	Name     string
	Enabled  bool
	BaseURL  string
	Token    func() string
	Critical bool
}

// Result is the outcome of one probe.
type Result struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is the combined view.
type Report struct {
	Overall  string            `json:"overall"`
	Services map[string]Result `json:"services"`
}

type Checker struct {
	http    *http.Client
	log     *logger.Logger
	now     func() time.Time
	targets []Target

	mu   sync.RWMutex
	last map[string]Result
}

func NewChecker(targets []Target, log *logger.Logger) *Checker {
	return &Checker{
		http:    &http.Client{Timeout: checkTimeout},
		log:     logger.OrDiscard(log).Component("health"),
		now:     time.Now,
		targets: targets,
		last:    map[string]Result{},
	}
}

// Check probes one target's metrics endpoint.
func (c *Checker) Check(ctx context.Context, t Target) Result {
	r := c.probe(ctx, t)
	c.mu.Lock()
	c.last[t.Name] = r
	c.mu.Unlock()
	if r.Status != StatusOnline && r.Status != StatusDisabled {
		c.log.WithField("service", t.Name).WithField("status", r.Status).Warn(r.Error)
	}
	return r
}

func (c *Checker) probe(ctx context.Context, t Target) Result {
	res := Result{Timestamp: c.now()}
	if !t.Enabled {
		res.Status = StatusDisabled
		return res
	}
	if t.BaseURL == "" {
		res.Status, res.Error = StatusNotConfigured, "base URL not set"
		return res
	}
	tok := ""
	if t.Token != nil {
		tok = t.Token()
	}
	if tok == "" {
		res.Status, res.Error = StatusNotConfigured, "No CDP authentication token available"
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, llm.APIBase(t.BaseURL)+"/metrics", nil)
	if err != nil {
		res.Status, res.Error = StatusError, err.Error()
		return res
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
			res.Status, res.Error = StatusOffline, fmt.Sprintf("%s endpoint timeout (>%s)", t.Name, checkTimeout)
		default:
			res.Status, res.Error = StatusOffline, fmt.Sprintf("Cannot connect to %s endpoint: %v", t.Name, err)
		}
		return res
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		res.Status = StatusOnline
	case resp.StatusCode == http.StatusNotFound:
		res.Status, res.Error = StatusError, "Metrics endpoint not found - check endpoint URL"
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		res.Status = StatusError
		res.Error = fmt.Sprintf("Service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return res
}

// CheckAll probes every target concurrently and derives the overall status.
func (c *Checker) CheckAll(ctx context.Context) Report {
	results := make([]Result, len(c.targets))
	var wg sync.WaitGroup
	for i, t := range c.targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			results[i] = c.Check(ctx, t)
		}(i, t)
	}
	wg.Wait()

	services := make(map[string]Result, len(results))
	for i, t := range c.targets {
		services[t.Name] = results[i]
	}
	return Report{Overall: c.overall(services), Services: services}
}

// overall is offline when a critical target is down, degraded when only
// optional targets are.
func (c *Checker) overall(services map[string]Result) string {
	status := StatusOnline
	for _, t := range c.targets {
		r, ok := services[t.Name]
		if !ok {
			continue
		}
		if t.Critical && r.Status != StatusOnline {
			return StatusOffline
		}
		if !t.Critical && r.Status != StatusOnline && r.Status != StatusDisabled {
			status = StatusDegraded
		}
	}
	return status
}

// Cached returns the last results without probing. Targets never probed
// are reported as unknown.
func (c *Checker) Cached() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	services := make(map[string]Result, len(c.targets))
	for _, t := range c.targets {
		r, ok := c.last[t.Name]
		if !ok {
			r = Result{Status: StatusUnknown}
		}
		services[t.Name] = r
	}
	return Report{Overall: c.overall(services), Services: services}
}
