// Package token tracks bearer token expiry and renews tokens through the
// Knox token API before they lapse.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/types"
)

const serviceName = "knox"

// DefaultLifetime is assumed for tokens without a readable exp claim.
const DefaultLifetime = 24 * time.Hour

type Config struct {
	Endpoint  string
	HadoopJWT string
	Interval  time.Duration
	Buffer    time.Duration
	Timeout   time.Duration
}

type entry struct {
	token       string
	expiresAt   time.Time
	lastRenewed time.Time
}

// Status describes one registered token.
type Status struct {
	Service              string    `json:"service"`
	ExpiresAt            time.Time `json:"expires_at"`
	TimeUntilExpiryHours float64   `json:"time_until_expiry_hours"`
	LastRenewed          time.Time `json:"last_renewed"`
	IsExpired            bool      `json:"is_expired"`
}

type Manager struct {
	http    *http.Client
	log     *logger.Logger
	metrics *metrics.AnalysisMetrics
	now     func() time.Time

	mu     sync.Mutex
	cfg    Config
	tokens map[string]*entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg Config, log *logger.Logger, m *metrics.AnalysisMetrics) *Manager {
	cfg = withDefaults(cfg)
	return &Manager{
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger.OrDiscard(log).Component("token"),
		metrics: m,
		now:     time.Now,
		cfg:     cfg,
		tokens:  map[string]*entry{},
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 2 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}

// Reconfigure swaps the renewal endpoint and timings. The loop interval
// takes effect on the next Start.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	m.cfg = withDefaults(cfg)
	m.mu.Unlock()
}

// ExpiryFromJWT reads the exp claim without verifying the signature.
func ExpiryFromJWT(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Register starts tracking a token. An empty token unregisters the service.
func (m *Manager) Register(service, accessToken string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	if accessToken == "" {
		delete(m.tokens, service)
		return time.Time{}
	}
	now := m.now()
	exp, ok := ExpiryFromJWT(accessToken)
	if !ok {
		exp = now.Add(DefaultLifetime)
	}
	if prev, found := m.tokens[service]; found && prev.token == accessToken && prev.expiresAt.After(exp) {
		// keep an expiry extended by an earlier renewal
		exp = prev.expiresAt
	}
	m.tokens[service] = &entry{token: accessToken, expiresAt: exp, lastRenewed: now}
	m.log.WithField("service", service).WithField("expires_at", exp.Format(time.RFC3339)).Info("token registered")
	return exp
}

// Start launches the renewal loop. It checks once immediately and then on
// every interval until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	interval := m.cfg.Interval
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.log.WithField("interval", interval.String()).Info("token renewal started")
		for {
			m.CheckAndRenew(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.log.Info("token renewal stopped")
}

// CheckAndRenew renews every token expiring within the buffer. Failures are
// logged and retried on the next pass.
func (m *Manager) CheckAndRenew(ctx context.Context) {
	m.mu.Lock()
	cfg := m.cfg
	now := m.now()
	due := map[string]string{}
	for svc, e := range m.tokens {
		if e.expiresAt.Sub(now) < cfg.Buffer {
			due[svc] = e.token
		}
	}
	m.mu.Unlock()

	for svc, tok := range due {
		log := m.log.WithField("service", svc)
		exp, err := m.renew(ctx, cfg, tok)
		if err != nil {
			m.metrics.ObserveTokenRenewal(svc, "error")
			log.WithError(err).Warn("token renewal failed")
			continue
		}
		m.metrics.ObserveTokenRenewal(svc, "ok")

		m.mu.Lock()
		if e, ok := m.tokens[svc]; ok && e.token == tok {
			e.expiresAt = exp
			e.lastRenewed = m.now()
		}
		m.mu.Unlock()
		log.WithField("expires_at", exp.Format(time.RFC3339)).Info("token renewed")
	}
}

type renewResponse struct {
	Renewed any         `json:"renewed"`
	Expires json.Number `json:"expires"`
	Error   string      `json:"error"`
}

func (m *Manager) renew(ctx context.Context, cfg Config, tok string) (time.Time, error) {
	if cfg.Endpoint == "" {
		return time.Time{}, types.NewCollaboratorError(serviceName, types.ErrNotConfigured, 0,
			"no renewal endpoint", "Set KNOX_TOKEN_RENEWAL_ENDPOINT")
	}

	var expires time.Time
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewBufferString(tok))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-XSRF-HEADER", "valid")
		req.Header.Set("Content-Type", "text/plain")
		if cfg.HadoopJWT != "" {
			req.AddCookie(&http.Cookie{Name: "hadoop-jwt", Value: cfg.HadoopJWT})
		}

		resp, err := m.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrTimeout, 0, err.Error(), ""))
			}
			return types.NewCollaboratorError(serviceName, types.ErrTransport, 0, err.Error(), "")
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			cerr := types.NewCollaboratorError(serviceName, types.KindForStatus(resp.StatusCode), resp.StatusCode, string(body), "")
			if resp.StatusCode < 500 {
				return backoff.Permanent(cerr)
			}
			return cerr
		}

		var out renewResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrMalformedResponse, resp.StatusCode, err.Error(), ""))
		}
		if fmt.Sprint(out.Renewed) != "true" {
			detail := out.Error
			if detail == "" {
				detail = "token not renewed"
			}
			return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrBadRequest, resp.StatusCode, detail, ""))
		}
		ms, err := out.Expires.Int64()
		if err != nil {
			return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrMalformedResponse, resp.StatusCode, "missing expires", ""))
		}
		expires = time.UnixMilli(ms)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.Timeout
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return time.Time{}, err
	}
	return expires, nil
}

// Status reports every registered token, ordered by service.
func (m *Manager) Status() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]Status, 0, len(m.tokens))
	for svc, e := range m.tokens {
		out = append(out, Status{
			Service:              svc,
			ExpiresAt:            e.expiresAt,
			TimeUntilExpiryHours: e.expiresAt.Sub(now).Hours(),
			LastRenewed:          e.lastRenewed,
			IsExpired:            now.After(e.expiresAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}
