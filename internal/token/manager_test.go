package token

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "svc",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	got, ok := ExpiryFromJWT(signed(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = ExpiryFromJWT("opaque-token")
	assert.False(t, ok)
}

func TestRegisterDefaultsTo24Hours(t *testing.T) {
	m := NewManager(Config{}, nil, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	exp := m.Register("solr", "opaque")
	assert.Equal(t, now.Add(DefaultLifetime), exp)

	st := m.Status()
	require.Len(t, st, 1)
	assert.Equal(t, "solr", st[0].Service)
	assert.InDelta(t, 24.0, st[0].TimeUntilExpiryHours, 0.001)
	assert.False(t, st[0].IsExpired)

	m.Register("solr", "")
	assert.Empty(t, m.Status())
}

func TestCheckAndRenew(t *testing.T) {
	newExpiry := time.Now().Add(48 * time.Hour).Truncate(time.Millisecond)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "valid", r.Header.Get("X-XSRF-HEADER"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		c, err := r.Cookie("hadoop-jwt")
		require.NoError(t, err)
		assert.Equal(t, "cookie", c.Value)
		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, body)
		_, _ = w.Write([]byte(`{"renewed":"true","expires":"` + itoa(newExpiry.UnixMilli()) + `"}`))
	}))
	defer srv.Close()

	m := NewManager(Config{Endpoint: srv.URL, HadoopJWT: "cookie", Timeout: time.Second}, nil, nil)
	m.Register("cdp", signed(t, time.Now().Add(30*time.Minute)))
	m.Register("solr", signed(t, time.Now().Add(10*time.Hour)))

	m.CheckAndRenew(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	for _, st := range m.Status() {
		if st.Service == "cdp" {
			assert.True(t, st.ExpiresAt.Equal(newExpiry))
		}
	}
}

func TestRenewalFailureKeepsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"renewed":"false","error":"token revoked"}`))
	}))
	defer srv.Close()

	m := NewManager(Config{Endpoint: srv.URL, Timeout: time.Second}, nil, nil)
	exp := m.Register("cdp", signed(t, time.Now().Add(time.Minute)))
	m.CheckAndRenew(context.Background())

	st := m.Status()
	require.Len(t, st, 1)
	assert.True(t, st[0].ExpiresAt.Equal(exp))
}

func TestRenewWithoutEndpoint(t *testing.T) {
	m := NewManager(Config{}, nil, nil)
	_, err := m.renew(context.Background(), m.cfg, "tok")
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"renewed":"true","expires":` + itoa(time.Now().Add(time.Hour).UnixMilli()) + `}`))
	}))
	defer srv.Close()

	m := NewManager(Config{Endpoint: srv.URL, Interval: 20 * time.Millisecond, Buffer: 2 * time.Hour, Timeout: time.Second}, nil, nil)
	m.Register("cdp", "opaque-but-short")
	m.mu.Lock()
	m.tokens["cdp"].expiresAt = time.Now().Add(time.Minute)
	m.mu.Unlock()

	m.Start(context.Background())
	m.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, 2*time.Second, 10*time.Millisecond)
	m.Stop()
	m.Stop()

	after := atomic.LoadInt32(&calls)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
