package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tokenFn(s string) func() string { return func() string { return s } }

func statusServer(t *testing.T, code int) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/metrics", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(code)
		_, _ = w.Write([]byte("body"))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCheckStatuses(t *testing.T) {
	c := NewChecker(nil, nil)
	ctx := context.Background()

	assert.Equal(t, StatusDisabled, c.Check(ctx, Target{Name: "llm"}).Status)
	assert.Equal(t, StatusNotConfigured, c.Check(ctx, Target{Name: "asr", Enabled: true}).Status)
	assert.Equal(t, StatusNotConfigured, c.Check(ctx, Target{Name: "asr", Enabled: true, BaseURL: "http://x", Token: tokenFn("")}).Status)

	ok := c.Check(ctx, Target{Name: "asr", Enabled: true, BaseURL: statusServer(t, 200), Token: tokenFn("tok")})
	assert.Equal(t, StatusOnline, ok.Status)
	assert.Empty(t, ok.Error)

	nf := c.Check(ctx, Target{Name: "asr", Enabled: true, BaseURL: statusServer(t, 404) + "/v1", Token: tokenFn("tok")})
	assert.Equal(t, StatusError, nf.Status)
	assert.Contains(t, nf.Error, "not found")

	bad := c.Check(ctx, Target{Name: "asr", Enabled: true, BaseURL: statusServer(t, 503), Token: tokenFn("tok")})
	assert.Equal(t, StatusError, bad.Status)
	assert.Contains(t, bad.Error, "503: body")
}

func TestCheckOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewChecker(nil, nil)
	r := c.Check(context.Background(), Target{Name: "asr", Enabled: true, BaseURL: url, Token: tokenFn("tok")})
	assert.Equal(t, StatusOffline, r.Status)
}

func TestCheckAllOverall(t *testing.T) {
	up := statusServer(t, 200)
	down := statusServer(t, 500)

	cases := []struct {
		name     string
		asr, llm string
		llmOn    bool
		want     string
	}{
		{"all online", up, up, true, StatusOnline},
		{"llm disabled", up, "", false, StatusOnline},
		{"llm failing", up, down, true, StatusDegraded},
		{"asr failing", down, up, true, StatusOffline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker([]Target{
				{Name: "riva", Enabled: true, BaseURL: tc.asr, Token: tokenFn("tok"), Critical: true},
				{Name: "nemotron", Enabled: tc.llmOn, BaseURL: tc.llm, Token: tokenFn("tok")},
			}, nil)
			rep := c.CheckAll(context.Background())
			assert.Equal(t, tc.want, rep.Overall)
			assert.Len(t, rep.Services, 2)
			assert.Equal(t, rep.Services, c.Cached().Services)
			assert.Equal(t, tc.asr == up, rep.Services["riva"].Status == StatusOnline)
		})
	}
}

func TestCachedBeforeAnyCheck(t *testing.T) {
	c := NewChecker([]Target{{Name: "riva", Critical: true}}, nil)
	rep := c.Cached()
	assert.Equal(t, StatusUnknown, rep.Services["riva"].Status)
	assert.Equal(t, StatusOffline, rep.Overall)
}
