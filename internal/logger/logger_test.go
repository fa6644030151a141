package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWith("production", "debug", &buf)
	l.Component("extractor").WithField("k", "v").Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "extractor", line["component"])
	assert.Equal(t, "v", line["k"])
	assert.Equal(t, logrus.DebugLevel, l.Logger.GetLevel())
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warn"))
	assert.Equal(t, logrus.ErrorLevel, parseLevel("error"))
}

func TestRequestIDPrefersHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/results", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", RequestID(r))

	r2 := httptest.NewRequest("GET", "/api/results", nil)
	assert.Len(t, RequestID(r2), 36)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWith("production", "info", &buf)
	l.WithError(errors.New("boom")).Warn("failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["error"])

	assert.Equal(t, l.Entry, l.WithError(nil))
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	l := Discard()
	assert.Same(t, l, OrDiscard(l))
}
