package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-call-insights/internal/media"
	"healthcare-call-insights/internal/types"
)

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	norm := media.NewNormalizer(t.TempDir(), nil)
	norm.FFmpeg = "no-such-ffmpeg"
	norm.FFprobe = "no-such-ffprobe"
	return New(Config{
		BaseURL:      baseURL,
		Language:     "en",
		Timeout:      2 * time.Second,
		MaxRetryTime: 300 * time.Millisecond,
	}, func() string { return token }, norm, nil, nil)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "visit.mp3")
	require.NoError(t, os.WriteFile(p, []byte("fake-audio"), 0o644))
	return p
}

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "en", r.FormValue("language"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "fake-audio", string(b))
		assert.Equal(t, "visit.mp3", hdr.Filename)
		assert.Equal(t, "audio/wav", hdr.Header.Get("Content-Type"))

		_, _ = w.Write([]byte(`{"text":"Patient reports a cough.","duration":12.5}`))
	}))
	defer srv.Close()

	tr, err := newTestClient(t, srv.URL, "tok").Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "Patient reports a cough.", tr.Text)
	assert.Equal(t, DefaultConfidence, tr.Confidence)
	assert.Equal(t, "en", tr.Language)
	assert.Equal(t, 16000, tr.SampleRate)
	assert.Equal(t, 12.5, tr.Duration)
	assert.Equal(t, "mp3", tr.Format)
}

func TestTranscribeStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, types.ErrAuth},
		{http.StatusNotFound, types.ErrNotFound},
		{http.StatusBadRequest, types.ErrBadRequest},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, "tok").TranscribeBytes(context.Background(), []byte("x"), "a.wav")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

			var cerr *types.CollaboratorError
			require.ErrorAs(t, err, &cerr)
			assert.NotEmpty(t, cerr.Remedy)
		})
	}
}

func TestTranscribeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, "tok").TranscribeBytes(context.Background(), []byte("x"), "a.wav")
	assert.ErrorIs(t, err, types.ErrMalformedResponse)
}

func TestTranscribeNotConfigured(t *testing.T) {
	_, err := newTestClient(t, "", "tok").Transcribe(context.Background(), "whatever.wav")
	assert.ErrorIs(t, err, types.ErrNotConfigured)

	_, err = newTestClient(t, "http://localhost:1", "").Transcribe(context.Background(), "whatever.wav")
	assert.ErrorIs(t, err, types.ErrNotConfigured)
}

func TestTranscribeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, "tok").TranscribeBytes(context.Background(), []byte("x"), "a.wav")
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestEndpoint(t *testing.T) {
	c := newTestClient(t, "https://ml.example.com/model/", "tok")
	assert.Equal(t, "https://ml.example.com/model/v1/audio/transcriptions", c.Endpoint())
}
