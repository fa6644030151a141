package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"healthcare-call-insights/internal/llm"
	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/media"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/types"
)

const serviceName = "asr"

// DefaultConfidence is reported when the recognizer omits a confidence.
const DefaultConfidence = 0.95

type Config struct {
	BaseURL      string
	Language     string
	Timeout      time.Duration
	MaxRetryTime time.Duration
}

// TokenFunc returns the current bearer token. It is called per request so
// renewed tokens are picked up.
type TokenFunc func() string

type Client struct {
	cfg     Config
	token   TokenFunc
	norm    *media.Normalizer
	http    *http.Client
	log     *logger.Logger
	metrics *metrics.AnalysisMetrics
}

func New(cfg Config, token TokenFunc, norm *media.Normalizer, log *logger.Logger, m *metrics.AnalysisMetrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 30 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if token == nil {
		token = func() string { return "" }
	}
	log = logger.OrDiscard(log)
	if norm == nil {
		norm = media.NewNormalizer("", log)
	}
	return &Client{
		cfg:     cfg,
		token:   token,
		norm:    norm,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.Component("transcription"),
		metrics: m,
	}
}

// Endpoint is <base>/v1/audio/transcriptions.
func (c *Client) Endpoint() string {
	return llm.APIBase(c.cfg.BaseURL) + "/audio/transcriptions"
}

// Configured reports a ConfigurationError when the endpoint or token is missing.
func (c *Client) Configured() error {
	if c.cfg.BaseURL == "" {
		return types.NewCollaboratorError(serviceName, types.ErrNotConfigured, 0,
			"speech recognition endpoint not configured",
			"Set CDP_BASE_URL to the Riva ASR endpoint in settings")
	}
	if c.token() == "" {
		return types.NewCollaboratorError(serviceName, types.ErrNotConfigured, 0,
			"authentication not configured",
			"Set CDP_TOKEN or point CDP_JWT_PATH at a JWT file")
	}
	return nil
}

// Transcribe converts the audio file, uploads it and returns the transcript.
// Duration comes from the audio itself; format is the original extension.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	if err := c.Configured(); err != nil {
		return types.Transcript{}, err
	}

	prep, err := c.norm.Prepare(ctx, audioPath)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("preprocess audio: %w", err)
	}
	defer prep.Cleanup()

	data, err := os.ReadFile(prep.Path)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read audio: %w", err)
	}

	tr, err := c.TranscribeBytes(ctx, data, filepath.Base(prep.Path))
	if err != nil {
		return types.Transcript{}, err
	}
	if prep.Duration > 0 {
		tr.Duration = prep.Duration
	}
	tr.Format = prep.Format
	return tr, nil
}

type asrResponse struct {
	Text       string   `json:"text"`
	Duration   float64  `json:"duration"`
	Confidence *float64 `json:"confidence"`
	Language   string   `json:"language"`
}

// TranscribeBytes posts raw audio as multipart field "file" plus the
// configured language hint.
func (c *Client) TranscribeBytes(ctx context.Context, audio []byte, filename string) (types.Transcript, error) {
	if err := c.Configured(); err != nil {
		return types.Transcript{}, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(h)
	if err != nil {
		return types.Transcript{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return types.Transcript{}, err
	}
	_ = w.WriteField("language", c.cfg.Language)
	if err := w.Close(); err != nil {
		return types.Transcript{}, err
	}
	payload := body.Bytes()
	contentType := w.FormDataContentType()

	endpoint := c.Endpoint()
	log := c.log.WithField("endpoint", endpoint).WithField("bytes", len(audio))
	log.Info("sending audio for transcription")

	start := time.Now()
	var parsed asrResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+c.token())

		resp, err := c.http.Do(req)
		if err != nil {
			log.WithError(err).Warn("transcription request failed")
			return c.transportError(ctx, endpoint, err)
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			cerr := statusError(endpoint, resp.StatusCode, string(raw))
			if resp.StatusCode < 500 {
				return backoff.Permanent(cerr)
			}
			return cerr
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrMalformedResponse, resp.StatusCode,
				"response was not valid JSON", "This usually means the endpoint URL points at the wrong service"))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	err = backoff.Retry(op, backoff.WithContext(b, ctx))
	c.metrics.ObserveCollaborator(serviceName, err, time.Since(start).Seconds())
	if err != nil {
		var cerr *types.CollaboratorError
		if errors.As(err, &cerr) {
			return types.Transcript{}, cerr
		}
		if ctx.Err() != nil {
			return types.Transcript{}, types.NewCollaboratorError(serviceName, types.ErrTimeout, 0, err.Error(), "")
		}
		return types.Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	tr := types.Transcript{
		Text:       parsed.Text,
		Duration:   parsed.Duration,
		SampleRate: media.TargetSampleRate,
		Language:   parsed.Language,
		Confidence: DefaultConfidence,
		Format:     strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
	}
	if parsed.Confidence != nil {
		tr.Confidence = *parsed.Confidence
	}
	if tr.Language == "" {
		tr.Language = c.cfg.Language
	}
	log.WithField("text_len", len(tr.Text)).Info("transcription completed")
	return tr, nil
}

func (c *Client) transportError(ctx context.Context, endpoint string, err error) error {
	var ne net.Error
	if ctx.Err() != nil || (errors.As(err, &ne) && ne.Timeout()) {
		return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrTimeout, 0,
			fmt.Sprintf("request to %s timed out after %s", endpoint, c.cfg.Timeout),
			"Check that the endpoint is responsive and the audio file is not too large"))
	}
	return types.NewCollaboratorError(serviceName, types.ErrTransport, 0,
		fmt.Sprintf("cannot connect to %s: %v", endpoint, err),
		"Check the endpoint URL, network or VPN connectivity, and that the model is deployed")
}

func statusError(endpoint string, status int, body string) *types.CollaboratorError {
	if len(body) > 200 {
		body = body[:200]
	}
	kind := types.KindForStatus(status)
	switch status {
	case http.StatusUnauthorized:
		return types.NewCollaboratorError(serviceName, kind, status, "authentication failed",
			"Check that the CDP token is valid, not expired, and allowed to call this endpoint")
	case http.StatusNotFound:
		return types.NewCollaboratorError(serviceName, kind, status, "endpoint not found: "+endpoint,
			"Check CDP_BASE_URL; the path must end in /v1/audio/transcriptions")
	case http.StatusBadRequest:
		return types.NewCollaboratorError(serviceName, kind, status, "request rejected: "+body,
			"The audio format may be unsupported or the file corrupted")
	}
	return types.NewCollaboratorError(serviceName, kind, status, body, "Check the endpoint status in the CML dashboard")
}
