package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultModelID is the extraction and summarization model.
const DefaultModelID = "nvidia/llama-3.3-nemotron-super-49b-v1"

// ASRModelName is reported in health and setup views.
const ASRModelName = "nvidia/riva-asr-whisper-large-v3-a10g"

// MaxUploadBytes bounds uploaded audio files.
const MaxUploadBytes = 100 << 20

// Config is an immutable settings snapshot. Settings updates produce a new
// Config; fields are never changed in place.
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	EnvFile     string

	// Speech recognition
	CDPBaseURL        string
	CDPJWTPath        string
	CDPTokenValue     string
	DefaultLanguage   string
	TranscribeTimeout time.Duration

	// LLM
	NemotronEnabled bool
	NemotronBaseURL string
	NemotronModelID string
	LLMTimeout      time.Duration

	// Search
	SolrEnabled    bool
	SolrBaseURL    string
	SolrCollection string
	SolrToken      string
	AutoIndex      bool

	// Token renewal
	AutoRenewTokens     bool
	KnoxRenewalEndpoint string
	KnoxHadoopJWT       string
	TokenCheckInterval  time.Duration
	TokenRenewalBuffer  time.Duration

	// Storage
	AudioFilesDir string
	ResultsDir    string
	RedisAddr     string
	RedisPassword string

	// Events
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// lookupFunc resolves one setting; os.LookupEnv is the default.
type lookupFunc func(string) (string, bool)

// Load reads the configuration from the process environment.
func Load() *Config {
	return loadFrom(os.LookupEnv)
}

func loadFrom(lookup lookupFunc) *Config {
	e := env{lookup: lookup}
	return &Config{
		Port:        e.str("PORT", "8000"),
		Environment: e.str("ENVIRONMENT", "local"),
		LogLevel:    e.str("LOG_LEVEL", "info"),
		EnvFile:     e.str("ENV_FILE", ".env"),

		CDPBaseURL:        e.str("CDP_BASE_URL", ""),
		CDPJWTPath:        e.str("CDP_JWT_PATH", "/tmp/jwt"),
		CDPTokenValue:     e.str("CDP_TOKEN", ""),
		DefaultLanguage:   e.str("DEFAULT_LANGUAGE", "en"),
		TranscribeTimeout: e.duration("TRANSCRIBE_TIMEOUT", 120*time.Second),

		NemotronEnabled: e.boolean("NEMOTRON_ENABLED", true),
		NemotronBaseURL: e.str("NEMOTRON_BASE_URL", ""),
		NemotronModelID: e.str("NEMOTRON_MODEL_ID", DefaultModelID),
		LLMTimeout:      e.duration("LLM_TIMEOUT", 60*time.Second),

		SolrEnabled:    e.boolean("SOLR_ENABLED", false),
		SolrBaseURL:    e.str("SOLR_BASE_URL", ""),
		SolrCollection: e.str("SOLR_COLLECTION_NAME", "healthcare_calls"),
		SolrToken:      e.str("SOLR_TOKEN", ""),
		AutoIndex:      e.boolean("AUTO_INDEX", false),

		AutoRenewTokens:     e.boolean("AUTO_RENEW_TOKENS", true),
		KnoxRenewalEndpoint: e.str("KNOX_TOKEN_RENEWAL_ENDPOINT", ""),
		KnoxHadoopJWT:       e.str("KNOX_HADOOP_JWT", ""),
		TokenCheckInterval:  e.duration("TOKEN_CHECK_INTERVAL", time.Hour),
		TokenRenewalBuffer:  e.duration("TOKEN_RENEWAL_BUFFER", 2*time.Hour),

		AudioFilesDir: e.str("AUDIO_FILES_DIR", "audio_files"),
		ResultsDir:    e.str("RESULTS_DIR", "results"),
		RedisAddr:     e.str("REDIS_ADDR", ""),
		RedisPassword: e.str("REDIS_PASSWORD", ""),

		KafkaEnabled: e.boolean("KAFKA_ENABLED", false),
		KafkaBrokers: e.list("KAFKA_BROKERS"),
		KafkaTopic:   e.str("KAFKA_TOPIC", "healthcare-call-analysis"),
	}
}

type env struct {
	lookup lookupFunc
}

func (e env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e env) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// duration accepts Go durations ("90s") or a bare number of seconds.
func (e env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func (e env) list(key string) []string {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CDPToken returns CDP_TOKEN, or the access_token stored in the JWT file.
func (c *Config) CDPToken() string {
	if c.CDPTokenValue != "" {
		return c.CDPTokenValue
	}
	if c.CDPJWTPath == "" {
		return ""
	}
	b, err := os.ReadFile(c.CDPJWTPath)
	if err != nil {
		return ""
	}
	var jwt struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(b, &jwt); err != nil {
		return ""
	}
	return jwt.AccessToken
}

// SolrAuthToken prefers the dedicated Solr token over the CDP one.
func (c *Config) SolrAuthToken() string {
	if c.SolrToken != "" {
		return c.SolrToken
	}
	return c.CDPToken()
}

// TranscribeRetryWindow bounds how long failed transcription attempts are
// retried.
const TranscribeRetryWindow = 30 * time.Second

// AnalysisTimeout bounds one analysis request: a transcription attempt plus
// its retry window, then extraction and enhancement, each allowed an LLM
// attempt plus a retry window of twice the LLM timeout.
func (c *Config) AnalysisTimeout() time.Duration {
	return c.TranscribeTimeout + TranscribeRetryWindow + 2*3*c.LLMTimeout
}

// SetupItem is one row of the setup check.
type SetupItem struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Required bool   `json:"required"`
	Message  string `json:"message"`
}

// SetupCheck lists what is configured and what is missing.
func (c *Config) SetupCheck() []SetupItem {
	token := c.CDPToken()
	items := []SetupItem{
		{Name: "cdp_base_url", OK: c.CDPBaseURL != "", Required: true, Message: "Riva ASR endpoint URL (CDP_BASE_URL)"},
		{Name: "cdp_token", OK: token != "", Required: true, Message: "CDP token (CDP_TOKEN) or JWT file (CDP_JWT_PATH)"},
	}
	if c.NemotronEnabled {
		items = append(items, SetupItem{Name: "nemotron_base_url", OK: c.NemotronBaseURL != "", Message: "Nemotron endpoint URL (NEMOTRON_BASE_URL)"})
	}
	if c.SolrEnabled {
		items = append(items, SetupItem{Name: "solr_base_url", OK: c.SolrBaseURL != "", Message: "Solr base URL (SOLR_BASE_URL)"})
	}
	if c.AutoRenewTokens {
		items = append(items, SetupItem{Name: "knox_renewal_endpoint", OK: c.KnoxRenewalEndpoint != "", Message: "Knox token renewal endpoint (KNOX_TOKEN_RENEWAL_ENDPOINT)"})
	}
	return items
}

// Ready reports whether every required setup item is satisfied.
func (c *Config) Ready() bool {
	for _, it := range c.SetupCheck() {
		if it.Required && !it.OK {
			return false
		}
	}
	return true
}

// Mask shows the first and last four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Public is the settings view returned to clients, with secrets masked.
func (c *Config) Public() map[string]any {
	return map[string]any{
		"CDP_BASE_URL":                c.CDPBaseURL,
		"CDP_JWT_PATH":                c.CDPJWTPath,
		"CDP_TOKEN":                   Mask(c.CDPTokenValue),
		"DEFAULT_LANGUAGE":            c.DefaultLanguage,
		"NEMOTRON_ENABLED":            c.NemotronEnabled,
		"NEMOTRON_BASE_URL":           c.NemotronBaseURL,
		"NEMOTRON_MODEL_ID":           c.NemotronModelID,
		"SOLR_ENABLED":                c.SolrEnabled,
		"SOLR_BASE_URL":               c.SolrBaseURL,
		"SOLR_COLLECTION_NAME":        c.SolrCollection,
		"SOLR_TOKEN":                  Mask(c.SolrToken),
		"AUTO_INDEX":                  c.AutoIndex,
		"AUTO_RENEW_TOKENS":           c.AutoRenewTokens,
		"KNOX_TOKEN_RENEWAL_ENDPOINT": c.KnoxRenewalEndpoint,
		"KNOX_HADOOP_JWT":             Mask(c.KnoxHadoopJWT),
		"ASR_MODEL":                   ASRModelName,
	}
}
