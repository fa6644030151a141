package main

import (
	"os"
	"sync/atomic"

	"healthcare-call-insights/internal/aggregator"
	"healthcare-call-insights/internal/config"
	"healthcare-call-insights/internal/enhance"
	"healthcare-call-insights/internal/health"
	"healthcare-call-insights/internal/llm"
	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/media"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/processor"
	"healthcare-call-insights/internal/search"
	"healthcare-call-insights/internal/token"
	"healthcare-call-insights/internal/transcription"
)

// collaborators is everything built from one settings snapshot.
type collaborators struct {
	deps   *processor.Deps
	health *health.Checker
	search *search.Client
}

// current serves the live collaborator set to the API.
type current struct {
	p atomic.Pointer[collaborators]
}

func (c *current) Health() *health.Checker { return c.p.Load().health }
func (c *current) Search() *search.Client { return c.p.Load().search }

func build(cfg *config.Config, log *logger.Logger, m *metrics.AnalysisMetrics) *collaborators {
	norm := media.NewNormalizer(os.TempDir(), log)
	asr := transcription.New(transcription.Config{
		BaseURL:      cfg.CDPBaseURL,
		Language:     cfg.DefaultLanguage,
		Timeout:      cfg.TranscribeTimeout,
		MaxRetryTime: config.TranscribeRetryWindow,
	}, cfg.CDPToken, norm, log, m)

	model := llm.New(llm.Config{
		Enabled: cfg.NemotronEnabled,
		BaseURL: cfg.NemotronBaseURL,
		APIKey:  cfg.CDPToken(),
		Model:   cfg.NemotronModelID,
		Timeout: cfg.LLMTimeout,
	}, log, m)

	var enhancer aggregator.Enhancer
	if cfg.NemotronEnabled {
		enhancer = enhance.New(model, log, m)
	}
	analyzer := aggregator.New(aggregator.Select(model, cfg.NemotronEnabled), enhancer, log, m)

	checker := health.NewChecker([]health.Target{
		{Name: health.ASRService, Enabled: true, BaseURL: cfg.CDPBaseURL, Token: cfg.CDPToken, Critical: true},
		{Name: health.LLMService, Enabled: cfg.NemotronEnabled, BaseURL: cfg.NemotronBaseURL, Token: cfg.CDPToken},
	}, log)

	solr := search.New(search.Config{
		Enabled:    cfg.SolrEnabled,
		BaseURL:    cfg.SolrBaseURL,
		Collection: cfg.SolrCollection,
		Token:      cfg.SolrAuthToken(),
	}, log, m)

	log.WithField("asr", asr.Endpoint()).
		WithField("llm_model", model.Model()).
		WithField("llm_enabled", model.Enabled()).
		WithField("solr_enabled", solr.Enabled()).
		Info("collaborators built")

	return &collaborators{
		deps: &processor.Deps{
			Health:      checker,
			Transcriber: asr,
			Analyzer:    analyzer,
			Search:      solr,
			AutoIndex:   cfg.AutoIndex,
		},
		health: checker,
		search: solr,
	}
}

func tokenConfig(cfg *config.Config) token.Config {
	return token.Config{
		Endpoint:  cfg.KnoxRenewalEndpoint,
		HadoopJWT: cfg.KnoxHadoopJWT,
		Interval:  cfg.TokenCheckInterval,
		Buffer:    cfg.TokenRenewalBuffer,
	}
}

// registerTokens tracks the tokens the collaborators use. An empty token
// unregisters its service.
func registerTokens(tm *token.Manager, cfg *config.Config) {
	tm.Register("cdp", cfg.CDPToken())
	solr := ""
	if cfg.SolrEnabled && cfg.SolrToken != "" {
		solr = cfg.SolrToken
	}
	tm.Register("solr", solr)
}
