package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"healthcare-call-insights/internal/api"
	"healthcare-call-insights/internal/config"
	"healthcare-call-insights/internal/events"
	"healthcare-call-insights/internal/files"
	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/processor"
	"healthcare-call-insights/internal/store"
	"healthcare-call-insights/internal/token"
)

func main() {
	_ = godotenv.Load() // loads .env

	boot := config.Load()
	log := logger.NewWith(boot.Environment, boot.LogLevel, os.Stdout)
	log.WithField("environment", boot.Environment).Info("starting service")

	settings, err := config.NewStore(boot.EnvFile, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load settings")
	}
	cfg := settings.Snapshot()
	log.WithField("env_file", settings.Path()).Info("settings loaded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewAnalysisMetrics(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var counter store.VersionCounter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).WithField("addr", cfg.RedisAddr).Fatal("redis unreachable")
		}
		counter = store.NewRedisCounter(rdb, "")
		log.WithField("addr", cfg.RedisAddr).Info("using redis version counter")
	}
	results, err := store.New(cfg.ResultsDir, counter, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open results store")
	}
	log.WithField("results_dir", results.Dir()).Info("results store ready")
	library, err := files.NewManager(cfg.AudioFilesDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open audio directory")
	}

	pub := events.New(events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, Enabled: cfg.KafkaEnabled}, log, m)
	defer pub.Close()

	live := &current{}
	c := build(cfg, log, m)
	live.p.Store(c)
	proc := processor.New(c.deps, results, library, pub, log, m)

	tokens := token.NewManager(tokenConfig(cfg), log, m)
	registerTokens(tokens, cfg)

	settings.OnChange(func(next *config.Config) {
		c := build(next, log, m)
		live.p.Store(c)
		proc.Swap(c.deps)
		tokens.Reconfigure(tokenConfig(next))
		registerTokens(tokens, next)
		if next.AutoRenewTokens {
			tokens.Start(ctx)
		} else {
			tokens.Stop()
		}
	})

	go func() {
		if err := settings.Watch(ctx); err != nil {
			log.WithError(err).Warn("settings watcher stopped")
		}
	}()
	if cfg.AutoRenewTokens {
		tokens.Start(ctx)
	}
	if !cfg.Ready() {
		log.Warn("service is not fully configured, see /api/setup-check")
	}

	router := api.New(api.Config{
		Settings:      settings,
		Processor:     proc,
		Results:       results,
		Files:         library,
		Tokens:        tokens,
		Collaborators: live,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:        log,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := newServer(addr, router)

	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	tokens.Stop()
}

// newServer leaves body reads and response writes unbounded: uploads are
// capped by size and analysis requests by their own context deadline.
func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
