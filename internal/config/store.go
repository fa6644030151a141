package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/types"
)

// Editable are the keys clients may change through the settings endpoint.
var Editable = map[string]bool{
	"CDP_BASE_URL":                true,
	"CDP_JWT_PATH":                true,
	"CDP_TOKEN":                   true,
	"DEFAULT_LANGUAGE":            true,
	"NEMOTRON_ENABLED":            true,
	"NEMOTRON_BASE_URL":           true,
	"NEMOTRON_MODEL_ID":           true,
	"SOLR_ENABLED":                true,
	"SOLR_BASE_URL":               true,
	"SOLR_COLLECTION_NAME":        true,
	"SOLR_TOKEN":                  true,
	"AUTO_INDEX":                  true,
	"AUTO_RENEW_TOKENS":           true,
	"KNOX_TOKEN_RENEWAL_ENDPOINT": true,
	"KNOX_HADOOP_JWT":             true,
}

var secretKeys = map[string]bool{"CDP_TOKEN": true, "SOLR_TOKEN": true, "KNOX_HADOOP_JWT": true}

// Store holds the current Config and persists edits to the env file.
// Readers always get a complete snapshot; subscribers run after each change.
type Store struct {
	path string
	log  *logger.Logger

	cur atomic.Pointer[Config]

	mu   sync.Mutex
	subs []func(*Config)
}

// NewStore loads the env file at path (created if missing) over the process
// environment. Values in the file win.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create env dir: %w", err)
			}
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return nil, fmt.Errorf("create env file: %w", err)
		}
	}
	s := &Store{path: path, log: logger.OrDiscard(log).Component("config")}
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cur.Store(cfg)
	return s, nil
}

// Snapshot returns the current settings.
func (s *Store) Snapshot() *Config { return s.cur.Load() }

// Path is the backing env file.
func (s *Store) Path() string { return s.path }

// OnChange registers fn to be called with every new snapshot.
func (s *Store) OnChange(fn func(*Config)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) load() (*Config, error) {
	file, err := godotenv.Read(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	cfg := loadFrom(func(key string) (string, bool) {
		if v, ok := file[key]; ok {
			return v, true
		}
		return os.LookupEnv(key)
	})
	cfg.EnvFile = s.path
	return cfg, nil
}

// Update validates and writes updates to the env file, then publishes the
// new snapshot. Masked secrets echoed back unchanged are ignored.
func (s *Store) Update(updates map[string]string) (*Config, error) {
	var unknown []string
	for k := range updates {
		if !Editable[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, types.NewCollaboratorError("settings", types.ErrBadRequest, 0,
			"unknown or read-only settings: "+strings.Join(unknown, ", "), "")
	}

	s.mu.Lock()
	file, err := godotenv.Read(s.path)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	for k, v := range updates {
		v = strings.TrimSpace(v)
		if secretKeys[k] && strings.Contains(v, "...") && v == Mask(file[k]) {
			continue
		}
		file[k] = v
	}
	if err := godotenv.Write(file, s.path); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("write %s: %w", s.path, err)
	}
	s.mu.Unlock()

	s.log.WithField("keys", len(updates)).Info("settings updated")
	return s.reload()
}

// reload re-reads the file and notifies subscribers when anything changed.
func (s *Store) reload() (*Config, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	prev := s.cur.Swap(cfg)
	if prev != nil && reflect.DeepEqual(prev, cfg) {
		return cfg, nil
	}

	s.mu.Lock()
	subs := append([]func(*Config){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
	return cfg, nil
}

// Watch reloads the settings whenever the env file is edited on disk, until
// ctx is cancelled. The directory is watched so editors that replace the
// file are picked up.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	s.log.WithField("file", abs).Info("watching settings file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != abs {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, err := s.reload(); err != nil {
				s.log.WithError(err).Warn("reload settings failed")
				continue
			}
			s.log.Debug("settings reloaded from disk")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("settings watcher error")
		}
	}
}
