// Package store keeps versioned analysis snapshots as JSON files, one file
// per (source, version).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/types"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = types.ErrNotFound

// TimestampLayout is the save-time part of a snapshot filename.
const TimestampLayout = "20060102_150405"

// <stem>_v<version>_<YYYYmmdd_HHMMSS>.json
var snapshotName = regexp.MustCompile(`^(.+)_v(\d+)_(\d{8}_\d{6})\.json$`)

type fileEntry struct {
	name    string
	stem    string
	version int
	modTime time.Time
}

type Store struct {
	dir     string
	counter VersionCounter
	log     *logger.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens (and creates) the results directory. counter may be nil, in
// which case versions are assigned in process.
func New(dir string, counter VersionCounter, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	if counter == nil {
		counter = LocalCounter{}
	}
	return &Store{
		dir:     dir,
		counter: counter,
		log:     logger.OrDiscard(log).Component("store"),
		now:     time.Now,
		locks:   map[string]*sync.Mutex{},
	}, nil
}

// Dir returns the results directory.
func (s *Store) Dir() string { return s.dir }

// Stem is the source file name without directory and extension.
func Stem(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *Store) lockFor(stem string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[stem]
	if !ok {
		l = &sync.Mutex{}
		s.locks[stem] = l
	}
	return l
}

// Save assigns the next version for the snapshot's source, stamps version
// and version_timestamp into it and writes it. Saves for the same source
// are serialized.
func (s *Store) Save(ctx context.Context, snap *types.Snapshot) (int, error) {
	stem := Stem(snap.FilePath)
	l := s.lockFor(stem)
	l.Lock()
	defer l.Unlock()

	entries, err := s.entries(stem)
	if err != nil {
		return 0, err
	}
	highest := len(entries)
	for _, e := range entries {
		if e.version > highest {
			highest = e.version
		}
	}

	version, err := s.counter.Next(ctx, stem, highest)
	if err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}

	ts := s.now().Format(TimestampLayout)
	snap.Version = version
	snap.VersionTimestamp = ts

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	name := fmt.Sprintf("%s_v%d_%s.json", stem, version, ts)
	if err := writeFileAtomic(filepath.Join(s.dir, name), body); err != nil {
		return 0, err
	}
	s.log.WithField("file", name).WithField("version", version).Info("analysis result saved")
	return version, nil
}

func writeFileAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// entries lists snapshot files; an empty stem lists every source.
func (s *Store) entries(stem string) ([]fileEntry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}
	var out []fileEntry
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		m := snapshotName.FindStringSubmatch(de.Name())
		if m == nil || (stem != "" && m[1] != stem) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		v, _ := strconv.Atoi(m[2])
		out = append(out, fileEntry{name: de.Name(), stem: m[1], version: v, modTime: info.ModTime()})
	}
	return out, nil
}

// newestFirst orders by modification time, then by version.
func newestFirst(es []fileEntry) {
	sort.SliceStable(es, func(i, j int) bool {
		if !es[i].modTime.Equal(es[j].modTime) {
			return es[i].modTime.After(es[j].modTime)
		}
		return es[i].version > es[j].version
	})
}

func (s *Store) read(name string) (*types.Snapshot, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	var snap types.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &snap, nil
}

// Latest returns the most recently written snapshot for a source.
func (s *Store) Latest(sourcePath string) (*types.Snapshot, error) {
	es, err := s.entries(Stem(sourcePath))
	if err != nil {
		return nil, err
	}
	if len(es) == 0 {
		return nil, ErrNotFound
	}
	newestFirst(es)
	return s.read(es[0].name)
}

// Version returns the snapshot stored as version n. If several files carry
// the same version the newest wins.
func (s *Store) Version(sourcePath string, n int) (*types.Snapshot, error) {
	es, err := s.entries(Stem(sourcePath))
	if err != nil {
		return nil, err
	}
	var matches []fileEntry
	for _, e := range es {
		if e.version == n {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		s.log.WithField("source", sourcePath).WithField("version", n).Warn("version not found")
		return nil, ErrNotFound
	}
	newestFirst(matches)
	return s.read(matches[0].name)
}

// ListVersions returns every version of a source, highest first. Unreadable
// files are skipped.
func (s *Store) ListVersions(sourcePath string) ([]types.VersionInfo, error) {
	es, err := s.entries(Stem(sourcePath))
	if err != nil {
		return nil, err
	}
	out := []types.VersionInfo{}
	for _, e := range es {
		snap, err := s.read(e.name)
		if err != nil {
			s.log.WithError(err).WithField("file", e.name).Warn("skipping unreadable result file")
			continue
		}
		out = append(out, types.VersionInfo{
			Filename:         e.name,
			Version:          snap.Version,
			Timestamp:        snap.Timestamp,
			ProcessingTime:   snap.ProcessingTime,
			VersionTimestamp: snap.VersionTimestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version > out[j].Version
		}
		return out[i].Filename > out[j].Filename
	})
	return out, nil
}

// ListRecent returns up to limit snapshots across all sources, newest
// first, with result_file and saved_at filled in.
func (s *Store) ListRecent(limit int) ([]types.Snapshot, error) {
	es, err := s.entries("")
	if err != nil {
		return nil, err
	}
	newestFirst(es)

	out := []types.Snapshot{}
	for _, e := range es {
		if limit > 0 && len(out) >= limit {
			break
		}
		snap, err := s.read(e.name)
		if err != nil {
			s.log.WithError(err).WithField("file", e.name).Warn("skipping unreadable result file")
			continue
		}
		saved := e.modTime
		snap.ResultFile = e.name
		snap.SavedAt = &saved
		out = append(out, *snap)
	}
	return out, nil
}
