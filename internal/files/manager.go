// Package files manages the audio library directory.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/types"
)

// AudioExtensions are the file types shown in the library.
var AudioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true, ".ogg": true, ".opus": true,
}

var (
	ErrOutsideRoot = fmt.Errorf("%w: path escapes the audio directory", types.ErrBadRequest)
	ErrIsDirectory = fmt.Errorf("%w: cannot delete directories, only files", types.ErrBadRequest)
)

// Node is a file or directory in the library tree.
type Node struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	Type          string    `json:"type"`
	Size          int64     `json:"size,omitempty"`
	SizeFormatted string    `json:"size_formatted,omitempty"`
	Extension     string    `json:"extension,omitempty"`
	Modified      time.Time `json:"modified"`
	HasChildren   bool      `json:"has_children,omitempty"`
	Items         []Node    `json:"items,omitempty"`
}

type Manager struct {
	root string
	log  *logger.Logger
}

// NewManager opens (and creates) the audio directory.
func NewManager(root string, log *logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Manager{root: abs, log: logger.OrDiscard(log).Component("files")}, nil
}

// Root returns the absolute library directory.
func (m *Manager) Root() string { return m.root }

// FullPath resolves a library-relative path, rejecting anything outside the
// library root.
func (m *Manager) FullPath(rel string) (string, error) {
	full := filepath.Join(m.root, filepath.FromSlash(rel))
	if full != m.root && !strings.HasPrefix(full, m.root+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

func (m *Manager) relative(full string) string {
	r, err := filepath.Rel(m.root, full)
	if err != nil || r == "." {
		return ""
	}
	return filepath.ToSlash(r)
}

// Tree lists one level of the library at rel.
func (m *Manager) Tree(rel string) (*Node, error) {
	full, err := m.FullPath(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, rel)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		n := fileNode(info, m.relative(full))
		return &n, nil
	}

	des, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	sort.Slice(des, func(i, j int) bool { return des[i].Name() < des[j].Name() })

	name := info.Name()
	if full == m.root {
		name = "root"
	}
	node := &Node{Name: name, Path: m.relative(full), Type: "directory", Modified: info.ModTime(), Items: []Node{}}
	for _, de := range des {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		childPath := filepath.Join(full, de.Name())
		if de.IsDir() {
			node.Items = append(node.Items, Node{
				Name:        de.Name(),
				Path:        m.relative(childPath),
				Type:        "directory",
				Modified:    fi.ModTime(),
				HasChildren: hasChildren(childPath),
			})
			continue
		}
		if AudioExtensions[strings.ToLower(filepath.Ext(de.Name()))] {
			node.Items = append(node.Items, fileNode(fi, m.relative(childPath)))
		}
	}
	return node, nil
}

func fileNode(fi os.FileInfo, rel string) Node {
	return Node{
		Name:          fi.Name(),
		Path:          rel,
		Type:          "file",
		Size:          fi.Size(),
		SizeFormatted: FormatSize(fi.Size()),
		Extension:     strings.ToLower(filepath.Ext(fi.Name())),
		Modified:      fi.ModTime(),
	}
}

func hasChildren(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()
	names, _ := f.Readdirnames(1)
	return len(names) > 0
}

// FormatSize renders a byte count with one decimal and a binary unit.
func FormatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}

// Save writes an uploaded file into folder. An existing name gets a _N
// suffix. Returns the library-relative path.
func (m *Manager) Save(folder, name string, r io.Reader) (string, error) {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("%w: missing file name", types.ErrBadRequest)
	}
	dir, err := m.FullPath(folder)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	var f *os.File
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		f, err = os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create file: %w", err)
		}
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	rel := m.relative(f.Name())
	m.log.WithField("path", rel).Info("file saved")
	return rel, nil
}

// CreateFolder makes parent/name and returns its relative path.
func (m *Manager) CreateFolder(parent, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", fmt.Errorf("%w: invalid folder name %q", types.ErrBadRequest, name)
	}
	full, err := m.FullPath(filepath.Join(parent, name))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	rel := m.relative(full)
	m.log.WithField("path", rel).Info("folder created")
	return rel, nil
}

// Delete removes one file. Directories are refused.
func (m *Manager) Delete(rel string) error {
	full, err := m.FullPath(rel)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		m.log.WithField("path", rel).Warn("file not found for deletion")
		return fmt.Errorf("%w: %s", types.ErrNotFound, rel)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return ErrIsDirectory
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	m.log.WithField("path", rel).Info("file deleted")
	return nil
}
