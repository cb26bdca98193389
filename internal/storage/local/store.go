// Package local manages the on-disk output tree: the per-entity directory
// layout, atomic artifact writes and the existence checks that make retrieval
// idempotent.
package local

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Directory names inside an entity root.
const (
	PagesDir         = "pages"
	AnnualReportsDir = "annual_reports"
	CreditRatingsDir = "credit_ratings"
	ConcallsDir      = "concalls"
)

// ErrEmptyArtifact is returned when asked to persist zero bytes.
var ErrEmptyArtifact = errors.New("artifact is empty")

// ErrOutsideBase is returned for paths that escape the base directory.
var ErrOutsideBase = errors.New("path escapes output directory")

// Config captures the parameters for the local output store.
type Config struct {
	// BaseDir is the root directory holding one subdirectory per entity.
	BaseDir string `mapstructure:"dir" yaml:"dir"`
}

// Layout is the directory tree owned by one entity.
type Layout struct {
	Entity        string
	Root          string
	Pages         string
	AnnualReports string
	CreditRatings string
	Concalls      string
}

// Dirs lists every directory of the layout, root first.
func (l Layout) Dirs() []string {
	return []string{l.Root, l.Pages, l.AnnualReports, l.CreditRatings, l.Concalls}
}

// Store reads and writes artifacts below a base directory.
type Store struct {
	baseDir string
}

// New creates the base directory when needed and checks it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	base, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	info, err := os.Stat(base)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(base, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	check, err := os.CreateTemp(base, ".writable_*")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	name := check.Name()
	_ = check.Close()
	if err := os.Remove(name); err != nil {
		return nil, fmt.Errorf("failed to clean up writability check file: %w", err)
	}

	return &Store{baseDir: base}, nil
}

// BaseDir returns the absolute base directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// LayoutFor returns the layout paths for entity without touching the disk.
func (s *Store) LayoutFor(entity string) (Layout, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" || strings.ContainsAny(entity, `/\`) || entity == "." || entity == ".." {
		return Layout{}, fmt.Errorf("invalid entity directory %q", entity)
	}
	root := filepath.Join(s.baseDir, entity)
	return Layout{
		Entity:        entity,
		Root:          root,
		Pages:         filepath.Join(root, PagesDir),
		AnnualReports: filepath.Join(root, AnnualReportsDir),
		CreditRatings: filepath.Join(root, CreditRatingsDir),
		Concalls:      filepath.Join(root, ConcallsDir),
	}, nil
}

// EnsureLayout creates the entity's directory tree. Existing directories are
// left untouched.
func (s *Store) EnsureLayout(entity string) (Layout, error) {
	layout, err := s.LayoutFor(entity)
	if err != nil {
		return Layout{}, err
	}
	for _, dir := range layout.Dirs() {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Layout{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return layout, nil
}

// EnsureDir creates dir, which must live under the base directory.
func (s *Store) EnsureDir(dir string) error {
	if err := s.within(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// HasArtifact reports whether a non-empty regular file exists at path.
func (s *Store) HasArtifact(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return 0, false
	}
	return info.Size(), true
}

// partialExts mark downloads that were interrupted before completion.
var partialExts = map[string]bool{"part": true, "ytdl": true, "temp": true, "tmp": true}

// HasStem reports whether any non-empty file named "<stem>.<ext>" exists,
// where stemPath is the path without extension. ext is a single extension;
// leftovers such as "<stem>.mp3.part" do not count.
func (s *Store) HasStem(stemPath string) (string, int64, bool) {
	dir, stem := filepath.Split(stemPath)
	return s.find(dir, func(name string) bool {
		ext, ok := strings.CutPrefix(name, stem+".")
		if !ok || ext == "" || strings.Contains(ext, ".") {
			return false
		}
		return !partialExts[strings.ToLower(ext)]
	})
}

// FindByExt returns the first non-empty file in dir with extension ext.
func (s *Store) FindByExt(dir, ext string) (string, int64, bool) {
	ext = strings.ToLower(ext)
	return s.find(dir, func(name string) bool {
		return strings.ToLower(filepath.Ext(name)) == ext
	})
}

func (s *Store) find(dir string, match func(string) bool) (string, int64, bool) {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, false
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !match(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if size, ok := s.HasArtifact(path); ok {
			return path, size, true
		}
	}
	return "", 0, false
}

// WriteArtifact atomically writes body to path. A failed write never leaves
// a partial or zero-byte file at path.
func (s *Store) WriteArtifact(path string, body []byte) (int64, error) {
	if len(body) == 0 {
		return 0, ErrEmptyArtifact
	}
	if err := s.within(path); err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := tmp.Write(body)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("rename into %s: %w", path, err)
	}
	committed = true
	return int64(n), nil
}

// Adopt moves a file written elsewhere (a browser download) to dst. Empty
// sources are discarded and reported as ErrEmptyArtifact.
func (s *Store) Adopt(src, dst string) (int64, error) {
	if err := s.within(dst); err != nil {
		return 0, err
	}
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat download: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(src)
		return 0, ErrEmptyArtifact
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return info.Size(), nil
	}

	// Cross-device move: copy through WriteArtifact so dst stays atomic.
	in, err := os.Open(src) // #nosec G304 -- src is a download path we created
	if err != nil {
		return 0, fmt.Errorf("open download: %w", err)
	}
	body, err := io.ReadAll(in)
	_ = in.Close()
	if err != nil {
		return 0, fmt.Errorf("read download: %w", err)
	}
	n, err := s.WriteArtifact(dst, body)
	if err != nil {
		return 0, err
	}
	_ = os.Remove(src)
	return n, nil
}

// SavePage stores a rendered page snapshot under the layout's pages directory.
func (s *Store) SavePage(layout Layout, name string, markup []byte) (string, error) {
	path := filepath.Join(layout.Pages, name+".html")
	if _, err := s.WriteArtifact(path, markup); err != nil {
		return "", fmt.Errorf("save page snapshot: %w", err)
	}
	return path, nil
}

func (s *Store) within(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if !strings.HasPrefix(filepath.Clean(abs), s.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideBase, path)
	}
	return nil
}
