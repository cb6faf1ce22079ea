// Package selector walks a distribution directory and yields the files that
// are eligible for upload.
package selector

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
)

// ErrRootNotFound is yielded when the distribution root does not exist.
var ErrRootNotFound = errors.New("distribution root not found")

// DefaultExtensions is the upload allowlist.
var DefaultExtensions = []string{
	"html", "css", "js", "mjs",
	"png", "jpg", "jpeg", "gif", "svg", "webp", "avif", "ico", "bmp", "tif", "tiff",
	"woff", "woff2", "ttf", "otf", "eot",
}

var excludedDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
}

// Candidate is a file selected for upload.
type Candidate struct {
	// Path is the file path as traversed, suitable for os.Open.
	Path string
	// RelativePath is slash-separated and relative to the root.
	RelativePath string
}

// Selector filters a directory tree by extension.
type Selector struct {
	root  string
	allow map[string]struct{}
}

// New creates a Selector for root. Extensions are matched case-insensitively
// and may be given with or without a leading dot.
func New(root string, extensions []string) *Selector {
	allow := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allow[ext] = struct{}{}
		}
	}
	return &Selector{root: root, allow: allow}
}

// Root returns the directory the selector walks.
func (s *Selector) Root() string {
	return s.root
}

// Candidates returns a lazy sequence over matching files in lexical order.
// Traversal stops at the first error, which is yielded with a zero Candidate.
func (s *Selector) Candidates() iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		stopped := false
		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == s.root && errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("%w: %s", ErrRootNotFound, s.root)
				}
				return fmt.Errorf("walk %s: %w", path, err)
			}

			if d.IsDir() {
				if _, skip := excludedDirs[d.Name()]; skip && path != s.root {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || !s.Matches(d.Name()) {
				return nil
			}

			if !yield(Candidate{Path: path, RelativePath: RelativePath(s.root, path)}, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Candidate{}, err)
		}
	}
}

// Collect drains Candidates into a slice.
func (s *Selector) Collect() ([]Candidate, error) {
	var out []Candidate
	for candidate, err := range s.Candidates() {
		if err != nil {
			return nil, err
		}
		out = append(out, candidate)
	}
	return out, nil
}

// Matches reports whether name carries an allowlisted extension.
func (s *Selector) Matches(name string) bool {
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	_, ok := s.allow[strings.ToLower(ext[1:])]
	return ok
}

// RelativePath derives the remote key for path: the root prefix, any "./"
// and leading separators are removed and separators become slashes.
func RelativePath(root, path string) string {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(path)

	rel := cleanPath
	if cleanRoot != "." {
		if r, err := filepath.Rel(cleanRoot, cleanPath); err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			rel = r
		}
	}

	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "./")
	return strings.TrimLeft(rel, "/")
}
