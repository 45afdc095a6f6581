package file

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pilosa/brewery"
	"github.com/pkg/errors"
)

var _ brewery.RawSource = &RawSource{}

// RawSource hands out the files under a path one at a time. If the path is a
// regular file, that file is the only one. Files are visited in lexical order
// of their path relative to the root, and hidden files and directories
// (leading '.' or '_') are skipped, like Hadoop style readers do.
type RawSource struct {
	root    string
	files   []string
	fileIdx *uint64

	suffix    string
	recursive bool
}

// RawOption is a functional option for the RawSource.
type RawOption func(s *RawSource)

// OptRawSuffix restricts the source to files whose names end in suffix.
func OptRawSuffix(suffix string) RawOption {
	return func(s *RawSource) {
		s.suffix = suffix
	}
}

// OptRawRecursive makes the source descend into subdirectories.
func OptRawRecursive(recursive bool) RawOption {
	return func(s *RawSource) {
		s.recursive = recursive
	}
}

// NewRawSource lists the files under pathname.
func NewRawSource(pathname string, opts ...RawOption) (*RawSource, error) {
	fileIdx := uint64(0)
	s := &RawSource{
		root:    pathname,
		fileIdx: &fileIdx,
	}
	for _, opt := range opts {
		opt(s)
	}
	info, err := os.Stat(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if !info.IsDir() {
		s.root = filepath.Dir(pathname)
		s.files = []string{pathname}
		return s, nil
	}

	err = filepath.Walk(pathname, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == pathname {
			return nil
		}
		if hidden(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if !s.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if s.suffix != "" && !strings.HasSuffix(info.Name(), s.suffix) {
			return nil
		}
		s.files = append(s.files, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking directory")
	}
	sort.Strings(s.files)
	return s, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// Root returns the directory that file names are relative to.
func (s *RawSource) Root() string { return s.root }

// Files returns the full paths of all files the source will visit.
func (s *RawSource) Files() []string {
	return append([]string(nil), s.files...)
}

// Rel returns the path of p relative to the source root, with forward
// slashes.
func (s *RawSource) Rel(p string) string {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

type namedFile struct {
	*os.File
	name string
}

func (n *namedFile) Name() string { return n.name }

// NextReader implements brewery.RawSource. It is safe for concurrent use.
func (s *RawSource) NextReader() (brewery.NamedReadCloser, error) {
	idx := atomic.AddUint64(s.fileIdx, 1) - 1
	if int(idx) >= len(s.files) {
		return nil, io.EOF
	}

	file, err := os.Open(s.files[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", s.files[idx])
	}
	return &namedFile{File: file, name: s.Rel(s.files[idx])}, nil
}
