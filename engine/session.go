package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/pilosa/brewery"
	"github.com/pkg/errors"
)

// ErrSessionClosed is returned by operations on a closed Session.
const ErrSessionClosed = brewery.Error("engine session is closed")

// SuccessMarker is written at the root of every committed output tree.
const SuccessMarker = "_SUCCESS"

// Session is a scope for reading and writing Parquet trees. Output is staged
// next to its destination and only swapped into place on success; Close
// removes whatever staging is left over. Open a session per stage and always
// defer Close.
type Session struct {
	name           string
	concurrency    int
	maxRowsPerFile int
	compression    string
	codec          compress.Codec
	log            brewery.Logger
	stats          brewery.Statter

	mu     sync.Mutex
	staged map[string]struct{}
	closed bool
}

// Option configures a Session.
type Option func(s *Session) error

// OptName names the session in logs.
func OptName(name string) Option {
	return func(s *Session) error {
		s.name = name
		return nil
	}
}

// OptConcurrency sets how many files may be written at once.
func OptConcurrency(n int) Option {
	return func(s *Session) error {
		if n < 1 {
			return errors.Errorf("concurrency must be at least 1, got %d", n)
		}
		s.concurrency = n
		return nil
	}
}

// OptMaxRowsPerFile splits output into files of at most n rows. Zero means
// one file per partition.
func OptMaxRowsPerFile(n int) Option {
	return func(s *Session) error {
		if n < 0 {
			return errors.Errorf("max rows per file can't be negative, got %d", n)
		}
		s.maxRowsPerFile = n
		return nil
	}
}

// OptCompression sets the Parquet compression codec: snappy, gzip, zstd or
// none.
func OptCompression(name string) Option {
	return func(s *Session) error {
		codec, err := codecFor(name)
		if err != nil {
			return err
		}
		s.compression = strings.ToLower(name)
		s.codec = codec
		return nil
	}
}

// OptLogger sets the session logger.
func OptLogger(l brewery.Logger) Option {
	return func(s *Session) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// OptStatter sets the session stats collector.
func OptStatter(st brewery.Statter) Option {
	return func(s *Session) error {
		if st != nil {
			s.stats = st
		}
		return nil
	}
}

// Open starts a new Session.
func Open(opts ...Option) (*Session, error) {
	s := &Session{
		name:        "brewery",
		concurrency: 4,
		compression: "snappy",
		codec:       &parquet.Snappy,
		log:         brewery.NopLogger{},
		stats:       brewery.NopStatter{},
		staged:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "applying session option")
		}
	}
	s.log.Debugf("session %s opened: concurrency=%d max-rows-per-file=%d compression=%s", s.name, s.concurrency, s.maxRowsPerFile, s.compression)
	return s, nil
}

func codecFor(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "snappy", "":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, errors.Errorf("unknown compression codec '%s'", name)
	}
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Logger returns the session logger so stages log through the same sink.
func (s *Session) Logger() brewery.Logger { return s.log }

// Statter returns the session stats collector.
func (s *Session) Statter() brewery.Statter { return s.stats }

// fileSuffix follows the names Spark gives its part files.
func (s *Session) fileSuffix() string {
	switch s.compression {
	case "gzip":
		return ".gz.parquet"
	case "zstd":
		return ".zstd.parquet"
	case "none", "uncompressed":
		return ".parquet"
	default:
		return ".snappy.parquet"
	}
}

// Close removes any staged output that was never committed. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for dir := range s.staged {
		s.log.Debugf("session %s removing uncommitted %s", s.name, dir)
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "removing staging dir %s", dir)
		}
		delete(s.staged, dir)
	}
	s.log.Debugf("session %s closed", s.name)
	return firstErr
}

// stage creates an empty directory beside dest to build output in.
func (s *Session) stage(dest string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", errors.Wrapf(err, "making directory %s", parent)
	}
	dir := dest + ".staging-" + uuid.New().String()
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", errors.Wrap(err, "making staging dir")
	}
	s.staged[dir] = struct{}{}
	return dir, nil
}

// commit marks staging as complete and swaps it into dest, replacing
// anything already there.
func (s *Session) commit(staging, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.staged[staging]; !ok {
		return errors.Errorf("%s is not staged in this session", staging)
	}

	f, err := os.Create(filepath.Join(staging, SuccessMarker))
	if err != nil {
		return errors.Wrap(err, "writing success marker")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing success marker")
	}

	var old string
	if _, err := os.Lstat(dest); err == nil {
		old = dest + ".old-" + uuid.New().String()
		if err := os.Rename(dest, old); err != nil {
			return errors.Wrapf(err, "moving aside existing %s", dest)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "statting %s", dest)
	}

	if err := os.Rename(staging, dest); err != nil {
		if old != "" {
			if rerr := os.Rename(old, dest); rerr != nil {
				s.log.Printf("couldn't restore %s from %s: %v", dest, old, rerr)
			}
		}
		return errors.Wrapf(err, "renaming staging into %s", dest)
	}
	delete(s.staged, staging)

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			s.log.Printf("couldn't remove previous output %s: %v", old, err)
		}
	}
	return nil
}
