package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/pilosa/brewery/file"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// WriteStats summarizes a committed output tree.
type WriteStats struct {
	Rows  int
	Files int
	// Partitions holds the partition directory names in lexical order. It
	// is empty for unpartitioned output.
	Partitions []string
}

type fileJob[T any] struct {
	path string
	rows []T
}

// Write writes rows as an unpartitioned Parquet tree at dest, replacing
// whatever was there. An empty input still produces one file so the schema
// can be read back.
func Write[T any](ctx context.Context, s *Session, dest string, rows []T) (WriteStats, error) {
	staging, err := s.stage(dest)
	if err != nil {
		return WriteStats{}, errors.Wrap(err, "staging output")
	}
	jobs := chunk(s, staging, rows)
	if len(jobs) == 0 {
		jobs = []fileJob[T]{{path: filepath.Join(staging, s.partName(0))}}
	}
	if err := writeFiles(ctx, s, jobs); err != nil {
		return WriteStats{}, err
	}
	if err := s.commit(staging, dest); err != nil {
		return WriteStats{}, errors.Wrap(err, "committing output")
	}
	s.log.Printf("wrote %d rows in %d files to %s", len(rows), len(jobs), dest)
	return WriteStats{Rows: len(rows), Files: len(jobs)}, nil
}

// WritePartitioned writes rows as a Parquet tree at dest with one
// column=value directory per distinct key, replacing whatever was there.
// Rows keep their input order within a partition. The partition column is
// carried by the directory name, so T should not also store it in the file.
func WritePartitioned[T any](ctx context.Context, s *Session, dest, column string, key func(T) *string, rows []T) (WriteStats, error) {
	staging, err := s.stage(dest)
	if err != nil {
		return WriteStats{}, errors.Wrap(err, "staging output")
	}

	groups := make(map[string][]T)
	for _, row := range rows {
		dir := PartitionDir(column, key(row))
		groups[dir] = append(groups[dir], row)
	}
	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	jobs := make([]fileJob[T], 0, len(dirs))
	for _, dir := range dirs {
		pdir := filepath.Join(staging, dir)
		if err := os.MkdirAll(pdir, 0755); err != nil {
			return WriteStats{}, errors.Wrapf(err, "making partition %s", dir)
		}
		jobs = append(jobs, chunk(s, pdir, groups[dir])...)
	}
	if err := writeFiles(ctx, s, jobs); err != nil {
		return WriteStats{}, err
	}
	if err := s.commit(staging, dest); err != nil {
		return WriteStats{}, errors.Wrap(err, "committing output")
	}
	s.log.Printf("wrote %d rows in %d files over %d partitions to %s", len(rows), len(jobs), len(dirs), dest)
	return WriteStats{Rows: len(rows), Files: len(jobs), Partitions: dirs}, nil
}

func (s *Session) partName(i int) string {
	return fmt.Sprintf("part-%05d%s", i, s.fileSuffix())
}

// chunk splits rows into file jobs under dir, at most maxRowsPerFile rows
// each.
func chunk[T any](s *Session, dir string, rows []T) []fileJob[T] {
	if len(rows) == 0 {
		return nil
	}
	per := s.maxRowsPerFile
	if per <= 0 {
		per = len(rows)
	}
	jobs := make([]fileJob[T], 0, (len(rows)+per-1)/per)
	for i := 0; i*per < len(rows); i++ {
		end := (i + 1) * per
		if end > len(rows) {
			end = len(rows)
		}
		jobs = append(jobs, fileJob[T]{
			path: filepath.Join(dir, s.partName(i)),
			rows: rows[i*per : end],
		})
	}
	return jobs
}

func writeFiles[T any](ctx context.Context, s *Session, jobs []fileJob[T]) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := writeFile(job.path, job.rows, s); err != nil {
				return errors.Wrapf(err, "writing %s", job.path)
			}
			s.stats.Count("engine.files_written", 1, 1)
			s.stats.Count("engine.rows_written", int64(len(job.rows)), 1)
			return nil
		})
	}
	return g.Wait()
}

func writeFile[T any](path string, rows []T, s *Session) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing file")
		}
	}()

	w := parquet.NewGenericWriter[T](f, parquet.Compression(s.codec))
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return errors.Wrap(err, "writing rows")
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "closing parquet writer")
	}
	return nil
}

// Read reads every Parquet file in the tree at dir, in lexical path order.
func Read[T any](ctx context.Context, s *Session, dir string) ([]T, error) {
	return read[T](ctx, s, dir, nil)
}

// ReadPartitioned reads a tree written by WritePartitioned. For each row, set
// is called with the value recovered from the column=value directory the row
// was found under.
func ReadPartitioned[T any](ctx context.Context, s *Session, dir, column string, set func(row *T, value *string)) ([]T, error) {
	return read[T](ctx, s, dir, func(rel string, rows []T) error {
		val, err := partitionValue(rel, column)
		if err != nil {
			return err
		}
		for i := range rows {
			set(&rows[i], val)
		}
		return nil
	})
}

func read[T any](ctx context.Context, s *Session, dir string, fix func(rel string, rows []T) error) ([]T, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}
	if _, err := os.Stat(filepath.Join(dir, SuccessMarker)); err != nil {
		s.log.Printf("%s has no %s marker, reading it anyway", dir, SuccessMarker)
	}

	rs, err := file.NewRawSource(dir, file.OptRawRecursive(true), file.OptRawSuffix(".parquet"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	all := make([]T, 0)
	for _, p := range rs.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := readFile[T](p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", p)
		}
		if fix != nil {
			if err := fix(rs.Rel(p), rows); err != nil {
				return nil, err
			}
		}
		s.stats.Count("engine.files_read", 1, 1)
		all = append(all, rows...)
	}
	s.log.Debugf("read %d rows from %d files under %s", len(all), len(rs.Files()), dir)
	return all, nil
}

func readFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "statting file")
	}
	// OpenFile reports a corrupt footer as an error, NewGenericReader would
	// panic on it.
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, errors.Wrap(err, "opening parquet file")
	}

	r := parquet.NewGenericReader[T](pf)
	defer r.Close()

	rows := make([]T, r.NumRows())
	n := 0
	for n < len(rows) {
		m, err := r.Read(rows[n:])
		n += m
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "reading rows")
		}
		if m == 0 {
			break
		}
	}
	return rows[:n], nil
}
