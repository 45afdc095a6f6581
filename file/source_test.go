package file

import (
	"io"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/test"
)

func TestRawSource(t *testing.T) {
	d := test.MustTempDir(t, "testrawsource")
	test.MustWriteFile(t, d, "b.json", `blah blah blah`)
	test.MustWriteFile(t, d, "a.json", `hahahahahahahaha`)
	test.MustWriteFile(t, d, "sub/c.json", `nested`)

	rs, err := NewRawSource(d)
	test.ErrNil(t, err, "getting raw source")

	gotNames := make([]string, 0, 2)
	contents := make([]string, 0, 2)
	var reader brewery.NamedReadCloser
	for reader, err = rs.NextReader(); err == nil; reader, err = rs.NextReader() {
		gotNames = append(gotNames, reader.Name())
		buf, err := ioutil.ReadAll(reader)
		test.ErrNil(t, err, "reading file")
		contents = append(contents, string(buf))
		reader.Close()
	}
	if err != io.EOF {
		t.Fatalf("unexpected NextReader error: %v", err)
	}
	test.MustBe(t, gotNames, []string{"a.json", "b.json"})
	test.MustBe(t, contents, []string{"hahahahahahahaha", "blah blah blah"})
}

func TestRawSourceRecursive(t *testing.T) {
	d := test.MustTempDir(t, "testrawsource")
	test.MustWriteFile(t, d, "state=Ohio/part-00000.snappy.parquet", "x")
	test.MustWriteFile(t, d, "state=Ohio/part-00001.snappy.parquet", "x")
	test.MustWriteFile(t, d, "state=Iowa/part-00000.snappy.parquet", "x")
	test.MustWriteFile(t, d, "state=Iowa/.part-00000.snappy.parquet.crc", "x")
	test.MustWriteFile(t, d, "_SUCCESS", "")
	test.MustWriteFile(t, d, "_temporary/part-00000.snappy.parquet", "x")
	test.MustWriteFile(t, d, "notes.txt", "x")

	rs, err := NewRawSource(d, OptRawRecursive(true), OptRawSuffix(".parquet"))
	test.ErrNil(t, err, "getting raw source")

	rels := make([]string, 0)
	for _, f := range rs.Files() {
		rels = append(rels, rs.Rel(f))
	}
	test.MustBe(t, rels, []string{
		"state=Iowa/part-00000.snappy.parquet",
		"state=Ohio/part-00000.snappy.parquet",
		"state=Ohio/part-00001.snappy.parquet",
	})
}

func TestRawSourceSingleFile(t *testing.T) {
	d := test.MustTempDir(t, "testrawsource")
	p := test.MustWriteFile(t, d, "raw.json", "[]")

	rs, err := NewRawSource(p)
	test.ErrNil(t, err, "getting raw source")
	test.MustBe(t, rs.Files(), []string{p})
	test.MustBe(t, rs.Root(), filepath.Dir(p))

	r, err := rs.NextReader()
	test.ErrNil(t, err, "getting reader")
	defer r.Close()
	test.MustBe(t, r.Name(), "raw.json")
}

func TestRawSourceMissing(t *testing.T) {
	d := test.MustTempDir(t, "testrawsource")
	if _, err := NewRawSource(filepath.Join(d, "nope")); err == nil {
		t.Fatal("expected error for missing path")
	}
}
