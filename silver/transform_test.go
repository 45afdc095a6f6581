package silver_test

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/engine"
	"github.com/pilosa/brewery/mock"
	"github.com/pilosa/brewery/silver"
	"github.com/pilosa/brewery/test"
)

var sp = brewery.StringPtr

func TestProject(t *testing.T) {
	tests := []struct {
		name string
		rec  string
		exp  brewery.Brewery
	}{
		{
			name: "all strings",
			rec:  `{"id": "a", "name": "A", "brewery_type": "micro", "city": "X", "state": "Y", "extra": [1]}`,
			exp:  brewery.Brewery{ID: sp("a"), Name: sp("A"), BreweryType: sp("micro"), City: sp("X"), State: sp("Y")},
		},
		{
			name: "nulls and missing",
			rec:  `{"id": "a", "state": null}`,
			exp:  brewery.Brewery{ID: sp("a")},
		},
		{
			name: "scalars rendered",
			rec:  `{"id": 12345678901234567890, "name": true, "city": 1.50}`,
			exp:  brewery.Brewery{ID: sp("12345678901234567890"), Name: sp("true"), City: sp("1.50")},
		},
		{
			name: "nested as json",
			rec:  `{"id": "a", "city": {"b": 1, "a": [true, null]}}`,
			exp:  brewery.Brewery{ID: sp("a"), City: sp(`{"a":[true,null],"b":1}`)},
		},
		{
			name: "empty state kept",
			rec:  `{"id": "a", "state": ""}`,
			exp:  brewery.Brewery{ID: sp("a"), State: sp("")},
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			got, err := silver.Project(brewery.Record(tst.rec))
			test.ErrNil(t, err, "projecting")
			test.MustBe(t, got, tst.exp)
		})
	}

	if _, err := silver.Project(brewery.Record(`[1, 2]`)); err == nil {
		t.Fatal("expected error projecting an array")
	}
}

func TestTransform(t *testing.T) {
	dir := test.MustTempDir(t, "silver")
	in := test.MustWriteFile(t, dir, "raw_breweries.json", test.Breweries)
	out := filepath.Join(dir, "silver_breweries.parquet")
	stats := &mock.RecordingStatter{}

	st, err := silver.Transform(context.Background(), in, out, engine.OptStatter(stats))
	test.ErrNil(t, err, "transforming")
	test.MustBe(t, st, silver.Stats{Read: 8, Written: 6, Dropped: 2, Partitions: 3, Files: 3})
	test.MustBe(t, stats.Counts["silver.rows_read"], int64(8))
	test.MustBe(t, stats.Counts["silver.rows_dropped"], int64(2))

	entries, err := ioutil.ReadDir(out)
	test.ErrNil(t, err, "listing output")
	dirs := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	test.MustBe(t, dirs, []string{"state=California", "state=Colorado", "state=Michigan"})

	sess, err := engine.Open()
	test.ErrNil(t, err, "opening session")
	defer sess.Close()
	rows, err := engine.ReadPartitioned(context.Background(), sess, out, brewery.ColumnState, func(b *brewery.Brewery, v *string) { b.State = v })
	test.ErrNil(t, err, "reading back")
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.State == nil {
			t.Fatalf("row %s has a null state", *r.ID)
		}
		ids = append(ids, *r.ID+"/"+*r.State)
	}
	test.MustBe(t, ids, []string{
		"b1/California", "b2/California",
		"b7/Colorado", "b8/Colorado",
		"b3/Michigan", "b4/Michigan",
	})
	test.MustBe(t, rows[3].BreweryType, (*string)(nil), "null brewery type survives")
}

func TestTransformNDJSON(t *testing.T) {
	dir := test.MustTempDir(t, "silver")
	in := test.MustWriteFile(t, dir, "raw.json", `{"id": "a", "state": "Ohio"}
{"id": "b", "state": "Ohio"}
{"id": "c"}
`)
	st, err := silver.Transform(context.Background(), in, filepath.Join(dir, "out"))
	test.ErrNil(t, err, "transforming")
	test.MustBe(t, st, silver.Stats{Read: 3, Written: 2, Dropped: 1, Partitions: 1, Files: 1})
}

func TestTransformErrorsLeaveNoStaging(t *testing.T) {
	dir := test.MustTempDir(t, "silver")
	in := test.MustWriteFile(t, dir, "raw.json", `[{"id": "a", "state": "Ohio"}, {"id": `)
	if _, err := silver.Transform(context.Background(), in, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for truncated input")
	}
	if _, err := silver.Transform(context.Background(), filepath.Join(dir, "missing.json"), filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for missing input")
	}

	good := test.MustWriteFile(t, dir, "good.json", test.Breweries)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := silver.Transform(ctx, good, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for cancelled context")
	}

	entries, err := ioutil.ReadDir(dir)
	test.ErrNil(t, err, "listing")
	names := make([]string, 0)
	for _, e := range entries {
		names = append(names, e.Name())
	}
	test.MustBe(t, names, []string{"good.json", "raw.json"})
}
