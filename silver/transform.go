// Package silver turns the raw bronze json into a Parquet table of breweries
// partitioned by state.
package silver

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/engine"
	bjson "github.com/pilosa/brewery/json"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Stats describes one Transform call.
type Stats struct {
	Read       int
	Written    int
	Dropped    int
	Partitions int
	Files      int
}

// Transform reads the bronze document at in, projects each record onto the
// silver columns, drops the rows without a state and writes the rest to a
// state partitioned tree at out. Anything already at out is replaced.
func Transform(ctx context.Context, in, out string, opts ...engine.Option) (stats Stats, err error) {
	sess, err := engine.Open(append([]engine.Option{engine.OptName("silver")}, opts...)...)
	if err != nil {
		return stats, errors.Wrap(err, "opening engine session")
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing engine session")
		}
	}()
	log, st := sess.Logger(), sess.Statter()
	start := time.Now()

	f, err := os.Open(in)
	if err != nil {
		return stats, errors.Wrap(err, "opening bronze input")
	}
	defer f.Close()

	rows := make([]brewery.Brewery, 0)
	src := bjson.NewSource(f)
	for {
		rec, err := src.Record()
		if err == io.EOF {
			break
		} else if err != nil {
			return stats, errors.Wrapf(err, "reading bronze record %d", stats.Read)
		}
		if stats.Read%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		row, err := Project(rec)
		if err != nil {
			return stats, errors.Wrapf(err, "projecting record %d", stats.Read)
		}
		stats.Read++
		if row.State == nil {
			stats.Dropped++
			continue
		}
		rows = append(rows, row)
	}
	st.Count("silver.rows_read", int64(stats.Read), 1)
	st.Count("silver.rows_dropped", int64(stats.Dropped), 1)
	log.Debugf("projected %d of %d bronze records, dropped %d without a state", len(rows), stats.Read, stats.Dropped)

	ws, err := engine.WritePartitioned(ctx, sess, out, brewery.ColumnState, func(b brewery.Brewery) *string { return b.State }, rows)
	if err != nil {
		return stats, errors.Wrap(err, "writing silver table")
	}
	stats.Written = ws.Rows
	stats.Files = ws.Files
	stats.Partitions = len(ws.Partitions)
	st.Timing("silver.duration", time.Since(start), 1)
	log.Printf("silver: %d rows in %d partitions written to %s", stats.Written, stats.Partitions, out)
	return stats, nil
}

// Project picks the silver columns out of rec. Missing keys and json nulls
// become nil, other scalars are rendered as strings and nested values as
// compact json.
func Project(rec brewery.Record) (brewery.Brewery, error) {
	fields, err := rec.Fields()
	if err != nil {
		return brewery.Brewery{}, err
	}
	vals := make([]*string, len(brewery.SilverColumns))
	for i, col := range brewery.SilverColumns {
		vals[i], err = stringValue(fields[col])
		if err != nil {
			return brewery.Brewery{}, errors.Wrapf(err, "rendering column %s", col)
		}
	}
	return brewery.Brewery{
		ID:          vals[0],
		Name:        vals[1],
		BreweryType: vals[2],
		City:        vals[3],
		State:       vals[4],
	}, nil
}

func stringValue(v interface{}) (*string, error) {
	switch vt := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(vt)
		if err != nil {
			return nil, err
		}
		s := string(b)
		return &s, nil
	default:
		s, err := cast.ToStringE(vt)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}
}
