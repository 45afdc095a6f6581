// Package gold counts the silver breweries per brewery type and state.
package gold

import (
	"context"
	"sort"
	"time"

	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/engine"
	"github.com/pkg/errors"
)

// Stats describes one Aggregate call.
type Stats struct {
	Read   int
	Groups int
	Files  int
}

// Aggregate reads the state partitioned silver tree at in and writes one row
// per distinct (brewery_type, state) pair to an unpartitioned tree at out.
// Anything already at out is replaced.
func Aggregate(ctx context.Context, in, out string, opts ...engine.Option) (stats Stats, err error) {
	sess, err := engine.Open(append([]engine.Option{engine.OptName("gold")}, opts...)...)
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

	rows, err := engine.ReadPartitioned(ctx, sess, in, brewery.ColumnState, func(b *brewery.Brewery, v *string) { b.State = v })
	if err != nil {
		return stats, errors.Wrap(err, "reading silver table")
	}
	stats.Read = len(rows)
	st.Count("gold.rows_read", int64(stats.Read), 1)

	counts := Count(rows)
	ws, err := engine.Write(ctx, sess, out, counts)
	if err != nil {
		return stats, errors.Wrap(err, "writing gold table")
	}
	stats.Groups = len(counts)
	stats.Files = ws.Files
	st.Gauge("gold.groups", float64(stats.Groups), 1)
	st.Timing("gold.duration", time.Since(start), 1)
	log.Printf("gold: %d rows counted into %d groups written to %s", stats.Read, stats.Groups, out)
	return stats, nil
}

type groupKey struct {
	breweryType, state string
	typeNull, stateNull bool
}

func keyOf(b brewery.Brewery) groupKey {
	k := groupKey{typeNull: b.BreweryType == nil, stateNull: b.State == nil}
	if b.BreweryType != nil {
		k.breweryType = *b.BreweryType
	}
	if b.State != nil {
		k.state = *b.State
	}
	return k
}

// Count groups rows by brewery type and state. A null is a group of its own.
// The result is ordered by brewery type then state, nulls first.
func Count(rows []brewery.Brewery) []brewery.TypeStateCount {
	idx := make(map[groupKey]int)
	out := make([]brewery.TypeStateCount, 0)
	for _, row := range rows {
		k := keyOf(row)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, brewery.TypeStateCount{BreweryType: copyPtr(row.BreweryType), State: copyPtr(row.State)})
		}
		out[i].Count++
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareNullable(out[i].BreweryType, out[j].BreweryType); c != 0 {
			return c < 0
		}
		return compareNullable(out[i].State, out[j].State) < 0
	})
	return out
}

func compareNullable(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func copyPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
