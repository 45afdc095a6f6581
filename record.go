package brewery

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Record is a single brewery document exactly as the source delivered it.
type Record json.RawMessage

// MarshalJSON returns r unchanged.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON stores a copy of data.
func (r *Record) UnmarshalJSON(data []byte) error {
	if r == nil {
		return errors.New("brewery.Record: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[0:0], data...)
	return nil
}

// Fields decodes the record into a map. Numbers are kept as json.Number so
// that their original text survives a round trip to string.
func (r Record) Fields() (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(r))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, errors.Wrap(err, "decoding record")
	}
	return fields, nil
}

// Column names used by the silver and gold layers.
const (
	ColumnID          = "id"
	ColumnName        = "name"
	ColumnBreweryType = "brewery_type"
	ColumnCity        = "city"
	ColumnState       = "state"
	ColumnCount       = "count"
)

// SilverColumns are the columns kept by the silver projection, in order.
var SilverColumns = []string{ColumnID, ColumnName, ColumnBreweryType, ColumnCity, ColumnState}

// Brewery is a row of the silver table. Every column is nullable.
type Brewery struct {
	ID          *string `parquet:"id,optional"`
	Name        *string `parquet:"name,optional"`
	BreweryType *string `parquet:"brewery_type,optional"`
	City        *string `parquet:"city,optional"`
	// State is stored in the partition path, not in the files.
	State *string `parquet:"-"`
}

// TypeStateCount is a row of the gold table.
type TypeStateCount struct {
	BreweryType *string `parquet:"brewery_type,optional"`
	State       *string `parquet:"state,optional"`
	Count       int64   `parquet:"count"`
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string { return &s }
