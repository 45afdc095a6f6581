package json

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/pilosa/brewery"
	"github.com/pkg/errors"
)

// Source reads brewery.Records from a JSON document. The document may be a
// single array of objects or a stream of objects separated by whitespace
// (line delimited json).
type Source struct {
	dec     *json.Decoder
	br      *bufio.Reader
	started bool
	inArray bool
	done    bool
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader) *Source {
	br := bufio.NewReader(r)
	return &Source{
		br:  br,
		dec: json.NewDecoder(br),
	}
}

// Record returns the next document as it appears in the input. It returns
// io.EOF once the input is exhausted.
func (s *Source) Record() (brewery.Record, error) {
	if s.done {
		return nil, io.EOF
	}
	if !s.started {
		s.started = true
		first, err := peekNonSpace(s.br)
		if err == io.EOF {
			s.done = true
			return nil, io.EOF
		} else if err != nil {
			return nil, errors.Wrap(err, "peeking at input")
		}
		if first == '[' {
			if _, err := s.dec.Token(); err != nil {
				return nil, errors.Wrap(err, "reading array start")
			}
			s.inArray = true
		}
	}

	if s.inArray && !s.dec.More() {
		if _, err := s.dec.Token(); err != nil {
			return nil, errors.Wrap(err, "reading array end")
		}
		s.done = true
		return nil, io.EOF
	}

	var raw json.RawMessage
	err := s.dec.Decode(&raw)
	if err == io.EOF && !s.inArray {
		s.done = true
		return nil, io.EOF
	} else if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "decoding record")
	}
	return brewery.Record(raw), nil
}

// peekNonSpace returns the first byte that is not json whitespace without
// consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// ReadAll drains src.
func ReadAll(src *Source) ([]brewery.Record, error) {
	recs := make([]brewery.Record, 0)
	for {
		rec, err := src.Record()
		if err == io.EOF {
			return recs, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading record %d", len(recs))
		}
		recs = append(recs, rec)
	}
}

// ReadFile reads every record in the file at path.
func ReadFile(path string) ([]brewery.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return ReadAll(NewSource(f))
}
