package brewery

import (
	"context"
	"io"
)

// Source is the interface for getting the raw brewery documents that start a
// pipeline run. A nil error with no records means the upstream had nothing to
// give; callers must not treat it as a failure.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// NamedReadCloser is an io.ReadCloser which knows where it came from. Name
// is relative to the root the reader was found under.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
}

// RawSource hands out readers one at a time until it returns io.EOF.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}
