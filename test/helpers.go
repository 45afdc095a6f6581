package test

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// MustBe uses cmp.Diff to assert that thing1 and thing2 are equal, and fails
// otherwise.
func MustBe(t *testing.T, thing1, thing2 interface{}, context ...string) {
	t.Helper()
	var ctx string
	if len(context) == 0 {
		ctx = ""
	} else {
		ctx = context[0] + ": "
	}
	if diff := cmp.Diff(thing1, thing2); diff != "" {
		t.Fatalf("%vmismatch (-got +exp):\n%s", ctx, diff)
	}
}

// ErrNil asserts that the err is nil and fails otherwise.
func ErrNil(t *testing.T, err error, ctx string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%v: %v", ctx, err)
	}
}

// MustTempDir creates a temporary directory which is removed when the test
// finishes.
func MustTempDir(t *testing.T, prefix string) string {
	t.Helper()
	d, err := ioutil.TempDir("", prefix)
	if err != nil {
		t.Fatalf("getting temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(d)
	})
	return d
}

// MustWriteFile writes contents to name under dir, creating parent
// directories, and returns the full path.
func MustWriteFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("making parent dirs: %v", err)
	}
	if err := ioutil.WriteFile(p, []byte(contents), 0644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

// BreweryServer is a stand-in for the breweries API.
type BreweryServer struct {
	*httptest.Server
	requests int64
}

// Requests returns the number of requests served so far.
func (s *BreweryServer) Requests() int {
	return int(atomic.LoadInt64(&s.requests))
}

// NewBreweryServer starts a server that answers every request with status
// and body. It is closed when the test finishes.
func NewBreweryServer(t *testing.T, status int, body string) *BreweryServer {
	t.Helper()
	return NewBreweryServerFunc(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// NewBreweryServerFunc starts a server backed by h. It is closed when the
// test finishes.
func NewBreweryServerFunc(t *testing.T, h http.HandlerFunc) *BreweryServer {
	t.Helper()
	s := &BreweryServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requests, 1)
		h(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Breweries is a small API response: eight documents, six of them spread
// over three states, one with a null state and one with no state key at all.
const Breweries = `[
  {"id": "b1", "name": "Anchor", "brewery_type": "micro", "city": "San Francisco", "state": "California", "longitude": "-122.40", "phone": null},
  {"id": "b2", "name": "Lagunitas", "brewery_type": "regional", "city": "Petaluma", "state": "California"},
  {"id": "b3", "name": "Bell's", "brewery_type": "regional", "city": "Kalamazoo", "state": "Michigan"},
  {"id": "b4", "name": "Founders", "brewery_type": "regional", "city": "Grand Rapids", "state": "Michigan"},
  {"id": "b5", "name": "Stateless", "brewery_type": "micro", "city": "Nowhere", "state": null},
  {"id": "b6", "name": "Keyless", "brewery_type": "nano", "city": "Somewhere"},
  {"id": "b7", "name": "Crooked Stave", "brewery_type": "micro", "city": "Denver", "state": "Colorado"},
  {"id": "b8", "name": "Mystery", "brewery_type": null, "city": "Denver", "state": "Colorado"}
]`

// BreweriesLen is the number of documents in Breweries.
const BreweriesLen = 8
