package http_test

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pilosa/brewery"
	bhttp "github.com/pilosa/brewery/http"
	"github.com/pilosa/brewery/test"
)

func TestJSONSourceFetch(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		expLen int
		expErr string
	}{
		{
			name:   "breweries",
			status: http.StatusOK,
			body:   test.Breweries,
			expLen: test.BreweriesLen,
		},
		{
			name:   "empty array",
			status: http.StatusOK,
			body:   `[]`,
			expLen: 0,
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"message": "Couldn't find Brewery"}`,
			expErr: "unexpected status 404",
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `oops`,
			expErr: "oops",
		},
		{
			name:   "object body",
			status: http.StatusOK,
			body:   `{"id": "b1"}`,
			expErr: "decoding json array",
		},
		{
			name:   "null body",
			status: http.StatusOK,
			body:   `null`,
			expErr: "expected a json array",
		},
		{
			name:   "truncated",
			status: http.StatusOK,
			body:   `[{"id": "b1"`,
			expErr: "decoding json array",
		},
		{
			name:   "trailing garbage",
			status: http.StatusOK,
			body:   `[{"id": "b1"}] garbage`,
			expErr: "trailing data",
		},
		{
			name:   "second array",
			status: http.StatusOK,
			body:   `[{"id": "b1"}][]`,
			expErr: "trailing data",
		},
		{
			name:   "trailing newline",
			status: http.StatusOK,
			body:   "[{\"id\": \"b1\"}]\n\n",
			expLen: 1,
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			srv := test.NewBreweryServer(t, tst.status, tst.body)
			src := bhttp.NewJSONSource(bhttp.WithURL(srv.URL))
			recs, err := src.Fetch(context.Background())
			if tst.expErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tst.expErr)
				}
				if !strings.Contains(err.Error(), tst.expErr) {
					t.Fatalf("unmatched errs exp/got\n%s\n%v", tst.expErr, err)
				}
				if recs != nil {
					t.Fatalf("expected no records on error, got %d", len(recs))
				}
				return
			}
			test.ErrNil(t, err, "fetching")
			if len(recs) != tst.expLen {
				t.Fatalf("wrong number of records: %d, exp: %d", len(recs), tst.expLen)
			}
		})
	}
}

func TestJSONSourceKeepsDocumentsVerbatim(t *testing.T) {
	srv := test.NewBreweryServer(t, http.StatusOK, `[{"z": 1.50, "a": "x"}, {"id":"b2"}]`)
	recs, err := bhttp.NewJSONSource(bhttp.WithURL(srv.URL)).Fetch(context.Background())
	test.ErrNil(t, err, "fetching")
	test.MustBe(t, string(recs[0]), `{"z": 1.50, "a": "x"}`)
	test.MustBe(t, string(recs[1]), `{"id":"b2"}`)
}

func TestJSONSourcePaging(t *testing.T) {
	const total = 7
	srv := test.NewBreweryServerFunc(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		docs := make([]string, 0, perPage)
		for i := (page - 1) * perPage; i < page*perPage && i < total; i++ {
			docs = append(docs, fmt.Sprintf(`{"id": "b%d"}`, i))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(docs, ","))
	})

	t.Run("until short page", func(t *testing.T) {
		recs, err := bhttp.NewJSONSource(bhttp.WithURL(srv.URL), bhttp.WithPerPage(3)).Fetch(context.Background())
		test.ErrNil(t, err, "fetching")
		if len(recs) != total {
			t.Fatalf("wrong number of records: %d, exp: %d", len(recs), total)
		}
		test.MustBe(t, string(recs[6]), `{"id": "b6"}`)
	})

	t.Run("max pages", func(t *testing.T) {
		before := srv.Requests()
		recs, err := bhttp.NewJSONSource(bhttp.WithURL(srv.URL), bhttp.WithPerPage(2), bhttp.WithMaxPages(2)).Fetch(context.Background())
		test.ErrNil(t, err, "fetching")
		if len(recs) != 4 {
			t.Fatalf("wrong number of records: %d, exp: 4", len(recs))
		}
		if n := srv.Requests() - before; n != 2 {
			t.Fatalf("wrong number of requests: %d, exp: 2", n)
		}
	})

	t.Run("exact multiple", func(t *testing.T) {
		// 7 docs with 7 per page needs a second, empty page to know it's done.
		before := srv.Requests()
		recs, err := bhttp.NewJSONSource(bhttp.WithURL(srv.URL), bhttp.WithPerPage(total)).Fetch(context.Background())
		test.ErrNil(t, err, "fetching")
		if len(recs) != total {
			t.Fatalf("wrong number of records: %d, exp: %d", len(recs), total)
		}
		if n := srv.Requests() - before; n != 2 {
			t.Fatalf("wrong number of requests: %d, exp: 2", n)
		}
	})
}

func TestJSONSourceContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := test.NewBreweryServerFunc(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := bhttp.NewJSONSource(bhttp.WithURL(srv.URL)).Fetch(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestJSONSourceTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := test.NewBreweryServerFunc(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	src := bhttp.NewJSONSource(bhttp.WithURL(srv.URL), bhttp.WithTimeout(50*time.Millisecond))
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}

var _ brewery.Source = bhttp.NewJSONSource()
