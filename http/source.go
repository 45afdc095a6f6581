// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package http

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pilosa/brewery"
	"github.com/pkg/errors"
)

// DefaultURL is the Open Brewery DB listing endpoint.
const DefaultURL = "https://api.openbrewerydb.org/breweries"

// maxErrBody caps how much of an error response is echoed back in the error.
const maxErrBody = 1024

var _ brewery.Source = &JSONSource{}

// JSONSource implements the brewery.Source interface by issuing GET requests
// and decoding a JSON array of documents from each response body.
type JSONSource struct {
	url       string
	client    *http.Client
	userAgent string
	perPage   int
	maxPages  int
	log       brewery.Logger
}

// WithURL is an option for the JSONSource which sets the endpoint to fetch.
func WithURL(u string) JSONSourceOption {
	return func(j *JSONSource) {
		j.url = u
	}
}

// WithHTTPClient is an option for JSONSource which causes it to use the given
// client for all requests.
func WithHTTPClient(c *http.Client) JSONSourceOption {
	return func(j *JSONSource) {
		if c != nil {
			j.client = c
		}
	}
}

// WithTimeout sets the per request timeout. It replaces the client's timeout,
// so it should come after WithHTTPClient.
func WithTimeout(d time.Duration) JSONSourceOption {
	return func(j *JSONSource) {
		c := *j.client
		c.Timeout = d
		j.client = &c
	}
}

// WithPerPage turns on paging. Each request asks for n documents and fetching
// stops at the first short page. Zero or less means a single unpaged request.
func WithPerPage(n int) JSONSourceOption {
	return func(j *JSONSource) {
		j.perPage = n
	}
}

// WithMaxPages bounds the number of paged requests. Zero or less means no
// bound.
func WithMaxPages(n int) JSONSourceOption {
	return func(j *JSONSource) {
		j.maxPages = n
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) JSONSourceOption {
	return func(j *JSONSource) {
		j.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(l brewery.Logger) JSONSourceOption {
	return func(j *JSONSource) {
		if l != nil {
			j.log = l
		}
	}
}

// JSONSourceOption is a functional option type for JSONSource.
type JSONSourceOption func(j *JSONSource)

// NewJSONSource creates a JSONSource - it takes JSONSourceOptions which modify
// its behavior.
func NewJSONSource(opts ...JSONSourceOption) *JSONSource {
	j := &JSONSource{
		url:       DefaultURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: "brewery-pipeline",
		log:       brewery.NopLogger{},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// URL returns the endpoint this source fetches from.
func (j *JSONSource) URL() string { return j.url }

// Fetch implements brewery.Source. Any transport failure, non-2xx response,
// or body which is not a JSON array is returned as an error. An empty array is
// a successful, empty result.
func (j *JSONSource) Fetch(ctx context.Context) ([]brewery.Record, error) {
	if j.perPage <= 0 {
		recs, err := j.get(ctx, j.url)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching %s", j.url)
		}
		j.log.Printf("fetched %d records from %s", len(recs), j.url)
		return recs, nil
	}

	all := make([]brewery.Record, 0, j.perPage)
	for page := 1; j.maxPages <= 0 || page <= j.maxPages; page++ {
		u, err := pageURL(j.url, page, j.perPage)
		if err != nil {
			return nil, errors.Wrap(err, "building page url")
		}
		recs, err := j.get(ctx, u)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching page %d", page)
		}
		j.log.Debugf("page %d: %d records", page, len(recs))
		all = append(all, recs...)
		if len(recs) < j.perPage {
			break
		}
	}
	j.log.Printf("fetched %d records from %s", len(all), j.url)
	return all, nil
}

func (j *JSONSource) get(ctx context.Context, u string) ([]brewery.Record, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if j.userAgent != "" {
		req.Header.Set("User-Agent", j.userAgent)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "doing request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, errors.Errorf("unexpected status %s: %s", resp.Status, body)
	}

	var recs []brewery.Record
	dec := json.NewDecoder(resp.Body)
	err = dec.Decode(&recs)
	if err != nil {
		return nil, errors.Wrap(err, "decoding json array")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decoding json array: trailing data after the array")
	}
	if recs == nil {
		return nil, errors.New("response body was null, expected a json array")
	}
	return recs, nil
}

func pageURL(base string, page, perPage int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
