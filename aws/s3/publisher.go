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

// Package s3 publishes finished pipeline layers to an S3 bucket.
package s3

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/file"
	"github.com/pkg/errors"
)

// PubOption is a functional option type for s3.Publisher.
type PubOption func(p *Publisher)

// OptPubBucket sets the destination bucket.
func OptPubBucket(bucket string) PubOption {
	return func(p *Publisher) {
		p.bucket = bucket
	}
}

// OptPubPrefix sets a key prefix under which every layer is written.
func OptPubPrefix(prefix string) PubOption {
	return func(p *Publisher) {
		p.prefix = strings.Trim(prefix, "/")
	}
}

// OptPubRegion sets the AWS region.
func OptPubRegion(region string) PubOption {
	return func(p *Publisher) {
		p.region = region
	}
}

// OptPubEndpoint points the publisher at an S3 compatible endpoint such as
// minio. Path style addressing is used when it is set.
func OptPubEndpoint(endpoint string) PubOption {
	return func(p *Publisher) {
		p.endpoint = endpoint
	}
}

// OptPubUploader replaces the s3manager uploader.
func OptPubUploader(u s3manageriface.UploaderAPI) PubOption {
	return func(p *Publisher) {
		p.uploader = u
	}
}

// OptPubLogger sets the logger.
func OptPubLogger(l brewery.Logger) PubOption {
	return func(p *Publisher) {
		p.log = l
	}
}

// OptPubStatter sets the stats collector.
func OptPubStatter(s brewery.Statter) PubOption {
	return func(p *Publisher) {
		p.stats = s
	}
}

// Publisher copies local layer output to s3://bucket/prefix/<layer>/.
type Publisher struct {
	bucket   string
	prefix   string
	region   string
	endpoint string

	uploader s3manageriface.UploaderAPI
	log      brewery.Logger
	stats    brewery.Statter
}

// NewPublisher returns a new Publisher with the options applied. A bucket is
// required.
func NewPublisher(opts ...PubOption) (*Publisher, error) {
	p := &Publisher{
		region: "us-east-1",
		log:    brewery.NopLogger{},
		stats:  brewery.NopStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bucket == "" {
		return nil, errors.New("publishing to s3 needs a bucket")
	}
	if p.uploader == nil {
		cfg := &aws.Config{Region: aws.String(p.region)}
		if p.endpoint != "" {
			cfg.Endpoint = aws.String(p.endpoint)
			cfg.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "getting aws session")
		}
		p.uploader = s3manager.NewUploader(sess)
	}
	return p, nil
}

// Key returns the object key for the file rel of layer.
func (p *Publisher) Key(layer, rel string) string {
	return path.Join(p.prefix, layer, filepath.ToSlash(rel))
}

// Publish uploads the file or directory tree at local under layer and
// returns the number of objects written. The success marker of a directory
// tree is uploaded last so readers never see it before the data.
func (p *Publisher) Publish(ctx context.Context, layer, local string) (int, error) {
	rs, err := file.NewRawSource(local, file.OptRawRecursive(true))
	if err != nil {
		return 0, errors.Wrapf(err, "listing %s", local)
	}
	n := 0
	for _, f := range rs.Files() {
		if err := p.upload(ctx, f, p.Key(layer, rs.Rel(f))); err != nil {
			return n, err
		}
		n++
	}
	marker := filepath.Join(local, "_SUCCESS")
	if _, err := os.Stat(marker); err == nil {
		if err := p.upload(ctx, marker, p.Key(layer, "_SUCCESS")); err != nil {
			return n, err
		}
		n++
	}
	p.stats.Count("s3.objects_published", int64(n), 1)
	p.log.Printf("published %d objects from %s to s3://%s/%s", n, local, p.bucket, p.Key(layer, ""))
	return n, nil
}

func (p *Publisher) upload(ctx context.Context, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return errors.Wrapf(err, "opening %s", local)
	}
	defer f.Close()
	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        io.Reader(f),
		ContentType: aws.String(contentType(local)),
	})
	if err != nil {
		return errors.Wrapf(err, "uploading %s", key)
	}
	p.log.Debugf("uploaded s3://%s/%s", p.bucket, key)
	return nil
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".parquet"):
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
