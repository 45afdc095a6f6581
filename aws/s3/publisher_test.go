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

package s3

import (
	"context"
	"io/ioutil"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pilosa/brewery/mock"
	"github.com/pilosa/brewery/test"
	"github.com/pkg/errors"
)

type fakeUploader struct {
	s3manageriface.UploaderAPI

	mu      sync.Mutex
	keys    []string
	bodies  map[string]string
	types   map[string]string
	failKey string
}

func (f *fakeUploader) UploadWithContext(ctx aws.Context, in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.StringValue(in.Key)
	if key == f.failKey {
		return nil, errors.New("access denied")
	}
	body, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.bodies == nil {
		f.bodies = make(map[string]string)
		f.types = make(map[string]string)
	}
	f.keys = append(f.keys, aws.StringValue(in.Bucket)+"/"+key)
	f.bodies[key] = string(body)
	f.types[key] = aws.StringValue(in.ContentType)
	return &s3manager.UploadOutput{Location: "s3://" + aws.StringValue(in.Bucket) + "/" + key}, nil
}

func TestNewPublisherNeedsBucket(t *testing.T) {
	if _, err := NewPublisher(OptPubUploader(&fakeUploader{})); err == nil {
		t.Fatal("expected error without a bucket")
	}
}

func TestPublish(t *testing.T) {
	d := test.MustTempDir(t, "publish")
	raw := test.MustWriteFile(t, d, "raw_breweries.json", "[]\n")
	test.MustWriteFile(t, d, "silver/_SUCCESS", "")
	test.MustWriteFile(t, d, "silver/state=Ohio/part-00000.snappy.parquet", "ohio")
	test.MustWriteFile(t, d, "silver/state=New%2FYork/part-00000.snappy.parquet", "ny")

	up := &fakeUploader{}
	stats := &mock.RecordingStatter{}
	p, err := NewPublisher(OptPubBucket("lake"), OptPubPrefix("/breweries/"), OptPubUploader(up), OptPubStatter(stats))
	test.ErrNil(t, err, "getting publisher")

	n, err := p.Publish(context.Background(), "bronze", raw)
	test.ErrNil(t, err, "publishing bronze")
	test.MustBe(t, n, 1)

	n, err = p.Publish(context.Background(), "silver", d+"/silver")
	test.ErrNil(t, err, "publishing silver")
	test.MustBe(t, n, 3)

	test.MustBe(t, up.keys, []string{
		"lake/breweries/bronze/raw_breweries.json",
		"lake/breweries/silver/state=New%2FYork/part-00000.snappy.parquet",
		"lake/breweries/silver/state=Ohio/part-00000.snappy.parquet",
		"lake/breweries/silver/_SUCCESS",
	})
	test.MustBe(t, up.bodies["breweries/silver/state=Ohio/part-00000.snappy.parquet"], "ohio")
	test.MustBe(t, up.types["breweries/bronze/raw_breweries.json"], "application/json")
	test.MustBe(t, up.types["breweries/silver/_SUCCESS"], "application/octet-stream")
	test.MustBe(t, stats.Counts["s3.objects_published"], int64(4))
}

func TestPublishUploadError(t *testing.T) {
	d := test.MustTempDir(t, "publish")
	test.MustWriteFile(t, d, "gold/part-00000.snappy.parquet", "x")
	up := &fakeUploader{failKey: "gold/part-00000.snappy.parquet"}
	p, err := NewPublisher(OptPubBucket("lake"), OptPubUploader(up))
	test.ErrNil(t, err, "getting publisher")

	if _, err := p.Publish(context.Background(), "gold", d+"/gold"); err == nil {
		t.Fatal("expected upload error")
	}
}
