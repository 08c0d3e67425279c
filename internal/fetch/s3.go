// Copyright 2025 The AP Engine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fetch

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Scheme, kept narrow so
// tests can substitute a fake.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Scheme resolves s3:// references of the form s3://bucket/key.
type S3Scheme struct {
	client S3API
}

// NewS3Scheme wraps an already-configured S3 client (region, endpoint,
// and credentials resolved by the caller via aws-sdk-go-v2/config).
func NewS3Scheme(client S3API) *S3Scheme {
	return &S3Scheme{client: client}
}

func (s *S3Scheme) Fetch(ctx context.Context, uri *url.URL, destDir string) (Staged, error) {
	bucket := uri.Host
	key := strings.TrimPrefix(uri.Path, "/")
	if bucket == "" || key == "" {
		return Staged{}, fmt.Errorf("s3 reference must be s3://bucket/key, got %s", uri)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Staged{}, err
	}
	defer out.Body.Close()

	mediaType := ""
	if out.ContentType != nil {
		mediaType = *out.ContentType
	}

	return copyToFile(destDir, path.Base(key), out.Body, mediaType)
}
