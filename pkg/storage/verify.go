// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// Verifier checks that an access grant URL is readable.
type Verifier struct {
	client *resty.Client
}

func NewVerifier() *Verifier {
	return &Verifier{client: resty.New().SetTimeout(30 * time.Second)}
}

// Verify reads the first byte of the blob behind rawURL.
func (v *Verifier) Verify(ctx context.Context, rawURL string) error {
	res, err := v.client.R().
		SetContext(ctx).
		SetHeader("Range", "bytes=0-0").
		Get(rawURL)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", redact(rawURL), err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("access grant for %s was rejected: %s", redact(rawURL), res.Status())
	}
	return nil
}

// redact drops the query string, which carries the signature.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid URL>"
	}
	u.RawQuery = ""
	return u.String()
}
