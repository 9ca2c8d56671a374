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

package batch

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToSign(t *testing.T) {
	u, err := url.Parse("https://acct.westeurope.batch.azure.com/pools?timeout=30&api-version=2024-07-01.20.0")
	require.NoError(t, err)

	h := http.Header{}
	h.Set("Content-Type", "application/json; odata=minimalmetadata")
	h.Set("ocp-date", "Mon, 19 Oct 2026 10:00:00 GMT")
	h.Set("client-request-id", "ignored")

	got := stringToSign("acct", "post", h, 42, u)
	want := "POST\n" +
		"\n" + // content-encoding
		"\n" + // content-language
		"42\n" +
		"\n" + // content-md5
		"application/json; odata=minimalmetadata\n" +
		"\n\n\n\n\n\n" + // date through range
		"ocp-date:Mon, 19 Oct 2026 10:00:00 GMT\n" +
		"/acct/pools" +
		"\napi-version:2024-07-01.20.0" +
		"\ntimeout:30"
	assert.Equal(t, want, got)
}

func TestStringToSignZeroLength(t *testing.T) {
	u, err := url.Parse("https://acct.batch.azure.com/pools/p1")
	require.NoError(t, err)

	got := stringToSign("acct", http.MethodGet, http.Header{}, 0, u)
	assert.Equal(t, "GET\n\n\n\n\n\n\n\n\n\n\n\n/acct/pools/p1", got)
}

func TestNewSharedKeyCredential(t *testing.T) {
	_, err := NewSharedKeyCredential("acct", "not base64!")
	assert.ErrorContains(t, err, "not valid base64")

	_, err = NewSharedKeyCredential("", base64.StdEncoding.EncodeToString([]byte("k")))
	assert.Error(t, err)

	cred, err := NewSharedKeyCredential("acct", base64.StdEncoding.EncodeToString([]byte("k")))
	require.NoError(t, err)
	assert.Equal(t, "acct", cred.AccountName())

	u, _ := url.Parse("https://acct.batch.azure.com/jobs")
	auth := cred.Authorization(http.MethodPost, http.Header{}, 10, u)
	assert.Regexp(t, `^SharedKey acct:[A-Za-z0-9+/]+=*$`, auth)
	assert.Equal(t, auth, cred.Authorization(http.MethodPost, http.Header{}, 10, u), "signature must be deterministic")
	assert.NotEqual(t, auth, cred.Authorization(http.MethodPost, http.Header{}, 11, u))
}
