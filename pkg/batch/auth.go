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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

const headerOcpDate = "ocp-date"

// Headers that take part in the signature, in order.
var signedHeaders = []string{
	"Content-Encoding",
	"Content-Language",
	"Content-Length",
	"Content-MD5",
	"Content-Type",
	"Date",
	"If-Modified-Since",
	"If-Match",
	"If-None-Match",
	"If-Unmodified-Since",
	"Range",
}

// SharedKeyCredential signs Batch requests with an account access key.
type SharedKeyCredential struct {
	accountName string
	key         []byte
}

// NewSharedKeyCredential creates a credential from the account name and its
// base64-encoded access key.
func NewSharedKeyCredential(accountName, accountKey string) (*SharedKeyCredential, error) {
	if accountName == "" {
		return nil, fmt.Errorf("batch account name must not be empty")
	}
	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil {
		return nil, fmt.Errorf("batch account key is not valid base64: %w", err)
	}
	return &SharedKeyCredential{accountName: accountName, key: key}, nil
}

// AccountName returns the account the credential signs for.
func (c *SharedKeyCredential) AccountName() string {
	return c.accountName
}

// Authorization computes the SharedKey Authorization header value for a
// request with the given properties.
func (c *SharedKeyCredential) Authorization(method string, header http.Header, contentLength int64, u *url.URL) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(stringToSign(c.accountName, method, header, contentLength, u)))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return "SharedKey " + c.accountName + ":" + sig
}

func stringToSign(account, method string, header http.Header, contentLength int64, u *url.URL) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	for _, h := range signedHeaders {
		v := header.Get(h)
		if h == "Content-Length" {
			v = ""
			if contentLength > 0 {
				v = strconv.FormatInt(contentLength, 10)
			}
		}
		b.WriteString(v)
		b.WriteByte('\n')
	}

	var ocp []string
	for name := range header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "ocp-") && header.Get(name) != "" {
			ocp = append(ocp, lower)
		}
	}
	sort.Strings(ocp)
	for _, name := range ocp {
		b.WriteString(name + ":" + header.Get(name) + "\n")
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString("/" + account + path)

	query := u.Query()
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := query.Get(name); v != "" {
			b.WriteString("\n" + strings.ToLower(name) + ":" + v)
		}
	}
	return b.String()
}

type sharedKeyPolicy struct {
	cred *SharedKeyCredential
	now  func() time.Time
}

func (p *sharedKeyPolicy) Do(req *policy.Request) (*http.Response, error) {
	raw := req.Raw()
	raw.Header.Set(headerOcpDate, p.now().UTC().Format(http.TimeFormat))

	length := raw.ContentLength
	if length == 0 {
		length, _ = strconv.ParseInt(raw.Header.Get("Content-Length"), 10, 64)
	}
	raw.Header.Set("Authorization", p.cred.Authorization(raw.Method, raw.Header, length, raw.URL))
	return req.Next()
}
