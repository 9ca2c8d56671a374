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
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	getter "github.com/hashicorp/go-getter"

	"render-batch/pkg/logging"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]+://`)

// IsRemote reports whether spec names a remote source, either a URL or a
// go-getter forced source such as "git::https://host/repo.git//init.sh".
func IsRemote(spec string) bool {
	return strings.Contains(spec, "::") || schemeRe.MatchString(spec)
}

// remoteName derives the blob name of a remote source from the last element
// of its path.
func remoteName(spec string) (string, error) {
	s := spec
	if i := strings.Index(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid remote script source %q: %w", spec, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("remote script source %q does not name a file", spec)
	}
	return name, nil
}

func (c *Collector) fetch(ctx context.Context, spec string) (Source, error) {
	name, err := remoteName(spec)
	if err != nil {
		return Source{}, err
	}
	if c.fetchDir == "" {
		dir, err := os.MkdirTemp("", "render-batch-scripts-*")
		if err != nil {
			return Source{}, fmt.Errorf("failed to create download directory: %w", err)
		}
		c.fetchDir = dir
	}

	dst := filepath.Join(c.fetchDir, name)
	logging.Info("Fetching %s", spec)
	if err := getter.GetFile(dst, spec, getter.WithContext(ctx)); err != nil {
		return Source{}, fmt.Errorf("failed to fetch script %q: %w", spec, err)
	}
	return Source{Path: dst, Name: name}, nil
}
