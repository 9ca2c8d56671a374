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

package config

import (
	"fmt"
	"strings"

	"github.com/agext/levenshtein"
)

// ExistsPolicy decides what a creation step does when its target id is
// already present on the remote service.
type ExistsPolicy string

const (
	// PolicyFail surfaces the service's "already exists" error.
	PolicyFail ExistsPolicy = "fail"
	// PolicyReuse keeps the existing resource and continues.
	PolicyReuse ExistsPolicy = "reuse"
	// PolicyReplace deletes the existing resource and creates it again.
	PolicyReplace ExistsPolicy = "replace"
)

var policies = []string{string(PolicyFail), string(PolicyReuse), string(PolicyReplace)}

// ParseExistsPolicy converts s to an ExistsPolicy. Matching is case-insensitive.
func ParseExistsPolicy(s string) (ExistsPolicy, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, p := range policies {
		if v == p {
			return ExistsPolicy(p), nil
		}
	}
	return "", fmt.Errorf("unknown already-exists policy %q%s", s, suggest(v, policies))
}

// Valid reports whether p is one of the known policies.
func (p ExistsPolicy) Valid() bool {
	_, err := ParseExistsPolicy(string(p))
	return err == nil
}

func parseAuthMode(s string) (AuthMode, error) {
	modes := []string{string(AuthSharedKey), string(AuthEntra)}
	for _, m := range modes {
		if strings.EqualFold(s, m) {
			return AuthMode(m), nil
		}
	}
	return "", fmt.Errorf("unknown auth mode %q%s", s, suggest(s, modes))
}

// suggest returns a ", did you mean ..." hint for the closest candidate,
// or an empty string when nothing is close enough.
func suggest(got string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.Distance(strings.ToLower(got), strings.ToLower(c), nil)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" || bestDist > 3 || bestDist >= len(best) {
		return ""
	}
	return fmt.Sprintf(", did you mean %q?", best)
}
