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

package logging

import (
	"bytes"
	"os"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetVerbose(false)
	})
	return &buf
}

func TestInfoPrintsMessageOnly(t *testing.T) {
	buf := captureOutput(t)

	Info("Creating pool [%s]...", "pool-1")

	if got, want := buf.String(), "Creating pool [pool-1]...\n"; got != want {
		t.Errorf("Info() wrote %q, want %q", got, want)
	}
}

func TestLevelPrefixes(t *testing.T) {
	tests := []struct {
		name string
		log  func(string, ...any)
		want string
	}{
		{name: "warn", log: Warn, want: "warning: pool exists\n"},
		{name: "error", log: Error, want: "error: pool exists\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)
			tt.log("pool exists")
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDebugOnlyWhenVerbose(t *testing.T) {
	buf := captureOutput(t)

	Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Debug() wrote %q without verbose mode", buf.String())
	}

	SetVerbose(true)
	Debug("shown")
	if got, want := buf.String(), "shown\n"; got != want {
		t.Errorf("Debug() wrote %q, want %q", got, want)
	}
}

func TestFatalExits(t *testing.T) {
	buf := captureOutput(t)
	code := -1
	prev := SetExitFunc(func(c int) { code = c })
	defer SetExitFunc(prev)

	Fatal("boom: %v", "bad")

	if code != 1 {
		t.Errorf("Fatal() exit code = %d, want 1", code)
	}
	if got, want := buf.String(), "error: boom: bad\n"; got != want {
		t.Errorf("Fatal() wrote %q, want %q", got, want)
	}
}
