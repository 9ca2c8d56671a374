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

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"render-batch/pkg/batch"
	"render-batch/pkg/logging"
)

const rule = "-------------------------------------------"

// formatServiceError renders a remote error as a block with the service
// message and every key/value detail. Details are only shown alongside a
// message.
func formatServiceError(be *batch.Error, colored bool) string {
	paint := fmt.Sprint
	if colored {
		paint = color.New(color.FgRed).SprintFunc()
	}

	var b strings.Builder
	b.WriteString(paint(rule) + "\n")
	b.WriteString("Exception encountered:\n")
	if be.Message != "" {
		b.WriteString(strings.TrimRight(be.Message, "\n") + "\n")
		if len(be.Values) > 0 {
			b.WriteString("\n")
			for _, v := range be.Values {
				fmt.Fprintf(&b, "%s:\t%s\n", v.Key, v.Value)
			}
		}
	}
	b.WriteString(paint(rule) + "\n")
	return b.String()
}

// exitWithError reports err and terminates the process with status 1.
// Remote service errors print the full diagnostic block.
func exitWithError(w io.Writer, err error) {
	if be, ok := batch.AsError(err); ok {
		fmt.Fprint(w, formatServiceError(be, logging.IsTerminal() && !color.NoColor))
	}
	logging.Fatal("%v", err)
}
