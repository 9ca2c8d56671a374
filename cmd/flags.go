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
	"github.com/spf13/pflag"

	"render-batch/pkg/config"
)

const ifExistsUsage = "What to do when the pool, job or task already exists: fail, reuse or replace."

// applyIfExists sets every existence policy in cfg when the if-exists flag
// was given on the command line.
func applyIfExists(flags *pflag.FlagSet, value string, cfg *config.Config) error {
	if !flags.Changed("if-exists") {
		return nil
	}
	p, err := config.ParseExistsPolicy(value)
	if err != nil {
		return err
	}
	cfg.Pool.IfExists, cfg.Job.IfExists, cfg.Task.IfExists = p, p, p
	return nil
}
