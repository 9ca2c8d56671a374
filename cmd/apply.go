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
	"github.com/spf13/cobra"

	"render-batch/pkg/logging"
	"render-batch/pkg/manifest"
	"render-batch/pkg/orchestrator"
	"render-batch/pkg/orchestrator/azurebatch"
)

var applyIfExistsFlag string

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVar(&applyIfExistsFlag, "if-exists", "", ifExistsUsage)
}

var applyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Submits pool, job and task requests written by 'run --output-requests'.",
	Long: `The 'apply' command reads a manifest written by 'render-batch run --output-requests'
and creates its pool, job and task in that order. The access grants embedded in
the manifest must still be valid when the pool's nodes start.`,
	Args:         cobra.ExactArgs(1),
	Run:          runApplyCmd,
	SilenceUsage: true,
}

func runApplyCmd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := applyIfExists(cmd.Flags(), applyIfExistsFlag, &cfg); err != nil {
		logging.Fatal("%v", err)
	}
	if err := cfg.ValidateBatch(); err != nil {
		logging.Fatal("invalid configuration:\n%v", err)
	}

	m, err := manifest.Read(appFs, args[0])
	if err != nil {
		logging.Fatal("%v", err)
	}

	client, err := azurebatch.NewBatchClient(cfg)
	if err != nil {
		logging.Fatal("Failed to create batch client: %v", err)
	}
	o := azurebatch.NewBatchOrchestrator(client, nil, nil, appFs, azurebatch.Options{
		DeleteTimeout: cfg.Pool.DeleteTimeout,
		PollInterval:  cfg.Pool.PollInterval,
	})

	ctx, stop := signalContext()
	defer stop()

	sub, err := o.Apply(ctx, m, orchestrator.Policies{Pool: cfg.Pool.IfExists, Job: cfg.Job.IfExists, Task: cfg.Task.IfExists})
	if err != nil {
		exitWithError(logging.Writer(), err)
	}
	logging.Info("Pool %q %s, job %q %s, task %q %s.", sub.PoolID, sub.Pool, sub.JobID, sub.Job, sub.TaskID, sub.Task)
}
