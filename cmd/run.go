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

	"render-batch/pkg/config"
	"render-batch/pkg/logging"
	"render-batch/pkg/orchestrator"
)

var (
	poolID         string
	nodeCount      int
	vmSize         string
	jobID          string
	taskID         string
	scripts        []string
	container      string
	taskImage      string
	taskCommand    string
	ifExists       string
	outputRequests string
	verifyUpload   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&poolID, "pool-id", "", "ID of the Batch pool to create.")
	runCmd.Flags().IntVarP(&nodeCount, "node-count", "n", 0, "Number of dedicated nodes in the pool.")
	runCmd.Flags().StringVar(&vmSize, "vm-size", "", "VM size of the pool nodes (e.g., 'STANDARD_NV6').")
	runCmd.Flags().StringVar(&jobID, "job-id", "", "ID of the Batch job to create.")
	runCmd.Flags().StringVar(&taskID, "task-id", "", "ID of the task to add to the job.")
	runCmd.Flags().StringArrayVarP(&scripts, "script", "s", nil, "Startup script, directory or remote source to upload. Repeatable; the first script is run by the start task.")
	runCmd.Flags().StringVarP(&container, "container", "c", "", "Blob container the startup scripts are uploaded to.")
	runCmd.Flags().StringVarP(&taskImage, "task-image", "i", "", "Container image the task runs (e.g., 'stasus/glxgears').")
	runCmd.Flags().StringVarP(&taskCommand, "task-command", "e", "", "Literal task command line. Overrides --task-image.")
	runCmd.Flags().StringVar(&ifExists, "if-exists", "", ifExistsUsage)
	runCmd.Flags().StringVarP(&outputRequests, "output-requests", "o", "", "Upload the scripts, then write the pool, job and task requests to this file instead of submitting them.")
	runCmd.Flags().BoolVar(&verifyUpload, "verify-upload", false, "Check that every uploaded script is readable through its access grant.")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Uploads startup scripts and creates a Batch pool, job and task.",
	Long: `The 'run' command uploads the startup scripts to a blob container, creates a
Batch pool whose start task runs the first script with elevated rights, registers
a job on that pool and adds a task that launches the rendering container.

Each step runs only when the previous one succeeded. When a pool, job or task with
the same ID already exists, --if-exists decides whether to fail (default), reuse
it or replace it.`,
	Args:         cobra.NoArgs,
	Run:          runRunCmd,
	SilenceUsage: true,
}

func runRunCmd(cmd *cobra.Command, args []string) {
	logging.Info("Executing render-batch run command...")

	cfg := loadConfig()
	if err := applyRunFlags(cmd, &cfg); err != nil {
		logging.Fatal("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid configuration:\n%v", err)
	}

	jobDef, err := orchestrator.NewJobDefinition(cfg)
	if err != nil {
		logging.Fatal("%v", err)
	}
	jobDef.OutputRequests = outputRequests

	batchOrchestrator, err := newOrchestrator(cfg)
	if err != nil {
		logging.Fatal("Failed to create Azure Batch orchestrator: %v", err)
	}

	ctx, stop := signalContext()
	defer stop()

	sub, err := batchOrchestrator.SubmitJob(ctx, jobDef)
	if err != nil {
		exitWithError(logging.Writer(), err)
	}
	if sub.ManifestPath != "" {
		logging.Info("Creation requests written to %s. Submit them with 'render-batch apply %s'.", sub.ManifestPath, sub.ManifestPath)
		return
	}
	logging.Info("Pool %q %s, job %q %s, task %q %s.", sub.PoolID, sub.Pool, sub.JobID, sub.Job, sub.TaskID, sub.Task)
}

// applyRunFlags overrides cfg with the flags set on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("pool-id") {
		cfg.Pool.ID = poolID
	}
	if flags.Changed("node-count") {
		cfg.Pool.NodeCount = nodeCount
	}
	if flags.Changed("vm-size") {
		cfg.Pool.VMSize = vmSize
	}
	if flags.Changed("job-id") {
		cfg.Job.ID = jobID
	}
	if flags.Changed("task-id") {
		cfg.Task.ID = taskID
	}
	if flags.Changed("script") {
		cfg.StartTask.Scripts = scripts
	}
	if flags.Changed("container") {
		cfg.Storage.Container = container
	}
	if flags.Changed("task-image") {
		cfg.Task.Container.Image = taskImage
	}
	if flags.Changed("task-command") {
		cfg.Task.CommandLine = taskCommand
	}
	if flags.Changed("verify-upload") {
		cfg.Storage.Verify = verifyUpload
	}
	return applyIfExists(flags, ifExists, cfg)
}
