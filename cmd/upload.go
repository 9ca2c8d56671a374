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
	"time"

	"github.com/spf13/cobra"

	"render-batch/pkg/logging"
	"render-batch/pkg/orchestrator/azurebatch"
)

var uploadScripts []string

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringArrayVarP(&uploadScripts, "script", "s", nil, "Script, directory or remote source to upload. Repeatable.")
	uploadCmd.Flags().StringVarP(&container, "container", "c", "", "Blob container to upload to.")
	uploadCmd.Flags().BoolVar(&verifyUpload, "verify-upload", false, "Check that every uploaded script is readable through its access grant.")
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Uploads startup scripts and prints their read-only URLs.",
	Long: `The 'upload' command uploads the startup scripts to the blob container and
prints one line per file with its read-only URL and the time the URL expires.`,
	Args:         cobra.NoArgs,
	Run:          runUploadCmd,
	SilenceUsage: true,
}

func runUploadCmd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	flags := cmd.Flags()
	if flags.Changed("script") {
		cfg.StartTask.Scripts = uploadScripts
	}
	if flags.Changed("container") {
		cfg.Storage.Container = container
	}
	if flags.Changed("verify-upload") {
		cfg.Storage.Verify = verifyUpload
	}
	if err := cfg.ValidateStorage(); err != nil {
		logging.Fatal("invalid configuration:\n%v", err)
	}

	store, err := newBlobStore(cfg)
	if err != nil {
		logging.Fatal("Failed to create storage client: %v", err)
	}
	uploader := azurebatch.New(cfg, nil, store, appFs)

	ctx, stop := signalContext()
	defer stop()

	files, err := uploader.Upload(ctx, cfg.StartTask.Scripts)
	if err != nil {
		exitWithError(logging.Writer(), err)
	}
	for _, f := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", f.BlobName, f.URL, f.Expiry.Format(time.RFC3339))
	}
}
