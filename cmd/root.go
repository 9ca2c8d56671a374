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

// Package cmd defines the render-batch command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"render-batch/pkg/config"
	"render-batch/pkg/logging"
	"render-batch/pkg/orchestrator/azurebatch"
	"render-batch/pkg/storage"
)

var (
	configFile string
	envFile    string
	verbose    bool
	noColor    bool

	appFs = afero.NewOsFs()

	newBlobStore = func(cfg config.Config) (storage.BlobStore, error) {
		return azurebatch.NewBlobStore(cfg)
	}
)

var rootCmd = &cobra.Command{
	Use:   "render-batch",
	Short: "Provisions an Azure Batch pool, job and GPU rendering task.",
	Long: `render-batch uploads startup scripts to Azure Blob Storage, creates an
Azure Batch pool whose start task runs them, registers a job on the pool and
submits a task that launches a GPU-enabled container.

Options are read from built-in defaults, an optional YAML or TOML config file,
a .env file, the environment and finally command-line flags.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			logging.DisableColor()
		}
		logging.SetVerbose(verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML (.yaml, .yml) or TOML (.toml) config file.")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file. Defaults to ./.env when present.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug output.")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output.")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logging.Error("%v", err)
		return err
	}
	return nil
}

// loadConfig assembles the configuration from defaults, the config file,
// the env file and the process environment. Flags are applied by callers.
func loadConfig() config.Config {
	cfg, err := config.Load(appFs, configFile)
	if err != nil {
		logging.Fatal("%v", err)
	}
	if err := config.ApplyEnv(&cfg, appFs, envFile, os.Environ()); err != nil {
		logging.Fatal("%v", err)
	}
	return cfg
}

// newOrchestrator connects to the Batch and storage accounts in cfg.
func newOrchestrator(cfg config.Config) (*azurebatch.BatchOrchestrator, error) {
	client, err := azurebatch.NewBatchClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch client: %w", err)
	}
	store, err := newBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return azurebatch.New(cfg, client, store, appFs), nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
