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

// Package config holds every recognized option of a render-batch run and
// the logic to assemble it from defaults, config files and the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// AuthMode selects how requests to the Batch account are authenticated.
type AuthMode string

const (
	AuthSharedKey AuthMode = "sharedKey"
	AuthEntra     AuthMode = "entra"
)

// DefaultAPIVersion is the Batch data-plane REST API version requests target.
const DefaultAPIVersion = "2024-07-01.20.0"

// Config is the full set of options for provisioning a pool, job and task.
type Config struct {
	Batch     Batch     `yaml:"batch" toml:"batch"`
	Storage   Storage   `yaml:"storage" toml:"storage"`
	Pool      Pool      `yaml:"pool" toml:"pool"`
	StartTask StartTask `yaml:"startTask" toml:"startTask"`
	Job       Job       `yaml:"job" toml:"job"`
	Task      Task      `yaml:"task" toml:"task"`
	Retry     Retry     `yaml:"retry" toml:"retry"`
}

// Batch identifies the Batch account.
type Batch struct {
	AccountName string   `yaml:"accountName" toml:"accountName" env:"AZURE_BATCH_ACCOUNT_NAME"`
	AccountKey  string   `yaml:"accountKey" toml:"accountKey" env:"AZURE_BATCH_ACCOUNT_KEY"`
	AccountURL  string   `yaml:"accountURL" toml:"accountURL" env:"AZURE_BATCH_ACCOUNT_URL"`
	AuthMode    AuthMode `yaml:"authMode" toml:"authMode" env:"AZURE_BATCH_AUTH_MODE"`
	APIVersion  string   `yaml:"apiVersion" toml:"apiVersion"`
}

// Storage identifies the storage account and the container startup scripts go to.
type Storage struct {
	AccountName string        `yaml:"accountName" toml:"accountName" env:"AZURE_STORAGE_ACCOUNT_NAME"`
	AccountKey  string        `yaml:"accountKey" toml:"accountKey" env:"AZURE_STORAGE_ACCOUNT_KEY"`
	Endpoint    string        `yaml:"endpoint" toml:"endpoint" env:"AZURE_STORAGE_ENDPOINT"`
	Container   string        `yaml:"container" toml:"container" env:"RENDER_BATCH_CONTAINER"`
	SASExpiry   time.Duration `yaml:"sasExpiry" toml:"sasExpiry"`
	FileMode    string        `yaml:"fileMode" toml:"fileMode"`
	IfExists    ExistsPolicy  `yaml:"ifExists" toml:"ifExists"`
	Verify      bool          `yaml:"verify" toml:"verify"`
}

// ImageReference names a marketplace VM image.
type ImageReference struct {
	Publisher string `yaml:"publisher" toml:"publisher"`
	Offer     string `yaml:"offer" toml:"offer"`
	SKU       string `yaml:"sku" toml:"sku"`
	Version   string `yaml:"version" toml:"version"`
}

type Pool struct {
	ID              string         `yaml:"id" toml:"id" env:"RENDER_BATCH_POOL_ID"`
	VMSize          string         `yaml:"vmSize" toml:"vmSize" env:"RENDER_BATCH_VM_SIZE"`
	NodeCount       int            `yaml:"nodeCount" toml:"nodeCount" env:"RENDER_BATCH_NODE_COUNT"`
	MaxTasksPerNode int            `yaml:"maxTasksPerNode" toml:"maxTasksPerNode"`
	NodeAgentSKU    string         `yaml:"nodeAgentSku" toml:"nodeAgentSku"`
	Image           ImageReference `yaml:"image" toml:"image"`
	IfExists        ExistsPolicy   `yaml:"ifExists" toml:"ifExists"`
	DeleteTimeout   time.Duration  `yaml:"deleteTimeout" toml:"deleteTimeout"`
	PollInterval    time.Duration  `yaml:"pollInterval" toml:"pollInterval"`
}

// StartTask describes the command every node runs when it joins the pool.
type StartTask struct {
	Scripts        []string `yaml:"scripts" toml:"scripts"`
	CommandLine    string   `yaml:"commandLine" toml:"commandLine"`
	WaitForSuccess bool     `yaml:"waitForSuccess" toml:"waitForSuccess"`
	Elevated       bool     `yaml:"elevated" toml:"elevated"`
}

type Job struct {
	ID       string       `yaml:"id" toml:"id" env:"RENDER_BATCH_JOB_ID"`
	IfExists ExistsPolicy `yaml:"ifExists" toml:"ifExists"`
}

type Task struct {
	ID          string        `yaml:"id" toml:"id" env:"RENDER_BATCH_TASK_ID"`
	CommandLine string        `yaml:"commandLine" toml:"commandLine"`
	Elevated    bool          `yaml:"elevated" toml:"elevated"`
	IfExists    ExistsPolicy  `yaml:"ifExists" toml:"ifExists"`
	Container   ContainerSpec `yaml:"container" toml:"container"`
}

// ContainerSpec describes the container the task launches when no literal
// command line is configured.
type ContainerSpec struct {
	Image       string   `yaml:"image" toml:"image"`
	GPU         bool     `yaml:"gpu" toml:"gpu"`
	Runtime     string   `yaml:"runtime" toml:"runtime"`
	Interactive bool     `yaml:"interactive" toml:"interactive"`
	Remove      bool     `yaml:"remove" toml:"remove"`
	Sudo        bool     `yaml:"sudo" toml:"sudo"`
	Env         []string `yaml:"env" toml:"env"`
	Volumes     []string `yaml:"volumes" toml:"volumes"`
}

// Retry controls transport-level retries of both clients. A negative value
// disables retries.
type Retry struct {
	MaxRetries int32 `yaml:"maxRetries" toml:"maxRetries"`
}

// Default returns the configuration of the original glxgears rendering setup.
// Account names and keys are left empty.
func Default() Config {
	return Config{
		Batch: Batch{
			AuthMode:   AuthSharedKey,
			APIVersion: DefaultAPIVersion,
		},
		Storage: Storage{
			Container: "scripts",
			SASExpiry: 2 * time.Hour,
			FileMode:  "777",
			IfExists:  PolicyReplace,
		},
		Pool: Pool{
			ID:              "glxgears_pool",
			VMSize:          "STANDARD_NV6",
			NodeCount:       2,
			MaxTasksPerNode: 2,
			NodeAgentSKU:    "batch.node.ubuntu 16.04",
			Image: ImageReference{
				Publisher: "Canonical",
				Offer:     "UbuntuServer",
				SKU:       "16.04-LTS",
				Version:   "latest",
			},
			IfExists:      PolicyFail,
			DeleteTimeout: 15 * time.Minute,
			PollInterval:  5 * time.Second,
		},
		StartTask: StartTask{
			Scripts:        []string{filepath.Join("scripts", "init-vm-glx-rendering.sh")},
			WaitForSuccess: true,
			Elevated:       true,
		},
		Job: Job{
			ID:       "glxgears_test",
			IfExists: PolicyFail,
		},
		Task: Task{
			ID:       "test_task",
			Elevated: true,
			IfExists: PolicyFail,
			Container: ContainerSpec{
				Image:       "stasus/glxgears",
				GPU:         true,
				Runtime:     "nvidia",
				Interactive: true,
				Remove:      true,
				Sudo:        true,
				Env:         []string{"DISPLAY=:0"},
				Volumes:     []string{"/tmp/.X11-unix:/tmp/.X11-unix"},
			},
		},
		Retry: Retry{MaxRetries: -1},
	}
}

// StorageEndpoint returns the blob service URL of the storage account.
func (c Config) StorageEndpoint() string {
	if c.Storage.Endpoint != "" {
		return c.Storage.Endpoint
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.Storage.AccountName)
}
