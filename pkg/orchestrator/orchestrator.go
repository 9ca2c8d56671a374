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

package orchestrator

import (
	"context"
	"fmt"

	"render-batch/pkg/batch"
	"render-batch/pkg/config"
	"render-batch/pkg/storage"
	"render-batch/pkg/workload"
)

// Policies holds the already-exists policy of each creation step.
type Policies struct {
	Pool config.ExistsPolicy
	Job  config.ExistsPolicy
	Task config.ExistsPolicy
}

// JobDefinition holds everything needed to provision a pool, register a job
// on it and submit a task. The pool's start task resource files are filled
// in from the uploaded scripts.
type JobDefinition struct {
	Scripts  []string
	Pool     batch.PoolAddParameter
	Job      batch.JobAddParameter
	Task     batch.TaskAddParameter
	Policies Policies

	// OutputRequests, when set, is where the creation requests are written
	// instead of being submitted.
	OutputRequests string
}

// Outcome records what a creation step did.
type Outcome string

const (
	Created  Outcome = "created"
	Reused   Outcome = "reused"
	Replaced Outcome = "replaced"
	// Skipped means the request was written to a manifest only.
	Skipped Outcome = "skipped"
)

// Submission is the result of a successful SubmitJob.
type Submission struct {
	Resources []storage.ResourceFile

	PoolID string
	JobID  string
	TaskID string

	Pool Outcome
	Job  Outcome
	Task Outcome

	ManifestPath string
}

// Orchestrator defines the interface for submitting jobs to a batch service.
type Orchestrator interface {
	// SubmitJob uploads the startup scripts, then creates the pool, the job
	// and the task in that order. The first failure aborts the sequence.
	SubmitJob(ctx context.Context, job JobDefinition) (*Submission, error)
}

// NewJobDefinition builds the creation requests described by cfg.
func NewJobDefinition(cfg config.Config) (JobDefinition, error) {
	commandLine, err := workload.TaskCommand(cfg.Task)
	if err != nil {
		return JobDefinition{}, fmt.Errorf("failed to build task command line: %w", err)
	}

	return JobDefinition{
		Scripts: cfg.StartTask.Scripts,
		Pool: batch.PoolAddParameter{
			ID:     cfg.Pool.ID,
			VMSize: cfg.Pool.VMSize,
			VirtualMachineConfiguration: &batch.VirtualMachineConfiguration{
				ImageReference: batch.ImageReference{
					Publisher: cfg.Pool.Image.Publisher,
					Offer:     cfg.Pool.Image.Offer,
					SKU:       cfg.Pool.Image.SKU,
					Version:   cfg.Pool.Image.Version,
				},
				NodeAgentSKUID: cfg.Pool.NodeAgentSKU,
			},
			TargetDedicatedNodes: cfg.Pool.NodeCount,
			TaskSlotsPerNode:     cfg.Pool.MaxTasksPerNode,
			StartTask: &batch.StartTask{
				CommandLine:    cfg.StartTask.CommandLine,
				UserIdentity:   identity(cfg.StartTask.Elevated),
				WaitForSuccess: cfg.StartTask.WaitForSuccess,
			},
		},
		Job: batch.JobAddParameter{
			ID:       cfg.Job.ID,
			PoolInfo: batch.PoolInformation{PoolID: cfg.Pool.ID},
		},
		Task: batch.TaskAddParameter{
			ID:           cfg.Task.ID,
			CommandLine:  commandLine,
			UserIdentity: identity(cfg.Task.Elevated),
		},
		Policies: Policies{
			Pool: cfg.Pool.IfExists,
			Job:  cfg.Job.IfExists,
			Task: cfg.Task.IfExists,
		},
	}, nil
}

func identity(elevated bool) *batch.UserIdentity {
	if elevated {
		return batch.AdminIdentity()
	}
	return &batch.UserIdentity{AutoUser: &batch.AutoUserSpecification{
		Scope:          batch.AutoUserScopeTask,
		ElevationLevel: batch.ElevationNonAdmin,
	}}
}
