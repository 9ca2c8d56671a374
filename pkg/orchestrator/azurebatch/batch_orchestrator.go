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

package azurebatch

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"render-batch/pkg/batch"
	"render-batch/pkg/config"
	"render-batch/pkg/logging"
	"render-batch/pkg/manifest"
	"render-batch/pkg/orchestrator"
	"render-batch/pkg/storage"
)

// BatchAPI is the subset of the Batch client the orchestrator calls.
type BatchAPI interface {
	AddPool(ctx context.Context, pool batch.PoolAddParameter) error
	GetPool(ctx context.Context, poolID string) (*batch.Pool, error)
	DeletePool(ctx context.Context, poolID string) error
	AddJob(ctx context.Context, job batch.JobAddParameter) error
	GetJob(ctx context.Context, jobID string) (*batch.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	AddTask(ctx context.Context, jobID string, task batch.TaskAddParameter) error
	DeleteTask(ctx context.Context, jobID, taskID string) error
}

// Options tune the replace policy's wait for deletions to finish.
type Options struct {
	DeleteTimeout time.Duration
	PollInterval  time.Duration
}

// BatchOrchestrator implements the Orchestrator interface for Azure Batch.
type BatchOrchestrator struct {
	client    BatchAPI
	uploader  *storage.Uploader
	collector *storage.Collector
	fs        afero.Fs
	opts      Options
}

var _ orchestrator.Orchestrator = (*BatchOrchestrator)(nil)

// NewBatchOrchestrator creates a BatchOrchestrator from its collaborators.
func NewBatchOrchestrator(client BatchAPI, uploader *storage.Uploader, collector *storage.Collector, fs afero.Fs, opts Options) *BatchOrchestrator {
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = config.Default().Pool.DeleteTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.Default().Pool.PollInterval
	}
	return &BatchOrchestrator{
		client:    client,
		uploader:  uploader,
		collector: collector,
		fs:        fs,
		opts:      opts,
	}
}

// Upload collects and uploads the startup scripts.
func (o *BatchOrchestrator) Upload(ctx context.Context, scripts []string) ([]storage.ResourceFile, error) {
	defer func() {
		if err := o.collector.Close(); err != nil {
			logging.Warn("failed to remove downloaded scripts: %v", err)
		}
	}()
	sources, err := o.collector.Collect(ctx, scripts)
	if err != nil {
		return nil, fmt.Errorf("failed to collect startup scripts: %w", err)
	}

	files, err := o.uploader.Upload(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to upload startup scripts: %w", err)
	}
	return files, nil
}

// SubmitJob uploads the startup scripts, then creates the pool, the job and
// the task. With OutputRequests set, the requests are written to a manifest
// after the upload and nothing is created.
func (o *BatchOrchestrator) SubmitJob(ctx context.Context, job orchestrator.JobDefinition) (*orchestrator.Submission, error) {
	logging.Info("Starting render-batch run workflow...")

	files, err := o.Upload(ctx, job.Scripts)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		logging.Info("Uploaded %s, readable until %s", f.BlobName, f.Expiry.Format(time.RFC3339))
	}

	m := manifest.Manifest{Pool: job.Pool, Job: job.Job, Task: job.Task}
	if m.Pool.StartTask != nil {
		st := *m.Pool.StartTask
		if st.CommandLine == "" && len(files) > 0 {
			// The first uploaded file lands in the start task working directory
			// under its blob name.
			st.CommandLine = "./" + files[0].BlobName
		}
		st.ResourceFiles = make([]batch.ResourceFile, 0, len(files))
		for _, f := range files {
			st.ResourceFiles = append(st.ResourceFiles, f.BatchResourceFile())
		}
		m.Pool.StartTask = &st
	}

	if job.OutputRequests != "" {
		logging.Info("Saving creation requests to %s", job.OutputRequests)
		if err := manifest.Write(o.fs, job.OutputRequests, m); err != nil {
			return nil, err
		}
		return &orchestrator.Submission{
			Resources:    files,
			PoolID:       m.Pool.ID,
			JobID:        m.Job.ID,
			TaskID:       m.Task.ID,
			Pool:         orchestrator.Skipped,
			Job:          orchestrator.Skipped,
			Task:         orchestrator.Skipped,
			ManifestPath: job.OutputRequests,
		}, nil
	}

	sub, err := o.Apply(ctx, m, job.Policies)
	if err != nil {
		return nil, err
	}
	sub.Resources = files
	return sub, nil
}

// Apply creates the pool, the job and the task of m in that order.
func (o *BatchOrchestrator) Apply(ctx context.Context, m manifest.Manifest, policies orchestrator.Policies) (*orchestrator.Submission, error) {
	sub := &orchestrator.Submission{PoolID: m.Pool.ID, JobID: m.Job.ID, TaskID: m.Task.ID}

	var err error
	logging.Info("Creating pool %q...", m.Pool.ID)
	if sub.Pool, err = o.createPool(ctx, m.Pool, policies.Pool); err != nil {
		return nil, err
	}
	logging.Info("Pool %q %s.", m.Pool.ID, sub.Pool)

	logging.Info("Creating job %q...", m.Job.ID)
	if sub.Job, err = o.createJob(ctx, m.Job, policies.Job); err != nil {
		return nil, err
	}
	logging.Info("Job %q %s.", m.Job.ID, sub.Job)

	logging.Info("Adding task %q to job %q...", m.Task.ID, m.Job.ID)
	if sub.Task, err = o.createTask(ctx, m.Job.ID, m.Task, policies.Task); err != nil {
		return nil, err
	}
	logging.Info("Task %q %s.", m.Task.ID, sub.Task)

	logging.Info("render-batch run workflow completed.")
	return sub, nil
}

// resource describes one creation step for the shared already-exists handling.
type resource struct {
	kind         string
	id           string
	existsCode   string
	deletingCode string
	add          func(context.Context) error
	remove       func(context.Context) error
	// gone reports whether the resource no longer exists. Nil means
	// deletion is synchronous.
	gone func(context.Context) (bool, error)
}

func (o *BatchOrchestrator) createPool(ctx context.Context, pool batch.PoolAddParameter, policy config.ExistsPolicy) (orchestrator.Outcome, error) {
	return o.create(ctx, policy, resource{
		kind:         "pool",
		id:           pool.ID,
		existsCode:   batch.CodePoolExists,
		deletingCode: batch.CodePoolBeingDeleted,
		add:          func(ctx context.Context) error { return o.client.AddPool(ctx, pool) },
		remove:       func(ctx context.Context) error { return o.client.DeletePool(ctx, pool.ID) },
		gone: func(ctx context.Context) (bool, error) {
			_, err := o.client.GetPool(ctx, pool.ID)
			return notFound(err, batch.CodePoolNotFound)
		},
	})
}

func (o *BatchOrchestrator) createJob(ctx context.Context, job batch.JobAddParameter, policy config.ExistsPolicy) (orchestrator.Outcome, error) {
	return o.create(ctx, policy, resource{
		kind:         "job",
		id:           job.ID,
		existsCode:   batch.CodeJobExists,
		deletingCode: batch.CodeJobBeingDeleted,
		add:          func(ctx context.Context) error { return o.client.AddJob(ctx, job) },
		remove:       func(ctx context.Context) error { return o.client.DeleteJob(ctx, job.ID) },
		gone: func(ctx context.Context) (bool, error) {
			_, err := o.client.GetJob(ctx, job.ID)
			return notFound(err, batch.CodeJobNotFound)
		},
	})
}

func (o *BatchOrchestrator) createTask(ctx context.Context, jobID string, task batch.TaskAddParameter, policy config.ExistsPolicy) (orchestrator.Outcome, error) {
	return o.create(ctx, policy, resource{
		kind:       "task",
		id:         task.ID,
		existsCode: batch.CodeTaskExists,
		add:        func(ctx context.Context) error { return o.client.AddTask(ctx, jobID, task) },
		remove:     func(ctx context.Context) error { return o.client.DeleteTask(ctx, jobID, task.ID) },
	})
}

func (o *BatchOrchestrator) create(ctx context.Context, policy config.ExistsPolicy, r resource) (orchestrator.Outcome, error) {
	err := r.add(ctx)
	if err == nil {
		return orchestrator.Created, nil
	}

	exists := batch.IsCode(err, r.existsCode)
	deleting := r.deletingCode != "" && batch.IsCode(err, r.deletingCode)
	if !exists && !deleting {
		return "", fmt.Errorf("failed to create %s %q: %w", r.kind, r.id, err)
	}

	switch policy {
	case config.PolicyReuse:
		if deleting {
			return "", fmt.Errorf("cannot reuse %s %q: %w", r.kind, r.id, err)
		}
		logging.Warn("%s %q already exists, reusing it", r.kind, r.id)
		return orchestrator.Reused, nil
	case config.PolicyReplace:
		if exists {
			logging.Warn("%s %q already exists, replacing it", r.kind, r.id)
			if err := r.remove(ctx); err != nil {
				return "", fmt.Errorf("failed to delete %s %q: %w", r.kind, r.id, err)
			}
		}
		if r.gone != nil {
			if err := o.waitGone(ctx, r); err != nil {
				return "", err
			}
		}
		if err := r.add(ctx); err != nil {
			return "", fmt.Errorf("failed to create %s %q: %w", r.kind, r.id, err)
		}
		return orchestrator.Replaced, nil
	default:
		return "", fmt.Errorf("failed to create %s %q: %w", r.kind, r.id, err)
	}
}

func (o *BatchOrchestrator) waitGone(ctx context.Context, r resource) error {
	logging.Info("Waiting for %s %q to be deleted...", r.kind, r.id)
	waitCtx, cancel := context.WithTimeout(ctx, o.opts.DeleteTimeout)
	defer cancel()

	for {
		gone, err := r.gone(waitCtx)
		if gone {
			return nil
		}
		if waitCtx.Err() != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("timed out after %s waiting for %s %q to be deleted", o.opts.DeleteTimeout, r.kind, r.id)
		}
		if err != nil {
			return fmt.Errorf("failed to check deletion of %s %q: %w", r.kind, r.id, err)
		}
		logging.Debug("%s %q is still being deleted", r.kind, r.id)

		select {
		case <-waitCtx.Done():
		case <-time.After(o.opts.PollInterval):
		}
	}
}

// notFound maps a lookup error to whether the resource is gone.
func notFound(err error, code string) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case batch.IsCode(err, code):
		return true, nil
	default:
		return false, err
	}
}
