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

// Package manifest renders pool, job and task creation requests as a
// multi-document YAML file and reads them back.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"render-batch/pkg/batch"
)

// APIVersion identifies the manifest schema.
const APIVersion = "render-batch/v1"

// WorkloadLabel ties the documents of one manifest together.
const WorkloadLabel = "render-batch/job"

type Kind string

const (
	KindPool Kind = "Pool"
	KindJob  Kind = "Job"
	KindTask Kind = "Task"
)

// Manifest is the full set of creation requests for one run.
type Manifest struct {
	Pool batch.PoolAddParameter
	Job  batch.JobAddParameter
	Task batch.TaskAddParameter
}

type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type document struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       Kind     `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       any      `yaml:"spec"`
}

type rawDocument struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       Kind      `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Spec       yaml.Node `yaml:"spec"`
}

// taskSpec carries the id of the job the task is added to.
type taskSpec struct {
	JobID                  string `yaml:"jobId"`
	batch.TaskAddParameter `yaml:",inline"`
}

// Generate renders m as three YAML documents: Pool, Job and Task.
func Generate(m Manifest) (string, error) {
	labels := map[string]string{WorkloadLabel: m.Job.ID}
	docs := []document{
		{APIVersion: APIVersion, Kind: KindPool, Metadata: Metadata{Name: m.Pool.ID, Labels: labels}, Spec: m.Pool},
		{APIVersion: APIVersion, Kind: KindJob, Metadata: Metadata{Name: m.Job.ID, Labels: labels}, Spec: m.Job},
		{APIVersion: APIVersion, Kind: KindTask, Metadata: Metadata{Name: m.Task.ID, Labels: labels}, Spec: taskSpec{JobID: m.Job.ID, TaskAddParameter: m.Task}},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return "", fmt.Errorf("failed to encode %s manifest: %w", d.Kind, err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.String(), nil
}

// Parse reads a manifest written by Generate. It requires exactly one
// document of each kind, with the job bound to the pool and the task to
// the job.
func Parse(r io.Reader) (Manifest, error) {
	var m Manifest
	var taskJobID string
	seen := map[Kind]bool{}

	dec := yaml.NewDecoder(r)
	for i := 0; ; i++ {
		var d rawDocument
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Manifest{}, fmt.Errorf("failed to parse manifest document %d: %w", i, err)
		}
		if d.APIVersion != APIVersion {
			return Manifest{}, fmt.Errorf("manifest document %d has apiVersion %q, expected %q", i, d.APIVersion, APIVersion)
		}
		if seen[d.Kind] {
			return Manifest{}, fmt.Errorf("manifest contains more than one %s", d.Kind)
		}
		seen[d.Kind] = true

		switch d.Kind {
		case KindPool:
			err = d.Spec.Decode(&m.Pool)
		case KindJob:
			err = d.Spec.Decode(&m.Job)
		case KindTask:
			var ts taskSpec
			err = d.Spec.Decode(&ts)
			m.Task, taskJobID = ts.TaskAddParameter, ts.JobID
		default:
			return Manifest{}, fmt.Errorf("manifest document %d has unknown kind %q", i, d.Kind)
		}
		if err != nil {
			return Manifest{}, fmt.Errorf("invalid %s in manifest: %w", d.Kind, err)
		}
	}

	for _, k := range []Kind{KindPool, KindJob, KindTask} {
		if !seen[k] {
			return Manifest{}, fmt.Errorf("manifest has no %s document", k)
		}
	}
	if taskJobID != "" && taskJobID != m.Job.ID {
		return Manifest{}, fmt.Errorf("task %q targets job %q, but the manifest defines job %q", m.Task.ID, taskJobID, m.Job.ID)
	}
	if m.Job.PoolInfo.PoolID != m.Pool.ID {
		return Manifest{}, fmt.Errorf("job %q is bound to pool %q, but the manifest defines pool %q", m.Job.ID, m.Job.PoolInfo.PoolID, m.Pool.ID)
	}
	return m, nil
}

// Write renders m to path.
func Write(fs afero.Fs, path string, m Manifest) error {
	content, err := Generate(m)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write manifest to %s: %w", path, err)
	}
	return nil
}

// Read parses the manifest at path.
func Read(fs afero.Fs, path string) (Manifest, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}
