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

package manifest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"render-batch/pkg/batch"
)

func testManifest() Manifest {
	return Manifest{
		Pool: batch.PoolAddParameter{
			ID:     "pool-1",
			VMSize: "STANDARD_NV6",
			VirtualMachineConfiguration: &batch.VirtualMachineConfiguration{
				ImageReference: batch.ImageReference{Publisher: "Canonical", Offer: "UbuntuServer", SKU: "16.04-LTS", Version: "latest"},
				NodeAgentSKUID: "batch.node.ubuntu 16.04",
			},
			TargetDedicatedNodes: 2,
			TaskSlotsPerNode:     2,
			StartTask: &batch.StartTask{
				CommandLine:    "./init.sh",
				ResourceFiles:  []batch.ResourceFile{{HTTPURL: "https://acct.blob.core.windows.net/scripts/init.sh?sp=r", FilePath: "init.sh", FileMode: "777"}},
				UserIdentity:   batch.AdminIdentity(),
				WaitForSuccess: true,
			},
		},
		Job:  batch.JobAddParameter{ID: "job-1", PoolInfo: batch.PoolInformation{PoolID: "pool-1"}},
		Task: batch.TaskAddParameter{ID: "task-1", CommandLine: "/bin/true", UserIdentity: batch.AdminIdentity()},
	}
}

func decodeDocuments(t *testing.T, content string) []map[string]interface{} {
	t.Helper()
	var docs []map[string]interface{}
	dec := yaml.NewDecoder(strings.NewReader(content))
	for {
		var doc map[string]interface{}
		if err := dec.Decode(&doc); err != nil {
			break
		}
		docs = append(docs, doc)
	}
	return docs
}

// assertMetadata checks the apiVersion, kind, name and workload label of a document.
func assertMetadata(t *testing.T, doc map[string]interface{}, expectedKind, expectedName, expectedJob string) {
	t.Helper()

	if apiVersion := doc["apiVersion"]; apiVersion != APIVersion {
		t.Errorf("Expected apiVersion %q, got %q", APIVersion, apiVersion)
	}
	if kind := doc["kind"]; kind != expectedKind {
		t.Errorf("Expected kind %q, got %q", expectedKind, kind)
	}
	metadata, ok := doc["metadata"].(map[string]interface{})
	if !ok {
		t.Fatalf("metadata not found or not a map")
	}
	if name := metadata["name"]; name != expectedName {
		t.Errorf("Expected metadata.name %q, got %q", expectedName, name)
	}
	labels, ok := metadata["labels"].(map[string]interface{})
	if !ok {
		t.Fatalf("metadata.labels not found or not a map")
	}
	if job := labels[WorkloadLabel]; job != expectedJob {
		t.Errorf("Expected %s label %q, got %q", WorkloadLabel, expectedJob, job)
	}
}

func spec(t *testing.T, doc map[string]interface{}) map[string]interface{} {
	t.Helper()
	s, ok := doc["spec"].(map[string]interface{})
	if !ok {
		t.Fatalf("spec not found or not a map")
	}
	return s
}

func TestGenerate(t *testing.T) {
	content, err := Generate(testManifest())
	if err != nil {
		t.Fatalf("Generate() returned error: %v", err)
	}

	docs := decodeDocuments(t, content)
	if len(docs) != 3 {
		t.Fatalf("Expected 3 documents, got %d:\n%s", len(docs), content)
	}
	assertMetadata(t, docs[0], "Pool", "pool-1", "job-1")
	assertMetadata(t, docs[1], "Job", "job-1", "job-1")
	assertMetadata(t, docs[2], "Task", "task-1", "job-1")

	pool := spec(t, docs[0])
	if n := pool["targetDedicatedNodes"]; n != 2 {
		t.Errorf("Expected spec.targetDedicatedNodes 2, got %v", n)
	}
	startTask, ok := pool["startTask"].(map[string]interface{})
	if !ok {
		t.Fatalf("spec.startTask not found or not a map")
	}
	if w := startTask["waitForSuccess"]; w != true {
		t.Errorf("Expected spec.startTask.waitForSuccess true, got %v", w)
	}

	job := spec(t, docs[1])
	poolInfo, ok := job["poolInfo"].(map[string]interface{})
	if !ok {
		t.Fatalf("spec.poolInfo not found or not a map")
	}
	if id := poolInfo["poolId"]; id != "pool-1" {
		t.Errorf("Expected spec.poolInfo.poolId %q, got %q", "pool-1", id)
	}

	task := spec(t, docs[2])
	if id := task["jobId"]; id != "job-1" {
		t.Errorf("Expected spec.jobId %q, got %q", "job-1", id)
	}
	if cmdLine := task["commandLine"]; cmdLine != "/bin/true" {
		t.Errorf("Expected spec.commandLine %q, got %q", "/bin/true", cmdLine)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	want := testManifest()
	if err := Write(fs, "requests.yaml", want); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	got, err := Read(fs, "requests.yaml")
	if err != nil {
		t.Fatalf("Read() returned error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	full, err := Generate(testManifest())
	if err != nil {
		t.Fatalf("Generate() returned error: %v", err)
	}
	unbound := testManifest()
	unbound.Job.PoolInfo.PoolID = "other"
	unboundContent, _ := Generate(unbound)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing task", strings.TrimSuffix(strings.Join(strings.SplitAfterN(full, "---\n", 3)[:2], ""), "---\n"), "has no Task document"},
		{"wrong api version", strings.Replace(full, APIVersion, "v0", 1), `apiVersion "v0"`},
		{"unknown kind", strings.Replace(full, "kind: Job", "kind: Node", 1), `unknown kind "Node"`},
		{"duplicate", full + "---\n" + strings.Split(full, "---\n")[0], "more than one Pool"},
		{"unbound job", unboundContent, `job "job-1" is bound to pool "other"`},
		{"task on other job", strings.Replace(full, "jobId: job-1", "jobId: job-2", 1), `task "task-1" targets job "job-2"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Parse() error = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}
