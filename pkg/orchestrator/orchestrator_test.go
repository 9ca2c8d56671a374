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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"render-batch/pkg/batch"
	"render-batch/pkg/config"
)

func TestNewJobDefinitionDefaults(t *testing.T) {
	def, err := NewJobDefinition(config.Default())
	if err != nil {
		t.Fatalf("NewJobDefinition() returned error: %v", err)
	}

	wantPool := batch.PoolAddParameter{
		ID:     "glxgears_pool",
		VMSize: "STANDARD_NV6",
		VirtualMachineConfiguration: &batch.VirtualMachineConfiguration{
			ImageReference: batch.ImageReference{Publisher: "Canonical", Offer: "UbuntuServer", SKU: "16.04-LTS", Version: "latest"},
			NodeAgentSKUID: "batch.node.ubuntu 16.04",
		},
		TargetDedicatedNodes: 2,
		TaskSlotsPerNode:     2,
		StartTask: &batch.StartTask{
			UserIdentity:   batch.AdminIdentity(),
			WaitForSuccess: true,
		},
	}
	if diff := cmp.Diff(wantPool, def.Pool); diff != "" {
		t.Errorf("pool mismatch (-want +got):\n%s", diff)
	}

	wantJob := batch.JobAddParameter{ID: "glxgears_test", PoolInfo: batch.PoolInformation{PoolID: "glxgears_pool"}}
	if diff := cmp.Diff(wantJob, def.Job); diff != "" {
		t.Errorf("job mismatch (-want +got):\n%s", diff)
	}

	wantTask := batch.TaskAddParameter{
		ID:           "test_task",
		CommandLine:  `bash -c "sudo docker run --runtime=nvidia -i --rm -e DISPLAY=:0 -v /tmp/.X11-unix:/tmp/.X11-unix stasus/glxgears"`,
		UserIdentity: batch.AdminIdentity(),
	}
	if diff := cmp.Diff(wantTask, def.Task); diff != "" {
		t.Errorf("task mismatch (-want +got):\n%s", diff)
	}

	wantPolicies := Policies{Pool: config.PolicyFail, Job: config.PolicyFail, Task: config.PolicyFail}
	if diff := cmp.Diff(wantPolicies, def.Policies); diff != "" {
		t.Errorf("policies mismatch (-want +got):\n%s", diff)
	}
}

func TestNewJobDefinitionNonElevated(t *testing.T) {
	cfg := config.Default()
	cfg.StartTask.Elevated = false
	cfg.Task.Elevated = false
	def, err := NewJobDefinition(cfg)
	if err != nil {
		t.Fatalf("NewJobDefinition() returned error: %v", err)
	}
	if got := def.Task.UserIdentity.AutoUser.ElevationLevel; got != batch.ElevationNonAdmin {
		t.Errorf("Expected task elevation %q, got %q", batch.ElevationNonAdmin, got)
	}
	if got := def.Pool.StartTask.UserIdentity.AutoUser.ElevationLevel; got != batch.ElevationNonAdmin {
		t.Errorf("Expected start task elevation %q, got %q", batch.ElevationNonAdmin, got)
	}
}

func TestNewJobDefinitionInvalidImage(t *testing.T) {
	cfg := config.Default()
	cfg.Task.Container.Image = "UPPER/Case:Bad:Ref"
	_, err := NewJobDefinition(cfg)
	if err == nil || !strings.Contains(err.Error(), "invalid container image") {
		t.Errorf("Expected invalid image error, got %v", err)
	}
}
