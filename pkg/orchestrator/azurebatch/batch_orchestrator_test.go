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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"

	"render-batch/pkg/batch"
	"render-batch/pkg/batch/batchtest"
	"render-batch/pkg/config"
	"render-batch/pkg/logging"
	"render-batch/pkg/manifest"
	"render-batch/pkg/orchestrator"
	"render-batch/pkg/storage"
	"render-batch/pkg/storage/storagetest"
)

const scriptPath = "scripts/init-vm-glx-rendering.sh"

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fixture struct {
	o     *BatchOrchestrator
	srv   *batchtest.Server
	store *storagetest.MemStore
	fs    afero.Fs
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	srv := batchtest.NewServer(t)
	store := storagetest.NewMemStore()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, scriptPath, []byte("#!/bin/bash\nnvidia-xconfig\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	uploader := storage.NewUploader(store, fs, storage.Options{
		Container: "scripts",
		SASExpiry: 2 * time.Hour,
		FileMode:  "777",
	})
	o := NewBatchOrchestrator(srv.Client(t), uploader, storage.NewCollector(fs), fs, Options{
		DeleteTimeout: 5 * time.Second,
		PollInterval:  time.Millisecond,
	})
	return fixture{o: o, srv: srv, store: store, fs: fs}
}

func definition(t *testing.T) orchestrator.JobDefinition {
	t.Helper()
	cfg := config.Default()
	cfg.Pool.ID = "pool-1"
	cfg.Job.ID = "job-1"
	cfg.Task.ID = "task-1"
	cfg.Task.CommandLine = "/bin/bash -c 'DISPLAY=:0 glxgears -info'"
	def, err := orchestrator.NewJobDefinition(cfg)
	if err != nil {
		t.Fatalf("NewJobDefinition() returned error: %v", err)
	}
	return def
}

func TestSubmitJobEndToEnd(t *testing.T) {
	f := newFixture(t)

	sub, err := f.o.SubmitJob(context.Background(), definition(t))
	if err != nil {
		t.Fatalf("SubmitJob() returned error: %v", err)
	}

	want := &orchestrator.Submission{
		PoolID: "pool-1", JobID: "job-1", TaskID: "task-1",
		Pool: orchestrator.Created, Job: orchestrator.Created, Task: orchestrator.Created,
	}
	if diff := cmp.Diff(want, sub, cmpopts.IgnoreFields(orchestrator.Submission{}, "Resources")); diff != "" {
		t.Errorf("SubmitJob() mismatch (-want +got):\n%s", diff)
	}

	if got := f.store.Blobs("scripts"); got != 1 {
		t.Errorf("Expected 1 blob, got %d", got)
	}
	if len(sub.Resources) != 1 || sub.Resources[0].BlobName != "init-vm-glx-rendering.sh" {
		t.Fatalf("Unexpected resources: %+v", sub.Resources)
	}

	for _, pattern := range []string{"POST /pools", "POST /jobs", "POST /jobs/{job}/tasks"} {
		if got := f.srv.Calls(pattern); got != 1 {
			t.Errorf("Expected %s to be called once, got %d", pattern, got)
		}
	}

	pool, ok := f.srv.Pool("pool-1")
	if !ok {
		t.Fatalf("pool-1 was not created")
	}
	if pool.TargetDedicatedNodes != 2 {
		t.Errorf("Expected 2 target nodes, got %d", pool.TargetDedicatedNodes)
	}
	wantFiles := []batch.ResourceFile{{HTTPURL: sub.Resources[0].URL, FilePath: "init-vm-glx-rendering.sh", FileMode: "777"}}
	if diff := cmp.Diff(wantFiles, pool.StartTask.ResourceFiles); diff != "" {
		t.Errorf("start task resource files mismatch (-want +got):\n%s", diff)
	}
	if pool.StartTask.CommandLine != "./init-vm-glx-rendering.sh" || !pool.StartTask.WaitForSuccess {
		t.Errorf("Unexpected start task: %+v", pool.StartTask)
	}

	job, ok := f.srv.Job("job-1")
	if !ok || job.PoolInfo.PoolID != "pool-1" {
		t.Errorf("Expected job-1 bound to pool-1, got %+v (exists: %t)", job, ok)
	}
	task, ok := f.srv.Task("job-1", "task-1")
	if !ok {
		t.Fatalf("task-1 was not added")
	}
	if task.CommandLine != "/bin/bash -c 'DISPLAY=:0 glxgears -info'" {
		t.Errorf("Unexpected task command line %q", task.CommandLine)
	}
	if diff := cmp.Diff(batch.AdminIdentity(), task.UserIdentity); diff != "" {
		t.Errorf("task identity mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitJobDuplicatePoolFails(t *testing.T) {
	f := newFixture(t)
	existing := batch.PoolAddParameter{ID: "pool-1", VMSize: "STANDARD_D2", TargetDedicatedNodes: 5}
	f.srv.SeedPool(existing)

	_, err := f.o.SubmitJob(context.Background(), definition(t))
	be, ok := batch.AsError(err)
	if !ok {
		t.Fatalf("Expected a *batch.Error, got %T: %v", err, err)
	}
	if be.Code != batch.CodePoolExists {
		t.Errorf("Expected code %s, got %s", batch.CodePoolExists, be.Code)
	}
	if !strings.Contains(err.Error(), `failed to create pool "pool-1"`) {
		t.Errorf("Expected error to name the pool, got %v", err)
	}

	got, _ := f.srv.Pool("pool-1")
	if diff := cmp.Diff(existing, got); diff != "" {
		t.Errorf("existing pool was modified (-want +got):\n%s", diff)
	}
	if n := f.srv.Calls("POST /jobs"); n != 0 {
		t.Errorf("Expected no job creation after pool failure, got %d calls", n)
	}
}

func TestApplyJobMissingPoolFails(t *testing.T) {
	f := newFixture(t)
	def := definition(t)
	f.srv.SeedPool(def.Pool)
	def.Job.PoolInfo.PoolID = "missing"

	_, err := f.o.Apply(context.Background(), manifest.Manifest{Pool: def.Pool, Job: def.Job, Task: def.Task},
		orchestrator.Policies{Pool: config.PolicyReuse, Job: config.PolicyFail, Task: config.PolicyFail})
	if !batch.IsCode(err, batch.CodePoolNotFound) {
		t.Fatalf("Expected %s, got %v", batch.CodePoolNotFound, err)
	}
	if n := f.srv.Calls("POST /jobs/{job}/tasks"); n != 0 {
		t.Errorf("Expected no task creation, got %d calls", n)
	}
}

func TestCreateTaskMissingJobFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.o.createTask(context.Background(), "missing", definition(t).Task, config.PolicyFail)
	if !batch.IsCode(err, batch.CodeJobNotFound) {
		t.Fatalf("Expected %s, got %v", batch.CodeJobNotFound, err)
	}
}

func TestSubmitJobReuse(t *testing.T) {
	f := newFixture(t)
	def := definition(t)
	f.srv.SeedPool(batch.PoolAddParameter{ID: "pool-1", TargetDedicatedNodes: 5})
	f.srv.SeedJob(def.Job)
	def.Policies = orchestrator.Policies{Pool: config.PolicyReuse, Job: config.PolicyReuse, Task: config.PolicyFail}

	sub, err := f.o.SubmitJob(context.Background(), def)
	if err != nil {
		t.Fatalf("SubmitJob() returned error: %v", err)
	}
	got := []orchestrator.Outcome{sub.Pool, sub.Job, sub.Task}
	want := []orchestrator.Outcome{orchestrator.Reused, orchestrator.Reused, orchestrator.Created}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if pool, _ := f.srv.Pool("pool-1"); pool.TargetDedicatedNodes != 5 {
		t.Errorf("reused pool must be unchanged, got %d nodes", pool.TargetDedicatedNodes)
	}
}

func TestSubmitJobReplacePoolWaitsForDeletion(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedPool(batch.PoolAddParameter{ID: "pool-1", TargetDedicatedNodes: 5})
	f.srv.DeletePolls = 2
	def := definition(t)
	def.Policies.Pool = config.PolicyReplace

	sub, err := f.o.SubmitJob(context.Background(), def)
	if err != nil {
		t.Fatalf("SubmitJob() returned error: %v", err)
	}
	if sub.Pool != orchestrator.Replaced {
		t.Errorf("Expected pool outcome %q, got %q", orchestrator.Replaced, sub.Pool)
	}
	if pool, _ := f.srv.Pool("pool-1"); pool.TargetDedicatedNodes != 2 {
		t.Errorf("Expected replaced pool with 2 nodes, got %d", pool.TargetDedicatedNodes)
	}
	if n := f.srv.Calls("DELETE /pools/{pool}"); n != 1 {
		t.Errorf("Expected 1 pool deletion, got %d", n)
	}
	if n := f.srv.Calls("GET /pools/{pool}"); n != 3 {
		t.Errorf("Expected 3 polls, got %d", n)
	}
}

func TestReplacePoolTimesOut(t *testing.T) {
	f := newFixture(t)
	f.o.opts.DeleteTimeout = 20 * time.Millisecond
	f.srv.SeedPool(batch.PoolAddParameter{ID: "pool-1"})
	f.srv.DeletePolls = 1 << 30

	_, err := f.o.createPool(context.Background(), definition(t).Pool, config.PolicyReplace)
	if err == nil || !strings.Contains(err.Error(), `waiting for pool "pool-1" to be deleted`) {
		t.Fatalf("Expected a deletion timeout, got %v", err)
	}
}

func TestSubmitJobReplaceTask(t *testing.T) {
	f := newFixture(t)
	def := definition(t)
	f.srv.SeedPool(def.Pool)
	f.srv.SeedJob(def.Job)
	old := batch.TaskAddParameter{ID: "task-1", CommandLine: "echo old"}
	if err := f.srv.Client(t).AddTask(context.Background(), "job-1", old); err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
	def.Policies = orchestrator.Policies{Pool: config.PolicyReuse, Job: config.PolicyReuse, Task: config.PolicyReplace}

	sub, err := f.o.SubmitJob(context.Background(), def)
	if err != nil {
		t.Fatalf("SubmitJob() returned error: %v", err)
	}
	if sub.Task != orchestrator.Replaced {
		t.Errorf("Expected task outcome %q, got %q", orchestrator.Replaced, sub.Task)
	}
	task, _ := f.srv.Task("job-1", "task-1")
	if task.CommandLine != def.Task.CommandLine {
		t.Errorf("Expected replaced command line %q, got %q", def.Task.CommandLine, task.CommandLine)
	}
	if n := f.srv.TaskCount("job-1"); n != 1 {
		t.Errorf("Expected 1 task, got %d", n)
	}
}

func TestSubmitJobOutputRequests(t *testing.T) {
	f := newFixture(t)
	def := definition(t)
	def.OutputRequests = "requests.yaml"

	sub, err := f.o.SubmitJob(context.Background(), def)
	if err != nil {
		t.Fatalf("SubmitJob() returned error: %v", err)
	}
	if sub.ManifestPath != "requests.yaml" || sub.Pool != orchestrator.Skipped {
		t.Errorf("Unexpected submission: %+v", sub)
	}
	if n := f.srv.Calls("POST /pools"); n != 0 {
		t.Errorf("Expected no pool creation, got %d calls", n)
	}
	if got := f.store.Blobs("scripts"); got != 1 {
		t.Errorf("Expected scripts to be uploaded, got %d blobs", got)
	}

	m, err := manifest.Read(f.fs, "requests.yaml")
	if err != nil {
		t.Fatalf("manifest.Read() returned error: %v", err)
	}
	if len(m.Pool.StartTask.ResourceFiles) != 1 || m.Pool.StartTask.ResourceFiles[0].HTTPURL != sub.Resources[0].URL {
		t.Errorf("manifest start task does not reference the upload: %+v", m.Pool.StartTask)
	}
	if def.Pool.StartTask.ResourceFiles != nil {
		t.Errorf("SubmitJob must not modify the caller's definition")
	}

	applied, err := f.o.Apply(context.Background(), m, def.Policies)
	if err != nil {
		t.Fatalf("Apply() returned error: %v", err)
	}
	if applied.Task != orchestrator.Created {
		t.Errorf("Expected task to be created on apply, got %q", applied.Task)
	}
}

func TestSubmitJobUploadFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("storage unavailable")
	f.store.Err = boom

	_, err := f.o.SubmitJob(context.Background(), definition(t))
	if !errors.Is(err, boom) {
		t.Fatalf("Expected upload error, got %v", err)
	}
	if n := f.srv.Calls("POST /pools"); n != 0 {
		t.Errorf("Expected no pool creation after upload failure, got %d calls", n)
	}
}

func TestSubmitJobDirectoryScriptRunsFirstUploadedFile(t *testing.T) {
	f := newFixture(t)
	for path, content := range map[string]string{
		"setup/init.sh":       "#!/bin/bash\n./lib/helper.sh\n",
		"setup/lib/helper.sh": "#!/bin/bash\n",
	} {
		if err := afero.WriteFile(f.fs, path, []byte(content), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	def := definition(t)
	def.Scripts = []string{"setup/"}

	if _, err := f.o.SubmitJob(context.Background(), def); err != nil {
		t.Fatalf("SubmitJob() returned error: %v", err)
	}

	pool, ok := f.srv.Pool("pool-1")
	if !ok {
		t.Fatal("pool-1 was not created")
	}
	if got, want := pool.StartTask.CommandLine, "./init.sh"; got != want {
		t.Errorf("start task command = %q, want %q", got, want)
	}
	var paths []string
	for _, rf := range pool.StartTask.ResourceFiles {
		paths = append(paths, rf.FilePath)
	}
	if diff := cmp.Diff([]string{"init.sh", "lib/helper.sh"}, paths); diff != "" {
		t.Errorf("resource file paths mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitJobKeepsExplicitStartCommand(t *testing.T) {
	f := newFixture(t)
	def := definition(t)
	def.Pool.StartTask.CommandLine = "/bin/bash init-vm-glx-rendering.sh --headless"

	if _, err := f.o.SubmitJob(context.Background(), def); err != nil {
		t.Fatalf("SubmitJob() returned error: %v", err)
	}
	pool, _ := f.srv.Pool("pool-1")
	if got := pool.StartTask.CommandLine; got != "/bin/bash init-vm-glx-rendering.sh --headless" {
		t.Errorf("start task command = %q, want the configured one", got)
	}
}

func TestUploadRemovesFetchedScriptsWhenCollectFails(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#!/bin/bash\n"))
	}))
	defer remote.Close()
	f := newFixture(t)

	_, err := f.o.Upload(context.Background(), []string{remote.URL + "/scripts/fetch.sh", "scripts/missing.sh"})
	if err == nil {
		t.Fatal("Expected an error for the missing script")
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected downloaded scripts to be removed, found %v", entries)
	}
}
