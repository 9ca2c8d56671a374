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

// Package batchtest provides an in-memory Azure Batch service for tests.
package batchtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/google/uuid"

	"render-batch/pkg/batch"
)

const (
	// Account is the account name the fake server expects requests to be
	// signed for.
	Account = "testaccount"

	statePendingDelete = "deleting"
)

// Key is the base64 access key of Account.
var Key = base64.StdEncoding.EncodeToString([]byte("render-batch-test-key"))

// Fault is an error response returned once for the next matching request.
type Fault struct {
	Status int
	Code   string
	Msg    string
	Values []batch.ErrorDetail
}

type pool struct {
	param batch.PoolAddParameter
	state string
	polls int
}

type job struct {
	param batch.JobAddParameter
	state string
	polls int
	tasks map[string]batch.TaskAddParameter
}

// Server is a fake Batch account endpoint. Requests must carry a valid
// SharedKey signature for Account.
type Server struct {
	*httptest.Server

	// DeletePolls is the number of GETs that still report a pool or job
	// as being deleted before it disappears.
	DeletePolls int

	cred *batch.SharedKeyCredential

	mu     sync.Mutex
	pools  map[string]*pool
	jobs   map[string]*job
	calls  map[string]int
	faults map[string][]Fault
}

// NewServer starts a fake Batch service that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	cred, err := batch.NewSharedKeyCredential(Account, Key)
	if err != nil {
		t.Fatalf("failed to create shared key credential: %v", err)
	}
	s := &Server{
		cred:   cred,
		pools:  map[string]*pool{},
		jobs:   map[string]*job{},
		calls:  map[string]int{},
		faults: map[string][]Fault{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /pools", s.addPool)
	mux.HandleFunc("GET /pools/{pool}", s.getPool)
	mux.HandleFunc("DELETE /pools/{pool}", s.deletePool)
	mux.HandleFunc("POST /jobs", s.addJob)
	mux.HandleFunc("GET /jobs/{job}", s.getJob)
	mux.HandleFunc("DELETE /jobs/{job}", s.deleteJob)
	mux.HandleFunc("POST /jobs/{job}/tasks", s.addTask)
	mux.HandleFunc("GET /jobs/{job}/tasks/{task}", s.getTask)
	mux.HandleFunc("DELETE /jobs/{job}/tasks/{task}", s.deleteTask)

	s.Server = httptest.NewServer(s.authenticate(mux))
	t.Cleanup(s.Close)
	return s
}

// Credential returns a credential that signs requests the server accepts.
func (s *Server) Credential() *batch.SharedKeyCredential {
	return s.cred
}

// Client returns a Batch client bound to the server.
func (s *Server) Client(t testing.TB) *batch.Client {
	t.Helper()
	c, err := batch.NewClientWithSharedKey(s.URL, s.cred, &batch.ClientOptions{
		ClientOptions: policy.ClientOptions{Retry: policy.RetryOptions{MaxRetries: -1}},
	})
	if err != nil {
		t.Fatalf("failed to create batch client: %v", err)
	}
	return c
}

// Calls returns how many requests were routed to pattern, e.g. "POST /pools".
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// Inject queues f to be returned by the next request routed to pattern.
func (s *Server) Inject(pattern string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[pattern] = append(s.faults[pattern], f)
}

// Pool returns the creation request of an existing pool.
func (s *Server) Pool(id string) (batch.PoolAddParameter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	if !ok {
		return batch.PoolAddParameter{}, false
	}
	return p.param, true
}

// PoolIDs returns the ids of all pools, sorted.
func (s *Server) PoolIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pools))
	for id := range s.pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) Job(id string) (batch.JobAddParameter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return batch.JobAddParameter{}, false
	}
	return j.param, true
}

func (s *Server) Task(jobID, taskID string) (batch.TaskAddParameter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return batch.TaskAddParameter{}, false
	}
	t, ok := j.tasks[taskID]
	return t, ok
}

// TaskCount returns the number of tasks under a job.
func (s *Server) TaskCount(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		return len(j.tasks)
	}
	return 0
}

// SeedPool creates a pool without going through the API.
func (s *Server) SeedPool(p batch.PoolAddParameter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[p.ID] = &pool{param: p, state: "active"}
}

// SeedJob creates a job without going through the API.
func (s *Server) SeedJob(j batch.JobAddParameter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = &job{param: j, state: "active", tasks: map[string]batch.TaskAddParameter{}}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api-version") == "" {
			writeError(w, http.StatusBadRequest, "MissingRequiredQueryParameter",
				"A query parameter that's mandatory for this request is not specified.",
				batch.ErrorDetail{Key: "QueryParameterName", Value: "api-version"})
			return
		}
		want := s.cred.Authorization(r.Method, r.Header, r.ContentLength, r.URL)
		if got := r.Header.Get("Authorization"); got != want {
			writeError(w, http.StatusForbidden, "AuthenticationFailed",
				"Server failed to authenticate the request.",
				batch.ErrorDetail{Key: "AuthenticationErrorDetail", Value: "The MAC signature found in the HTTP request is not the same as any computed signature."})
			return
		}
		w.Header().Set("request-id", uuid.NewString())
		if id := r.Header.Get("client-request-id"); id != "" && r.Header.Get("return-client-request-id") == "true" {
			w.Header().Set("client-request-id", id)
		}
		next.ServeHTTP(w, r)
	})
}

// begin records the call and reports whether an injected fault was served.
// The caller must hold s.mu.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) bool {
	s.calls[r.Pattern]++
	queue := s.faults[r.Pattern]
	if len(queue) == 0 {
		return false
	}
	f := queue[0]
	s.faults[r.Pattern] = queue[1:]
	writeError(w, f.Status, f.Code, f.Msg, f.Values...)
	return true
}

func (s *Server) addPool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	var p batch.PoolAddParameter
	if !decode(w, r, &p) {
		return
	}
	if existing, ok := s.pools[p.ID]; ok {
		if existing.state == statePendingDelete {
			writeError(w, http.StatusConflict, batch.CodePoolBeingDeleted, "The specified pool has been marked for deletion and is being reclaimed.")
			return
		}
		writeError(w, http.StatusConflict, batch.CodePoolExists, "The specified pool already exists.")
		return
	}
	if p.TargetDedicatedNodes < 0 {
		writeError(w, http.StatusBadRequest, "InvalidPropertyValue", "The value provided for one of the properties in the request body is invalid.",
			batch.ErrorDetail{Key: "PropertyName", Value: "targetDedicatedNodes"},
			batch.ErrorDetail{Key: "PropertyValue", Value: fmt.Sprint(p.TargetDedicatedNodes)})
		return
	}
	s.pools[p.ID] = &pool{param: p, state: "active"}
	w.Header().Set("DataServiceId", s.URL+"/pools/"+p.ID)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	id := r.PathValue("pool")
	p, ok := s.pools[id]
	if ok && p.state == statePendingDelete && p.polls <= 0 {
		delete(s.pools, id)
		ok = false
	}
	if !ok {
		writeError(w, http.StatusNotFound, batch.CodePoolNotFound, "The specified pool does not exist.")
		return
	}
	if p.state == statePendingDelete {
		p.polls--
	}
	writeJSON(w, http.StatusOK, batch.Pool{
		ID:                   p.param.ID,
		State:                p.state,
		AllocationState:      "steady",
		VMSize:               p.param.VMSize,
		TargetDedicatedNodes: p.param.TargetDedicatedNodes,
	})
}

func (s *Server) deletePool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	id := r.PathValue("pool")
	p, ok := s.pools[id]
	if !ok {
		writeError(w, http.StatusNotFound, batch.CodePoolNotFound, "The specified pool does not exist.")
		return
	}
	if p.state == statePendingDelete {
		writeError(w, http.StatusConflict, batch.CodePoolBeingDeleted, "The specified pool has been marked for deletion and is being reclaimed.")
		return
	}
	p.state = statePendingDelete
	p.polls = s.DeletePolls
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) addJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	var j batch.JobAddParameter
	if !decode(w, r, &j) {
		return
	}
	if existing, ok := s.jobs[j.ID]; ok {
		if existing.state == statePendingDelete {
			writeError(w, http.StatusConflict, batch.CodeJobBeingDeleted, "The specified job is already in a completed state.")
			return
		}
		writeError(w, http.StatusConflict, batch.CodeJobExists, "The specified job already exists.")
		return
	}
	if p, ok := s.pools[j.PoolInfo.PoolID]; !ok || p.state == statePendingDelete {
		writeError(w, http.StatusNotFound, batch.CodePoolNotFound, "The specified pool does not exist.",
			batch.ErrorDetail{Key: "PoolId", Value: j.PoolInfo.PoolID})
		return
	}
	s.jobs[j.ID] = &job{param: j, state: "active", tasks: map[string]batch.TaskAddParameter{}}
	w.Header().Set("DataServiceId", s.URL+"/jobs/"+j.ID)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	id := r.PathValue("job")
	j, ok := s.jobs[id]
	if ok && j.state == statePendingDelete && j.polls <= 0 {
		delete(s.jobs, id)
		ok = false
	}
	if !ok {
		writeError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	if j.state == statePendingDelete {
		j.polls--
	}
	writeJSON(w, http.StatusOK, batch.Job{ID: j.param.ID, State: j.state, PoolInfo: j.param.PoolInfo})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	j, ok := s.jobs[r.PathValue("job")]
	if !ok {
		writeError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	if j.state == statePendingDelete {
		writeError(w, http.StatusConflict, batch.CodeJobBeingDeleted, "The specified job has been marked for deletion and is being garbage collected.")
		return
	}
	j.state = statePendingDelete
	j.polls = s.DeletePolls
	j.tasks = map[string]batch.TaskAddParameter{}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	var t batch.TaskAddParameter
	if !decode(w, r, &t) {
		return
	}
	j, ok := s.jobs[r.PathValue("job")]
	if !ok || j.state == statePendingDelete {
		writeError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	if _, ok := j.tasks[t.ID]; ok {
		writeError(w, http.StatusConflict, batch.CodeTaskExists, "The specified task already exists.")
		return
	}
	j.tasks[t.ID] = t
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	j, ok := s.jobs[r.PathValue("job")]
	if !ok {
		writeError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	t, ok := j.tasks[r.PathValue("task")]
	if !ok {
		writeError(w, http.StatusNotFound, batch.CodeTaskNotFound, "The specified task does not exist.")
		return
	}
	writeJSON(w, http.StatusOK, batch.Task{ID: t.ID, State: "active", CommandLine: t.CommandLine})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, r) {
		return
	}
	j, ok := s.jobs[r.PathValue("job")]
	if !ok {
		writeError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	id := r.PathValue("task")
	if _, ok := j.tasks[id]; !ok {
		writeError(w, http.StatusNotFound, batch.CodeTaskNotFound, "The specified task does not exist.")
		return
	}
	delete(j.tasks, id)
	w.WriteHeader(http.StatusOK)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "The specified Request Body is not syntactically valid.",
			batch.ErrorDetail{Key: "Reason", Value: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;odata=minimalmetadata")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, values ...batch.ErrorDetail) {
	type message struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	}
	body := struct {
		Code    string              `json:"code"`
		Message message             `json:"message"`
		Values  []batch.ErrorDetail `json:"values,omitempty"`
	}{
		Code:    code,
		Message: message{Lang: "en-US", Value: msg + "\nRequestId:" + w.Header().Get("request-id")},
		Values:  values,
	}
	writeJSON(w, status, body)
}
