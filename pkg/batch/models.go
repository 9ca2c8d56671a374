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

package batch

// Wire types for the Batch data-plane REST API. Only the properties this
// module sends or reads are declared.

// ImageReference names a marketplace image for pool nodes.
type ImageReference struct {
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Offer     string `json:"offer,omitempty" yaml:"offer,omitempty"`
	SKU       string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
}

type VirtualMachineConfiguration struct {
	ImageReference ImageReference `json:"imageReference" yaml:"imageReference"`
	NodeAgentSKUID string         `json:"nodeAgentSKUId" yaml:"nodeAgentSKUId"`
}

// ElevationLevel of a user identity.
type ElevationLevel string

const (
	ElevationNonAdmin ElevationLevel = "nonadmin"
	ElevationAdmin    ElevationLevel = "admin"
)

// AutoUserScope of an auto-user identity.
type AutoUserScope string

const (
	AutoUserScopeTask AutoUserScope = "task"
	AutoUserScopePool AutoUserScope = "pool"
)

type AutoUserSpecification struct {
	Scope          AutoUserScope  `json:"scope,omitempty" yaml:"scope,omitempty"`
	ElevationLevel ElevationLevel `json:"elevationLevel,omitempty" yaml:"elevationLevel,omitempty"`
}

// UserIdentity is the identity a task runs under.
type UserIdentity struct {
	AutoUser *AutoUserSpecification `json:"autoUser,omitempty" yaml:"autoUser,omitempty"`
}

// AdminIdentity returns a task-scoped auto-user with administrative rights.
func AdminIdentity() *UserIdentity {
	return &UserIdentity{AutoUser: &AutoUserSpecification{
		Scope:          AutoUserScopeTask,
		ElevationLevel: ElevationAdmin,
	}}
}

// ResourceFile is a file the Batch node downloads before running a command.
type ResourceFile struct {
	HTTPURL  string `json:"httpUrl,omitempty" yaml:"httpUrl,omitempty"`
	FilePath string `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	FileMode string `json:"fileMode,omitempty" yaml:"fileMode,omitempty"`
}

type StartTask struct {
	CommandLine    string         `json:"commandLine" yaml:"commandLine"`
	ResourceFiles  []ResourceFile `json:"resourceFiles,omitempty" yaml:"resourceFiles,omitempty"`
	UserIdentity   *UserIdentity  `json:"userIdentity,omitempty" yaml:"userIdentity,omitempty"`
	WaitForSuccess bool           `json:"waitForSuccess" yaml:"waitForSuccess"`
}

// PoolAddParameter is the body of a pool creation request.
type PoolAddParameter struct {
	ID                          string                       `json:"id" yaml:"id"`
	VMSize                      string                       `json:"vmSize" yaml:"vmSize"`
	VirtualMachineConfiguration *VirtualMachineConfiguration `json:"virtualMachineConfiguration,omitempty" yaml:"virtualMachineConfiguration,omitempty"`
	TargetDedicatedNodes        int                          `json:"targetDedicatedNodes" yaml:"targetDedicatedNodes"`
	TaskSlotsPerNode            int                          `json:"taskSlotsPerNode,omitempty" yaml:"taskSlotsPerNode,omitempty"`
	StartTask                   *StartTask                   `json:"startTask,omitempty" yaml:"startTask,omitempty"`
}

type PoolInformation struct {
	PoolID string `json:"poolId" yaml:"poolId"`
}

// JobAddParameter is the body of a job creation request.
type JobAddParameter struct {
	ID       string          `json:"id" yaml:"id"`
	PoolInfo PoolInformation `json:"poolInfo" yaml:"poolInfo"`
}

// TaskAddParameter is the body of a task creation request.
type TaskAddParameter struct {
	ID           string        `json:"id" yaml:"id"`
	CommandLine  string        `json:"commandLine" yaml:"commandLine"`
	UserIdentity *UserIdentity `json:"userIdentity,omitempty" yaml:"userIdentity,omitempty"`
}

// Pool is the subset of pool state returned by a GET.
type Pool struct {
	ID                   string `json:"id"`
	State                string `json:"state"`
	AllocationState      string `json:"allocationState,omitempty"`
	VMSize               string `json:"vmSize,omitempty"`
	TargetDedicatedNodes int    `json:"targetDedicatedNodes"`
}

type Job struct {
	ID       string          `json:"id"`
	State    string          `json:"state"`
	PoolInfo PoolInformation `json:"poolInfo"`
}

type Task struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	CommandLine string `json:"commandLine"`
}
