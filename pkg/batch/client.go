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

// Package batch is a client for the Azure Batch data-plane REST API built on
// the azcore request pipeline. It covers pool, job and task creation,
// lookup and deletion.
package batch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/google/uuid"
)

const (
	moduleName    = "render-batch/batch"
	moduleVersion = "v0.1.0"

	// DefaultAPIVersion of the Batch service REST API.
	DefaultAPIVersion = "2024-07-01.20.0"

	contentTypeJSON = "application/json; odata=minimalmetadata"
	tokenScope      = "https://batch.core.windows.net//.default"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	azcore.ClientOptions

	// APIVersion overrides DefaultAPIVersion.
	APIVersion string
}

// Client issues requests against a single Batch account endpoint.
type Client struct {
	endpoint   string
	apiVersion string
	pl         runtime.Pipeline
}

// NewClientWithSharedKey creates a client that signs requests with the
// account's shared key.
func NewClientWithSharedKey(endpoint string, cred *SharedKeyCredential, options *ClientOptions) (*Client, error) {
	if cred == nil {
		return nil, fmt.Errorf("shared key credential must not be nil")
	}
	authPolicy := &sharedKeyPolicy{cred: cred, now: time.Now}
	return newClient(endpoint, authPolicy, options)
}

// NewClient creates a client that authenticates with Microsoft Entra ID tokens.
func NewClient(endpoint string, cred azcore.TokenCredential, options *ClientOptions) (*Client, error) {
	if cred == nil {
		return nil, fmt.Errorf("token credential must not be nil")
	}
	authPolicy := runtime.NewBearerTokenPolicy(cred, []string{tokenScope}, nil)
	return newClient(endpoint, authPolicy, options)
}

func newClient(endpoint string, authPolicy policy.Policy, options *ClientOptions) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid batch account URL %q", endpoint)
	}
	if options == nil {
		options = &ClientOptions{}
	}
	apiVersion := options.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{authPolicy},
	}, &options.ClientOptions)

	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: apiVersion,
		pl:         pl,
	}, nil
}

// Endpoint returns the account URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// AddPool requests creation of a pool. It returns once the service has
// accepted the request; node allocation continues asynchronously.
func (c *Client) AddPool(ctx context.Context, pool PoolAddParameter) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/pools", pool)
	if err != nil {
		return err
	}
	resp, err := c.do(req, http.StatusCreated)
	if err != nil {
		return err
	}
	runtime.Drain(resp)
	return nil
}

// GetPool returns the current state of a pool.
func (c *Client) GetPool(ctx context.Context, poolID string) (*Pool, error) {
	var pool Pool
	if err := c.get(ctx, "/pools/"+url.PathEscape(poolID), &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

// DeletePool requests deletion of a pool. Deletion completes asynchronously.
func (c *Client) DeletePool(ctx context.Context, poolID string) error {
	return c.delete(ctx, "/pools/"+url.PathEscape(poolID), http.StatusAccepted)
}

// AddJob requests creation of a job bound to an existing pool.
func (c *Client) AddJob(ctx context.Context, job JobAddParameter) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/jobs", job)
	if err != nil {
		return err
	}
	resp, err := c.do(req, http.StatusCreated)
	if err != nil {
		return err
	}
	runtime.Drain(resp)
	return nil
}

// GetJob returns the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.get(ctx, "/jobs/"+url.PathEscape(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob requests deletion of a job and all of its tasks.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	return c.delete(ctx, "/jobs/"+url.PathEscape(jobID), http.StatusAccepted)
}

// AddTask adds a task to a job.
func (c *Client) AddTask(ctx context.Context, jobID string, task TaskAddParameter) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/tasks", task)
	if err != nil {
		return err
	}
	resp, err := c.do(req, http.StatusCreated)
	if err != nil {
		return err
	}
	runtime.Drain(resp)
	return nil
}

// GetTask returns the current state of a task.
func (c *Client) GetTask(ctx context.Context, jobID, taskID string) (*Task, error) {
	var task Task
	if err := c.get(ctx, "/jobs/"+url.PathEscape(jobID)+"/tasks/"+url.PathEscape(taskID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task. Unlike pools and jobs, the task is removed
// before the call returns.
func (c *Client) DeleteTask(ctx context.Context, jobID, taskID string) error {
	return c.delete(ctx, "/jobs/"+url.PathEscape(jobID)+"/tasks/"+url.PathEscape(taskID), http.StatusOK)
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return err
	}
	if err := runtime.UnmarshalAsJSON(resp, v); err != nil {
		return fmt.Errorf("failed to decode response of GET %s: %w", path, err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, path string, status int) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req, status)
	if err != nil {
		return err
	}
	runtime.Drain(resp)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*policy.Request, error) {
	req, err := runtime.NewRequest(ctx, method, c.endpoint+path)
	if err != nil {
		return nil, err
	}
	raw := req.Raw()
	q := raw.URL.Query()
	q.Set("api-version", c.apiVersion)
	raw.URL.RawQuery = q.Encode()
	raw.Header.Set("Accept", "application/json")
	raw.Header.Set("client-request-id", uuid.NewString())
	raw.Header.Set("return-client-request-id", "true")

	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return nil, fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		raw.Header.Set("Content-Type", contentTypeJSON)
	}
	return req, nil
}

func (c *Client) do(req *policy.Request, status int) (*http.Response, error) {
	raw := req.Raw()
	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, &TransportError{Method: raw.Method, URL: raw.URL.Redacted(), Err: err}
	}
	if !runtime.HasStatusCode(resp, status) {
		body, _ := runtime.Payload(resp)
		return nil, newError(resp, body)
	}
	return resp, nil
}
