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

package config

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// Pool, job and task ids: letters, digits, hyphens and underscores.
	batchIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	// Blob container names: 3-63 lowercase letters, digits and single hyphens.
	containerRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9]){2,62}$`)
)

type validator struct {
	errs []error
}

func (v *validator) check(ok bool, format string, a ...any) {
	if !ok {
		v.errs = append(v.errs, fmt.Errorf(format, a...))
	}
}

func (v *validator) policy(key string, p *ExistsPolicy) {
	parsed, err := ParseExistsPolicy(string(*p))
	if err != nil {
		v.errs = append(v.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*p = parsed
}

// Validate normalizes enumerated values in place and checks that the
// configuration describes a complete, submittable run. All problems are
// reported together.
func (c *Config) Validate() error {
	v := &validator{}
	c.validateBatch(v)
	c.validateStorage(v)
	c.validateWorkload(v)
	return errors.Join(v.errs...)
}

// ValidateStorage checks only what an upload needs.
func (c *Config) ValidateStorage() error {
	v := &validator{}
	c.validateStorage(v)
	return errors.Join(v.errs...)
}

// ValidateBatch checks only what submitting prepared requests needs.
func (c *Config) ValidateBatch() error {
	v := &validator{}
	c.validateBatch(v)
	c.validatePolicies(v)
	return errors.Join(v.errs...)
}

func (c *Config) validateBatch(v *validator) {
	mode, err := parseAuthMode(string(c.Batch.AuthMode))
	if err != nil {
		v.errs = append(v.errs, fmt.Errorf("batch.authMode: %w", err))
	} else {
		c.Batch.AuthMode = mode
	}
	v.check(c.Batch.AccountName != "", "batch.accountName is required")
	v.check(c.Batch.AccountURL != "", "batch.accountURL is required")
	v.check(mode != AuthSharedKey || c.Batch.AccountKey != "", "batch.accountKey is required with authMode %q", AuthSharedKey)
	v.check(c.Batch.APIVersion != "", "batch.apiVersion must not be empty")
}

func (c *Config) validateStorage(v *validator) {
	v.check(c.Storage.AccountName != "", "storage.accountName is required")
	v.check(c.Storage.AccountKey != "", "storage.accountKey is required to sign access grants")
	v.check(containerRe.MatchString(c.Storage.Container), "storage.container %q is not a valid container name", c.Storage.Container)
	v.check(c.Storage.SASExpiry > 0, "storage.sasExpiry must be positive, got %v", c.Storage.SASExpiry)
	v.check(len(c.StartTask.Scripts) > 0, "startTask.scripts must name at least one startup script")
	v.policy("storage.ifExists", &c.Storage.IfExists)
}

func (c *Config) validateWorkload(v *validator) {
	v.check(batchIDRe.MatchString(c.Pool.ID), "pool.id %q must be 1-64 letters, digits, hyphens or underscores", c.Pool.ID)
	v.check(c.Pool.VMSize != "", "pool.vmSize is required")
	v.check(c.Pool.NodeCount > 0, "pool.nodeCount must be at least 1, got %d", c.Pool.NodeCount)
	v.check(c.Pool.MaxTasksPerNode > 0, "pool.maxTasksPerNode must be at least 1, got %d", c.Pool.MaxTasksPerNode)
	v.check(c.Pool.NodeAgentSKU != "", "pool.nodeAgentSku is required")
	img := c.Pool.Image
	v.check(img.Publisher != "" && img.Offer != "" && img.SKU != "" && img.Version != "",
		"pool.image requires publisher, offer, sku and version")

	v.check(batchIDRe.MatchString(c.Job.ID), "job.id %q must be 1-64 letters, digits, hyphens or underscores", c.Job.ID)
	v.check(batchIDRe.MatchString(c.Task.ID), "task.id %q must be 1-64 letters, digits, hyphens or underscores", c.Task.ID)
	v.check(c.Task.CommandLine != "" || c.Task.Container.Image != "", "task requires either commandLine or container.image")
	c.validatePolicies(v)
}

func (c *Config) validatePolicies(v *validator) {
	v.policy("pool.ifExists", &c.Pool.IfExists)
	v.policy("job.ifExists", &c.Job.IfExists)
	v.policy("task.ifExists", &c.Task.IfExists)
	if c.Pool.IfExists == PolicyReplace || c.Job.IfExists == PolicyReplace {
		v.check(c.Pool.DeleteTimeout > 0, "pool.deleteTimeout must be positive when replacing")
		v.check(c.Pool.PollInterval > 0, "pool.pollInterval must be positive when replacing")
	}
}
