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
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/spf13/afero"

	"render-batch/pkg/batch"
	"render-batch/pkg/config"
	"render-batch/pkg/logging"
	"render-batch/pkg/storage"
)

// NewBatchClient creates a Batch client for the account in cfg, using the
// configured authentication mode.
func NewBatchClient(cfg config.Config) (*batch.Client, error) {
	opts := &batch.ClientOptions{
		ClientOptions: clientOptions(cfg),
		APIVersion:    cfg.Batch.APIVersion,
	}

	if cfg.Batch.AuthMode == config.AuthEntra {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain Microsoft Entra ID credentials: %w", err)
		}
		return batch.NewClient(cfg.Batch.AccountURL, cred, opts)
	}

	cred, err := batch.NewSharedKeyCredential(cfg.Batch.AccountName, cfg.Batch.AccountKey)
	if err != nil {
		return nil, err
	}
	return batch.NewClientWithSharedKey(cfg.Batch.AccountURL, cred, opts)
}

// NewBlobStore creates a blob store for the storage account in cfg.
func NewBlobStore(cfg config.Config) (*storage.AzureBlobStore, error) {
	return storage.NewAzureBlobStore(cfg.StorageEndpoint(), cfg.Storage.AccountName, cfg.Storage.AccountKey, clientOptions(cfg))
}

// NewUploader creates an uploader writing to store with the storage options in cfg.
func NewUploader(cfg config.Config, store storage.BlobStore, fs afero.Fs) *storage.Uploader {
	opts := storage.OptionsFromConfig(cfg.Storage)
	if logging.IsTerminal() {
		opts.Progress = logging.Writer()
	}
	if cfg.Storage.Verify {
		opts.Verifier = storage.NewVerifier()
	}
	return storage.NewUploader(store, fs, opts)
}

// New wires a BatchOrchestrator to client and store using the options in cfg.
func New(cfg config.Config, client BatchAPI, store storage.BlobStore, fs afero.Fs) *BatchOrchestrator {
	return NewBatchOrchestrator(client, NewUploader(cfg, store, fs), storage.NewCollector(fs), fs, Options{
		DeleteTimeout: cfg.Pool.DeleteTimeout,
		PollInterval:  cfg.Pool.PollInterval,
	})
}

func clientOptions(cfg config.Config) azcore.ClientOptions {
	return azcore.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: cfg.Retry.MaxRetries},
	}
}
