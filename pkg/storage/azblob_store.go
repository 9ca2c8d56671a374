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

package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/pkg/errors"
)

// AzureBlobStore is a BlobStore backed by an Azure Storage account.
type AzureBlobStore struct {
	client *azblob.Client
}

// NewAzureBlobStore connects to the blob service at endpoint with the
// account's shared key. The key is also used to sign access grants.
func NewAzureBlobStore(endpoint, accountName, accountKey string, options azcore.ClientOptions) (*AzureBlobStore, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid storage account credentials")
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, &azblob.ClientOptions{ClientOptions: options})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create blob client for %q", endpoint)
	}
	return &AzureBlobStore{client: client}, nil
}

func (s *AzureBlobStore) EnsureContainer(ctx context.Context, container string) error {
	_, err := s.client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return err
	}
	return nil
}

func (s *AzureBlobStore) BlobExists(ctx context.Context, container, blob string) (bool, error) {
	_, err := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob).GetProperties(ctx, nil)
	switch {
	case err == nil:
		return true, nil
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *AzureBlobStore) Upload(ctx context.Context, container, blob string, data []byte, progress func(int64)) error {
	_, err := s.client.UploadBuffer(ctx, container, blob, data, &azblob.UploadBufferOptions{Progress: progress})
	return err
}

func (s *AzureBlobStore) ReadURL(container, blob string, expiry time.Time) (string, error) {
	bc := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob)
	return bc.GetSASURL(sas.BlobPermissions{Read: true}, expiry, nil)
}
