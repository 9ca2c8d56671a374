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

// Package storagetest provides an in-memory blob store for tests.
package storagetest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemStore keeps blobs in memory and hands out fake access grant URLs.
type MemStore struct {
	// BaseURL prefixes generated blob URLs.
	BaseURL string
	// Err, when set, is returned by every operation.
	Err error

	mu         sync.Mutex
	containers map[string]map[string][]byte
	uploads    int
}

func NewMemStore() *MemStore {
	return &MemStore{
		BaseURL:    "https://teststore.blob.core.windows.net",
		containers: map[string]map[string][]byte{},
	}
}

func (m *MemStore) EnsureContainer(_ context.Context, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.containers[container]; !ok {
		m.containers[container] = map[string][]byte{}
	}
	return nil
}

func (m *MemStore) BlobExists(_ context.Context, container, blob string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.containers[container][blob]
	return ok, nil
}

func (m *MemStore) Upload(_ context.Context, container, blob string, data []byte, progress func(int64)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	c, ok := m.containers[container]
	if !ok {
		return fmt.Errorf("container %q does not exist", container)
	}
	c[blob] = append([]byte(nil), data...)
	m.uploads++
	if progress != nil {
		progress(int64(len(data)))
	}
	return nil
}

func (m *MemStore) ReadURL(container, blob string, expiry time.Time) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	q := url.Values{}
	q.Set("sp", "r")
	q.Set("se", expiry.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s/%s/%s?%s", m.BaseURL, container, blob, q.Encode()), nil
}

// Blob returns the content of a blob.
func (m *MemStore) Blob(container, blob string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.containers[container][blob]
	return b, ok
}

// Blobs returns the number of blobs in a container.
func (m *MemStore) Blobs(container string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.containers[container])
}

// Uploads returns the number of Upload calls that succeeded.
func (m *MemStore) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}
