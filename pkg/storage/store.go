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

// Package storage uploads startup scripts to blob storage and issues the
// read-only access grants Batch nodes use to download them.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"render-batch/pkg/batch"
	"render-batch/pkg/config"
	"render-batch/pkg/logging"
)

// BlobStore is the subset of a blob service the uploader needs.
type BlobStore interface {
	// EnsureContainer creates the container unless it already exists.
	EnsureContainer(ctx context.Context, container string) error
	BlobExists(ctx context.Context, container, blob string) (bool, error)
	// Upload writes data to the blob, replacing existing content. progress,
	// if set, is called with the cumulative number of bytes sent.
	Upload(ctx context.Context, container, blob string, data []byte, progress func(int64)) error
	// ReadURL returns the blob URL with a read-only access grant valid until expiry.
	ReadURL(container, blob string, expiry time.Time) (string, error)
}

// ResourceFile is an uploaded script together with its access grant.
type ResourceFile struct {
	LocalPath string
	Container string
	BlobName  string
	URL       string
	Expiry    time.Time
	FileMode  string
}

// BatchResourceFile returns the reference a Batch node uses to download the file.
func (r ResourceFile) BatchResourceFile() batch.ResourceFile {
	return batch.ResourceFile{
		HTTPURL:  r.URL,
		FilePath: r.BlobName,
		FileMode: r.FileMode,
	}
}

// Options control an Uploader.
type Options struct {
	Container string
	SASExpiry time.Duration
	FileMode  string
	IfExists  config.ExistsPolicy

	// Progress receives an upload progress bar per file when non-nil.
	Progress io.Writer
	// Verifier, when set, checks each access grant after it is issued.
	Verifier *Verifier
}

// OptionsFromConfig maps the storage section of cfg to uploader options.
func OptionsFromConfig(cfg config.Storage) Options {
	return Options{
		Container: cfg.Container,
		SASExpiry: cfg.SASExpiry,
		FileMode:  cfg.FileMode,
		IfExists:  cfg.IfExists,
	}
}

// Uploader copies local files into a container.
type Uploader struct {
	store BlobStore
	fs    afero.Fs
	opts  Options
	now   func() time.Time
}

func NewUploader(store BlobStore, fs afero.Fs, opts Options) *Uploader {
	if opts.IfExists == "" {
		opts.IfExists = config.PolicyReplace
	}
	return &Uploader{store: store, fs: fs, opts: opts, now: time.Now}
}

// Upload ensures the container exists, then uploads every source and
// returns one ResourceFile per source, in order.
func (u *Uploader) Upload(ctx context.Context, sources []Source) ([]ResourceFile, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	if err := u.store.EnsureContainer(ctx, u.opts.Container); err != nil {
		return nil, errors.Wrapf(err, "failed to create container %q", u.opts.Container)
	}

	files := make([]ResourceFile, 0, len(sources))
	for _, src := range sources {
		rf, err := u.uploadOne(ctx, src)
		if err != nil {
			return nil, err
		}
		files = append(files, rf)
	}
	return files, nil
}

func (u *Uploader) uploadOne(ctx context.Context, src Source) (ResourceFile, error) {
	container := u.opts.Container

	skip := false
	if u.opts.IfExists != config.PolicyReplace {
		exists, err := u.store.BlobExists(ctx, container, src.Name)
		if err != nil {
			return ResourceFile{}, errors.Wrapf(err, "failed to look up blob %q in container %q", src.Name, container)
		}
		switch {
		case exists && u.opts.IfExists == config.PolicyFail:
			return ResourceFile{}, fmt.Errorf("blob %q already exists in container %q", src.Name, container)
		case exists && u.opts.IfExists == config.PolicyReuse:
			logging.Info("Reusing existing blob %s/%s", container, src.Name)
			skip = true
		}
	}

	if !skip {
		data, err := afero.ReadFile(u.fs, src.Path)
		if err != nil {
			return ResourceFile{}, errors.Wrapf(err, "failed to read %q", src.Path)
		}
		logging.Info("Uploading %s to %s/%s", src.Path, container, src.Name)
		progress, done := u.progress(src.Name, int64(len(data)))
		err = u.store.Upload(ctx, container, src.Name, data, progress)
		done()
		if err != nil {
			return ResourceFile{}, errors.Wrapf(err, "failed to upload %q to container %q", src.Path, container)
		}
	}

	expiry := u.now().UTC().Add(u.opts.SASExpiry)
	url, err := u.store.ReadURL(container, src.Name, expiry)
	if err != nil {
		return ResourceFile{}, errors.Wrapf(err, "failed to create access grant for blob %q", src.Name)
	}
	if u.opts.Verifier != nil {
		if err := u.opts.Verifier.Verify(ctx, url); err != nil {
			return ResourceFile{}, err
		}
		logging.Debug("Verified access grant for %s/%s", container, src.Name)
	}

	return ResourceFile{
		LocalPath: src.Path,
		Container: container,
		BlobName:  src.Name,
		URL:       url,
		Expiry:    expiry,
		FileMode:  u.opts.FileMode,
	}, nil
}

func (u *Uploader) progress(name string, size int64) (func(int64), func()) {
	if u.opts.Progress == nil || size == 0 {
		return nil, func() {}
	}
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(u.opts.Progress),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	return func(n int64) { _ = bar.Set64(n) }, func() { _ = bar.Finish() }
}
