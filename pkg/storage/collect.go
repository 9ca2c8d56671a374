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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/spf13/afero"

	"render-batch/pkg/logging"
)

// IgnoreFileName is read from every script directory to exclude files from upload.
const IgnoreFileName = ".batchignore"

// DefaultIgnorePatterns are always excluded from directory sources.
var DefaultIgnorePatterns = []string{".git", IgnoreFileName, "**/*.swp", "**/.DS_Store"}

// Source is a local file and the blob name it is uploaded under.
type Source struct {
	Path string
	Name string
}

// Collector resolves script sources to the local files to upload.
type Collector struct {
	Fs             afero.Fs
	IgnorePatterns []string

	fetchDir string
}

func NewCollector(fs afero.Fs) *Collector {
	return &Collector{Fs: fs, IgnorePatterns: DefaultIgnorePatterns}
}

// Collect expands each source. Plain files keep their base name. Directories
// are walked recursively, honoring ignore patterns, and their files are named
// by their slash-separated path relative to the directory. Remote sources
// are downloaded first.
func (c *Collector) Collect(ctx context.Context, specs []string) ([]Source, error) {
	var out []Source
	seen := map[string]string{}
	add := func(s Source) error {
		if prev, ok := seen[s.Name]; ok {
			return fmt.Errorf("blob name %q produced by both %q and %q", s.Name, prev, s.Path)
		}
		seen[s.Name] = s.Path
		out = append(out, s)
		return nil
	}

	for _, spec := range specs {
		if IsRemote(spec) {
			src, err := c.fetch(ctx, spec)
			if err != nil {
				return nil, err
			}
			if err := add(src); err != nil {
				return nil, err
			}
			continue
		}

		info, err := c.Fs.Stat(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to stat script %q: %w", spec, err)
		}
		if !info.IsDir() {
			if err := add(Source{Path: spec, Name: filepath.Base(spec)}); err != nil {
				return nil, err
			}
			continue
		}

		files, err := c.walk(spec)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("directory %q contains no files to upload", spec)
		}
		for _, f := range files {
			if err := add(f); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Close removes files downloaded for remote sources.
func (c *Collector) Close() error {
	if c.fetchDir == "" {
		return nil
	}
	err := os.RemoveAll(c.fetchDir)
	c.fetchDir = ""
	return err
}

func (c *Collector) walk(dir string) ([]Source, error) {
	matcher, err := ReadIgnorePatterns(c.Fs, dir, c.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	var files []Source
	err = afero.Walk(c.Fs, dir, func(path string, info fs.FileInfo, errFromWalk error) error {
		if errFromWalk != nil {
			return errFromWalk
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %q: %w", path, err)
		}
		if relPath == "." {
			return nil
		}

		ignored, err := shouldIgnore(matcher, relPath, info.IsDir())
		if err != nil {
			return fmt.Errorf("failed to check ignore patterns for %q: %w", path, err)
		}
		if ignored {
			if info.IsDir() {
				logging.Debug("Ignoring directory %q", relPath)
				return filepath.SkipDir
			}
			logging.Debug("Ignoring file %q", relPath)
			return nil
		}

		if info.Mode().IsRegular() {
			files = append(files, Source{Path: path, Name: filepath.ToSlash(relPath)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk script directory %q: %w", dir, err)
	}
	return files, nil
}

// shouldIgnore reports whether relPath, or a directory containing it,
// matches the ignore patterns.
func shouldIgnore(matcher *patternmatcher.PatternMatcher, relPath string, isDir bool) (bool, error) {
	// Directories need a trailing slash to match directory patterns.
	relPathSlash := filepath.ToSlash(relPath)
	if isDir && !strings.HasSuffix(relPathSlash, "/") {
		relPathSlash += "/"
	}
	return matcher.MatchesOrParentMatches(relPathSlash)
}

// ReadIgnorePatterns builds a matcher from defaultPatterns plus the patterns
// in dir's ignore file, when present.
func ReadIgnorePatterns(fsys afero.Fs, dir string, defaultPatterns []string) (*patternmatcher.PatternMatcher, error) {
	ignorePath := filepath.Join(dir, IgnoreFileName)

	patterns := make([]string, len(defaultPatterns))
	copy(patterns, defaultPatterns)

	file, err := fsys.Open(ignorePath)
	switch {
	case err == nil:
		defer file.Close()
		filePatterns, err := ignorefile.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read ignore file %q: %w", ignorePath, err)
		}
		patterns = append(patterns, filePatterns...)
		logging.Debug("Found %d patterns in %q", len(filePatterns), ignorePath)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to open ignore file %q: %w", ignorePath, err)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern matcher: %w", err)
	}
	return matcher, nil
}
