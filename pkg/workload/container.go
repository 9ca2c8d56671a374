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

// Package workload builds the command lines Batch tasks run.
package workload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"render-batch/pkg/config"
)

var (
	envRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=.*$`)
	volumeRe = regexp.MustCompile(`^[^:]+:[^:]+(:(ro|rw))?$`)
	// Characters that would end or expand inside the double-quoted bash -c argument.
	unsafeChars = "\"`$\\"
)

// ContainerCommand returns a command line that runs spec's image with the
// docker CLI on a Batch node, wrapped in bash -c.
func ContainerCommand(spec config.ContainerSpec) (string, error) {
	ref, err := ParseImage(spec.Image)
	if err != nil {
		return "", err
	}

	args := []string{"docker", "run"}
	if spec.Sudo {
		args = append([]string{"sudo"}, args...)
	}
	switch {
	case spec.Runtime != "":
		args = append(args, "--runtime="+spec.Runtime)
	case spec.GPU:
		args = append(args, "--gpus", "all")
	}
	if spec.Interactive {
		args = append(args, "-i")
	}
	if spec.Remove {
		args = append(args, "--rm")
	}
	for _, e := range spec.Env {
		if !envRe.MatchString(e) {
			return "", fmt.Errorf("environment entry %q must have the form NAME=value", e)
		}
		args = append(args, "-e", e)
	}
	for _, v := range spec.Volumes {
		if !volumeRe.MatchString(v) {
			return "", fmt.Errorf("volume %q must have the form host:container[:ro|rw]", v)
		}
		args = append(args, "-v", v)
	}
	args = append(args, ref)

	for _, a := range args {
		if strings.ContainsAny(a, unsafeChars) {
			return "", fmt.Errorf("argument %q contains characters that cannot be passed through bash -c", a)
		}
		if strings.ContainsAny(a, " \t\n") {
			return "", fmt.Errorf("argument %q must not contain whitespace", a)
		}
	}
	return fmt.Sprintf("bash -c %q", strings.Join(args, " ")), nil
}

// ParseImage validates an image reference and returns it as written.
func ParseImage(image string) (string, error) {
	if image == "" {
		return "", fmt.Errorf("container image must not be empty")
	}
	if _, err := name.ParseReference(image); err != nil {
		return "", fmt.Errorf("invalid container image %q: %w", image, err)
	}
	return image, nil
}

// TaskCommand returns the literal command line of task, or the container
// command built from its container description.
func TaskCommand(task config.Task) (string, error) {
	if task.CommandLine != "" {
		return task.CommandLine, nil
	}
	return ContainerCommand(task.Container)
}
