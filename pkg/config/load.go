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
	"bytes"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read when it exists and no other env file is given.
const DefaultEnvFile = ".env"

var unknownFieldRe = regexp.MustCompile(`field (\S+) not found in type`)

// Load returns the defaults overlaid with the config file at path. An empty
// path yields the defaults. The format is chosen by extension: .yaml/.yml or .toml.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config file %q", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".toml":
		err = decodeTOML(data, &cfg)
	default:
		return cfg, errors.Errorf("unsupported config file extension %q, expected .yaml, .yml or .toml", ext)
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config file %q", path)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err == io.EOF {
		return nil
	}
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		known := knownKeys(reflect.TypeOf(Config{}), "yaml")
		for i, msg := range typeErr.Errors {
			if m := unknownFieldRe.FindStringSubmatch(msg); m != nil {
				typeErr.Errors[i] = msg + suggest(m[1], known)
			}
		}
	}
	return err
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		known := knownKeys(reflect.TypeOf(Config{}), "toml")
		key := undecoded[0]
		return fmt.Errorf("unknown key %q%s", key.String(), suggest(key[len(key)-1], known))
	}
	return nil
}

// knownKeys lists every key name declared by the given struct tag, recursively.
func knownKeys(t reflect.Type, tag string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "" || name == "-" {
			continue
		}
		keys = append(keys, name)
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() == t.PkgPath() {
			keys = append(keys, knownKeys(f.Type, tag)...)
		}
	}
	return keys
}

// ApplyEnv overrides cfg with the variables in environ (KEY=VALUE pairs, as
// returned by os.Environ). Variables from envFile fill in keys that environ
// does not set. When envFile is empty, DefaultEnvFile is used if present.
func ApplyEnv(cfg *Config, fs afero.Fs, envFile string, environ []string) error {
	vars := map[string]string{}

	path := envFile
	if path == "" {
		if ok, _ := afero.Exists(fs, DefaultEnvFile); ok {
			path = DefaultEnvFile
		}
	}
	if path != "" {
		f, err := fs.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open env file %q", path)
		}
		defer f.Close()
		fileVars, err := godotenv.Parse(f)
		if err != nil {
			return errors.Wrapf(err, "failed to parse env file %q", path)
		}
		maps.Copy(vars, fileVars)
	}

	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return errors.Wrap(err, "failed to read configuration from environment")
	}
	return nil
}
