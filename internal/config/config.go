// Copyright 2023 Tobias Klausmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the optional TOML configuration file: one
// section per command plus [global], every key a long CLI option.
// Flags given on the command line always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// EnvVar names the environment variable selecting an alternative
// config path. Set but empty disables config loading entirely.
const EnvVar = "PLOP_CONFIG"

// Section is one command's key/value block. Values keep their TOML
// type until applied to a flag.
type Section map[string]interface{}

// File is the parsed configuration.
type File struct {
	sections map[string]Section
}

// Path resolves the config file location. Returns "" when loading is
// disabled or no default location exists.
func Path() string {
	if v, ok := os.LookupEnv(EnvVar); ok {
		return v // empty disables
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "plop.toml")
}

// Load parses path. A missing file is not an error; an unreadable or
// malformed one is.
func Load(path string) (*File, error) {
	f := &File{sections: make(map[string]Section)}
	if path == "" {
		return f, nil
	}
	raw := make(map[string]map[string]interface{})
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	for name, sec := range raw {
		f.sections[name] = Section(sec)
	}
	return f, nil
}

// Apply copies section keys onto flags not set on the command line.
// Keys that name no flag of the target command are errors, so typos
// fail loudly.
func (f *File) Apply(section string, flags *pflag.FlagSet) error {
	sec, ok := f.sections[section]
	if !ok {
		return nil
	}
	for key, val := range sec {
		fl := flags.Lookup(key)
		if fl == nil {
			return fmt.Errorf("config section [%s]: unknown option %q", section, key)
		}
		if fl.Changed {
			continue
		}
		if err := flags.Set(key, stringify(val)); err != nil {
			return fmt.Errorf("config section [%s], option %q: %w", section, key, err)
		}
	}
	return nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []interface{}:
		// Lists map onto repeatable/slice flags as comma-joined values.
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
