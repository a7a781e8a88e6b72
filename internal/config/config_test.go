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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plop.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	fl := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fl.String("show", "m", "")
	fl.Int("last", 0, "")
	fl.Bool("starttime", false, "")
	return fl
}

func TestApplySetsUnchangedFlags(t *testing.T) {
	path := writeConfig(t, `
[log]
show = "mus"
last = 20
starttime = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	fl := testFlags()
	require.NoError(t, cfg.Apply("log", fl))
	show, _ := fl.GetString("show")
	last, _ := fl.GetInt("last")
	starttime, _ := fl.GetBool("starttime")
	assert.Equal(t, "mus", show)
	assert.Equal(t, 20, last)
	assert.True(t, starttime)
}

func TestApplyCommandLineWins(t *testing.T) {
	path := writeConfig(t, "[log]\nshow = \"mus\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	fl := testFlags()
	require.NoError(t, fl.Parse([]string{"--show", "u"}))
	require.NoError(t, cfg.Apply("log", fl))
	show, _ := fl.GetString("show")
	assert.Equal(t, "u", show)
}

func TestApplyUnknownKey(t *testing.T) {
	path := writeConfig(t, "[log]\nbogus = 1\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Apply("log", testFlags()))
}

func TestApplyMissingSection(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[stats]\nshow = \"p\"\n"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Apply("log", testFlags()))
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Apply("log", testFlags()))
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "not [valid toml"))
	assert.Error(t, err)
}

func TestLoadDisabled(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Apply("log", testFlags()))
}
