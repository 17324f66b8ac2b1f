package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsift/internal/config"
	serr "github.com/Aman-CERP/docsift/internal/errors"
)

func TestConfigInit_WritesProjectConfig(t *testing.T) {
	// Given an empty workspace
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, config.ProjectConfigFile)

	// When init runs twice, the second time without --force
	out, _, err := execute(t, dir, "config", "init")
	require.NoError(t, err)
	_, _, again := execute(t, dir, "config", "init")

	// Then the file exists and is not overwritten
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)
	require.Error(t, again)
	assert.Equal(t, serr.ErrCodeConfigInvalid, serr.GetCode(again))

	// And --force keeps a backup
	_, _, err = execute(t, dir, "config", "init", "--force")
	require.NoError(t, err)
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigInit_UserConfig(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, t.TempDir(), "config", "init", "--user")

	require.NoError(t, err)
	assert.FileExists(t, config.GetUserConfigPath())
}

func TestConfigShow_ResolvesPathsAndMasksKey(t *testing.T) {
	// Given an API key in the environment
	isolate(t)
	t.Setenv("DOCSIFT_OCR_API_KEY", "secret-key")
	dir := t.TempDir()

	// When the config is shown as JSON and YAML
	js, _, err := execute(t, dir, "--json", "config", "show")
	require.NoError(t, err)
	text, _, err := execute(t, dir, "config", "show")
	require.NoError(t, err)

	// Then paths are absolute under the workspace and the key never appears
	var shown struct {
		Paths struct {
			Text string `json:"text"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(js), &shown))
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, []string{filepath.Join(dir, "text"), filepath.Join(resolved, "text")}, shown.Paths.Text)
	assert.NotContains(t, js, "secret-key")
	assert.NotContains(t, text, "secret-key")
	assert.Contains(t, text, "********")
}

func TestConfigPath(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	out, _, err := execute(t, dir, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, config.ProjectConfigFile))
	_, statErr := os.Stat(filepath.Join(dir, config.ProjectConfigFile))
	assert.True(t, os.IsNotExist(statErr))
}
