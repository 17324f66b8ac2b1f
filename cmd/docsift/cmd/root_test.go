package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/pkg/version"
)

// isolate points every user-level path at a temp dir so tests never read or
// write the real home directory.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("DOCSIFT_LOG_FILE", filepath.Join(home, "docsift.log"))
	t.Setenv("OCR_SPACE_API_KEY", "")
}

// execute runs docsift against workspace dir with plain output.
func execute(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	root, e := newRoot()
	defer e.close()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--dir", dir, "--no-tui"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoot_HelpListsCommands(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, t.TempDir(), "--help")

	require.NoError(t, err)
	for _, name := range []string{"acquire", "extract", "index", "search", "group", "run", "doctor", "config", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	// Given a workspace whose project config is out of range
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsift.yaml"), []byte("extract:\n  dpi: 10\n"), 0o644))

	// When a command that needs the workspace runs
	_, _, err := execute(t, dir, "index", "stats")

	// Then setup fails with a configuration error
	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeConfigInvalid, serr.GetCode(err))
}

func TestRoot_LogLevelFlagIsValidated(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, t.TempDir(), "--log-level", "loud", "index", "stats")

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeConfigInvalid, serr.GetCode(err))
}

func TestPrintError(t *testing.T) {
	err := serr.New(serr.ErrCodeUnknownMethod, "unknown clustering method", nil).WithSuggestion("Use lda")

	text := &bytes.Buffer{}
	printError(text, err, false)
	assert.Contains(t, text.String(), "Error: unknown clustering method")
	assert.Contains(t, text.String(), "Hint: Use lda")
	assert.Contains(t, text.String(), "Code: ERR_605_UNKNOWN_METHOD")

	js := &bytes.Buffer{}
	printError(js, err, true)
	assert.Contains(t, js.String(), `"code":"ERR_605_UNKNOWN_METHOD"`)
}

func TestVersionCmd(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	short, _, err := execute(t, dir, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", short)

	full, _, err := execute(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, full, "docsift "+version.Version)

	js, _, err := execute(t, dir, "--json", "version")
	require.NoError(t, err)
	assert.Contains(t, js, `"go_version"`)
}
