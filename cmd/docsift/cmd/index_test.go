package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
)

func TestIndexBuildAndStats(t *testing.T) {
	// Given extracted text
	isolate(t)
	dir := textWorkspace(t)
	db := filepath.Join(dir, "custom", "comments.db")

	// When the index is built at a custom location
	out, _, err := execute(t, dir, "index", "build", "--db", db)

	// Then it reports every document and stats can read it back
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 6 of 6 text file(s)")
	assert.FileExists(t, db)

	stats, _, err := execute(t, dir, "index", "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stats, "Documents:")
	assert.Contains(t, stats, db)
}

func TestIndexStats_WithoutIndex(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, t.TempDir(), "index", "stats")

	require.Error(t, err)
	assert.Equal(t, serr.ErrCodeIndexNotFound, serr.GetCode(err))
}
