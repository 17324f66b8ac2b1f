package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPdftoppm_Defaults(t *testing.T) {
	p := NewPdftoppm("", 0, 0)

	assert.Equal(t, "pdftoppm", p.path)
	assert.Equal(t, 300, p.DPI())
	assert.Equal(t, 2*time.Minute, p.timeout)
}

func TestProbe_MissingBinary(t *testing.T) {
	_, _, err := Probe(context.Background(), "no-such-pdftoppm-binary")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "poppler-utils")
}

func TestRenderPage_MissingBinaryFails(t *testing.T) {
	p := NewPdftoppm("no-such-pdftoppm-binary", 150, time.Second)

	_, err := p.RenderPage(context.Background(), "in.pdf", 1, t.TempDir())

	assert.Error(t, err)
}
