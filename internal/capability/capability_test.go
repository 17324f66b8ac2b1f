package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailable(t *testing.T) {
	c := Available("tool", "/usr/bin/tool 1.0")

	v, ok := c.Get()

	assert.True(t, ok)
	assert.Equal(t, "tool", v)
	assert.Equal(t, StatusAvailable, c.Status())
	assert.Equal(t, "/usr/bin/tool 1.0", c.Detail())
	assert.Empty(t, c.Reason())
}

func TestUnavailable(t *testing.T) {
	c := Unavailablef[*int]("%s not found", "tesseract")

	v, ok := c.Get()

	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Nil(t, c.OrZero())
	assert.Equal(t, StatusUnavailable, c.Status())
	assert.Equal(t, "tesseract not found", c.Reason())
	assert.Empty(t, c.Detail())
}

func TestZeroValueIsUnavailable(t *testing.T) {
	var c Of[string]
	assert.False(t, c.IsAvailable())
}

func TestDescribe(t *testing.T) {
	r := Describe("renderer", Unavailable[string]("pdftoppm not found"))

	assert.Equal(t, Report{Name: "renderer", Status: StatusUnavailable, Reason: "pdftoppm not found"}, r)
}
