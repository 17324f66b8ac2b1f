package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsift/internal/capability"
	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/embed"
	"github.com/Aman-CERP/docsift/internal/ocr"
	"github.com/Aman-CERP/docsift/internal/render"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestSummaryStatus(t *testing.T) {
	c := New()

	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{{Status: StatusPass}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusPass}, {Status: StatusWarn}}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{{Status: StatusFail, Required: true}}))
}

func workspaceConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Resolve(t.TempDir())
	return cfg
}

func TestRunAll_HealthyWorkspace(t *testing.T) {
	// Given a fresh workspace and a capability set with everything available
	cfg := workspaceConfig(t)
	caps := &capability.Set{
		LocalOCR:  capability.Available[ocr.Engine](ocr.NewTesseract("tesseract", "eng", 0), "/usr/bin/tesseract"),
		RemoteOCR: capability.Unavailable[ocr.Engine]("disabled"),
		Renderer:  capability.Available[render.Renderer](render.NewPdftoppm("pdftoppm", 300, 0), "/usr/bin/pdftoppm"),
		Embedder:  capability.Available[embed.Embedder](embed.NewStaticEmbedder(), "static"),
	}
	c := New()

	// When all checks run
	results := c.RunAll(context.Background(), cfg, caps)

	// Then nothing is critical and the workspace directories exist
	assert.False(t, c.HasCriticalFailures(results))
	names := map[string]CheckStatus{}
	for _, r := range results {
		names[r.Name] = r.Status
	}
	assert.Equal(t, StatusPass, names["config"])
	assert.Equal(t, StatusPass, names["write_text"])
	assert.Equal(t, StatusPass, names[capability.NameLocalOCR])
	assert.Equal(t, StatusWarn, names[capability.NameRemoteOCR])
	assert.Equal(t, StatusPass, names["ocr_route"])
	assert.DirExists(t, cfg.Paths.Output)
}

func TestRunAll_InvalidConfigIsCritical(t *testing.T) {
	cfg := workspaceConfig(t)
	cfg.Extract.DPI = 10

	c := New()
	results := c.RunAll(context.Background(), cfg, nil)

	assert.True(t, c.HasCriticalFailures(results))
	assert.Equal(t, "config", results[0].Name)
	assert.Equal(t, StatusFail, results[0].Status)
}

func TestCheckWritePermissions_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	r := New().CheckWritePermissions("text", filepath.Join(file, "sub"))

	assert.True(t, r.IsCritical())
}

func TestCheckCapabilities_NoOCRRoute(t *testing.T) {
	caps := &capability.Set{
		LocalOCR:  capability.Unavailable[ocr.Engine]("tesseract not found in PATH"),
		RemoteOCR: capability.Unavailable[ocr.Engine]("disabled by ocr.disable_remote"),
		Renderer:  capability.Available[render.Renderer](render.NewPdftoppm("", 0, 0), "pdftoppm"),
		Embedder:  capability.Unavailable[embed.Embedder]("not requested"),
	}

	results := New().CheckCapabilities(caps)

	require.Len(t, results, 5)
	route := results[4]
	assert.Equal(t, "ocr_route", route.Name)
	assert.Equal(t, StatusWarn, route.Status)
	assert.Contains(t, results[0].Message, "tesseract not found")
}

func TestPrintResults(t *testing.T) {
	buf := &bytes.Buffer{}
	c := New(WithOutput(buf), WithVerbose(true))

	c.PrintResults([]CheckResult{
		{Name: "config", Status: StatusPass, Message: "OK", Required: true},
		{Name: "ocr_route", Status: StatusWarn, Message: "no OCR engine", Details: "Install tesseract"},
	})

	out := buf.String()
	assert.Contains(t, out, "[PASS] config: OK")
	assert.Contains(t, out, "Install tesseract")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
	assert.Contains(t, out, "1 warning(s)")
}

func TestCheckResult_JSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "config", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}
