package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStage_Names(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageAcquire, "Acquire", "FETCH"},
		{StageExtract, "Extract", "TEXT"},
		{StageIndex, "Index", "INDEX"},
		{StageGroup, "Group", "GROUP"},
		{StageComplete, "Complete", "DONE"},
		{Stage(42), "Unknown", "???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stage.String())
			assert.Equal(t, tt.icon, tt.stage.Icon())
		})
	}
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	// Given output that is not a terminal
	cfg := NewConfig(&bytes.Buffer{}, WithWorkspace("/data"))

	// When a renderer is created
	r := NewRenderer(cfg)

	// Then plain output is used
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
	assert.Equal(t, "/data", cfg.Workspace)
}

func TestNewTUIRenderer_RequiresTTY(t *testing.T) {
	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
}

func TestDetectCI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
	}
	t.Setenv("GITLAB_CI", "true")

	assert.True(t, DetectCI())
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	assert.True(t, DetectNoColor())
}

func TestCompletionStats_Processed(t *testing.T) {
	stats := CompletionStats{Stages: []StageSummary{{Processed: 3}, {Processed: 4, Failed: 1}}}

	assert.Equal(t, 7, stats.Processed())
}

func TestIsTTY_Nil(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}
