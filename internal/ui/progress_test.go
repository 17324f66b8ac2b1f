package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_Progress(t *testing.T) {
	p := NewProgressTracker()
	assert.Equal(t, 0.0, p.Progress())

	p.SetStage(StageExtract, 4)
	p.Update(1, "a.pdf")
	assert.Equal(t, 0.25, p.Progress())

	p.Update(9, "")
	assert.Equal(t, 1.0, p.Progress())
	assert.Equal(t, "a.pdf", p.Stats().Item)
}

func TestProgressTracker_SetStageRecordsFinished(t *testing.T) {
	// Given progress in the acquire stage
	p := NewProgressTracker()
	p.SetStage(StageAcquire, 3)
	p.Update(3, "")

	// When moving to extract, and again to extract
	p.SetStage(StageExtract, 2)
	p.SetStage(StageExtract, 2)

	// Then acquire is finished once and the new stage starts at zero
	stats := p.Stats()
	require.Len(t, stats.Finished, 1)
	assert.Equal(t, StageAcquire, stats.Finished[0].Stage)
	assert.Equal(t, 3, stats.Finished[0].Processed)
	assert.Equal(t, StageExtract, stats.Stage)
	assert.Equal(t, 0, stats.Current)
}

func TestProgressTracker_ETA(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageExtract, 10)
	assert.Equal(t, time.Duration(0), p.ETA())

	time.Sleep(10 * time.Millisecond)
	p.Update(5, "")
	assert.Greater(t, p.ETA(), time.Duration(0))

	p.Update(10, "")
	assert.Equal(t, time.Duration(0), p.ETA())
}

func TestProgressTracker_Errors(t *testing.T) {
	p := NewProgressTracker()

	p.AddError(ErrorEvent{Item: "a", Err: errors.New("x")})
	p.AddError(ErrorEvent{Item: "b", Err: errors.New("y"), IsWarn: true})

	assert.Len(t, p.Errors(), 1)
	assert.Len(t, p.Warnings(), 1)
	stats := p.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
	assert.GreaterOrEqual(t, p.Elapsed(), time.Duration(0))
}
