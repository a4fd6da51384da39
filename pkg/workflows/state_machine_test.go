package workflows

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineLinearPath(t *testing.T) {
	sm := NewStateMachine()
	path := []Stage{StageReceived, StageValidate, StageResolve, StageInvoke, StageVerify, StageStream, StageCleanup}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, sm.CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
	assert.False(t, sm.CanTransition(StageValidate, StageInvoke))
	assert.False(t, sm.CanTransition(StageCleanup, StageFailed))
	assert.Empty(t, sm.GetAllowedTransitions(StageFailed))
	assert.Empty(t, sm.GetAllowedTransitions(Stage("UNKNOWN")))
}

func TestTrackerFailWrapsStage(t *testing.T) {
	tracker := NewTracker()
	require.NoError(t, tracker.Advance(StageValidate))
	require.NoError(t, tracker.Advance(StageResolve))
	require.NoError(t, tracker.Advance(StageInvoke))

	cause := errors.New("exit status 1")
	err := tracker.Fail(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "run report engine: exit status 1", err.Error())
	assert.Equal(t, StageInvoke, tracker.FailedAt())
	assert.Equal(t, StageFailed, tracker.Current())

	assert.Same(t, cause, tracker.Fail(cause), "failing twice must not re-wrap")
}

func TestTrackerRejectsSkippedStage(t *testing.T) {
	tracker := NewTracker()
	err := tracker.Advance(StageStream)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed: [VALIDATE FAILED]")
	assert.Equal(t, StageReceived, tracker.Current())
}
