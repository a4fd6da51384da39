package workflows

import "fmt"

// Stage is a step of a report generation request.
type Stage string

const (
	StageReceived Stage = "RECEIVED"
	StageValidate Stage = "VALIDATE"
	StageResolve  Stage = "RESOLVE"
	StageInvoke   Stage = "INVOKE"
	StageVerify   Stage = "VERIFY"
	StageStream   Stage = "STREAM"
	StageCleanup  Stage = "CLEANUP"
	StageFailed   Stage = "FAILED"
)

// StateMachine enforces generation stage transitions
type StateMachine struct {
	allowedTransitions map[Stage][]Stage
}

// NewStateMachine creates a new state machine with allowed transitions.
// Every stage before CLEANUP may fail; CLEANUP and FAILED are terminal.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[Stage][]Stage{
			StageReceived: {StageValidate, StageFailed},
			StageValidate: {StageResolve, StageFailed},
			StageResolve:  {StageInvoke, StageFailed},
			StageInvoke:   {StageVerify, StageFailed},
			StageVerify:   {StageStream, StageFailed},
			StageStream:   {StageCleanup, StageFailed},
			StageCleanup:  {},
			StageFailed:   {},
		},
	}
}

// CanTransition checks if a stage transition is allowed
func (sm *StateMachine) CanTransition(from, to Stage) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next stages for a given stage
func (sm *StateMachine) GetAllowedTransitions(from Stage) []Stage {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []Stage{}
	}
	return allowed
}

var defaultMachine = NewStateMachine()

// Tracker follows one request through the generation stages.
type Tracker struct {
	machine  *StateMachine
	current  Stage
	failedAt Stage
}

// NewTracker returns a tracker positioned at RECEIVED.
func NewTracker() *Tracker {
	return &Tracker{machine: defaultMachine, current: StageReceived}
}

// Current returns the stage the request is in.
func (t *Tracker) Current() Stage {
	return t.current
}

// FailedAt returns the stage that failed, or "" when nothing failed.
func (t *Tracker) FailedAt() Stage {
	return t.failedAt
}

// Advance moves to the next stage.
func (t *Tracker) Advance(to Stage) error {
	if !t.machine.CanTransition(t.current, to) {
		return fmt.Errorf("invalid stage transition %s -> %s (allowed: %v)",
			t.current, to, t.machine.GetAllowedTransitions(t.current))
	}
	t.current = to
	return nil
}

// Fail records the current stage as failed and moves to FAILED. The error is
// returned wrapped with the stage name.
func (t *Tracker) Fail(err error) error {
	if t.current == StageFailed {
		return err
	}
	t.failedAt = t.current
	t.current = StageFailed
	return fmt.Errorf("%s: %w", stageLabel(t.failedAt), err)
}

func stageLabel(s Stage) string {
	switch s {
	case StageValidate:
		return "validate"
	case StageResolve:
		return "resolve template"
	case StageInvoke:
		return "run report engine"
	case StageVerify:
		return "verify output"
	case StageStream:
		return "stream report"
	default:
		return string(s)
	}
}
