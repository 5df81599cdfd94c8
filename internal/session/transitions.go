package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition indicates that a requested step change is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions contains the permitted forward moves of the SMS flow.
var validTransitions = map[Step][]Step{
	StepNeedArea: {
		StepNeedSearchType,
	},
	StepNeedSearchType: {
		StepNeedProducts,
	},
	StepNeedProducts: {
		StepHaveResults,
	},
	StepHaveResults: {
		StepHaveResults,
	},
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe step transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// IsTransitionAllowed reports whether moving from one step to another is valid.
// Resets to NeedArea or NeedProducts and staying put are always allowed.
func IsTransitionAllowed(from, to Step) bool {
	if to == StepNeedArea || to == StepNeedProducts || from == to {
		return true
	}

	for _, step := range validTransitions[from] {
		if step == to {
			return true
		}
	}

	return false
}

// Transition validates the move from one state to another and records it.
func Transition(from, to State) error {
	if !IsTransitionAllowed(from.Step, to.Step) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from.Step, to.Step)
	}

	if from.Step != to.Step || to.Step == StepHaveResults {
		transitionRecorder(string(from.Step), string(to.Step))
	}

	return nil
}
