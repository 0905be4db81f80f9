package apperror

import "fmt"

// TransitionError reports an action that the state machine does not allow for
// the current state and actor role.
type TransitionError struct {
	Action string
	From   string
	Actor  string
}

// NewInvalidTransitionError builds a TransitionError.
func NewInvalidTransitionError(action, from, actor string) *TransitionError {
	return &TransitionError{Action: action, From: from, Actor: actor}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s may not %s a booking in status %s", e.Actor, e.Action, e.From)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
