package optimistic

import (
	"errors"
	"fmt"
)

// ErrLocalValidation is matched by every error that rejects an action
// before it reaches the network.
var ErrLocalValidation = errors.New("local validation failed")

// Local validation reasons.
var (
	ErrIllegalItem        = errors.New("illegal item")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrDuplicateItem      = errors.New("item already taken")
	ErrAuctionActive      = errors.New("auction already active")
	ErrAuctionClosed      = errors.New("auction not active")
	ErrBidTooLow          = errors.New("bid too low")
	ErrNotYourTurn        = errors.New("not this team's turn")
	ErrRosterFull         = errors.New("roster full")
	ErrDraftNotActive     = errors.New("draft not active")
	ErrWrongDraftKind     = errors.New("action not supported by draft kind")
	ErrAlreadyJoined      = errors.New("participant already joined")
	ErrUnknownEntity      = errors.New("unknown entity")
	ErrInvalidInput       = errors.New("invalid input")
)

var (
	// ErrConflict marks an action failed because authoritative state
	// contradicted its projection.
	ErrConflict = errors.New("reconciliation conflict")
	// ErrUnknownAction is returned for action ids the engine does not track.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidTransition is returned when an action is not in a state
	// that allows the requested transition.
	ErrInvalidTransition = errors.New("invalid action transition")
	// ErrRetryLimit is returned once an action has been retried too often.
	ErrRetryLimit = errors.New("retry limit reached")
)

// ValidationError rejects an action locally. Reason is shown to the user
// as is.
type ValidationError struct {
	Kind   error
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrLocalValidation, e.Kind}
}

func reject(kind error, format string, args ...any) error {
	return &ValidationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
