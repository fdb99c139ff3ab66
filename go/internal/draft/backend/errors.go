package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a draft, team, auction or participant does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPrecondition is returned when a request is well formed but the
	// current draft state does not allow it.
	ErrPrecondition = errors.New("failed precondition")
	// ErrAuctionNotDue is returned by CloseAuction before the auction's end time.
	ErrAuctionNotDue = errors.New("auction has not ended yet")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
