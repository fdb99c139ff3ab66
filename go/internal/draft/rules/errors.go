package rules

import "errors"

var (
	// ErrUnknownFormat is returned when a format id is not registered.
	ErrUnknownFormat = errors.New("unknown format")
	// ErrMalformedFormat is returned when a format definition is inconsistent.
	ErrMalformedFormat = errors.New("malformed format")
	// ErrUnknownItem is returned when an item id is not in the catalog.
	ErrUnknownItem = errors.New("unknown item")
)
