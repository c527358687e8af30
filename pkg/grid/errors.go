package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for inputs the grid cannot represent:
	// non-finite coordinates, negative radii and malformed cell identifiers.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedCellID is returned when a cell identifier cannot be decoded.
	ErrMalformedCellID = fmt.Errorf("%w: malformed cell id", ErrInvalidArgument)
)
