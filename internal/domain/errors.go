package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidDistance is returned for negative or NaN distances.
	ErrInvalidDistance = errors.New("invalid distance")
)
