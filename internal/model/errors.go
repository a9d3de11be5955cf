package model

import "errors"

var (
	// ErrInvalidEndpoint is returned for periodic endpoints with a
	// zero or negative polling interval.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrMalformedDevice is returned when a device's vendor or product
	// id is missing or not a 16-bit value.
	ErrMalformedDevice = errors.New("malformed device")

	// ErrInvalidPath is returned for device paths that do not follow
	// the <bus>-<port>[.<port>]* syntax.
	ErrInvalidPath = errors.New("invalid device path")
)
