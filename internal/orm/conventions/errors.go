package conventions

import "errors"

var (
	// ErrInvalidTag is returned when an orm struct tag cannot be parsed
	ErrInvalidTag = errors.New("invalid orm tag")
)
