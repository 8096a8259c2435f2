package members

import "errors"

var (
	// ErrNotStruct is returned when registering a type that is not a struct
	ErrNotStruct = errors.New("mapped type must be a struct")

	// ErrNotEmbedded is returned when a declared base is not embedded by value
	ErrNotEmbedded = errors.New("base type is not embedded")

	// ErrFieldNotFound is returned when a named field does not exist
	ErrFieldNotFound = errors.New("field not found")

	// ErrInvalidProperty is returned for a property without accessors
	ErrInvalidProperty = errors.New("invalid property")

	// ErrDuplicateProperty is returned when a property is registered twice
	ErrDuplicateProperty = errors.New("duplicate property")

	// ErrInstanceType is returned when an instance is not a pointer to the described type
	ErrInstanceType = errors.New("instance type mismatch")

	// ErrValueType is returned when a value cannot be assigned to a member
	ErrValueType = errors.New("value type mismatch")
)
