package modelfile

import "errors"

var (
	// ErrInvalidDocument is returned when a model file cannot be decoded or fails validation
	ErrInvalidDocument = errors.New("invalid model file")

	// ErrUnknownEntityType is returned when a model file refers to an entity type that does not exist
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrUnknownProperty is returned when a model file refers to a property that does not exist
	ErrUnknownProperty = errors.New("unknown property")

	// ErrNoPrincipalKey is returned when a foreign key targets an entity type without a primary key
	ErrNoPrincipalKey = errors.New("principal has no primary key")
)
