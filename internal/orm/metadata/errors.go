package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// Graph integrity errors, returned from mutating calls. The graph is left unchanged.
var (
	// ErrModelFrozen is returned when mutating a model after Freeze
	ErrModelFrozen = errors.New("model is frozen")

	// ErrDuplicateAnnotation is returned by AddAnnotation when the name is taken
	ErrDuplicateAnnotation = errors.New("duplicate annotation")

	// ErrDuplicateEntityType is returned when an entity type name is already used
	ErrDuplicateEntityType = errors.New("duplicate entity type")

	// ErrDuplicateClrType is returned when a Go type is already mapped
	ErrDuplicateClrType = errors.New("go type is already mapped")

	// ErrEntityTypeInUse is returned when removing an entity type referenced by a foreign key
	ErrEntityTypeInUse = errors.New("entity type is referenced by a foreign key")

	// ErrDuplicateProperty is returned when a property name is already used
	ErrDuplicateProperty = errors.New("duplicate property")

	// ErrPropertyConflict is returned when a member name is used by a property and a navigation
	ErrPropertyConflict = errors.New("member name conflicts with an existing member")

	// ErrPropertyTypeRequired is returned when adding a shadow property without a type
	ErrPropertyTypeRequired = errors.New("shadow property requires a type")

	// ErrPropertyTypeMismatch is returned when the requested type differs from the Go member type
	ErrPropertyTypeMismatch = errors.New("property type does not match member type")

	// ErrPropertyInUse is returned when removing a property referenced by a key, foreign key or index
	ErrPropertyInUse = errors.New("property is in use")

	// ErrPropertyWrongEntityType is returned when a property belongs to another entity type
	ErrPropertyWrongEntityType = errors.New("property is not declared on this entity type")

	// ErrEmptyPropertyList is returned for keys, foreign keys and indexes without properties
	ErrEmptyPropertyList = errors.New("property list is empty")

	// ErrDuplicatePropertyInList is returned when a property appears twice in a list
	ErrDuplicatePropertyInList = errors.New("property appears more than once")

	// ErrDuplicateKey is returned when a key over the same properties exists
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyInUse is returned when removing a key referenced by a foreign key
	ErrKeyInUse = errors.New("key is referenced by a foreign key")

	// ErrNullableKey is returned when a key property is or would become nullable
	ErrNullableKey = errors.New("key property cannot be nullable")

	// ErrKeyReadOnly is returned when a key property is or would become writable after save
	ErrKeyReadOnly = errors.New("key property must be read-only after save")

	// ErrCannotBeNullable is returned when the Go type cannot hold nil
	ErrCannotBeNullable = errors.New("property type cannot be nullable")

	// ErrDuplicateForeignKey is returned when an identical foreign key exists
	ErrDuplicateForeignKey = errors.New("duplicate foreign key")

	// ErrForeignKeyCountMismatch is returned when dependent and principal property counts differ
	ErrForeignKeyCountMismatch = errors.New("foreign key property count does not match principal key")

	// ErrForeignKeyTypeMismatch is returned when dependent and principal property types differ
	ErrForeignKeyTypeMismatch = errors.New("foreign key property type does not match principal key")

	// ErrPrincipalKeyMismatch is returned when the principal key is not declared on the principal type
	ErrPrincipalKeyMismatch = errors.New("principal key is not declared on the principal entity type")

	// ErrEntityTypeModelMismatch is returned when relationship endpoints belong to different models
	ErrEntityTypeModelMismatch = errors.New("entity types belong to different models")

	// ErrEntityTypeNotInRelationship is returned when an entity type is not an endpoint of a foreign key
	ErrEntityTypeNotInRelationship = errors.New("entity type is not part of the relationship")

	// ErrDuplicateIndex is returned when an index over the same properties exists
	ErrDuplicateIndex = errors.New("duplicate index")

	// ErrDuplicateNavigation is returned when a navigation name is already used
	ErrDuplicateNavigation = errors.New("duplicate navigation")

	// ErrNoClrNavigation is returned when a navigation has no backing Go member
	ErrNoClrNavigation = errors.New("navigation has no backing member")

	// ErrNavigationTypeMismatch is returned when a navigation member has the wrong type
	ErrNavigationTypeMismatch = errors.New("navigation member has an incompatible type")

	// ErrBadBackingFieldType is returned when a configured backing field has the wrong type
	ErrBadBackingFieldType = errors.New("backing field type does not match property type")

	// ErrMissingPrimaryKey is returned by validation for entity types without a primary key
	ErrMissingPrimaryKey = errors.New("entity type has no primary key")
)

// Member resolution and accessor compilation errors, returned on first access.
var (
	// ErrMissingBackingField is returned when a required or configured backing field does not exist
	ErrMissingBackingField = errors.New("missing backing field")

	// ErrNoBackingField is returned in field access mode when no backing field was found
	ErrNoBackingField = errors.New("no backing field")

	// ErrNoFieldOrSetter is returned when a value cannot be written through a setter or field
	ErrNoFieldOrSetter = errors.New("no field or setter")

	// ErrNoFieldOrGetter is returned when a value cannot be read through a getter or field
	ErrNoFieldOrGetter = errors.New("no field or getter")

	// ErrNoSetter is returned when property access mode requires a missing setter
	ErrNoSetter = errors.New("no setter")

	// ErrNoGetter is returned when property access mode requires a missing getter
	ErrNoGetter = errors.New("no getter")

	// ErrNoProperty is returned when property access mode is used without a registered property
	ErrNoProperty = errors.New("no property")

	// ErrReadonlyField is returned when writing a read-only field outside construction
	ErrReadonlyField = errors.New("read-only field")

	// ErrNoParameterlessConstructor is returned when materializing a type without a constructor
	ErrNoParameterlessConstructor = errors.New("no parameterless constructor")

	// ErrCannotMaterializeAbstractType is returned when materializing an abstract type
	ErrCannotMaterializeAbstractType = errors.New("cannot materialize abstract type")

	// ErrCannotCreateCollectionType is returned when no collection factory is available
	ErrCannotCreateCollectionType = errors.New("cannot create collection type")

	// ErrNoSetterForNavigation is returned when a nil collection cannot be replaced
	ErrNoSetterForNavigation = errors.New("no setter for navigation")

	// ErrNotCollectionNavigation is returned when requesting a collection accessor for a reference
	ErrNotCollectionNavigation = errors.New("navigation is not a collection")

	// ErrShadowEntityType is returned when compiling access to an entity type without a Go type
	ErrShadowEntityType = errors.New("entity type has no go type")

	// ErrOriginalValueNotTracked is returned when reading the original value of a property without an original value slot
	ErrOriginalValueNotTracked = errors.New("original value is not tracked")

	// ErrValueBufferTooShort is returned when a value buffer lacks an index a materializer reads
	ErrValueBufferTooShort = errors.New("value buffer is too short")
)

// ConfigError reports a graph integrity violation at a mutating call
type ConfigError struct {
	EntityType string
	Member     string
	Err        error
	Detail     string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return formatMetadataError(e.Err, e.EntityType, e.Member, e.Detail)
}

// Unwrap returns the sentinel error
func (e *ConfigError) Unwrap() error { return e.Err }

// AccessError reports a failure to resolve a member or compile an accessor
type AccessError struct {
	EntityType string
	Member     string
	Err        error
	Detail     string
}

// Error implements the error interface
func (e *AccessError) Error() string {
	return formatMetadataError(e.Err, e.EntityType, e.Member, e.Detail)
}

// Unwrap returns the sentinel error
func (e *AccessError) Unwrap() error { return e.Err }

func formatMetadataError(err error, entityType, member, detail string) string {
	var b strings.Builder
	b.WriteString(err.Error())
	switch {
	case member != "" && entityType != "":
		fmt.Fprintf(&b, ": '%s' on entity type '%s'", member, entityType)
	case entityType != "":
		fmt.Fprintf(&b, ": entity type '%s'", entityType)
	case member != "":
		fmt.Fprintf(&b, ": '%s'", member)
	}
	if detail != "" {
		b.WriteString(" (")
		b.WriteString(detail)
		b.WriteString(")")
	}
	return b.String()
}

func configErr(et *EntityType, member string, err error, detail string, args ...any) *ConfigError {
	e := &ConfigError{Member: member, Err: err}
	if et != nil {
		e.EntityType = et.name
	}
	if detail != "" {
		e.Detail = fmt.Sprintf(detail, args...)
	}
	return e
}

func accessErr(pb PropertyBase, err error, detail string, args ...any) *AccessError {
	e := &AccessError{Member: pb.Name(), EntityType: pb.DeclaringEntityType().Name(), Err: err}
	if detail != "" {
		e.Detail = fmt.Sprintf(detail, args...)
	}
	return e
}

// IsConfigError reports whether err is a graph integrity error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsAccessError reports whether err is a member resolution or compilation error
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}
