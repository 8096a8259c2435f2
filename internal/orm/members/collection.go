package members

import "reflect"

// Collection is the contract for collection navigation values that are not
// plain slices. Implementations must have reference semantics (pointer receivers).
type Collection interface {
	Contains(item any) bool
	Add(item any) bool
	Remove(item any) bool
	Len() int
}

var collectionType = reflect.TypeOf((*Collection)(nil)).Elem()

// IsCollectionType reports whether values of t can back a collection navigation
func IsCollectionType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Slice && t != typeBytes {
		return true
	}
	return t.Implements(collectionType)
}

// ElementType returns the element type of a slice collection, or nil when
// the element type is not statically known.
func ElementType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Slice {
		return t.Elem()
	}
	return nil
}
