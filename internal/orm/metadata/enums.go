package metadata

import "fmt"

// ValueGenerated describes when the store may assign a property value
type ValueGenerated int

const (
	ValueGeneratedNever ValueGenerated = iota
	ValueGeneratedOnAdd
	ValueGeneratedOnUpdate
	ValueGeneratedOnAddOrUpdate
)

// String returns the string representation of the value generation mode
func (v ValueGenerated) String() string {
	switch v {
	case ValueGeneratedNever:
		return "never"
	case ValueGeneratedOnAdd:
		return "on_add"
	case ValueGeneratedOnUpdate:
		return "on_update"
	case ValueGeneratedOnAddOrUpdate:
		return "on_add_or_update"
	default:
		return "unknown"
	}
}

// ParseValueGenerated converts a string to a ValueGenerated
func ParseValueGenerated(s string) (ValueGenerated, error) {
	switch s {
	case "never":
		return ValueGeneratedNever, nil
	case "on_add":
		return ValueGeneratedOnAdd, nil
	case "on_update":
		return ValueGeneratedOnUpdate, nil
	case "on_add_or_update":
		return ValueGeneratedOnAddOrUpdate, nil
	default:
		return 0, fmt.Errorf("unknown value generation mode: %s", s)
	}
}

// ChangeTrackingStrategy describes how the change tracker detects changes
type ChangeTrackingStrategy int

const (
	Snapshot ChangeTrackingStrategy = iota
	ChangedNotifications
	ChangingAndChangedNotifications
	ChangingAndChangedNotificationsWithOriginalValues
)

// String returns the string representation of the change tracking strategy
func (c ChangeTrackingStrategy) String() string {
	switch c {
	case Snapshot:
		return "snapshot"
	case ChangedNotifications:
		return "changed_notifications"
	case ChangingAndChangedNotifications:
		return "changing_and_changed_notifications"
	case ChangingAndChangedNotificationsWithOriginalValues:
		return "changing_and_changed_notifications_with_original_values"
	default:
		return "unknown"
	}
}

// ParseChangeTrackingStrategy converts a string to a ChangeTrackingStrategy
func ParseChangeTrackingStrategy(s string) (ChangeTrackingStrategy, error) {
	switch s {
	case "snapshot":
		return Snapshot, nil
	case "changed_notifications":
		return ChangedNotifications, nil
	case "changing_and_changed_notifications":
		return ChangingAndChangedNotifications, nil
	case "changing_and_changed_notifications_with_original_values":
		return ChangingAndChangedNotificationsWithOriginalValues, nil
	default:
		return 0, fmt.Errorf("unknown change tracking strategy: %s", s)
	}
}

// PropertyAccessMode selects whether values are read and written through
// registered properties or directly through backing fields
type PropertyAccessMode int

const (
	// AccessModeDefault prefers fields during construction and properties otherwise
	AccessModeDefault PropertyAccessMode = iota
	AccessModeFieldDuringConstruction
	AccessModeField
	AccessModeProperty
)

// String returns the string representation of the access mode
func (m PropertyAccessMode) String() string {
	switch m {
	case AccessModeDefault:
		return "default"
	case AccessModeFieldDuringConstruction:
		return "field_during_construction"
	case AccessModeField:
		return "field"
	case AccessModeProperty:
		return "property"
	default:
		return "unknown"
	}
}

// ParsePropertyAccessMode converts a string to a PropertyAccessMode
func ParsePropertyAccessMode(s string) (PropertyAccessMode, error) {
	switch s {
	case "default", "":
		return AccessModeDefault, nil
	case "field_during_construction":
		return AccessModeFieldDuringConstruction, nil
	case "field":
		return AccessModeField, nil
	case "property":
		return AccessModeProperty, nil
	default:
		return 0, fmt.Errorf("unknown property access mode: %s", s)
	}
}

// DeleteBehavior describes what happens to dependents when a principal is deleted
type DeleteBehavior int

const (
	ClientSetNull DeleteBehavior = iota
	Restrict
	SetNull
	Cascade
)

// String returns the string representation of the delete behavior
func (d DeleteBehavior) String() string {
	switch d {
	case ClientSetNull:
		return "client_set_null"
	case Restrict:
		return "restrict"
	case SetNull:
		return "set_null"
	case Cascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// ParseDeleteBehavior converts a string to a DeleteBehavior
func ParseDeleteBehavior(s string) (DeleteBehavior, error) {
	switch s {
	case "client_set_null":
		return ClientSetNull, nil
	case "restrict":
		return Restrict, nil
	case "set_null":
		return SetNull, nil
	case "cascade":
		return Cascade, nil
	default:
		return 0, fmt.Errorf("unknown delete behavior: %s", s)
	}
}
