package metadata

import (
	"reflect"

	"github.com/conduit-lang/ormmeta/internal/orm/lazy"
	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

// PropertyKind tags the variants sharing the PropertyBase contract
type PropertyKind int

const (
	KindScalar PropertyKind = iota
	KindNavigation
)

// String returns the string representation of the property kind
func (k PropertyKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindNavigation:
		return "navigation"
	default:
		return "unknown"
	}
}

// PropertyBase is the part shared by scalar properties and navigations
type PropertyBase interface {
	Name() string
	Kind() PropertyKind
	DeclaringEntityType() *EntityType
	ClrType() reflect.Type
	IsShadowProperty() bool
	PropertyInfo() *members.PropertyInfo
	FieldInfo() *members.FieldInfo
	PropertyAccessMode() PropertyAccessMode
	PropertyIndexes() PropertyIndexes
	FindAnnotation(name string) *Annotation

	base() *propertyBase
}

type propertyBase struct {
	Annotatable

	name            string
	clrType         reflect.Type
	declaringType   *EntityType
	propertyInfo    *members.PropertyInfo
	fieldInfo       *members.FieldInfo
	fieldInfoSource ConfigurationSource

	slots     lazy.Value[PropertyIndexes]
	getter    lazy.Value[*ClrGetter]
	setter    lazy.Value[*ClrSetter]
	accessors lazy.Value[*PropertyAccessors]
}

func (pb *propertyBase) initBase(et *EntityType, name string, typ reflect.Type) {
	pb.name = name
	pb.clrType = typ
	pb.declaringType = et
	pb.Annotatable.init(et.model, func(annotation string) {
		if annotation == AnnotationPropertyAccessMode {
			pb.declaringType.resetCaches()
		}
	})
}

func (pb *propertyBase) base() *propertyBase { return pb }

// Name returns the member name
func (pb *propertyBase) Name() string { return pb.name }

// DeclaringEntityType returns the entity type that declares the member
func (pb *propertyBase) DeclaringEntityType() *EntityType { return pb.declaringType }

// ClrType returns the value type of the member
func (pb *propertyBase) ClrType() reflect.Type { return pb.clrType }

// PropertyInfo returns the registered Go property, or nil
func (pb *propertyBase) PropertyInfo() *members.PropertyInfo { return pb.propertyInfo }

// FieldInfo returns the backing field, or nil
func (pb *propertyBase) FieldInfo() *members.FieldInfo { return pb.fieldInfo }

// FieldInfoConfigurationSource returns the source that selected the backing field
func (pb *propertyBase) FieldInfoConfigurationSource() ConfigurationSource { return pb.fieldInfoSource }

// IsShadowProperty reports whether the member has no Go member
func (pb *propertyBase) IsShadowProperty() bool {
	return pb.propertyInfo == nil && pb.fieldInfo == nil
}

// PropertyAccessMode returns the member access mode, falling back to the
// entity type and then the model
func (pb *propertyBase) PropertyAccessMode() PropertyAccessMode {
	if mode, ok := accessModeAnnotation(&pb.Annotatable); ok {
		return mode
	}
	return pb.declaringType.PropertyAccessMode()
}

// SetPropertyAccessMode sets the member access mode
func (pb *propertyBase) SetPropertyAccessMode(mode PropertyAccessMode, source ConfigurationSource) bool {
	return pb.SetAnnotation(AnnotationPropertyAccessMode, mode, source)
}

// SetField selects the backing field by name. An empty name clears the
// backing field. It reports whether the source was strong enough.
func (pb *propertyBase) SetField(name string, source ConfigurationSource) (bool, error) {
	et := pb.declaringType
	if err := et.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(pb.fieldInfoSource) {
		return false, nil
	}

	var field *members.FieldInfo
	if name != "" {
		if et.typeInfo == nil {
			return false, configErr(et, pb.name, ErrMissingBackingField, "field '%s' on a shadow entity type", name)
		}
		field = et.typeInfo.FindField(name)
		if field == nil {
			return false, configErr(et, pb.name, ErrMissingBackingField, "no field named '%s'", name)
		}
		if !field.Type().AssignableTo(pb.clrType) || !pb.clrType.AssignableTo(field.Type()) {
			return false, configErr(et, pb.name, ErrBadBackingFieldType,
				"field '%s' is %v, member is %v", name, field.Type(), pb.clrType)
		}
	}

	pb.fieldInfo = field
	if field == nil {
		pb.fieldInfoSource = SourceNone
	} else {
		pb.fieldInfoSource = MaxSource(pb.fieldInfoSource, source)
	}
	et.resetCaches()
	return true, nil
}

// resetCaches discards the slots and compiled accessors of the member
func (pb *propertyBase) resetCaches() {
	pb.slots.Reset()
	pb.getter.Reset()
	pb.setter.Reset()
	pb.accessors.Reset()
}

// PropertyIndexes returns the snapshot slots assigned to the member
func (pb *propertyBase) PropertyIndexes() PropertyIndexes {
	return pb.slots.EnsureInitialized(func() PropertyIndexes {
		if indexes, ok := pb.declaringType.slotTable().byName[pb.name]; ok {
			return indexes
		}
		return noIndexes
	})
}

// isCollectionNavigation reports whether pb is a collection navigation
func isCollectionNavigation(pb PropertyBase) bool {
	nav, ok := pb.(*Navigation)
	return ok && nav.IsCollection()
}
