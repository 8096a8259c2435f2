// Package members describes the Go-level shape of mapped types.
//
// Go has no properties and no runtime member enumeration beyond reflection, so
// a mapped type is registered once at model-build time. Struct fields are
// discovered through reflection and addressed by their byte offset afterwards.
// Properties (accessor pairs) are registered explicitly with typed closures.
// Nothing in this package uses reflection on the hot path for the built-in
// scalar kinds.
package members

import (
	"fmt"
	"reflect"
	"unsafe"
)

// MemberInfo is a Go member that can back a mapped property: a *PropertyInfo
// or a *FieldInfo. A nil MemberInfo stands for a shadow property.
type MemberInfo interface {
	Name() string
	Type() reflect.Type
	DeclaringType() *TypeInfo
	isMember()
}

// MemberKind tags the variant held by a MemberInfo
type MemberKind int

const (
	MemberShadow MemberKind = iota
	MemberProperty
	MemberField
)

// String returns the string representation of the member kind
func (k MemberKind) String() string {
	switch k {
	case MemberShadow:
		return "shadow"
	case MemberProperty:
		return "property"
	case MemberField:
		return "field"
	default:
		return "unknown"
	}
}

// KindOf returns the variant of m
func KindOf(m MemberInfo) MemberKind {
	switch m.(type) {
	case *PropertyInfo:
		return MemberProperty
	case *FieldInfo:
		return MemberField
	default:
		return MemberShadow
	}
}

// TypeInfo is the registered shape of a mapped struct type
type TypeInfo struct {
	name      string
	typ       reflect.Type
	ptrType   reflect.Type
	abstract  bool
	construct func() any

	base       *TypeInfo
	baseOffset uintptr

	fields           []*FieldInfo
	fieldsByName     map[string]*FieldInfo
	properties       []*PropertyInfo
	propertiesByName map[string]*PropertyInfo
}

// Option configures a TypeInfo during registration
type Option func(*typeOptions)

type typeOptions struct {
	name           string
	abstract       bool
	construct      func() any
	noConstruct    bool
	readOnlyFields []string
	base           *TypeInfo
}

// WithName overrides the display name (defaults to the Go type name)
func WithName(name string) Option {
	return func(o *typeOptions) { o.name = name }
}

// Abstract marks the type as not instantiable
func Abstract() Option {
	return func(o *typeOptions) { o.abstract = true }
}

// WithConstructor registers the parameterless constructor. It must return a
// pointer to a new instance of the described type.
func WithConstructor(fn func() any) Option {
	return func(o *typeOptions) { o.construct = fn }
}

// WithoutConstructor removes the constructor Of registers by default
func WithoutConstructor() Option {
	return func(o *typeOptions) { o.noConstruct = true }
}

// ReadOnlyFields marks fields the mapper may read but never assign
func ReadOnlyFields(names ...string) Option {
	return func(o *typeOptions) { o.readOnlyFields = append(o.readOnlyFields, names...) }
}

// Embeds declares base as the embedded base type. The described struct must
// embed base's struct by value.
func Embeds(base *TypeInfo) Option {
	return func(o *typeOptions) { o.base = base }
}

// Of registers the struct type T. A constructor returning new(T) is registered
// unless WithoutConstructor is given.
func Of[T any](opts ...Option) (*TypeInfo, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	defaults := []Option{WithConstructor(func() any { return new(T) })}
	return Describe(typ, append(defaults, opts...)...)
}

// MustOf is Of for package-level registrations; it panics on error
func MustOf[T any](opts ...Option) *TypeInfo {
	ti, err := Of[T](opts...)
	if err != nil {
		panic(err)
	}
	return ti
}

// Describe registers a struct type without a default constructor
func Describe(typ reflect.Type, opts ...Option) (*TypeInfo, error) {
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrNotStruct, typ)
	}

	var o typeOptions
	for _, opt := range opts {
		opt(&o)
	}

	ti := &TypeInfo{
		name:             typ.Name(),
		typ:              typ,
		ptrType:          reflect.PointerTo(typ),
		abstract:         o.abstract,
		construct:        o.construct,
		fieldsByName:     make(map[string]*FieldInfo),
		propertiesByName: make(map[string]*PropertyInfo),
	}
	if o.name != "" {
		ti.name = o.name
	}
	if o.noConstruct {
		ti.construct = nil
	}

	if o.base != nil {
		offset, ok := embeddedOffset(typ, o.base.typ)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not embed %s", ErrNotEmbedded, ti.name, o.base.name)
		}
		ti.base = o.base
		ti.baseOffset = offset
	}

	ti.discoverFields()

	for _, name := range o.readOnlyFields {
		f, ok := ti.fieldsByName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, ti.name, name)
		}
		f.readOnly = true
	}

	return ti, nil
}

// discoverFields collects fields breadth-first through value-embedded structs.
// Shallower fields shadow deeper ones with the same name, as in Go selectors.
func (ti *TypeInfo) discoverFields() {
	type level struct {
		typ    reflect.Type
		offset uintptr
	}
	current := []level{{typ: ti.typ}}

	for len(current) > 0 {
		var next []level
		seenAtDepth := make(map[string]bool)
		for _, l := range current {
			for i := 0; i < l.typ.NumField(); i++ {
				sf := l.typ.Field(i)
				if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
					next = append(next, level{typ: sf.Type, offset: l.offset + sf.Offset})
					continue
				}
				if sf.Name == "_" || seenAtDepth[sf.Name] {
					continue
				}
				if _, shadowed := ti.fieldsByName[sf.Name]; shadowed {
					continue
				}
				seenAtDepth[sf.Name] = true
				f := &FieldInfo{
					name:          sf.Name,
					typ:           sf.Type,
					offset:        l.offset + sf.Offset,
					exported:      sf.IsExported(),
					tag:           sf.Tag,
					declaringType: ti,
				}
				ti.fields = append(ti.fields, f)
				ti.fieldsByName[sf.Name] = f
			}
		}
		current = next
	}
}

func embeddedOffset(outer, inner reflect.Type) (uintptr, bool) {
	for i := 0; i < outer.NumField(); i++ {
		sf := outer.Field(i)
		if !sf.Anonymous {
			continue
		}
		if sf.Type == inner {
			return sf.Offset, true
		}
		if sf.Type.Kind() == reflect.Struct {
			if off, ok := embeddedOffset(sf.Type, inner); ok {
				return sf.Offset + off, true
			}
		}
	}
	return 0, false
}

// Name returns the display name
func (ti *TypeInfo) Name() string { return ti.name }

// Type returns the struct type
func (ti *TypeInfo) Type() reflect.Type { return ti.typ }

// PointerType returns the pointer type instances are handled through
func (ti *TypeInfo) PointerType() reflect.Type { return ti.ptrType }

// IsAbstract reports whether the type cannot be instantiated
func (ti *TypeInfo) IsAbstract() bool { return ti.abstract }

// Base returns the embedded base type, or nil
func (ti *TypeInfo) Base() *TypeInfo { return ti.base }

// Constructor returns the parameterless constructor, or nil
func (ti *TypeInfo) Constructor() func() any { return ti.construct }

// Fields returns the discovered fields in declaration order
func (ti *TypeInfo) Fields() []*FieldInfo {
	out := make([]*FieldInfo, len(ti.fields))
	copy(out, ti.fields)
	return out
}

// FindField returns the field with the given name, or nil
func (ti *TypeInfo) FindField(name string) *FieldInfo {
	return ti.fieldsByName[name]
}

// Properties returns the registered properties in registration order
func (ti *TypeInfo) Properties() []*PropertyInfo {
	out := make([]*PropertyInfo, len(ti.properties))
	copy(out, ti.properties)
	return out
}

// FindProperty returns the property with the given name declared on this type
// or inherited from the base chain, or nil
func (ti *TypeInfo) FindProperty(name string) *PropertyInfo {
	for t := ti; t != nil; t = t.base {
		if p, ok := t.propertiesByName[name]; ok {
			return p
		}
	}
	return nil
}

// FindMember returns the property or field named name, preferring the property
func (ti *TypeInfo) FindMember(name string) MemberInfo {
	if p := ti.FindProperty(name); p != nil {
		return p
	}
	if f := ti.FindField(name); f != nil {
		return f
	}
	return nil
}

// OffsetOf returns the byte offset of decl inside an instance of ti.
// decl must be ti itself or one of its embedded bases.
func (ti *TypeInfo) OffsetOf(decl *TypeInfo) (uintptr, bool) {
	var offset uintptr
	for t := ti; t != nil; t = t.base {
		if t == decl {
			return offset, true
		}
		offset += t.baseOffset
	}
	return 0, false
}

// IsAssignableFrom reports whether ti is other or one of its bases
func (ti *TypeInfo) IsAssignableFrom(other *TypeInfo) bool {
	_, ok := other.OffsetOf(ti)
	return ok
}

// Pointer returns the address of the struct behind instance, which must be a
// non-nil pointer to the described type.
func (ti *TypeInfo) Pointer(instance any) (unsafe.Pointer, error) {
	if instance == nil {
		return nil, fmt.Errorf("%w: nil instance of %s", ErrInstanceType, ti.name)
	}
	if t := reflect.TypeOf(instance); t != ti.ptrType {
		return nil, fmt.Errorf("%w: expected %v, got %v", ErrInstanceType, ti.ptrType, t)
	}
	p := reflect.ValueOf(instance).UnsafePointer()
	if p == nil {
		return nil, fmt.Errorf("%w: nil instance of %s", ErrInstanceType, ti.name)
	}
	return p, nil
}

// String returns the display name
func (ti *TypeInfo) String() string { return ti.name }
