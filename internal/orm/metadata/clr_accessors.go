package metadata

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

// ClrGetter reads a member value from an entity instance
type ClrGetter struct {
	member   members.MemberInfo
	typeInfo *members.TypeInfo
	get      func(unsafe.Pointer) any
	isZero   func(any) bool
}

// Member returns the Go member the getter reads
func (g *ClrGetter) Member() members.MemberInfo { return g.member }

// GetClrValue returns the member value of instance, a pointer to the entity struct
func (g *ClrGetter) GetClrValue(instance any) (any, error) {
	p, err := g.typeInfo.Pointer(instance)
	if err != nil {
		return nil, err
	}
	return g.get(p), nil
}

// HasDefaultValue reports whether the member of instance holds the zero value
func (g *ClrGetter) HasDefaultValue(instance any) (bool, error) {
	v, err := g.GetClrValue(instance)
	if err != nil {
		return false, err
	}
	return g.isZero(v), nil
}

// ClrSetter writes a member value on an entity instance
type ClrSetter struct {
	member   members.MemberInfo
	typeInfo *members.TypeInfo
	set      func(unsafe.Pointer, any) error
}

// Member returns the Go member the setter writes
func (s *ClrSetter) Member() members.MemberInfo { return s.member }

// SetClrValue assigns value to the member of instance. A nil value assigns the zero value.
func (s *ClrSetter) SetClrValue(instance any, value any) error {
	p, err := s.typeInfo.Pointer(instance)
	if err != nil {
		return err
	}
	return s.set(p, value)
}

// GetterFor returns the compiled getter of pb, compiling it on first use
func GetterFor(pb PropertyBase) (*ClrGetter, error) {
	return pb.base().getter.EnsureInitializedErr(func() (*ClrGetter, error) {
		return compileGetter(pb)
	})
}

// SetterFor returns the compiled setter of pb, compiling it on first use
func SetterFor(pb PropertyBase) (*ClrSetter, error) {
	return pb.base().setter.EnsureInitializedErr(func() (*ClrSetter, error) {
		return compileSetter(pb)
	})
}

func compileGetter(pb PropertyBase) (*ClrGetter, error) {
	ti := pb.DeclaringEntityType().typeInfo
	if ti == nil {
		return nil, accessErr(pb, ErrShadowEntityType, "")
	}
	if pb.IsShadowProperty() {
		return nil, accessErr(pb, ErrNoGetter, "shadow property has no go member")
	}
	member, err := ResolveMember(pb, false, false)
	if err != nil {
		return nil, err
	}
	get, err := bindGetter(ti, member)
	if err != nil {
		return nil, accessErr(pb, ErrNoGetter, "%v", err)
	}
	return &ClrGetter{
		member:   member,
		typeInfo: ti,
		get:      get,
		isZero:   zeroCheck(member.Type()),
	}, nil
}

func compileSetter(pb PropertyBase) (*ClrSetter, error) {
	ti := pb.DeclaringEntityType().typeInfo
	if ti == nil {
		return nil, accessErr(pb, ErrShadowEntityType, "")
	}
	if pb.IsShadowProperty() {
		return nil, accessErr(pb, ErrNoSetter, "shadow property has no go member")
	}
	member, err := ResolveMember(pb, false, true)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, accessErr(pb, ErrNoSetter, "")
	}
	set, err := bindSetter(ti, member)
	if err != nil {
		return nil, accessErr(pb, ErrNoSetter, "%v", err)
	}
	return &ClrSetter{member: member, typeInfo: ti, set: set}, nil
}

// bindGetter adapts the getter of member to take the address of a ti instance
func bindGetter(ti *members.TypeInfo, member members.MemberInfo) (func(unsafe.Pointer) any, error) {
	var get func(unsafe.Pointer) any
	switch m := member.(type) {
	case *members.PropertyInfo:
		get = m.Getter()
	case *members.FieldInfo:
		get = m.Getter()
	}
	if get == nil {
		return nil, fmt.Errorf("%s cannot be read", member.Name())
	}
	offset, ok := ti.OffsetOf(member.DeclaringType())
	if !ok {
		return nil, fmt.Errorf("%w: %s is declared on %s", members.ErrInstanceType, member.Name(), member.DeclaringType())
	}
	if offset == 0 {
		return get, nil
	}
	return func(p unsafe.Pointer) any { return get(unsafe.Add(p, offset)) }, nil
}

// bindSetter adapts the setter of member to take the address of a ti instance
func bindSetter(ti *members.TypeInfo, member members.MemberInfo) (func(unsafe.Pointer, any) error, error) {
	if !canAssign(member) {
		return nil, fmt.Errorf("%s cannot be written", member.Name())
	}
	var set func(unsafe.Pointer, any) error
	switch m := member.(type) {
	case *members.PropertyInfo:
		set = m.Setter()
	case *members.FieldInfo:
		set = m.Setter()
	}
	offset, ok := ti.OffsetOf(member.DeclaringType())
	if !ok {
		return nil, fmt.Errorf("%w: %s is declared on %s", members.ErrInstanceType, member.Name(), member.DeclaringType())
	}
	if offset == 0 {
		return set, nil
	}
	return func(p unsafe.Pointer, v any) error { return set(unsafe.Add(p, offset), v) }, nil
}

// canAssign reports whether the mapper may write through member. Read-only
// fields are readable backing members only.
func canAssign(member members.MemberInfo) bool {
	switch m := member.(type) {
	case *members.PropertyInfo:
		return m.CanWrite()
	case *members.FieldInfo:
		return !m.IsReadOnly()
	}
	return false
}

// zeroCheck returns a predicate reporting whether a value of type t is the
// zero value. Scalar kinds compare against a precomputed zero.
func zeroCheck(t reflect.Type) func(any) bool {
	switch t.Kind() {
	case reflect.Struct, reflect.Array, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
	default:
		zero := reflect.Zero(t).Interface()
		return func(v any) bool { return v == nil || v == zero }
	}
	return func(v any) bool {
		if v == nil {
			return true
		}
		return reflect.ValueOf(v).IsZero()
	}
}
