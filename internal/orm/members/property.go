package members

import (
	"fmt"
	"reflect"
	"unsafe"
)

// PropertyInfo is a registered accessor pair. Either half may be missing.
type PropertyInfo struct {
	name          string
	typ           reflect.Type
	declaringType *TypeInfo
	get           func(unsafe.Pointer) any
	set           func(unsafe.Pointer, any) error
}

func (*PropertyInfo) isMember() {}

// Name returns the property name
func (p *PropertyInfo) Name() string { return p.name }

// Type returns the property value type
func (p *PropertyInfo) Type() reflect.Type { return p.typ }

// DeclaringType returns the type the property was registered on
func (p *PropertyInfo) DeclaringType() *TypeInfo { return p.declaringType }

// CanRead reports whether the property has a getter
func (p *PropertyInfo) CanRead() bool { return p.get != nil }

// CanWrite reports whether the property has a setter
func (p *PropertyInfo) CanWrite() bool { return p.set != nil }

// Getter returns the compiled getter taking the address of the declaring struct
func (p *PropertyInfo) Getter() func(unsafe.Pointer) any { return p.get }

// Setter returns the compiled setter taking the address of the declaring struct
func (p *PropertyInfo) Setter() func(unsafe.Pointer, any) error { return p.set }

// FindGetterProperty returns p if it can be read, otherwise the nearest
// same-named readable property up the base chain.
func (p *PropertyInfo) FindGetterProperty() *PropertyInfo {
	return p.walk(func(c *PropertyInfo) bool { return c.get != nil })
}

// FindSetterProperty returns p if it can be written, otherwise the nearest
// same-named writable property up the base chain.
func (p *PropertyInfo) FindSetterProperty() *PropertyInfo {
	return p.walk(func(c *PropertyInfo) bool { return c.set != nil })
}

func (p *PropertyInfo) walk(match func(*PropertyInfo) bool) *PropertyInfo {
	if match(p) {
		return p
	}
	for t := p.declaringType.base; t != nil; t = t.base {
		if c, ok := t.propertiesByName[p.name]; ok && c.typ == p.typ && match(c) {
			return c
		}
	}
	return nil
}

// AddProperty registers an accessor pair named name on ti, which must describe T.
// Either get or set may be nil, but not both.
func AddProperty[T, V any](ti *TypeInfo, name string, get func(*T) V, set func(*T, V)) (*PropertyInfo, error) {
	if ti.typ != typeOf[T]() {
		return nil, fmt.Errorf("%w: %s is registered for %v, not %v", ErrInstanceType, name, ti.typ, typeOf[T]())
	}
	if get == nil && set == nil {
		return nil, fmt.Errorf("%w: %s.%s has neither getter nor setter", ErrInvalidProperty, ti.name, name)
	}
	if _, exists := ti.propertiesByName[name]; exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, ti.name, name)
	}

	p := &PropertyInfo{
		name:          name,
		typ:           typeOf[V](),
		declaringType: ti,
	}
	if get != nil {
		p.get = func(ptr unsafe.Pointer) any {
			return get((*T)(ptr))
		}
	}
	if set != nil {
		valueType := p.typ
		p.set = func(ptr unsafe.Pointer, v any) error {
			val, ok := v.(V)
			if !ok {
				if v != nil {
					return valueTypeError(name, valueType, v)
				}
				var zero V
				val = zero
			}
			set((*T)(ptr), val)
			return nil
		}
	}

	ti.properties = append(ti.properties, p)
	ti.propertiesByName[name] = p
	return p, nil
}

// MustAddProperty is AddProperty for package-level registrations; it panics on error
func MustAddProperty[T, V any](ti *TypeInfo, name string, get func(*T) V, set func(*T, V)) *PropertyInfo {
	p, err := AddProperty(ti, name, get, set)
	if err != nil {
		panic(err)
	}
	return p
}
