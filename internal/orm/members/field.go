package members

import (
	"fmt"
	"reflect"
	"time"
	"unsafe"
)

// FieldInfo is a struct field at a fixed offset inside its declaring type
type FieldInfo struct {
	name          string
	typ           reflect.Type
	offset        uintptr
	readOnly      bool
	exported      bool
	tag           reflect.StructTag
	declaringType *TypeInfo
}

func (*FieldInfo) isMember() {}

// Name returns the field name
func (f *FieldInfo) Name() string { return f.name }

// Type returns the field type
func (f *FieldInfo) Type() reflect.Type { return f.typ }

// DeclaringType returns the registered type the offset is relative to
func (f *FieldInfo) DeclaringType() *TypeInfo { return f.declaringType }

// Offset returns the byte offset inside the declaring type
func (f *FieldInfo) Offset() uintptr { return f.offset }

// IsReadOnly reports whether the mapper must never assign the field
func (f *FieldInfo) IsReadOnly() bool { return f.readOnly }

// IsExported reports whether the field is exported
func (f *FieldInfo) IsExported() bool { return f.exported }

// Tag returns the struct tag
func (f *FieldInfo) Tag() reflect.StructTag { return f.tag }

// Getter compiles a reader for the field. The argument is the address of the
// declaring struct.
func (f *FieldInfo) Getter() func(unsafe.Pointer) any {
	if g := fastGetter(f.typ, f.offset); g != nil {
		return g
	}
	typ, off := f.typ, f.offset
	return func(p unsafe.Pointer) any {
		return reflect.NewAt(typ, unsafe.Add(p, off)).Elem().Interface()
	}
}

// Setter compiles a writer for the field. A nil value stores the zero value.
func (f *FieldInfo) Setter() func(unsafe.Pointer, any) error {
	if s := fastSetter(f.typ, f.name, f.offset); s != nil {
		return s
	}
	typ, off, name := f.typ, f.offset, f.name
	return func(p unsafe.Pointer, v any) error {
		dst := reflect.NewAt(typ, unsafe.Add(p, off)).Elem()
		if v == nil {
			dst.Set(reflect.Zero(typ))
			return nil
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(typ) {
			return valueTypeError(name, typ, v)
		}
		dst.Set(val)
		return nil
	}
}

func typeOf[V any]() reflect.Type {
	return reflect.TypeOf((*V)(nil)).Elem()
}

var (
	typeInt     = typeOf[int]()
	typeInt8    = typeOf[int8]()
	typeInt16   = typeOf[int16]()
	typeInt32   = typeOf[int32]()
	typeInt64   = typeOf[int64]()
	typeUint    = typeOf[uint]()
	typeUint8   = typeOf[uint8]()
	typeUint16  = typeOf[uint16]()
	typeUint32  = typeOf[uint32]()
	typeUint64  = typeOf[uint64]()
	typeFloat32 = typeOf[float32]()
	typeFloat64 = typeOf[float64]()
	typeString  = typeOf[string]()
	typeBool    = typeOf[bool]()
	typeBytes   = typeOf[[]byte]()
	typeTime    = typeOf[time.Time]()
	typeStrPtr  = typeOf[*string]()
	typeIntPtr  = typeOf[*int]()
)

func fastGetter(t reflect.Type, off uintptr) func(unsafe.Pointer) any {
	switch t {
	case typeInt:
		return typedGetter[int](off)
	case typeInt8:
		return typedGetter[int8](off)
	case typeInt16:
		return typedGetter[int16](off)
	case typeInt32:
		return typedGetter[int32](off)
	case typeInt64:
		return typedGetter[int64](off)
	case typeUint:
		return typedGetter[uint](off)
	case typeUint8:
		return typedGetter[uint8](off)
	case typeUint16:
		return typedGetter[uint16](off)
	case typeUint32:
		return typedGetter[uint32](off)
	case typeUint64:
		return typedGetter[uint64](off)
	case typeFloat32:
		return typedGetter[float32](off)
	case typeFloat64:
		return typedGetter[float64](off)
	case typeString:
		return typedGetter[string](off)
	case typeBool:
		return typedGetter[bool](off)
	case typeBytes:
		return typedGetter[[]byte](off)
	case typeTime:
		return typedGetter[time.Time](off)
	case typeStrPtr:
		return typedGetter[*string](off)
	case typeIntPtr:
		return typedGetter[*int](off)
	}
	return nil
}

func fastSetter(t reflect.Type, name string, off uintptr) func(unsafe.Pointer, any) error {
	switch t {
	case typeInt:
		return typedSetter[int](name, off)
	case typeInt8:
		return typedSetter[int8](name, off)
	case typeInt16:
		return typedSetter[int16](name, off)
	case typeInt32:
		return typedSetter[int32](name, off)
	case typeInt64:
		return typedSetter[int64](name, off)
	case typeUint:
		return typedSetter[uint](name, off)
	case typeUint8:
		return typedSetter[uint8](name, off)
	case typeUint16:
		return typedSetter[uint16](name, off)
	case typeUint32:
		return typedSetter[uint32](name, off)
	case typeUint64:
		return typedSetter[uint64](name, off)
	case typeFloat32:
		return typedSetter[float32](name, off)
	case typeFloat64:
		return typedSetter[float64](name, off)
	case typeString:
		return typedSetter[string](name, off)
	case typeBool:
		return typedSetter[bool](name, off)
	case typeBytes:
		return typedSetter[[]byte](name, off)
	case typeTime:
		return typedSetter[time.Time](name, off)
	case typeStrPtr:
		return typedSetter[*string](name, off)
	case typeIntPtr:
		return typedSetter[*int](name, off)
	}
	return nil
}

func typedGetter[V any](off uintptr) func(unsafe.Pointer) any {
	return func(p unsafe.Pointer) any {
		return *(*V)(unsafe.Add(p, off))
	}
}

func typedSetter[V any](name string, off uintptr) func(unsafe.Pointer, any) error {
	return func(p unsafe.Pointer, v any) error {
		dst := (*V)(unsafe.Add(p, off))
		if v == nil {
			var zero V
			*dst = zero
			return nil
		}
		val, ok := v.(V)
		if !ok {
			return valueTypeError(name, typeOf[V](), v)
		}
		*dst = val
		return nil
	}
}

func valueTypeError(member string, want reflect.Type, got any) error {
	return fmt.Errorf("%w: %s expects %v, got %T", ErrValueType, member, want, got)
}
