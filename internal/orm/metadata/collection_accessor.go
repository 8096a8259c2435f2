package metadata

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

// CollectionAccessor mutates the collection held by a collection navigation.
// Instances are pointers to the declaring entity struct.
type CollectionAccessor interface {
	// Add adds value unless already present and reports whether it was added
	Add(instance, value any) (bool, error)
	AddRange(instance any, values []any) error
	// Remove removes value and reports whether it was present
	Remove(instance, value any) (bool, error)
	Contains(instance, value any) (bool, error)
	// GetOrCreate returns the collection, creating and assigning an empty one if nil
	GetOrCreate(instance any) (any, error)
	// Create builds a new collection holding values without touching any instance
	Create(values []any) (any, error)
	CollectionType() reflect.Type
}

// CollectionAccessorFor returns the compiled collection accessor of nav,
// compiling it on first use
func CollectionAccessorFor(nav *Navigation) (CollectionAccessor, error) {
	return nav.collectionAccessor.EnsureInitializedErr(func() (CollectionAccessor, error) {
		return compileCollectionAccessor(nav)
	})
}

func compileCollectionAccessor(nav *Navigation) (CollectionAccessor, error) {
	if !nav.IsCollection() {
		return nil, accessErr(nav, ErrNotCollectionNavigation, "")
	}
	ti := nav.declaringType.typeInfo
	if ti == nil {
		return nil, accessErr(nav, ErrShadowEntityType, "")
	}

	getMember, err := ResolveMember(nav, false, false)
	if err != nil {
		return nil, err
	}
	get, err := bindGetter(ti, getMember)
	if err != nil {
		return nil, accessErr(nav, ErrNoGetter, "%v", err)
	}

	var set func(unsafe.Pointer, any) error
	setMember, err := ResolveMember(nav, false, true)
	if err != nil {
		return nil, err
	}
	if setMember != nil && !canAssign(setMember) {
		setMember = nil
	}
	if setMember != nil {
		if set, err = bindSetter(ti, setMember); err != nil {
			return nil, accessErr(nav, ErrNoSetter, "%v", err)
		}
	}

	typ := nav.clrType
	factory := nav.collectionFactory
	if factory == nil {
		factory = defaultCollectionFactory(typ)
	}

	acc := &collectionAccessor{
		nav:      nav,
		typeInfo: ti,
		typ:      typ,
		get:      get,
		set:      set,
		factory:  factory,
	}
	if typ.Kind() == reflect.Slice {
		acc.ops = sliceOps{elem: typ.Elem()}
	} else {
		acc.ops = collectionOps{}
	}
	return acc, nil
}

// defaultCollectionFactory returns a factory for slices and for pointers to
// struct types implementing members.Collection, or nil
func defaultCollectionFactory(typ reflect.Type) func() any {
	switch {
	case typ.Kind() == reflect.Slice:
		return func() any { return reflect.MakeSlice(typ, 0, 0).Interface() }
	case typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct:
		return func() any { return reflect.New(typ.Elem()).Interface() }
	default:
		return nil
	}
}

type collectionAccessor struct {
	nav      *Navigation
	typeInfo *members.TypeInfo
	typ      reflect.Type
	get      func(unsafe.Pointer) any
	set      func(unsafe.Pointer, any) error
	factory  func() any
	ops      collectionMutator
}

// collectionMutator performs the element operations of one collection shape.
// Operations return the collection to store back, which differs from the
// input only for slices.
type collectionMutator interface {
	contains(coll, item any) bool
	add(coll, item any) (any, bool, error)
	remove(coll, item any) (any, bool)
}

func (a *collectionAccessor) CollectionType() reflect.Type { return a.typ }

func (a *collectionAccessor) Add(instance, value any) (bool, error) {
	p, err := a.typeInfo.Pointer(instance)
	if err != nil {
		return false, err
	}
	coll, err := a.getOrCreate(p)
	if err != nil {
		return false, err
	}
	updated, added, err := a.ops.add(coll, value)
	if err != nil || !added {
		return false, err
	}
	return true, a.storeBack(p, updated)
}

func (a *collectionAccessor) AddRange(instance any, values []any) error {
	for _, v := range values {
		if _, err := a.Add(instance, v); err != nil {
			return err
		}
	}
	return nil
}

func (a *collectionAccessor) Remove(instance, value any) (bool, error) {
	p, err := a.typeInfo.Pointer(instance)
	if err != nil {
		return false, err
	}
	coll := a.get(p)
	if isNilValue(coll) {
		return false, nil
	}
	updated, removed := a.ops.remove(coll, value)
	if !removed {
		return false, nil
	}
	return true, a.storeBack(p, updated)
}

func (a *collectionAccessor) Contains(instance, value any) (bool, error) {
	p, err := a.typeInfo.Pointer(instance)
	if err != nil {
		return false, err
	}
	coll := a.get(p)
	if isNilValue(coll) {
		return false, nil
	}
	return a.ops.contains(coll, value), nil
}

func (a *collectionAccessor) GetOrCreate(instance any) (any, error) {
	p, err := a.typeInfo.Pointer(instance)
	if err != nil {
		return nil, err
	}
	return a.getOrCreate(p)
}

func (a *collectionAccessor) Create(values []any) (any, error) {
	coll, err := a.create()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		updated, _, err := a.ops.add(coll, v)
		if err != nil {
			return nil, err
		}
		coll = updated
	}
	return coll, nil
}

func (a *collectionAccessor) getOrCreate(p unsafe.Pointer) (any, error) {
	if coll := a.get(p); !isNilValue(coll) {
		return coll, nil
	}
	if a.set == nil {
		return nil, accessErr(a.nav, ErrNoSetterForNavigation, "")
	}
	coll, err := a.create()
	if err != nil {
		return nil, err
	}
	if err := a.set(p, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

func (a *collectionAccessor) create() (any, error) {
	if a.factory == nil {
		return nil, accessErr(a.nav, ErrCannotCreateCollectionType, "%v", a.typ)
	}
	coll := a.factory()
	if coll == nil || !reflect.TypeOf(coll).AssignableTo(a.typ) {
		return nil, accessErr(a.nav, ErrCannotCreateCollectionType, "factory returned %T for %v", coll, a.typ)
	}
	return coll, nil
}

// storeBack writes a reallocated slice back to the instance
func (a *collectionAccessor) storeBack(p unsafe.Pointer, updated any) error {
	if a.typ.Kind() != reflect.Slice {
		return nil
	}
	if a.set == nil {
		return accessErr(a.nav, ErrNoSetterForNavigation, "")
	}
	return a.set(p, updated)
}

type collectionOps struct{}

func (collectionOps) contains(coll, item any) bool {
	return coll.(members.Collection).Contains(item)
}

func (collectionOps) add(coll, item any) (any, bool, error) {
	c, ok := coll.(members.Collection)
	if !ok {
		return coll, false, fmt.Errorf("%w: %T does not implement the collection contract", members.ErrValueType, coll)
	}
	if c.Contains(item) {
		return coll, false, nil
	}
	return coll, c.Add(item), nil
}

func (collectionOps) remove(coll, item any) (any, bool) {
	return coll, coll.(members.Collection).Remove(item)
}

type sliceOps struct {
	elem reflect.Type
}

func (o sliceOps) contains(coll, item any) bool {
	return o.indexOf(reflect.ValueOf(coll), item) >= 0
}

func (o sliceOps) add(coll, item any) (any, bool, error) {
	s := reflect.ValueOf(coll)
	if o.indexOf(s, item) >= 0 {
		return coll, false, nil
	}
	v, err := o.value(item)
	if err != nil {
		return coll, false, err
	}
	return reflect.Append(s, v).Interface(), true, nil
}

func (o sliceOps) remove(coll, item any) (any, bool) {
	s := reflect.ValueOf(coll)
	i := o.indexOf(s, item)
	if i < 0 {
		return coll, false
	}
	out := reflect.MakeSlice(s.Type(), 0, s.Len()-1)
	out = reflect.AppendSlice(out, s.Slice(0, i))
	out = reflect.AppendSlice(out, s.Slice(i+1, s.Len()))
	return out.Interface(), true
}

func (o sliceOps) indexOf(s reflect.Value, item any) int {
	for i := 0; i < s.Len(); i++ {
		if sameElement(s.Index(i).Interface(), item) {
			return i
		}
	}
	return -1
}

func (o sliceOps) value(item any) (reflect.Value, error) {
	if item == nil {
		return reflect.Zero(o.elem), nil
	}
	v := reflect.ValueOf(item)
	if !v.Type().AssignableTo(o.elem) {
		return reflect.Value{}, fmt.Errorf("%w: cannot add %T to a collection of %v", members.ErrValueType, item, o.elem)
	}
	return v, nil
}

func sameElement(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
