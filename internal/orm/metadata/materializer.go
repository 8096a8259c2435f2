package metadata

import (
	"strconv"
	"strings"
	"unsafe"

	"go.uber.org/zap"
)

// ValueBuffer is a row of values read by position
type ValueBuffer interface {
	Len() int
	Value(index int) any
}

// Values is a ValueBuffer over a slice
type Values []any

// Len returns the number of values
func (v Values) Len() int { return len(v) }

// Value returns the value at index
func (v Values) Value(index int) any { return v[index] }

// Materializer builds a new entity instance from a value buffer
type Materializer func(ValueBuffer) (any, error)

// MaterializerFor returns the materializer of et. Each property is read at
// its ordinal Index; indexMap, when not nil, remaps that position to the
// buffer position and a negative entry skips the property. Materializers are
// cached per entity type and per distinct index map.
func MaterializerFor(et *EntityType, indexMap []int) (Materializer, error) {
	if indexMap == nil {
		return et.materializer.EnsureInitializedErr(func() (Materializer, error) {
			return compileMaterializer(et, nil)
		})
	}

	key := indexMapKey(indexMap)
	remapped := et.remapped
	if cached, ok := remapped.Load(key); ok {
		return cached.(Materializer), nil
	}
	m, err := compileMaterializer(et, append([]int(nil), indexMap...))
	if err != nil {
		return nil, err
	}
	actual, _ := remapped.LoadOrStore(key, m)
	return actual.(Materializer), nil
}

type memberAssignment struct {
	property    *Property
	bufferIndex int
	set         func(unsafe.Pointer, any) error
}

func compileMaterializer(et *EntityType, indexMap []int) (Materializer, error) {
	ti := et.typeInfo
	if ti == nil {
		return nil, &AccessError{EntityType: et.name, Err: ErrShadowEntityType}
	}
	if ti.IsAbstract() {
		return nil, &AccessError{EntityType: et.name, Err: ErrCannotMaterializeAbstractType}
	}
	construct := ti.Constructor()
	if construct == nil {
		return nil, &AccessError{EntityType: et.name, Err: ErrNoParameterlessConstructor}
	}

	var assignments []memberAssignment
	for _, p := range et.properties {
		if p.IsShadowProperty() {
			continue
		}
		bufferIndex := p.PropertyIndexes().Index
		if indexMap != nil {
			if bufferIndex >= len(indexMap) {
				continue
			}
			bufferIndex = indexMap[bufferIndex]
		}
		if bufferIndex < 0 {
			continue
		}

		member, err := ResolveMember(p, true, true)
		if err != nil {
			return nil, err
		}
		set, err := bindSetter(ti, member)
		if err != nil {
			return nil, accessErr(p, ErrNoFieldOrSetter, "%v", err)
		}
		assignments = append(assignments, memberAssignment{property: p, bufferIndex: bufferIndex, set: set})
	}

	et.logger().Debug("materializer compiled",
		zap.String("entity_type", et.name),
		zap.Int("assignments", len(assignments)),
		zap.Bool("remapped", indexMap != nil))

	name := et.name
	return func(buffer ValueBuffer) (any, error) {
		instance := construct()
		p, err := ti.Pointer(instance)
		if err != nil {
			return nil, &AccessError{EntityType: name, Err: ErrNoParameterlessConstructor, Detail: err.Error()}
		}
		n := buffer.Len()
		for _, a := range assignments {
			if a.bufferIndex >= n {
				return nil, &AccessError{EntityType: name, Member: a.property.name, Err: ErrValueBufferTooShort,
					Detail: "index " + strconv.Itoa(a.bufferIndex) + " of " + strconv.Itoa(n)}
			}
			if err := a.set(p, buffer.Value(a.bufferIndex)); err != nil {
				return nil, err
			}
		}
		return instance, nil
	}, nil
}

func indexMapKey(indexMap []int) string {
	var b strings.Builder
	for i, idx := range indexMap {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}
