package metadata

// InternalEntry is the change tracker's view of one tracked entity, read
// through the slots assigned by the slot allocator
type InternalEntry interface {
	// Entity returns the tracked instance, a pointer to the entity struct
	Entity() any
	ReadShadowValue(shadowIndex int) any
	ReadOriginalValue(p *Property, originalValueIndex int) any
	ReadRelationshipSnapshotValue(pb PropertyBase, relationshipIndex int) any
	// ReadStoreGeneratedValue returns a value generated by the store, if any
	ReadStoreGeneratedValue(storeGenerationIndex int) (any, bool)
}

// EntryGetter reads one member value through an entry
type EntryGetter func(InternalEntry) (any, error)

// PropertyAccessors are the compiled readers of one member. Getters that do
// not apply to the member are nil.
type PropertyAccessors struct {
	CurrentValueGetter                  EntryGetter
	PreStoreGeneratedCurrentValueGetter EntryGetter
	OriginalValueGetter                 EntryGetter
	RelationshipSnapshotGetter          EntryGetter
	ValueBufferGetter                   func(ValueBuffer) any
}

// AccessorsFor returns the compiled accessors of pb, compiling them on first use
func AccessorsFor(pb PropertyBase) (*PropertyAccessors, error) {
	return pb.base().accessors.EnsureInitializedErr(func() (*PropertyAccessors, error) {
		return compileAccessors(pb)
	})
}

func compileAccessors(pb PropertyBase) (*PropertyAccessors, error) {
	indexes := pb.PropertyIndexes()

	current, err := currentValueGetter(pb, indexes)
	if err != nil {
		return nil, err
	}

	acc := &PropertyAccessors{
		PreStoreGeneratedCurrentValueGetter: current,
		CurrentValueGetter:                  current,
		RelationshipSnapshotGetter:          current,
	}

	if storeIndex := indexes.StoreGenerationIndex; storeIndex >= 0 {
		isZero := zeroCheck(pb.ClrType())
		acc.CurrentValueGetter = func(entry InternalEntry) (any, error) {
			v, err := current(entry)
			if err != nil || !isZero(v) {
				return v, err
			}
			if generated, ok := entry.ReadStoreGeneratedValue(storeIndex); ok {
				return generated, nil
			}
			return v, nil
		}
	}

	if relationshipIndex := indexes.RelationshipIndex; relationshipIndex >= 0 {
		acc.RelationshipSnapshotGetter = func(entry InternalEntry) (any, error) {
			return entry.ReadRelationshipSnapshotValue(pb, relationshipIndex), nil
		}
	}

	if p, ok := pb.(*Property); ok {
		acc.OriginalValueGetter = originalValueGetter(p, indexes.OriginalValueIndex)
		if index := indexes.Index; index >= 0 {
			acc.ValueBufferGetter = func(buffer ValueBuffer) any { return buffer.Value(index) }
		}
	}
	return acc, nil
}

func currentValueGetter(pb PropertyBase, indexes PropertyIndexes) (EntryGetter, error) {
	if pb.IsShadowProperty() {
		shadowIndex := indexes.ShadowIndex
		return func(entry InternalEntry) (any, error) {
			return entry.ReadShadowValue(shadowIndex), nil
		}, nil
	}
	getter, err := GetterFor(pb)
	if err != nil {
		return nil, err
	}
	return func(entry InternalEntry) (any, error) {
		return getter.GetClrValue(entry.Entity())
	}, nil
}

func originalValueGetter(p *Property, originalValueIndex int) EntryGetter {
	if originalValueIndex < 0 {
		return func(InternalEntry) (any, error) {
			return nil, accessErr(p, ErrOriginalValueNotTracked, "")
		}
	}
	return func(entry InternalEntry) (any, error) {
		return entry.ReadOriginalValue(p, originalValueIndex), nil
	}
}
