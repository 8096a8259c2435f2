package metadata

// PropertyIndexes are the slots a member occupies in the change tracker's
// snapshot structures. -1 means the slot kind does not apply and the live
// value is read from the entity instead.
type PropertyIndexes struct {
	// Index is the position among declared properties, or among declared
	// navigations for a navigation. Value buffers are read at this position.
	Index                int
	OriginalValueIndex   int
	ShadowIndex          int
	RelationshipIndex    int
	StoreGenerationIndex int
}

var noIndexes = PropertyIndexes{
	Index:                -1,
	OriginalValueIndex:   -1,
	ShadowIndex:          -1,
	RelationshipIndex:    -1,
	StoreGenerationIndex: -1,
}

// PropertyCounts are the sizes of the snapshot structures of an entity type
type PropertyCounts struct {
	PropertyCount       int
	NavigationCount     int
	OriginalValueCount  int
	ShadowCount         int
	RelationshipCount   int
	StoreGeneratedCount int
}

type indexTable struct {
	byName map[string]PropertyIndexes
	counts PropertyCounts
}

func (et *EntityType) slotTable() *indexTable {
	return et.slots.EnsureInitialized(et.calculateIndexes)
}

// calculateIndexes assigns slots over the properties then the navigations,
// both in name order. Each slot kind has its own counter.
func (et *EntityType) calculateIndexes() *indexTable {
	table := &indexTable{byName: make(map[string]PropertyIndexes, len(et.properties)+len(et.navigations))}
	var index, originalValueIndex, shadowIndex, relationshipIndex, storeGenerationIndex int

	next := func(counter *int, applies bool) int {
		if !applies {
			return -1
		}
		i := *counter
		*counter++
		return i
	}

	for _, p := range et.properties {
		table.byName[p.name] = PropertyIndexes{
			Index:                next(&index, true),
			OriginalValueIndex:   next(&originalValueIndex, p.RequiresOriginalValue()),
			ShadowIndex:          next(&shadowIndex, p.IsShadowProperty()),
			RelationshipIndex:    next(&relationshipIndex, p.IsKeyOrForeignKey()),
			StoreGenerationIndex: next(&storeGenerationIndex, p.MayBeStoreGenerated()),
		}
	}

	isNotifying := et.ChangeTrackingStrategy() != Snapshot
	var navigationIndex int
	for _, nav := range et.navigations {
		table.byName[nav.name] = PropertyIndexes{
			Index:                next(&navigationIndex, true),
			OriginalValueIndex:   -1,
			ShadowIndex:          -1,
			RelationshipIndex:    next(&relationshipIndex, !(nav.IsCollection() && isNotifying)),
			StoreGenerationIndex: -1,
		}
	}

	table.counts = PropertyCounts{
		PropertyCount:       index,
		NavigationCount:     navigationIndex,
		OriginalValueCount:  originalValueIndex,
		ShadowCount:         shadowIndex,
		RelationshipCount:   relationshipIndex,
		StoreGeneratedCount: storeGenerationIndex,
	}
	return table
}
