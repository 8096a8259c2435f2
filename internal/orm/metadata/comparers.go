package metadata

import "cmp"

// ComparePropertyLists orders property lists by length, then by property
// names position by position
func ComparePropertyLists(a, b []*Property) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	for i := range a {
		if c := cmp.Compare(a[i].name, b[i].name); c != 0 {
			return c
		}
	}
	return 0
}

// CompareKeys orders keys by properties, then by declaring entity type name
func CompareKeys(a, b *Key) int {
	if c := ComparePropertyLists(a.properties, b.properties); c != 0 {
		return c
	}
	return cmp.Compare(a.declaringType.name, b.declaringType.name)
}

// CompareForeignKeys orders foreign keys by dependent properties, principal
// key properties, principal entity type and declaring entity type
func CompareForeignKeys(a, b *ForeignKey) int {
	if c := ComparePropertyLists(a.properties, b.properties); c != 0 {
		return c
	}
	if c := ComparePropertyLists(a.principalKey.properties, b.principalKey.properties); c != 0 {
		return c
	}
	if c := cmp.Compare(a.principalType.name, b.principalType.name); c != 0 {
		return c
	}
	return cmp.Compare(a.declaringType.name, b.declaringType.name)
}

// CompareIndexes orders indexes by properties, then by declaring entity type name
func CompareIndexes(a, b *Index) int {
	if c := ComparePropertyLists(a.properties, b.properties); c != 0 {
		return c
	}
	return cmp.Compare(a.declaringType.name, b.declaringType.name)
}
