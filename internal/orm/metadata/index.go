package metadata

// Index is an ordered set of properties used for lookups, optionally unique
type Index struct {
	Annotatable

	properties     []*Property
	declaringType  *EntityType
	source         ConfigurationSource
	isUnique       bool
	isUniqueSource ConfigurationSource
}

func newIndex(et *EntityType, props []*Property, source ConfigurationSource) *Index {
	idx := &Index{
		properties:    append([]*Property(nil), props...),
		declaringType: et,
		source:        source,
	}
	idx.Annotatable.init(et.model, nil)
	return idx
}

// Properties returns the index properties in order
func (idx *Index) Properties() []*Property { return append([]*Property(nil), idx.properties...) }

// DeclaringEntityType returns the entity type that declares the index
func (idx *Index) DeclaringEntityType() *EntityType { return idx.declaringType }

// ConfigurationSource returns the source that added the index
func (idx *Index) ConfigurationSource() ConfigurationSource { return idx.source }

// IsUnique reports whether the index enforces uniqueness
func (idx *Index) IsUnique() bool { return idx.isUnique }

// SetIsUnique configures uniqueness
func (idx *Index) SetIsUnique(unique bool, source ConfigurationSource) (bool, error) {
	if err := idx.declaringType.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(idx.isUniqueSource) {
		return false, nil
	}
	idx.isUnique = unique
	idx.isUniqueSource = MaxSource(idx.isUniqueSource, source)
	idx.source = MaxSource(idx.source, source)
	return true, nil
}

// String returns a description such as "Order {CustomerId} unique"
func (idx *Index) String() string {
	s := idx.declaringType.name + " {" + propertyNames(idx.properties) + "}"
	if idx.isUnique {
		s += " unique"
	}
	return s
}
