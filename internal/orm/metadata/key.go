package metadata

import "strings"

// Key is a set of properties that uniquely identifies an entity
type Key struct {
	Annotatable

	properties             []*Property
	declaringType          *EntityType
	source                 ConfigurationSource
	referencingForeignKeys []*ForeignKey
}

func newKey(et *EntityType, props []*Property, source ConfigurationSource) *Key {
	k := &Key{
		properties:    append([]*Property(nil), props...),
		declaringType: et,
		source:        source,
	}
	k.Annotatable.init(et.model, nil)
	return k
}

// Properties returns the key properties in order
func (k *Key) Properties() []*Property { return append([]*Property(nil), k.properties...) }

// DeclaringEntityType returns the entity type that declares the key
func (k *Key) DeclaringEntityType() *EntityType { return k.declaringType }

// ConfigurationSource returns the source that added the key
func (k *Key) ConfigurationSource() ConfigurationSource { return k.source }

// UpdateConfigurationSource raises the key source
func (k *Key) UpdateConfigurationSource(source ConfigurationSource) {
	k.source = MaxSource(k.source, source)
}

// IsPrimaryKey reports whether k is the primary key of its entity type
func (k *Key) IsPrimaryKey() bool { return k.declaringType.primaryKey == k }

// ReferencingForeignKeys returns the foreign keys whose principal key is k
func (k *Key) ReferencingForeignKeys() []*ForeignKey {
	return append([]*ForeignKey(nil), k.referencingForeignKeys...)
}

// String returns a description such as "Order {Id} PK"
func (k *Key) String() string {
	var b strings.Builder
	b.WriteString(k.declaringType.name)
	b.WriteString(" {")
	b.WriteString(propertyNames(k.properties))
	b.WriteString("}")
	if k.IsPrimaryKey() {
		b.WriteString(" PK")
	}
	return b.String()
}
