package metadata

import (
	"reflect"

	"go.uber.org/zap"
)

// Property is a scalar mapped member of an entity type
type Property struct {
	propertyBase

	source ConfigurationSource

	nullable       *bool
	nullableSource ConfigurationSource

	valueGenerated       ValueGenerated
	valueGeneratedSource ConfigurationSource

	concurrencyToken       bool
	concurrencyTokenSource ConfigurationSource

	readOnlyBeforeSave       *bool
	readOnlyBeforeSaveSource ConfigurationSource
	readOnlyAfterSave        *bool
	readOnlyAfterSaveSource  ConfigurationSource

	primaryKey  *Key
	keys        []*Key
	foreignKeys []*ForeignKey
	indexes     []*Index
}

func newProperty(et *EntityType, name string, typ reflect.Type, source ConfigurationSource) *Property {
	p := &Property{source: source}
	p.initBase(et, name, typ)
	return p
}

// Kind returns KindScalar
func (p *Property) Kind() PropertyKind { return KindScalar }

// ConfigurationSource returns the source that added the property
func (p *Property) ConfigurationSource() ConfigurationSource { return p.source }

// UpdateConfigurationSource raises the property source
func (p *Property) UpdateConfigurationSource(source ConfigurationSource) {
	p.source = MaxSource(p.source, source)
}

// String returns the qualified property name
func (p *Property) String() string {
	return p.declaringType.name + "." + p.name
}

// IsNullable reports whether the property accepts nil. Unless configured, a
// property is nullable when its Go type can hold nil and it is not in a key.
func (p *Property) IsNullable() bool {
	if p.nullable != nil {
		return *p.nullable
	}
	return !p.IsKey() && canBeNil(p.clrType)
}

// IsNullableConfigurationSource returns the source that set nullability
func (p *Property) IsNullableConfigurationSource() ConfigurationSource { return p.nullableSource }

// SetIsNullable configures nullability. Making a key property nullable, or a
// property whose Go type cannot hold nil, fails and leaves the property unchanged.
func (p *Property) SetIsNullable(nullable bool, source ConfigurationSource) (bool, error) {
	et := p.declaringType
	if err := et.checkMutable(); err != nil {
		return false, err
	}
	if nullable {
		if p.IsKey() {
			return false, configErr(et, p.name, ErrNullableKey, "")
		}
		if !canBeNil(p.clrType) {
			return false, configErr(et, p.name, ErrCannotBeNullable, "%v", p.clrType)
		}
	}
	if !source.Overrides(p.nullableSource) {
		p.rejected("nullable", source, p.nullableSource)
		return false, nil
	}
	p.nullable = &nullable
	p.nullableSource = MaxSource(p.nullableSource, source)
	p.UpdateConfigurationSource(source)
	p.propertyMetadataChanged()
	return true, nil
}

// ValueGenerated returns when the store may generate the value
func (p *Property) ValueGenerated() ValueGenerated { return p.valueGenerated }

// ValueGeneratedConfigurationSource returns the source that set value generation
func (p *Property) ValueGeneratedConfigurationSource() ConfigurationSource {
	return p.valueGeneratedSource
}

// SetValueGenerated configures when the store may generate the value
func (p *Property) SetValueGenerated(valueGenerated ValueGenerated, source ConfigurationSource) (bool, error) {
	if err := p.declaringType.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(p.valueGeneratedSource) {
		p.rejected("value_generated", source, p.valueGeneratedSource)
		return false, nil
	}
	p.valueGenerated = valueGenerated
	p.valueGeneratedSource = MaxSource(p.valueGeneratedSource, source)
	p.UpdateConfigurationSource(source)
	p.propertyMetadataChanged()
	return true, nil
}

// IsConcurrencyToken reports whether the property is checked on update
func (p *Property) IsConcurrencyToken() bool { return p.concurrencyToken }

// SetIsConcurrencyToken configures the property as a concurrency token
func (p *Property) SetIsConcurrencyToken(token bool, source ConfigurationSource) (bool, error) {
	if err := p.declaringType.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(p.concurrencyTokenSource) {
		p.rejected("concurrency_token", source, p.concurrencyTokenSource)
		return false, nil
	}
	p.concurrencyToken = token
	p.concurrencyTokenSource = MaxSource(p.concurrencyTokenSource, source)
	p.UpdateConfigurationSource(source)
	p.propertyMetadataChanged()
	return true, nil
}

// IsReadOnlyBeforeSave reports whether a value set by the application is
// ignored on insert. Defaults to true for values generated on add or update.
func (p *Property) IsReadOnlyBeforeSave() bool {
	if p.readOnlyBeforeSave != nil {
		return *p.readOnlyBeforeSave
	}
	return p.valueGenerated == ValueGeneratedOnAddOrUpdate
}

// SetIsReadOnlyBeforeSave configures IsReadOnlyBeforeSave
func (p *Property) SetIsReadOnlyBeforeSave(readOnly bool, source ConfigurationSource) (bool, error) {
	if err := p.declaringType.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(p.readOnlyBeforeSaveSource) {
		p.rejected("read_only_before_save", source, p.readOnlyBeforeSaveSource)
		return false, nil
	}
	p.readOnlyBeforeSave = &readOnly
	p.readOnlyBeforeSaveSource = MaxSource(p.readOnlyBeforeSaveSource, source)
	p.UpdateConfigurationSource(source)
	return true, nil
}

// IsReadOnlyAfterSave reports whether the value may not change once saved.
// Defaults to true for key properties and values generated on add or update.
func (p *Property) IsReadOnlyAfterSave() bool {
	if p.readOnlyAfterSave != nil {
		return *p.readOnlyAfterSave
	}
	return p.IsKey() || p.valueGenerated == ValueGeneratedOnAddOrUpdate
}

// SetIsReadOnlyAfterSave configures IsReadOnlyAfterSave. A key property must
// stay read-only after save.
func (p *Property) SetIsReadOnlyAfterSave(readOnly bool, source ConfigurationSource) (bool, error) {
	et := p.declaringType
	if err := et.checkMutable(); err != nil {
		return false, err
	}
	if !readOnly && p.IsKey() {
		return false, configErr(et, p.name, ErrKeyReadOnly, "")
	}
	if !source.Overrides(p.readOnlyAfterSaveSource) {
		p.rejected("read_only_after_save", source, p.readOnlyAfterSaveSource)
		return false, nil
	}
	p.readOnlyAfterSave = &readOnly
	p.readOnlyAfterSaveSource = MaxSource(p.readOnlyAfterSaveSource, source)
	p.UpdateConfigurationSource(source)
	return true, nil
}

// MaxLength returns the configured maximum length
func (p *Property) MaxLength() (int, bool) {
	ann := p.FindAnnotation(AnnotationMaxLength)
	if ann == nil {
		return 0, false
	}
	n, ok := ann.value.(int)
	return n, ok
}

// SetMaxLength configures the maximum length. A negative length removes it.
func (p *Property) SetMaxLength(maxLength int, source ConfigurationSource) bool {
	if maxLength < 0 {
		return p.SetAnnotation(AnnotationMaxLength, nil, source)
	}
	return p.SetAnnotation(AnnotationMaxLength, maxLength, source)
}

// ColumnName returns the configured column name, or the property name
func (p *Property) ColumnName() string {
	if ann := p.FindAnnotation(AnnotationColumnName); ann != nil {
		if name, ok := ann.value.(string); ok && name != "" {
			return name
		}
	}
	return p.name
}

// SetColumnName configures the column name. An empty name removes it.
func (p *Property) SetColumnName(name string, source ConfigurationSource) bool {
	if name == "" {
		return p.SetAnnotation(AnnotationColumnName, nil, source)
	}
	return p.SetAnnotation(AnnotationColumnName, name, source)
}

// IsKey reports whether the property is part of any key
func (p *Property) IsKey() bool { return len(p.keys) > 0 }

// IsPrimaryKey reports whether the property is part of the primary key
func (p *Property) IsPrimaryKey() bool { return p.primaryKey != nil }

// IsForeignKey reports whether the property is part of any foreign key
func (p *Property) IsForeignKey() bool { return len(p.foreignKeys) > 0 }

// IsIndex reports whether the property is part of any index
func (p *Property) IsIndex() bool { return len(p.indexes) > 0 }

// IsKeyOrForeignKey reports whether the property takes part in a relationship
func (p *Property) IsKeyOrForeignKey() bool { return p.IsKey() || p.IsForeignKey() }

// FindPrimaryKey returns the primary key containing the property, or nil
func (p *Property) FindPrimaryKey() *Key { return p.primaryKey }

// Keys returns the keys containing the property
func (p *Property) Keys() []*Key { return append([]*Key(nil), p.keys...) }

// ForeignKeys returns the foreign keys containing the property
func (p *Property) ForeignKeys() []*ForeignKey { return append([]*ForeignKey(nil), p.foreignKeys...) }

// Indexes returns the indexes containing the property
func (p *Property) Indexes() []*Index { return append([]*Index(nil), p.indexes...) }

// RequiresOriginalValue reports whether the change tracker must snapshot the
// original value of the property
func (p *Property) RequiresOriginalValue() bool {
	return p.declaringType.ChangeTrackingStrategy() != ChangingAndChangedNotifications ||
		p.concurrencyToken ||
		p.IsKey() ||
		p.IsForeignKey()
}

// MayBeStoreGenerated reports whether the store may overwrite the value
func (p *Property) MayBeStoreGenerated() bool {
	return p.valueGenerated != ValueGeneratedNever
}

func (p *Property) propertyMetadataChanged() {
	p.declaringType.resetCaches()
}

func (p *Property) rejected(setting string, source, existing ConfigurationSource) {
	p.declaringType.logger().Debug("property configuration rejected",
		zap.String("property", p.String()),
		zap.String("setting", setting),
		zap.Stringer("source", source),
		zap.Stringer("existing_source", existing))
}

func canBeNil(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}
