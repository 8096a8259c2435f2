package metadata

import (
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/orm/lazy"
	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

// EntityType is a mapped type. It is identified by name and, unless it is a
// shadow entity type, by its registered Go type.
type EntityType struct {
	Annotatable

	name     string
	typeInfo *members.TypeInfo
	model    *Model
	source   ConfigurationSource

	properties        []*Property
	propertiesByName  map[string]*Property
	navigations       []*Navigation
	navigationsByName map[string]*Navigation
	ignored           map[string]ConfigurationSource

	primaryKey             *Key
	primaryKeySource       ConfigurationSource
	keys                   []*Key
	foreignKeys            []*ForeignKey
	referencingForeignKeys []*ForeignKey
	indexes                []*Index

	changeTracking       ChangeTrackingStrategy
	changeTrackingSource ConfigurationSource

	slots        lazy.Value[*indexTable]
	materializer lazy.Value[Materializer]
	remapped     *sync.Map
}

func newEntityType(m *Model, name string, ti *members.TypeInfo, source ConfigurationSource) *EntityType {
	et := &EntityType{
		name:              name,
		typeInfo:          ti,
		model:             m,
		source:            source,
		propertiesByName:  make(map[string]*Property),
		navigationsByName: make(map[string]*Navigation),
		ignored:           make(map[string]ConfigurationSource),
		remapped:          &sync.Map{},
	}
	et.Annotatable.init(m, func(name string) {
		if name == AnnotationPropertyAccessMode {
			et.resetCaches()
		}
	})
	return et
}

// Name returns the entity type name
func (et *EntityType) Name() string { return et.name }

// TypeInfo returns the registered Go type, or nil for a shadow entity type
func (et *EntityType) TypeInfo() *members.TypeInfo { return et.typeInfo }

// ClrType returns the Go struct type, or nil for a shadow entity type
func (et *EntityType) ClrType() reflect.Type {
	if et.typeInfo == nil {
		return nil
	}
	return et.typeInfo.Type()
}

// HasClrType reports whether the entity type is backed by a Go type
func (et *EntityType) HasClrType() bool { return et.typeInfo != nil }

// Model returns the owning model, or nil once removed
func (et *EntityType) Model() *Model { return et.model }

// ConfigurationSource returns the source that added the entity type
func (et *EntityType) ConfigurationSource() ConfigurationSource { return et.source }

// UpdateConfigurationSource raises the entity type source
func (et *EntityType) UpdateConfigurationSource(source ConfigurationSource) {
	et.source = MaxSource(et.source, source)
}

func (et *EntityType) checkMutable() error {
	if et.model == nil {
		return &ConfigError{EntityType: et.name, Err: ErrEntityTypeModelMismatch, Detail: "entity type was removed"}
	}
	return et.model.checkMutable()
}

func (et *EntityType) logger() *zap.Logger {
	if et.model == nil {
		return zap.NewNop()
	}
	return et.model.logger
}

// String returns the entity type name
func (et *EntityType) String() string { return et.name }

// AddProperty adds a property. The Go member with the same name is used as
// backing member when the entity type has a Go type; otherwise the property
// is a shadow property and typ is required. A nil result with a nil error
// means the name is ignored by a stronger source.
func (et *EntityType) AddProperty(name string, typ reflect.Type, source ConfigurationSource) (*Property, error) {
	if err := et.checkMutable(); err != nil {
		return nil, err
	}
	if ignoredSource, ok := et.ignored[name]; ok {
		if !source.Overrides(ignoredSource) {
			et.logger().Debug("property ignored",
				zap.String("entity_type", et.name),
				zap.String("property", name),
				zap.Stringer("ignored_by", ignoredSource))
			return nil, nil
		}
		delete(et.ignored, name)
	}
	if _, exists := et.propertiesByName[name]; exists {
		return nil, configErr(et, name, ErrDuplicateProperty, "")
	}
	if _, exists := et.navigationsByName[name]; exists {
		return nil, configErr(et, name, ErrPropertyConflict, "a navigation uses this name")
	}

	var member members.MemberInfo
	if et.typeInfo != nil {
		member = et.typeInfo.FindMember(name)
	}
	if member != nil {
		if typ != nil && typ != member.Type() {
			return nil, configErr(et, name, ErrPropertyTypeMismatch, "requested %v, member is %v", typ, member.Type())
		}
		typ = member.Type()
	} else if typ == nil {
		return nil, configErr(et, name, ErrPropertyTypeRequired, "")
	}

	p := newProperty(et, name, typ, source)
	switch m := member.(type) {
	case *members.PropertyInfo:
		p.propertyInfo = m
		if f := members.FindBackingField(et.typeInfo, m); f != nil {
			p.fieldInfo = f
			p.fieldInfoSource = Convention
		}
	case *members.FieldInfo:
		p.fieldInfo = m
		p.fieldInfoSource = Convention
	}

	et.properties = insertSorted(et.properties, p, func(a, b *Property) bool { return a.name < b.name })
	et.propertiesByName[name] = p
	et.resetCaches()

	et.logger().Debug("property added",
		zap.String("entity_type", et.name),
		zap.String("property", name),
		zap.Stringer("kind", members.KindOf(member)),
		zap.Stringer("source", source))
	return p, nil
}

// FindProperty returns the property with the given name, or nil
func (et *EntityType) FindProperty(name string) *Property {
	return et.propertiesByName[name]
}

// Properties returns the declared properties ordered by name
func (et *EntityType) Properties() []*Property {
	out := make([]*Property, len(et.properties))
	copy(out, et.properties)
	return out
}

// RemoveProperty removes p. It fails while a key, foreign key or index uses p.
func (et *EntityType) RemoveProperty(p *Property) error {
	if err := et.checkMutable(); err != nil {
		return err
	}
	if p.declaringType != et || et.propertiesByName[p.name] != p {
		return configErr(et, p.name, ErrPropertyWrongEntityType, "")
	}
	if len(p.keys) > 0 || len(p.foreignKeys) > 0 || len(p.indexes) > 0 {
		return configErr(et, p.name, ErrPropertyInUse,
			"%d key(s), %d foreign key(s), %d index(es)", len(p.keys), len(p.foreignKeys), len(p.indexes))
	}
	et.properties = removeItem(et.properties, p)
	delete(et.propertiesByName, p.name)
	et.resetCaches()
	return nil
}

// Ignore marks a member name as not mapped. An existing property or
// navigation added with a weaker source is removed. It reports whether the
// name is now ignored.
func (et *EntityType) Ignore(name string, source ConfigurationSource) (bool, error) {
	if err := et.checkMutable(); err != nil {
		return false, err
	}
	if p := et.propertiesByName[name]; p != nil {
		if !source.Overrides(p.source) {
			return false, nil
		}
		if err := et.RemoveProperty(p); err != nil {
			return false, err
		}
	}
	if nav := et.navigationsByName[name]; nav != nil {
		if !source.Overrides(nav.source) {
			return false, nil
		}
		nav.foreignKey.removeNavigation(nav)
	}
	et.ignored[name] = MaxSource(et.ignored[name], source)
	return true, nil
}

// IsIgnored returns the source that ignored name, if any
func (et *EntityType) IsIgnored(name string) (ConfigurationSource, bool) {
	source, ok := et.ignored[name]
	return source, ok
}

// Unignore forgets that name was ignored
func (et *EntityType) Unignore(name string) {
	delete(et.ignored, name)
}

// SetPrimaryKey makes the key over props the primary key, adding the key if
// needed. An empty list clears the primary key. A nil result with a nil error
// means a stronger source configured the current primary key.
func (et *EntityType) SetPrimaryKey(props []*Property, source ConfigurationSource) (*Key, error) {
	if err := et.checkMutable(); err != nil {
		return nil, err
	}
	if et.primaryKey != nil && !source.Overrides(et.primaryKeySource) {
		if len(props) > 0 && samePropertyLists(et.primaryKey.properties, props) {
			et.primaryKeySource = MaxSource(et.primaryKeySource, source)
			return et.primaryKey, nil
		}
		return nil, nil
	}

	if len(props) == 0 {
		et.clearPrimaryKey()
		return nil, nil
	}

	key := et.FindKey(props)
	if key == nil {
		var err error
		if key, err = et.AddKey(props, source); err != nil {
			return nil, err
		}
	}

	if et.primaryKey == key {
		et.primaryKeySource = MaxSource(et.primaryKeySource, source)
		return key, nil
	}
	et.clearPrimaryKey()
	et.primaryKey = key
	et.primaryKeySource = source
	key.UpdateConfigurationSource(source)
	for _, p := range key.properties {
		p.primaryKey = key
	}
	et.resetCaches()
	return key, nil
}

func (et *EntityType) clearPrimaryKey() {
	if et.primaryKey == nil {
		return
	}
	for _, p := range et.primaryKey.properties {
		p.primaryKey = nil
	}
	et.primaryKey = nil
	et.primaryKeySource = SourceNone
	et.resetCaches()
}

// FindPrimaryKey returns the primary key, or nil
func (et *EntityType) FindPrimaryKey() *Key { return et.primaryKey }

// PrimaryKeyConfigurationSource returns the source that set the primary key
func (et *EntityType) PrimaryKeyConfigurationSource() ConfigurationSource { return et.primaryKeySource }

// AddKey adds an alternate key over props
func (et *EntityType) AddKey(props []*Property, source ConfigurationSource) (*Key, error) {
	if err := et.checkMutable(); err != nil {
		return nil, err
	}
	if err := et.validatePropertyList(props); err != nil {
		return nil, err
	}
	if et.FindKey(props) != nil {
		return nil, configErr(et, propertyNames(props), ErrDuplicateKey, "")
	}
	for _, p := range props {
		if p.nullable != nil && *p.nullable {
			return nil, configErr(et, p.name, ErrNullableKey, "")
		}
		if p.readOnlyAfterSave != nil && !*p.readOnlyAfterSave {
			return nil, configErr(et, p.name, ErrKeyReadOnly, "")
		}
	}

	key := newKey(et, props, source)
	et.keys = insertSorted(et.keys, key, func(a, b *Key) bool { return CompareKeys(a, b) < 0 })
	for _, p := range props {
		p.keys = append(p.keys, key)
	}
	et.resetCaches()
	return key, nil
}

// FindKey returns the key over exactly props, or nil
func (et *EntityType) FindKey(props []*Property) *Key {
	for _, k := range et.keys {
		if samePropertyLists(k.properties, props) {
			return k
		}
	}
	return nil
}

// Keys returns all keys, primary included
func (et *EntityType) Keys() []*Key {
	out := make([]*Key, len(et.keys))
	copy(out, et.keys)
	return out
}

// RemoveKey removes k. It fails while a foreign key references k.
func (et *EntityType) RemoveKey(k *Key) error {
	if err := et.checkMutable(); err != nil {
		return err
	}
	if k.declaringType != et {
		return configErr(et, propertyNames(k.properties), ErrPropertyWrongEntityType, "key is declared on '%s'", k.declaringType.name)
	}
	if len(k.referencingForeignKeys) > 0 {
		return configErr(et, propertyNames(k.properties), ErrKeyInUse, "referenced by %s", k.referencingForeignKeys[0])
	}
	if et.primaryKey == k {
		et.clearPrimaryKey()
	}
	et.keys = removeItem(et.keys, k)
	for _, p := range k.properties {
		p.keys = removeItem(p.keys, k)
	}
	et.resetCaches()
	return nil
}

// AddForeignKey adds a foreign key from props to principalKey on principalType
func (et *EntityType) AddForeignKey(props []*Property, principalKey *Key, principalType *EntityType, source ConfigurationSource) (*ForeignKey, error) {
	if err := et.checkMutable(); err != nil {
		return nil, err
	}
	if err := et.validatePropertyList(props); err != nil {
		return nil, err
	}
	if principalType == nil || principalKey == nil {
		return nil, configErr(et, propertyNames(props), ErrPrincipalKeyMismatch, "principal is required")
	}
	if principalType.model != et.model {
		return nil, configErr(et, propertyNames(props), ErrEntityTypeModelMismatch,
			"principal entity type '%s'", principalType.name)
	}
	if principalKey.declaringType != principalType {
		return nil, configErr(et, propertyNames(props), ErrPrincipalKeyMismatch,
			"key {%s} is declared on '%s'", propertyNames(principalKey.properties), principalKey.declaringType.name)
	}
	if len(props) != len(principalKey.properties) {
		return nil, configErr(et, propertyNames(props), ErrForeignKeyCountMismatch,
			"%d dependent and %d principal properties", len(props), len(principalKey.properties))
	}
	for i, p := range props {
		principal := principalKey.properties[i]
		if !compatibleKeyTypes(p.clrType, principal.clrType) {
			return nil, configErr(et, p.name, ErrForeignKeyTypeMismatch,
				"%v does not match %s.%s %v", p.clrType, principalType.name, principal.name, principal.clrType)
		}
	}
	for _, existing := range et.foreignKeys {
		if existing.principalKey == principalKey && samePropertyLists(existing.properties, props) {
			return nil, configErr(et, propertyNames(props), ErrDuplicateForeignKey, "")
		}
	}

	fk := newForeignKey(et, props, principalKey, principalType, source)
	et.foreignKeys = insertSorted(et.foreignKeys, fk, func(a, b *ForeignKey) bool { return CompareForeignKeys(a, b) < 0 })
	for _, p := range props {
		p.foreignKeys = append(p.foreignKeys, fk)
	}
	principalKey.referencingForeignKeys = append(principalKey.referencingForeignKeys, fk)
	principalType.referencingForeignKeys = append(principalType.referencingForeignKeys, fk)
	et.resetCaches()
	principalType.resetCaches()
	return fk, nil
}

// FindForeignKey returns the foreign key over props to principalKey, or nil
func (et *EntityType) FindForeignKey(props []*Property, principalKey *Key) *ForeignKey {
	for _, fk := range et.foreignKeys {
		if fk.principalKey == principalKey && samePropertyLists(fk.properties, props) {
			return fk
		}
	}
	return nil
}

// ForeignKeys returns the declared foreign keys in comparer order
func (et *EntityType) ForeignKeys() []*ForeignKey {
	out := make([]*ForeignKey, len(et.foreignKeys))
	copy(out, et.foreignKeys)
	return out
}

// ReferencingForeignKeys returns the foreign keys whose principal is et
func (et *EntityType) ReferencingForeignKeys() []*ForeignKey {
	out := make([]*ForeignKey, len(et.referencingForeignKeys))
	copy(out, et.referencingForeignKeys)
	return out
}

// RemoveForeignKey removes fk together with its navigations
func (et *EntityType) RemoveForeignKey(fk *ForeignKey) error {
	if err := et.checkMutable(); err != nil {
		return err
	}
	if fk.declaringType != et {
		return configErr(et, propertyNames(fk.properties), ErrPropertyWrongEntityType,
			"foreign key is declared on '%s'", fk.declaringType.name)
	}
	if fk.dependentToPrincipal != nil {
		fk.removeNavigation(fk.dependentToPrincipal)
	}
	if fk.principalToDependent != nil {
		fk.removeNavigation(fk.principalToDependent)
	}
	et.foreignKeys = removeItem(et.foreignKeys, fk)
	for _, p := range fk.properties {
		p.foreignKeys = removeItem(p.foreignKeys, fk)
	}
	fk.principalKey.referencingForeignKeys = removeItem(fk.principalKey.referencingForeignKeys, fk)
	fk.principalType.referencingForeignKeys = removeItem(fk.principalType.referencingForeignKeys, fk)
	et.resetCaches()
	fk.principalType.resetCaches()
	return nil
}

// AddIndex adds an index over props
func (et *EntityType) AddIndex(props []*Property, source ConfigurationSource) (*Index, error) {
	if err := et.checkMutable(); err != nil {
		return nil, err
	}
	if err := et.validatePropertyList(props); err != nil {
		return nil, err
	}
	if et.FindIndex(props) != nil {
		return nil, configErr(et, propertyNames(props), ErrDuplicateIndex, "")
	}
	idx := newIndex(et, props, source)
	et.indexes = insertSorted(et.indexes, idx, func(a, b *Index) bool { return CompareIndexes(a, b) < 0 })
	for _, p := range props {
		p.indexes = append(p.indexes, idx)
	}
	return idx, nil
}

// FindIndex returns the index over exactly props, or nil
func (et *EntityType) FindIndex(props []*Property) *Index {
	for _, idx := range et.indexes {
		if samePropertyLists(idx.properties, props) {
			return idx
		}
	}
	return nil
}

// Indexes returns the declared indexes
func (et *EntityType) Indexes() []*Index {
	out := make([]*Index, len(et.indexes))
	copy(out, et.indexes)
	return out
}

// RemoveIndex removes idx
func (et *EntityType) RemoveIndex(idx *Index) error {
	if err := et.checkMutable(); err != nil {
		return err
	}
	if idx.declaringType != et {
		return configErr(et, propertyNames(idx.properties), ErrPropertyWrongEntityType, "")
	}
	et.indexes = removeItem(et.indexes, idx)
	for _, p := range idx.properties {
		p.indexes = removeItem(p.indexes, idx)
	}
	return nil
}

// FindNavigation returns the navigation with the given name, or nil
func (et *EntityType) FindNavigation(name string) *Navigation {
	return et.navigationsByName[name]
}

// Navigations returns the declared navigations ordered by name
func (et *EntityType) Navigations() []*Navigation {
	out := make([]*Navigation, len(et.navigations))
	copy(out, et.navigations)
	return out
}

// FindMember returns the property or navigation with the given name, or nil
func (et *EntityType) FindMember(name string) PropertyBase {
	if p := et.propertiesByName[name]; p != nil {
		return p
	}
	if nav := et.navigationsByName[name]; nav != nil {
		return nav
	}
	return nil
}

func (et *EntityType) addNavigation(nav *Navigation) {
	et.navigations = insertSorted(et.navigations, nav, func(a, b *Navigation) bool { return a.name < b.name })
	et.navigationsByName[nav.name] = nav
	et.resetCaches()
}

func (et *EntityType) removeNavigation(nav *Navigation) {
	et.navigations = removeItem(et.navigations, nav)
	delete(et.navigationsByName, nav.name)
	et.resetCaches()
}

// ChangeTrackingStrategy returns the configured strategy or the model default
func (et *EntityType) ChangeTrackingStrategy() ChangeTrackingStrategy {
	if et.changeTrackingSource != SourceNone || et.model == nil {
		return et.changeTracking
	}
	return et.model.changeTracking
}

// SetChangeTrackingStrategy sets the strategy if source may override the current one
func (et *EntityType) SetChangeTrackingStrategy(strategy ChangeTrackingStrategy, source ConfigurationSource) (bool, error) {
	if err := et.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(et.changeTrackingSource) {
		return false, nil
	}
	et.changeTracking = strategy
	et.changeTrackingSource = MaxSource(et.changeTrackingSource, source)
	et.resetCaches()
	return true, nil
}

// PropertyAccessMode returns the entity type access mode or the model default
func (et *EntityType) PropertyAccessMode() PropertyAccessMode {
	if mode, ok := accessModeAnnotation(&et.Annotatable); ok {
		return mode
	}
	if et.model != nil {
		return et.model.PropertyAccessMode()
	}
	return AccessModeDefault
}

// SetPropertyAccessMode sets the access mode for every member of et
func (et *EntityType) SetPropertyAccessMode(mode PropertyAccessMode, source ConfigurationSource) bool {
	return et.SetAnnotation(AnnotationPropertyAccessMode, mode, source)
}

// Counts returns the sizes of the snapshot structures for et
func (et *EntityType) Counts() PropertyCounts {
	return et.slotTable().counts
}

func (et *EntityType) validatePropertyList(props []*Property) error {
	if len(props) == 0 {
		return configErr(et, "", ErrEmptyPropertyList, "")
	}
	seen := make(map[*Property]bool, len(props))
	for _, p := range props {
		if p == nil || p.declaringType != et || et.propertiesByName[p.name] != p {
			name := "<nil>"
			if p != nil {
				name = p.name
			}
			return configErr(et, name, ErrPropertyWrongEntityType, "")
		}
		if seen[p] {
			return configErr(et, p.name, ErrDuplicatePropertyInList, "")
		}
		seen[p] = true
	}
	return nil
}

// resetCaches discards every derived value of et and its members. Only
// reachable during the build phase.
func (et *EntityType) resetCaches() {
	et.slots.Reset()
	et.materializer.Reset()
	et.remapped = &sync.Map{}
	for _, p := range et.properties {
		p.resetCaches()
	}
	for _, nav := range et.navigations {
		nav.resetCaches()
	}
}

func compatibleKeyTypes(dependent, principal reflect.Type) bool {
	return unwrapPointer(dependent) == unwrapPointer(principal)
}

func unwrapPointer(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func insertSorted[T any](items []T, item T, less func(a, b T) bool) []T {
	i := sort.Search(len(items), func(i int) bool { return less(item, items[i]) })
	items = append(items, item)
	copy(items[i+1:], items[i:])
	items[i] = item
	return items
}

func removeItem[T comparable](items []T, item T) []T {
	for i, candidate := range items {
		if candidate == item {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

func propertyNames(props []*Property) string {
	names := ""
	for i, p := range props {
		if i > 0 {
			names += ", "
		}
		if p == nil {
			names += "<nil>"
			continue
		}
		names += p.name
	}
	return names
}

func samePropertyLists(a, b []*Property) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
