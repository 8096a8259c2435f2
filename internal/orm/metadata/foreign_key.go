package metadata

import (
	"reflect"
	"strings"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

// ForeignKey is a relationship from dependent properties on the declaring
// entity type to a key of the principal entity type
type ForeignKey struct {
	Annotatable

	properties    []*Property
	principalKey  *Key
	declaringType *EntityType
	principalType *EntityType
	source        ConfigurationSource

	isUnique             bool
	isUniqueSource       ConfigurationSource
	isRequired           *bool
	isRequiredSource     ConfigurationSource
	deleteBehavior       *DeleteBehavior
	deleteBehaviorSource ConfigurationSource

	dependentToPrincipal *Navigation
	principalToDependent *Navigation
}

func newForeignKey(et *EntityType, props []*Property, principalKey *Key, principalType *EntityType, source ConfigurationSource) *ForeignKey {
	fk := &ForeignKey{
		properties:    append([]*Property(nil), props...),
		principalKey:  principalKey,
		declaringType: et,
		principalType: principalType,
		source:        source,
	}
	fk.Annotatable.init(et.model, nil)
	return fk
}

// Properties returns the dependent properties in order
func (fk *ForeignKey) Properties() []*Property { return append([]*Property(nil), fk.properties...) }

// PrincipalKey returns the referenced key
func (fk *ForeignKey) PrincipalKey() *Key { return fk.principalKey }

// DeclaringEntityType returns the dependent entity type
func (fk *ForeignKey) DeclaringEntityType() *EntityType { return fk.declaringType }

// PrincipalEntityType returns the principal entity type
func (fk *ForeignKey) PrincipalEntityType() *EntityType { return fk.principalType }

// ConfigurationSource returns the source that added the foreign key
func (fk *ForeignKey) ConfigurationSource() ConfigurationSource { return fk.source }

// UpdateConfigurationSource raises the foreign key source
func (fk *ForeignKey) UpdateConfigurationSource(source ConfigurationSource) {
	fk.source = MaxSource(fk.source, source)
}

// DependentToPrincipal returns the navigation on the dependent, or nil
func (fk *ForeignKey) DependentToPrincipal() *Navigation { return fk.dependentToPrincipal }

// PrincipalToDependent returns the navigation on the principal, or nil
func (fk *ForeignKey) PrincipalToDependent() *Navigation { return fk.principalToDependent }

// IsUnique reports whether each principal has at most one dependent
func (fk *ForeignKey) IsUnique() bool { return fk.isUnique }

// SetIsUnique configures uniqueness. It fails when the navigation on the
// principal cannot hold the resulting reference or collection.
func (fk *ForeignKey) SetIsUnique(unique bool, source ConfigurationSource) (bool, error) {
	if err := fk.declaringType.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(fk.isUniqueSource) {
		return false, nil
	}
	if nav := fk.principalToDependent; nav != nil && unique != fk.isUnique {
		if !navigationTypeCompatible(nav.clrType, fk.declaringType, !unique) {
			return false, configErr(fk.principalType, nav.name, ErrNavigationTypeMismatch,
				"%v cannot hold the %s side of %s", nav.clrType, cardinality(!unique), fk)
		}
	}
	fk.isUnique = unique
	fk.isUniqueSource = MaxSource(fk.isUniqueSource, source)
	fk.UpdateConfigurationSource(source)
	fk.principalType.resetCaches()
	fk.declaringType.resetCaches()
	return true, nil
}

// IsRequired reports whether a dependent must have a principal. Unless
// configured, it is true when no dependent property is nullable.
func (fk *ForeignKey) IsRequired() bool {
	if fk.isRequired != nil {
		return *fk.isRequired
	}
	for _, p := range fk.properties {
		if p.IsNullable() {
			return false
		}
	}
	return true
}

// SetIsRequired configures IsRequired
func (fk *ForeignKey) SetIsRequired(required bool, source ConfigurationSource) (bool, error) {
	if err := fk.declaringType.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(fk.isRequiredSource) {
		return false, nil
	}
	fk.isRequired = &required
	fk.isRequiredSource = MaxSource(fk.isRequiredSource, source)
	fk.UpdateConfigurationSource(source)
	return true, nil
}

// DeleteBehavior returns the configured behavior, defaulting to Cascade for
// required relationships and ClientSetNull otherwise
func (fk *ForeignKey) DeleteBehavior() DeleteBehavior {
	if fk.deleteBehavior != nil {
		return *fk.deleteBehavior
	}
	if fk.IsRequired() {
		return Cascade
	}
	return ClientSetNull
}

// SetDeleteBehavior configures DeleteBehavior
func (fk *ForeignKey) SetDeleteBehavior(behavior DeleteBehavior, source ConfigurationSource) (bool, error) {
	if err := fk.declaringType.checkMutable(); err != nil {
		return false, err
	}
	if !source.Overrides(fk.deleteBehaviorSource) {
		return false, nil
	}
	fk.deleteBehavior = &behavior
	fk.deleteBehaviorSource = MaxSource(fk.deleteBehaviorSource, source)
	fk.UpdateConfigurationSource(source)
	return true, nil
}

// ResolveOtherEntityType returns the entity type at the other end from et
func (fk *ForeignKey) ResolveOtherEntityType(et *EntityType) (*EntityType, error) {
	switch et {
	case fk.declaringType:
		return fk.principalType, nil
	case fk.principalType:
		return fk.declaringType, nil
	default:
		return nil, configErr(et, "", ErrEntityTypeNotInRelationship, "%s", fk)
	}
}

// SetDependentToPrincipal adds the navigation named name on the dependent.
// An empty name removes the navigation. A nil result with a nil error means
// the request was rejected by precedence or removed the navigation.
func (fk *ForeignKey) SetDependentToPrincipal(name string, source ConfigurationSource) (*Navigation, error) {
	return fk.setNavigation(name, true, source)
}

// SetPrincipalToDependent adds the navigation named name on the principal
func (fk *ForeignKey) SetPrincipalToDependent(name string, source ConfigurationSource) (*Navigation, error) {
	return fk.setNavigation(name, false, source)
}

func (fk *ForeignKey) setNavigation(name string, pointsToPrincipal bool, source ConfigurationSource) (*Navigation, error) {
	et, target, existing := fk.declaringType, fk.principalType, fk.dependentToPrincipal
	if !pointsToPrincipal {
		et, target, existing = fk.principalType, fk.declaringType, fk.principalToDependent
	}
	if err := et.checkMutable(); err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.name == name {
			existing.UpdateConfigurationSource(source)
			return existing, nil
		}
		if !source.Overrides(existing.source) {
			return nil, nil
		}
	}
	if name == "" {
		if existing != nil {
			fk.removeNavigation(existing)
		}
		return nil, nil
	}
	if ignoredSource, ok := et.ignored[name]; ok && !source.Overrides(ignoredSource) {
		return nil, nil
	}
	if _, exists := et.propertiesByName[name]; exists {
		return nil, configErr(et, name, ErrPropertyConflict, "a property uses this name")
	}
	if other := et.navigationsByName[name]; other != nil && other != existing {
		return nil, configErr(et, name, ErrDuplicateNavigation, "")
	}

	var member members.MemberInfo
	if et.typeInfo != nil {
		member = et.typeInfo.FindMember(name)
	}
	if member == nil {
		return nil, configErr(et, name, ErrNoClrNavigation, "")
	}
	collection := !pointsToPrincipal && !fk.isUnique
	if !navigationTypeCompatible(member.Type(), target, collection) {
		return nil, configErr(et, name, ErrNavigationTypeMismatch,
			"%v cannot hold the %s side of %s", member.Type(), cardinality(collection), fk)
	}

	if existing != nil {
		fk.removeNavigation(existing)
	}
	delete(et.ignored, name)

	nav := newNavigation(et, name, member.Type(), fk, pointsToPrincipal, source)
	switch m := member.(type) {
	case *members.PropertyInfo:
		nav.propertyInfo = m
		if f := members.FindBackingField(et.typeInfo, m); f != nil {
			nav.fieldInfo = f
			nav.fieldInfoSource = Convention
		}
	case *members.FieldInfo:
		nav.fieldInfo = m
		nav.fieldInfoSource = Convention
	}

	if pointsToPrincipal {
		fk.dependentToPrincipal = nav
	} else {
		fk.principalToDependent = nav
	}
	et.addNavigation(nav)
	fk.UpdateConfigurationSource(source)
	return nav, nil
}

func (fk *ForeignKey) removeNavigation(nav *Navigation) {
	switch nav {
	case fk.dependentToPrincipal:
		fk.dependentToPrincipal = nil
	case fk.principalToDependent:
		fk.principalToDependent = nil
	default:
		return
	}
	nav.declaringType.removeNavigation(nav)
}

// String returns a description such as "OrderLine {OrderId} -> Order {Id}"
func (fk *ForeignKey) String() string {
	var b strings.Builder
	b.WriteString(fk.declaringType.name)
	b.WriteString(" {")
	b.WriteString(propertyNames(fk.properties))
	b.WriteString("} -> ")
	b.WriteString(fk.principalType.name)
	b.WriteString(" {")
	b.WriteString(propertyNames(fk.principalKey.properties))
	b.WriteString("}")
	if fk.isUnique {
		b.WriteString(" unique")
	}
	return b.String()
}

func navigationTypeCompatible(memberType reflect.Type, target *EntityType, collection bool) bool {
	if target.typeInfo == nil {
		return false
	}
	ptr := target.typeInfo.PointerType()
	if !collection {
		return ptr.AssignableTo(memberType) && !members.IsCollectionType(memberType)
	}
	if !members.IsCollectionType(memberType) {
		return false
	}
	elem := members.ElementType(memberType)
	return elem == nil || ptr.AssignableTo(elem)
}

func cardinality(collection bool) string {
	if collection {
		return "collection"
	}
	return "reference"
}
