package metadata

import (
	"reflect"

	"github.com/conduit-lang/ormmeta/internal/orm/lazy"
)

// Navigation is a relationship-traversal member backed by a foreign key
type Navigation struct {
	propertyBase

	foreignKey        *ForeignKey
	pointsToPrincipal bool
	source            ConfigurationSource

	collectionFactory  func() any
	collectionAccessor lazy.Value[CollectionAccessor]
}

func newNavigation(et *EntityType, name string, typ reflect.Type, fk *ForeignKey, pointsToPrincipal bool, source ConfigurationSource) *Navigation {
	nav := &Navigation{
		foreignKey:        fk,
		pointsToPrincipal: pointsToPrincipal,
		source:            source,
	}
	nav.initBase(et, name, typ)
	return nav
}

// Kind returns KindNavigation
func (nav *Navigation) Kind() PropertyKind { return KindNavigation }

// ForeignKey returns the foreign key backing the navigation
func (nav *Navigation) ForeignKey() *ForeignKey { return nav.foreignKey }

// ConfigurationSource returns the source that added the navigation
func (nav *Navigation) ConfigurationSource() ConfigurationSource { return nav.source }

// UpdateConfigurationSource raises the navigation source
func (nav *Navigation) UpdateConfigurationSource(source ConfigurationSource) {
	nav.source = MaxSource(nav.source, source)
}

// IsDependentToPrincipal reports whether the navigation is declared on the dependent
func (nav *Navigation) IsDependentToPrincipal() bool { return nav.pointsToPrincipal }

// IsCollection reports whether the navigation holds many dependents
func (nav *Navigation) IsCollection() bool {
	return !nav.pointsToPrincipal && !nav.foreignKey.isUnique
}

// Inverse returns the navigation on the other side of the foreign key, or nil
func (nav *Navigation) Inverse() *Navigation {
	if nav.pointsToPrincipal {
		return nav.foreignKey.principalToDependent
	}
	return nav.foreignKey.dependentToPrincipal
}

// TargetEntityType returns the entity type the navigation leads to
func (nav *Navigation) TargetEntityType() *EntityType {
	if nav.pointsToPrincipal {
		return nav.foreignKey.principalType
	}
	return nav.foreignKey.declaringType
}

// CollectionFactory returns the registered collection factory, or nil
func (nav *Navigation) CollectionFactory() func() any { return nav.collectionFactory }

// SetCollectionFactory registers the function creating an empty collection
// for the navigation. It must return a value assignable to the member type.
func (nav *Navigation) SetCollectionFactory(factory func() any) error {
	if err := nav.declaringType.checkMutable(); err != nil {
		return err
	}
	if !nav.IsCollection() {
		return configErr(nav.declaringType, nav.name, ErrNotCollectionNavigation, "")
	}
	nav.collectionFactory = factory
	nav.collectionAccessor.Reset()
	return nil
}

// String returns the qualified navigation name
func (nav *Navigation) String() string {
	return nav.declaringType.name + "." + nav.name
}

func (nav *Navigation) resetCaches() {
	nav.propertyBase.resetCaches()
	nav.collectionAccessor.Reset()
}
