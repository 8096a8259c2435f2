package modelfile

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/orm/conventions"
	"github.com/conduit-lang/ormmeta/internal/orm/members"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

// Apply discovers types by convention, then writes the document to model
// with the Explicit source. An entity is bound to the registered type among
// types with the same name; without one it becomes a shadow entity type. Entity types and their own members are
// configured before any foreign key, so relationships may refer to entities
// declared later in the file. Every failure is reported.
func (d *Document) Apply(model *metadata.Model, types ...*members.TypeInfo) error {
	registry := make(map[string]*members.TypeInfo, len(types))
	for _, ti := range types {
		registry[ti.Name()] = ti
	}

	errs := conventions.Discover(model, types...)
	if d.ChangeTracking != "" {
		strategy, err := metadata.ParseChangeTrackingStrategy(d.ChangeTracking)
		if err == nil {
			err = model.SetChangeTrackingStrategy(strategy)
		}
		errs = multierr.Append(errs, err)
	}
	if d.AccessMode != "" {
		mode, err := metadata.ParsePropertyAccessMode(d.AccessMode)
		if err == nil {
			model.SetPropertyAccessMode(mode, metadata.Explicit)
		}
		errs = multierr.Append(errs, err)
	}

	entityTypes := make([]*metadata.EntityType, len(d.Entities))
	for i, e := range d.Entities {
		et, err := e.entityType(model, registry[e.Name])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		entityTypes[i] = et
		errs = multierr.Append(errs, e.apply(et))
	}
	for i, e := range d.Entities {
		if entityTypes[i] == nil {
			continue
		}
		for _, fk := range e.ForeignKeys {
			errs = multierr.Append(errs, fk.apply(model, entityTypes[i]))
		}
	}

	model.Logger().Debug("model file applied",
		zap.Int("entities", len(d.Entities)),
		zap.Bool("failed", errs != nil))
	return errs
}

func (e *Entity) entityType(model *metadata.Model, ti *members.TypeInfo) (*metadata.EntityType, error) {
	if et := model.FindEntityType(e.Name); et != nil {
		et.UpdateConfigurationSource(metadata.Explicit)
		return et, nil
	}
	if ti != nil {
		return model.AddEntityTypeFor(ti, metadata.Explicit)
	}
	return model.AddEntityType(e.Name, metadata.Explicit)
}

func (e *Entity) apply(et *metadata.EntityType) error {
	var errs error
	if e.ChangeTracking != "" {
		strategy, err := metadata.ParseChangeTrackingStrategy(e.ChangeTracking)
		if err == nil {
			_, err = et.SetChangeTrackingStrategy(strategy, metadata.Explicit)
		}
		errs = multierr.Append(errs, err)
	}
	if e.AccessMode != "" {
		mode, err := metadata.ParsePropertyAccessMode(e.AccessMode)
		if err == nil {
			et.SetPropertyAccessMode(mode, metadata.Explicit)
		}
		errs = multierr.Append(errs, err)
	}
	for _, name := range sortedKeys(e.Annotations) {
		et.SetAnnotation(name, e.Annotations[name], metadata.Explicit)
	}

	for _, name := range e.Ignore {
		_, err := et.Ignore(name, metadata.Explicit)
		errs = multierr.Append(errs, err)
	}
	for _, p := range e.Properties {
		errs = multierr.Append(errs, p.apply(et))
	}

	if len(e.Key) > 0 {
		props, err := resolveProperties(et, e.Key)
		if err == nil {
			_, err = et.SetPrimaryKey(props, metadata.Explicit)
		}
		errs = multierr.Append(errs, err)
	}
	for _, names := range e.Keys {
		props, err := resolveProperties(et, names)
		if err == nil && et.FindKey(props) == nil {
			_, err = et.AddKey(props, metadata.Explicit)
		}
		errs = multierr.Append(errs, err)
	}
	for _, idx := range e.Indexes {
		errs = multierr.Append(errs, idx.apply(et))
	}
	return errs
}

func (p *Property) apply(et *metadata.EntityType) error {
	prop := et.FindProperty(p.Name)
	if prop == nil {
		typ, _ := TypeOf(p.Type)
		var err error
		if prop, err = et.AddProperty(p.Name, typ, metadata.Explicit); err != nil || prop == nil {
			return err
		}
	} else {
		if typ, ok := TypeOf(p.Type); ok && typ != prop.ClrType() {
			return fmt.Errorf("%w: property '%s' on entity type '%s' is %v, model file says %s",
				metadata.ErrPropertyTypeMismatch, p.Name, et.Name(), prop.ClrType(), p.Type)
		}
		prop.UpdateConfigurationSource(metadata.Explicit)
	}

	var errs error
	if p.Nullable != nil {
		_, err := prop.SetIsNullable(*p.Nullable, metadata.Explicit)
		errs = multierr.Append(errs, err)
	}
	if p.ConcurrencyToken != nil {
		_, err := prop.SetIsConcurrencyToken(*p.ConcurrencyToken, metadata.Explicit)
		errs = multierr.Append(errs, err)
	}
	if p.ValueGenerated != "" {
		vg, err := metadata.ParseValueGenerated(p.ValueGenerated)
		if err == nil {
			_, err = prop.SetValueGenerated(vg, metadata.Explicit)
		}
		errs = multierr.Append(errs, err)
	}
	if p.MaxLength != nil {
		prop.SetMaxLength(*p.MaxLength, metadata.Explicit)
	}
	if p.Column != "" {
		prop.SetColumnName(p.Column, metadata.Explicit)
	}
	if p.Field != "" {
		_, err := prop.SetField(p.Field, metadata.Explicit)
		errs = multierr.Append(errs, err)
	}
	if p.AccessMode != "" {
		mode, err := metadata.ParsePropertyAccessMode(p.AccessMode)
		if err == nil {
			prop.SetPropertyAccessMode(mode, metadata.Explicit)
		}
		errs = multierr.Append(errs, err)
	}
	for _, name := range sortedKeys(p.Annotations) {
		prop.SetAnnotation(name, p.Annotations[name], metadata.Explicit)
	}
	return errs
}

func (idx *Index) apply(et *metadata.EntityType) error {
	props, err := resolveProperties(et, idx.Properties)
	if err != nil {
		return err
	}
	index := et.FindIndex(props)
	if index == nil {
		if index, err = et.AddIndex(props, metadata.Explicit); err != nil {
			return err
		}
	}
	_, err = index.SetIsUnique(idx.Unique, metadata.Explicit)
	return err
}

func (fk *ForeignKey) apply(model *metadata.Model, dependent *metadata.EntityType) error {
	principal := model.FindEntityType(fk.Principal)
	if principal == nil {
		return fmt.Errorf("%w: '%s' referenced by a foreign key on '%s'", ErrUnknownEntityType, fk.Principal, dependent.Name())
	}
	props, err := resolveProperties(dependent, fk.Properties)
	if err != nil {
		return err
	}

	var principalKey *metadata.Key
	if len(fk.PrincipalKey) > 0 {
		keyProps, err := resolveProperties(principal, fk.PrincipalKey)
		if err != nil {
			return err
		}
		if principalKey = principal.FindKey(keyProps); principalKey == nil {
			if principalKey, err = principal.AddKey(keyProps, metadata.Explicit); err != nil {
				return err
			}
		}
	} else if principalKey = principal.FindPrimaryKey(); principalKey == nil {
		return fmt.Errorf("%w: '%s' referenced by a foreign key on '%s'", ErrNoPrincipalKey, fk.Principal, dependent.Name())
	}

	foreignKey := dependent.FindForeignKey(props, principalKey)
	if foreignKey == nil {
		if foreignKey, err = dependent.AddForeignKey(props, principalKey, principal, metadata.Explicit); err != nil {
			return err
		}
	} else {
		foreignKey.UpdateConfigurationSource(metadata.Explicit)
	}

	if fk.Unique != nil {
		if _, err := foreignKey.SetIsUnique(*fk.Unique, metadata.Explicit); err != nil {
			return err
		}
	}
	if fk.Required != nil {
		if _, err := foreignKey.SetIsRequired(*fk.Required, metadata.Explicit); err != nil {
			return err
		}
	}
	if fk.DeleteBehavior != "" {
		behavior, err := metadata.ParseDeleteBehavior(fk.DeleteBehavior)
		if err == nil {
			_, err = foreignKey.SetDeleteBehavior(behavior, metadata.Explicit)
		}
		if err != nil {
			return err
		}
	}
	if fk.Navigation != "" {
		if _, err := foreignKey.SetDependentToPrincipal(fk.Navigation, metadata.Explicit); err != nil {
			return err
		}
	}
	if fk.Inverse != "" {
		if _, err := foreignKey.SetPrincipalToDependent(fk.Inverse, metadata.Explicit); err != nil {
			return err
		}
	}
	return nil
}

func resolveProperties(et *metadata.EntityType, names []string) ([]*metadata.Property, error) {
	props := make([]*metadata.Property, len(names))
	for i, name := range names {
		p := et.FindProperty(name)
		if p == nil {
			return nil, fmt.Errorf("%w: '%s' on entity type '%s'", ErrUnknownProperty, name, et.Name())
		}
		props[i] = p
	}
	return props, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
