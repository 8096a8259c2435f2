// Package conventions builds a model from registered Go types.
//
// Exported scalar fields and registered properties become properties, a
// member named ID, Id, <Type>ID or <Type>Id becomes the primary key, and
// pointer and collection members that refer to other registered types become
// navigations over a <Navigation><Key> foreign key property. Everything found
// this way is written with the Convention source. Settings read from orm
// struct tags are written with the DataAnnotation source, so a model file
// or explicit configuration applied afterwards overrides both.
package conventions

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

// Builder discovers entity types from registered Go types
type Builder struct {
	model  *metadata.Model
	logger *zap.Logger
	types  []*members.TypeInfo

	entities []*metadata.EntityType
	tags     map[*metadata.EntityType]map[string]tagOptions
}

// New creates a builder writing to model
func New(model *metadata.Model, types ...*members.TypeInfo) *Builder {
	return &Builder{
		model:  model,
		logger: model.Logger(),
		types:  types,
		tags:   make(map[*metadata.EntityType]map[string]tagOptions),
	}
}

// Discover runs every convention over types and reports all failures
func Discover(model *metadata.Model, types ...*members.TypeInfo) error {
	return New(model, types...).Build()
}

// Build adds the entity types, then their properties, primary keys and
// relationships. Each pass sees the results of the previous one. References
// are discovered before collections so that the foreign key settings tagged
// on the dependent side win.
func (b *Builder) Build() error {
	var errs error
	for _, ti := range b.types {
		errs = multierr.Append(errs, b.discoverEntityType(ti))
	}
	for _, et := range b.entities {
		errs = multierr.Append(errs, b.discoverProperties(et))
	}
	for _, et := range b.entities {
		errs = multierr.Append(errs, b.discoverPrimaryKey(et))
	}
	for _, et := range b.entities {
		errs = multierr.Append(errs, b.discoverReferences(et))
	}
	for _, et := range b.entities {
		errs = multierr.Append(errs, b.discoverCollections(et))
	}
	for _, et := range b.entities {
		errs = multierr.Append(errs, b.discoverValueGeneration(et))
	}
	return errs
}

func (b *Builder) discoverEntityType(ti *members.TypeInfo) error {
	if ti == nil {
		return nil
	}
	et := b.model.FindEntityTypeFor(ti.Type())
	if et == nil {
		var err error
		if et, err = b.model.AddEntityTypeFor(ti, metadata.Convention); err != nil {
			return err
		}
	}
	et.UpdateConfigurationSource(metadata.Convention)
	b.entities = append(b.entities, et)
	b.tags[et] = make(map[string]tagOptions)
	return nil
}

func (b *Builder) discoverProperties(et *metadata.EntityType) error {
	var errs error
	for _, c := range memberCandidates(et.TypeInfo()) {
		opts, err := parseTag(c.tag)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s.%s: %w", et.Name(), c.name, err))
			continue
		}
		b.tags[et][c.name] = opts

		if opts.ignore {
			if _, err := et.Ignore(c.name, metadata.DataAnnotation); err != nil {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		if !IsScalarType(c.typ) {
			continue
		}

		p := et.FindProperty(c.name)
		if p == nil {
			if p, err = et.AddProperty(c.name, nil, metadata.Convention); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if p == nil {
				continue
			}
			b.logger.Debug("property discovered",
				zap.String("entity_type", et.Name()),
				zap.String("property", c.name),
				zap.Stringer("type", c.typ))
		}
		errs = multierr.Append(errs, applyPropertyTag(et, p, opts))
	}
	return errs
}

func applyPropertyTag(et *metadata.EntityType, p *metadata.Property, opts tagOptions) error {
	if opts.empty() {
		return nil
	}
	var errs error
	if opts.required {
		_, err := p.SetIsNullable(false, metadata.DataAnnotation)
		errs = multierr.Append(errs, err)
	}
	if opts.concurrency {
		_, err := p.SetIsConcurrencyToken(true, metadata.DataAnnotation)
		errs = multierr.Append(errs, err)
	}
	if opts.hasGenerated {
		_, err := p.SetValueGenerated(opts.valueGenerated, metadata.DataAnnotation)
		errs = multierr.Append(errs, err)
	}
	if opts.hasMaxLength {
		p.SetMaxLength(opts.maxLength, metadata.DataAnnotation)
	}
	if opts.column != "" {
		p.SetColumnName(opts.column, metadata.DataAnnotation)
	}
	if opts.field != "" {
		_, err := p.SetField(opts.field, metadata.DataAnnotation)
		errs = multierr.Append(errs, err)
	}
	if opts.index || opts.unique {
		props := []*metadata.Property{p}
		idx := et.FindIndex(props)
		if idx == nil {
			var err error
			if idx, err = et.AddIndex(props, metadata.DataAnnotation); err != nil {
				return multierr.Append(errs, err)
			}
		}
		if opts.unique {
			_, err := idx.SetIsUnique(true, metadata.DataAnnotation)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (b *Builder) discoverPrimaryKey(et *metadata.EntityType) error {
	var tagged []*metadata.Property
	for _, c := range memberCandidates(et.TypeInfo()) {
		if !b.tags[et][c.name].key {
			continue
		}
		if p := et.FindProperty(c.name); p != nil {
			tagged = append(tagged, p)
		}
	}
	if len(tagged) > 0 {
		_, err := et.SetPrimaryKey(tagged, metadata.DataAnnotation)
		return err
	}

	for _, name := range keyNames(et.Name()) {
		p := et.FindProperty(name)
		if p == nil {
			continue
		}
		key, err := et.SetPrimaryKey([]*metadata.Property{p}, metadata.Convention)
		if err != nil {
			return err
		}
		if key != nil {
			b.logger.Debug("primary key discovered",
				zap.String("entity_type", et.Name()),
				zap.String("property", name))
		}
		return nil
	}
	b.logger.Debug("no primary key discovered", zap.String("entity_type", et.Name()))
	return nil
}

// discoverValueGeneration makes a single integer primary key that is not
// also a foreign key generated on add
func (b *Builder) discoverValueGeneration(et *metadata.EntityType) error {
	pk := et.FindPrimaryKey()
	if pk == nil {
		return nil
	}
	props := pk.Properties()
	if len(props) != 1 || props[0].IsForeignKey() {
		return nil
	}
	t := props[0].ClrType()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if !isIntegerType(t) {
		return nil
	}
	_, err := props[0].SetValueGenerated(metadata.ValueGeneratedOnAdd, metadata.Convention)
	return err
}

func (b *Builder) discoverReferences(et *metadata.EntityType) error {
	var errs error
	for _, c := range memberCandidates(et.TypeInfo()) {
		if b.skipNavigation(et, c) {
			continue
		}
		if principal := b.referenceTarget(c.typ); principal != nil {
			errs = multierr.Append(errs, b.discoverReference(et, c.name, principal, b.tags[et][c.name]))
		}
	}
	return errs
}

func (b *Builder) discoverCollections(et *metadata.EntityType) error {
	var errs error
	for _, c := range memberCandidates(et.TypeInfo()) {
		if b.skipNavigation(et, c) {
			continue
		}
		if dependent := b.collectionTarget(c.typ); dependent != nil {
			errs = multierr.Append(errs, b.discoverCollection(et, c.name, dependent, b.tags[et][c.name]))
		}
	}
	return errs
}

func (b *Builder) skipNavigation(et *metadata.EntityType, c candidate) bool {
	if IsScalarType(c.typ) || et.FindMember(c.name) != nil {
		return true
	}
	_, ignored := et.IsIgnored(c.name)
	return ignored
}

// discoverReference maps a pointer member on dependent. Without a matching
// foreign key property dependent is taken to be the principal side of a
// one-to-one relationship and nothing is added.
func (b *Builder) discoverReference(dependent *metadata.EntityType, nav string, principal *metadata.EntityType, opts tagOptions) error {
	pk := principal.FindPrimaryKey()
	if pk == nil {
		b.logger.Debug("navigation skipped: principal has no key",
			zap.String("entity_type", dependent.Name()),
			zap.String("navigation", nav),
			zap.String("principal", principal.Name()))
		return nil
	}
	props := foreignKeyProperties(dependent, opts.foreignKey, fkNames(nav, principal, pk))
	if props == nil {
		return nil
	}

	fk, err := b.foreignKey(dependent, props, pk, principal)
	if err != nil {
		return err
	}
	if _, err := fk.SetDependentToPrincipal(nav, metadata.Convention); err != nil {
		return err
	}
	if err := applyNavigationTag(fk, opts); err != nil {
		return err
	}
	if fk.PrincipalToDependent() != nil {
		return nil
	}

	inverse, collection := b.inverseNavigation(principal, dependent)
	if inverse == "" {
		return nil
	}
	if !collection {
		if _, err := fk.SetIsUnique(true, metadata.Convention); err != nil {
			return err
		}
	}
	if _, err := fk.SetPrincipalToDependent(inverse, metadata.Convention); err != nil {
		return err
	}
	return applyNavigationTag(fk, b.tags[principal][inverse])
}

// discoverCollection maps a collection member on principal
func (b *Builder) discoverCollection(principal *metadata.EntityType, nav string, dependent *metadata.EntityType, opts tagOptions) error {
	pk := principal.FindPrimaryKey()
	if pk == nil {
		b.logger.Debug("navigation skipped: principal has no key",
			zap.String("entity_type", principal.Name()),
			zap.String("navigation", nav))
		return nil
	}
	props := foreignKeyProperties(dependent, opts.foreignKey, fkNames(upperFirst(principal.Name()), principal, pk))
	if props == nil {
		b.logger.Debug("navigation skipped: no foreign key property",
			zap.String("entity_type", principal.Name()),
			zap.String("navigation", nav),
			zap.String("dependent", dependent.Name()))
		return nil
	}

	fk, err := b.foreignKey(dependent, props, pk, principal)
	if err != nil {
		return err
	}
	if _, err := fk.SetPrincipalToDependent(nav, metadata.Convention); err != nil {
		return err
	}
	return applyNavigationTag(fk, opts)
}

func (b *Builder) foreignKey(dependent *metadata.EntityType, props []*metadata.Property, pk *metadata.Key, principal *metadata.EntityType) (*metadata.ForeignKey, error) {
	if fk := dependent.FindForeignKey(props, pk); fk != nil {
		return fk, nil
	}
	fk, err := dependent.AddForeignKey(props, pk, principal, metadata.Convention)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("foreign key discovered", zap.Stringer("foreign_key", fk))
	return fk, nil
}

func applyNavigationTag(fk *metadata.ForeignKey, opts tagOptions) error {
	if opts.required {
		if _, err := fk.SetIsRequired(true, metadata.DataAnnotation); err != nil {
			return err
		}
	}
	if opts.hasOnDelete {
		if _, err := fk.SetDeleteBehavior(opts.onDelete, metadata.DataAnnotation); err != nil {
			return err
		}
	}
	return nil
}

// inverseNavigation returns the single unmapped member of owner that refers
// back to target. Ambiguous candidates are not mapped.
func (b *Builder) inverseNavigation(owner, target *metadata.EntityType) (string, bool) {
	var (
		name       string
		collection bool
		matches    int
	)
	for _, c := range memberCandidates(owner.TypeInfo()) {
		if b.skipNavigation(owner, c) || b.tags[owner][c.name].ignore {
			continue
		}
		switch {
		case b.referenceTarget(c.typ) == target:
			name, collection = c.name, false
			matches++
		case b.collectionTarget(c.typ) == target:
			name, collection = c.name, true
			matches++
		}
	}
	if matches != 1 {
		return "", false
	}
	return name, collection
}

func (b *Builder) referenceTarget(t reflect.Type) *metadata.EntityType {
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil
	}
	return b.model.FindEntityTypeFor(t.Elem())
}

func (b *Builder) collectionTarget(t reflect.Type) *metadata.EntityType {
	if !members.IsCollectionType(t) {
		return nil
	}
	elem := members.ElementType(t)
	if elem == nil {
		return nil
	}
	return b.referenceTarget(elem)
}

// foreignKeyProperties resolves the dependent properties of a relationship.
// A tag value lists property names separated by '|'; otherwise the first
// existing name among candidates is used. A nil result means none matched.
func foreignKeyProperties(dependent *metadata.EntityType, tagged string, candidates []string) []*metadata.Property {
	if tagged != "" {
		var props []*metadata.Property
		for _, name := range strings.Split(tagged, "|") {
			p := dependent.FindProperty(strings.TrimSpace(name))
			if p == nil {
				return nil
			}
			props = append(props, p)
		}
		return props
	}
	for _, name := range candidates {
		if p := dependent.FindProperty(name); p != nil {
			return []*metadata.Property{p}
		}
	}
	return nil
}

// fkNames lists the conventional foreign key property names for a
// relationship to a single-property key, e.g. CustomerID and CustomerId
func fkNames(prefix string, principal *metadata.EntityType, pk *metadata.Key) []string {
	props := pk.Properties()
	if len(props) != 1 {
		return nil
	}
	keyName := props[0].Name()
	names := []string{prefix + keyName, prefix + "ID", prefix + "Id"}
	if typeName := upperFirst(principal.Name()); typeName != prefix {
		names = append(names, typeName+keyName)
	}
	return dedupe(names)
}

func keyNames(entityName string) []string {
	typeName := upperFirst(entityName)
	return []string{"ID", "Id", typeName + "ID", typeName + "Id"}
}

type candidate struct {
	name string
	typ  reflect.Type
	tag  reflect.StructTag
}

// memberCandidates lists the exported fields and the registered properties
// of ti in declaration order. A registered property replaces a field of the
// same name and carries the tag of its backing field.
func memberCandidates(ti *members.TypeInfo) []candidate {
	if ti == nil {
		return nil
	}
	var out []candidate
	seen := make(map[string]bool)
	for _, f := range ti.Fields() {
		if !f.IsExported() {
			continue
		}
		c := candidate{name: f.Name(), typ: f.Type(), tag: f.Tag()}
		if pi := ti.FindProperty(f.Name()); pi != nil {
			c.typ = pi.Type()
		}
		out = append(out, c)
		seen[c.name] = true
	}
	for _, pi := range ti.Properties() {
		if seen[pi.Name()] {
			continue
		}
		c := candidate{name: pi.Name(), typ: pi.Type()}
		if f := members.FindBackingField(ti, pi); f != nil {
			c.tag = f.Tag()
		}
		out = append(out, c)
		seen[c.name] = true
	}
	return out
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
