package modelfile

import (
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

// FromModel describes model as a document. Only settings that differ from
// the defaults are written; applying the result to a model discovered from
// the same Go types reproduces model.
func FromModel(model *metadata.Model) *Document {
	doc := &Document{}
	if s := model.ChangeTrackingStrategy(); s != metadata.Snapshot {
		doc.ChangeTracking = s.String()
	}
	if m := model.PropertyAccessMode(); m != metadata.AccessModeDefault {
		doc.AccessMode = m.String()
	}
	for _, et := range model.EntityTypes() {
		doc.Entities = append(doc.Entities, exportEntity(et))
	}
	return doc
}

func exportEntity(et *metadata.EntityType) *Entity {
	e := &Entity{Name: et.Name()}
	if et.ChangeTrackingStrategy() != et.Model().ChangeTrackingStrategy() {
		e.ChangeTracking = et.ChangeTrackingStrategy().String()
	}
	if ann := et.FindAnnotation(metadata.AnnotationPropertyAccessMode); ann != nil {
		e.AccessMode = et.PropertyAccessMode().String()
	}
	e.Annotations = exportAnnotations(et.Annotations())

	for _, p := range et.Properties() {
		e.Properties = append(e.Properties, exportProperty(p))
	}
	if pk := et.FindPrimaryKey(); pk != nil {
		e.Key = names(pk.Properties())
	}
	for _, k := range et.Keys() {
		if !k.IsPrimaryKey() {
			e.Keys = append(e.Keys, names(k.Properties()))
		}
	}
	for _, idx := range et.Indexes() {
		e.Indexes = append(e.Indexes, &Index{Properties: names(idx.Properties()), Unique: idx.IsUnique()})
	}
	for _, fk := range et.ForeignKeys() {
		e.ForeignKeys = append(e.ForeignKeys, exportForeignKey(fk))
	}
	return e
}

func exportProperty(p *metadata.Property) *Property {
	out := &Property{Name: p.Name()}
	if p.IsShadowProperty() {
		out.Type = TypeName(p.ClrType())
	}
	if p.IsNullableConfigurationSource() != metadata.SourceNone {
		nullable := p.IsNullable()
		out.Nullable = &nullable
	}
	if p.IsConcurrencyToken() {
		token := true
		out.ConcurrencyToken = &token
	}
	if vg := p.ValueGenerated(); vg != metadata.ValueGeneratedNever {
		out.ValueGenerated = vg.String()
	}
	if n, ok := p.MaxLength(); ok {
		out.MaxLength = &n
	}
	if p.FindAnnotation(metadata.AnnotationColumnName) != nil {
		out.Column = p.ColumnName()
	}
	if f := p.FieldInfo(); f != nil && p.FieldInfoConfigurationSource().Overrides(metadata.DataAnnotation) {
		out.Field = f.Name()
	}
	if p.FindAnnotation(metadata.AnnotationPropertyAccessMode) != nil {
		out.AccessMode = p.PropertyAccessMode().String()
	}
	out.Annotations = exportAnnotations(p.Annotations())
	return out
}

func exportForeignKey(fk *metadata.ForeignKey) *ForeignKey {
	out := &ForeignKey{
		Properties: names(fk.Properties()),
		Principal:  fk.PrincipalEntityType().Name(),
	}
	if !fk.PrincipalKey().IsPrimaryKey() {
		out.PrincipalKey = names(fk.PrincipalKey().Properties())
	}
	if fk.IsUnique() {
		unique := true
		out.Unique = &unique
	}
	required := fk.IsRequired()
	out.Required = &required
	out.DeleteBehavior = fk.DeleteBehavior().String()
	if nav := fk.DependentToPrincipal(); nav != nil {
		out.Navigation = nav.Name()
	}
	if nav := fk.PrincipalToDependent(); nav != nil {
		out.Inverse = nav.Name()
	}
	return out
}

// exportAnnotations returns the annotations that have no dedicated document field
func exportAnnotations(annotations []*metadata.Annotation) map[string]any {
	var out map[string]any
	for _, a := range annotations {
		switch a.Name() {
		case metadata.AnnotationPropertyAccessMode, metadata.AnnotationMaxLength, metadata.AnnotationColumnName:
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[a.Name()] = a.Value()
	}
	return out
}

func names(props []*metadata.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name()
	}
	return out
}
