package metadata

import (
	"fmt"
	"strings"
)

// DebugView returns a deterministic textual dump of the model
func (m *Model) DebugView() string {
	var b strings.Builder
	b.WriteString("Model:")
	if m.IsFrozen() {
		b.WriteString(" frozen")
	}
	b.WriteString("\n")
	for _, et := range m.EntityTypes() {
		et.writeDebugView(&b, "  ")
	}
	writeAnnotations(&b, "  ", &m.Annotatable)
	return b.String()
}

// DebugView returns a textual dump of the entity type
func (et *EntityType) DebugView() string {
	var b strings.Builder
	et.writeDebugView(&b, "")
	return b.String()
}

func (et *EntityType) writeDebugView(b *strings.Builder, indent string) {
	fmt.Fprintf(b, "%sEntityType: %s", indent, et.name)
	if et.typeInfo == nil {
		b.WriteString(" Shadow")
	} else if et.typeInfo.IsAbstract() {
		b.WriteString(" Abstract")
	}
	if strategy := et.ChangeTrackingStrategy(); strategy != Snapshot {
		fmt.Fprintf(b, " ChangeTracking: %s", strategy)
	}
	b.WriteString("\n")

	inner := indent + "  "
	item := inner + "  "
	if len(et.properties) > 0 {
		b.WriteString(inner + "Properties:\n")
		for _, p := range et.properties {
			p.writeDebugView(b, item)
		}
	}
	if len(et.navigations) > 0 {
		b.WriteString(inner + "Navigations:\n")
		for _, nav := range et.navigations {
			nav.writeDebugView(b, item)
		}
	}
	if len(et.keys) > 0 {
		b.WriteString(inner + "Keys:\n")
		for _, k := range et.keys {
			fmt.Fprintf(b, "%s%s\n", item, k)
		}
	}
	if len(et.foreignKeys) > 0 {
		b.WriteString(inner + "Foreign keys:\n")
		for _, fk := range et.foreignKeys {
			fmt.Fprintf(b, "%s%s %s", item, fk, fk.DeleteBehavior())
			if fk.IsRequired() {
				b.WriteString(" Required")
			}
			b.WriteString("\n")
		}
	}
	if len(et.indexes) > 0 {
		b.WriteString(inner + "Indexes:\n")
		for _, idx := range et.indexes {
			fmt.Fprintf(b, "%s%s\n", item, idx)
		}
	}
	counts := et.Counts()
	fmt.Fprintf(b, "%sCounts: properties %d, navigations %d, original %d, shadow %d, relationship %d, store generated %d\n",
		inner, counts.PropertyCount, counts.NavigationCount, counts.OriginalValueCount,
		counts.ShadowCount, counts.RelationshipCount, counts.StoreGeneratedCount)
	writeAnnotations(b, inner, &et.Annotatable)
}

func (p *Property) writeDebugView(b *strings.Builder, indent string) {
	fmt.Fprintf(b, "%s%s (%v)", indent, p.name, p.clrType)
	if p.IsShadowProperty() {
		b.WriteString(" Shadow")
	} else if p.propertyInfo == nil {
		b.WriteString(" FieldOnly")
	}
	if p.IsPrimaryKey() {
		b.WriteString(" PK")
	}
	if p.IsForeignKey() {
		b.WriteString(" FK")
	}
	if p.IsIndex() {
		b.WriteString(" Index")
	}
	if p.IsNullable() {
		b.WriteString(" Nullable")
	} else {
		b.WriteString(" Required")
	}
	if p.concurrencyToken {
		b.WriteString(" Concurrency")
	}
	if p.valueGenerated != ValueGeneratedNever {
		fmt.Fprintf(b, " ValueGenerated.%s", p.valueGenerated)
	}
	if p.IsReadOnlyBeforeSave() {
		b.WriteString(" BeforeSave:ReadOnly")
	}
	if p.IsReadOnlyAfterSave() {
		b.WriteString(" AfterSave:ReadOnly")
	}
	if n, ok := p.MaxLength(); ok {
		fmt.Fprintf(b, " MaxLength(%d)", n)
	}
	if p.fieldInfo != nil {
		fmt.Fprintf(b, " Field(%s)", p.fieldInfo.Name())
	}
	if mode, ok := accessModeAnnotation(&p.Annotatable); ok {
		fmt.Fprintf(b, " AccessMode(%s)", mode)
	}
	writeSlots(b, p.PropertyIndexes())
	b.WriteString("\n")
}

func (nav *Navigation) writeDebugView(b *strings.Builder, indent string) {
	fmt.Fprintf(b, "%s%s (%v)", indent, nav.name, nav.clrType)
	if nav.IsCollection() {
		b.WriteString(" Collection")
	}
	if nav.pointsToPrincipal {
		b.WriteString(" ToPrincipal")
	} else {
		b.WriteString(" ToDependent")
	}
	fmt.Fprintf(b, " %s", nav.TargetEntityType().name)
	if inverse := nav.Inverse(); inverse != nil {
		fmt.Fprintf(b, " Inverse: %s", inverse.name)
	}
	writeSlots(b, nav.PropertyIndexes())
	b.WriteString("\n")
}

func writeSlots(b *strings.Builder, indexes PropertyIndexes) {
	fmt.Fprintf(b, " [%d, original %d, shadow %d, relationship %d, store %d]",
		indexes.Index, indexes.OriginalValueIndex, indexes.ShadowIndex,
		indexes.RelationshipIndex, indexes.StoreGenerationIndex)
}

func writeAnnotations(b *strings.Builder, indent string, a *Annotatable) {
	if len(a.annotations) == 0 {
		return
	}
	b.WriteString(indent + "Annotations:\n")
	for _, ann := range a.annotations {
		fmt.Fprintf(b, "%s  %s: %v (%s)\n", indent, ann.name, ann.value, ann.source)
	}
}
