package metadata

import (
	"reflect"

	"go.uber.org/zap"
)

// Well-known annotation names
const (
	AnnotationPropertyAccessMode = "PropertyAccessMode"
	AnnotationMaxLength          = "MaxLength"
	AnnotationColumnName         = "ColumnName"
	AnnotationTableName          = "Table"
)

// Annotation is a named value tagged with the configuration source that set it
type Annotation struct {
	name   string
	value  any
	source ConfigurationSource
}

// Name returns the annotation name
func (a *Annotation) Name() string { return a.name }

// Value returns the annotation value
func (a *Annotation) Value() any { return a.value }

// Source returns the configuration source of the annotation
func (a *Annotation) Source() ConfigurationSource { return a.source }

// Annotatable is the annotation store embedded in every metadata node.
// A nil value is the absence marker: setting it removes the annotation.
type Annotatable struct {
	annotations []*Annotation
	byName      map[string]*Annotation
	model       *Model
	onChange    func(name string)
}

func (a *Annotatable) init(model *Model, onChange func(string)) {
	a.model = model
	a.onChange = onChange
}

func (a *Annotatable) logger() *zap.Logger {
	if a.model == nil || a.model.logger == nil {
		return zap.NewNop()
	}
	return a.model.logger
}

func (a *Annotatable) frozen() bool {
	return a.model != nil && a.model.IsFrozen()
}

// FindAnnotation returns the annotation with the given name, or nil
func (a *Annotatable) FindAnnotation(name string) *Annotation {
	return a.byName[name]
}

// Annotations returns all annotations in insertion order
func (a *Annotatable) Annotations() []*Annotation {
	out := make([]*Annotation, len(a.annotations))
	copy(out, a.annotations)
	return out
}

// AddAnnotation adds a new annotation and fails if the name is already used
func (a *Annotatable) AddAnnotation(name string, value any, source ConfigurationSource) (*Annotation, error) {
	if a.frozen() {
		return nil, ErrModelFrozen
	}
	if _, exists := a.byName[name]; exists {
		return nil, &ConfigError{Member: name, Err: ErrDuplicateAnnotation}
	}
	if value == nil {
		return nil, nil
	}
	ann := a.insert(name, value, source)
	a.notify(name)
	return ann, nil
}

// SetAnnotation sets the annotation value if source may override the current
// one. It reports whether the store now reflects the request; a rejected write
// leaves the annotation unchanged.
func (a *Annotatable) SetAnnotation(name string, value any, source ConfigurationSource) bool {
	return a.setAnnotation(name, value, source, true)
}

// CanSetAnnotation reports whether SetAnnotation would be accepted
func (a *Annotatable) CanSetAnnotation(name string, value any, source ConfigurationSource) bool {
	if a.frozen() {
		return false
	}
	existing := a.byName[name]
	if existing == nil {
		return true
	}
	if reflect.DeepEqual(existing.value, value) {
		return true
	}
	return canOverride(source, existing.source, true)
}

// RemoveAnnotation removes the annotation and returns it, or nil if absent
func (a *Annotatable) RemoveAnnotation(name string) *Annotation {
	if a.frozen() {
		return nil
	}
	ann := a.remove(name)
	if ann != nil {
		a.notify(name)
	}
	return ann
}

// MergeAnnotationsFrom copies the annotations of other into a. A value set
// with the same source as the existing one is not overwritten.
func (a *Annotatable) MergeAnnotationsFrom(other *Annotatable) {
	for _, ann := range other.annotations {
		a.setAnnotation(ann.name, ann.value, ann.source, false)
	}
}

func (a *Annotatable) setAnnotation(name string, value any, source ConfigurationSource, canOverrideSameSource bool) bool {
	if a.frozen() {
		a.logger().Warn("annotation change on frozen model ignored", zap.String("annotation", name))
		return false
	}

	existing := a.byName[name]
	if existing != nil {
		if reflect.DeepEqual(existing.value, value) {
			existing.source = MaxSource(existing.source, source)
			return true
		}
		if !canOverride(source, existing.source, canOverrideSameSource) {
			a.logger().Debug("annotation change rejected",
				zap.String("annotation", name),
				zap.Stringer("source", source),
				zap.Stringer("existing_source", existing.source))
			return false
		}
	}

	if value == nil {
		if existing != nil {
			a.remove(name)
			a.notify(name)
		}
		return true
	}

	if existing != nil {
		existing.value = value
		existing.source = source
	} else {
		a.insert(name, value, source)
	}
	a.notify(name)
	return true
}

func canOverride(source, existing ConfigurationSource, canOverrideSameSource bool) bool {
	if !source.Overrides(existing) {
		return false
	}
	return canOverrideSameSource || source != existing
}

func (a *Annotatable) insert(name string, value any, source ConfigurationSource) *Annotation {
	if a.byName == nil {
		a.byName = make(map[string]*Annotation)
	}
	ann := &Annotation{name: name, value: value, source: source}
	a.annotations = append(a.annotations, ann)
	a.byName[name] = ann
	return ann
}

func (a *Annotatable) remove(name string) *Annotation {
	ann, ok := a.byName[name]
	if !ok {
		return nil
	}
	delete(a.byName, name)
	for i, candidate := range a.annotations {
		if candidate == ann {
			a.annotations = append(a.annotations[:i], a.annotations[i+1:]...)
			break
		}
	}
	return ann
}

func (a *Annotatable) notify(name string) {
	if a.onChange != nil {
		a.onChange(name)
	}
}

func accessModeAnnotation(a *Annotatable) (PropertyAccessMode, bool) {
	ann := a.FindAnnotation(AnnotationPropertyAccessMode)
	if ann == nil {
		return AccessModeDefault, false
	}
	mode, ok := ann.value.(PropertyAccessMode)
	return mode, ok
}
