package metadata

import (
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

// Model owns every entity type of one mapping. It is mutated by a single owner
// during the build phase and becomes read-only once frozen.
type Model struct {
	Annotatable

	logger         *zap.Logger
	entityTypes    map[string]*EntityType
	clrTypeMap     map[reflect.Type]*EntityType
	changeTracking ChangeTrackingStrategy
	frozen         atomic.Bool
}

// ModelOption configures a new Model
type ModelOption func(*Model)

// WithLogger sets the logger used for diagnostics
func WithLogger(logger *zap.Logger) ModelOption {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithChangeTrackingStrategy sets the strategy inherited by entity types
func WithChangeTrackingStrategy(strategy ChangeTrackingStrategy) ModelOption {
	return func(m *Model) { m.changeTracking = strategy }
}

// WithPropertyAccessMode sets the model-wide access mode with the Explicit source
func WithPropertyAccessMode(mode PropertyAccessMode) ModelOption {
	return func(m *Model) { m.SetPropertyAccessMode(mode, Explicit) }
}

// NewModel creates an empty mutable model
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		logger:      zap.NewNop(),
		entityTypes: make(map[string]*EntityType),
		clrTypeMap:  make(map[reflect.Type]*EntityType),
	}
	m.Annotatable.init(m, func(name string) {
		if name == AnnotationPropertyAccessMode {
			m.resetCaches()
		}
	})
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Logger returns the model logger
func (m *Model) Logger() *zap.Logger { return m.logger }

// IsFrozen reports whether the model has been frozen
func (m *Model) IsFrozen() bool { return m.frozen.Load() }

func (m *Model) checkMutable() error {
	if m.IsFrozen() {
		return ErrModelFrozen
	}
	return nil
}

// AddEntityType adds an entity type without a Go type
func (m *Model) AddEntityType(name string, source ConfigurationSource) (*EntityType, error) {
	return m.addEntityType(name, nil, source)
}

// AddEntityTypeFor adds an entity type backed by the registered Go type ti
func (m *Model) AddEntityTypeFor(ti *members.TypeInfo, source ConfigurationSource) (*EntityType, error) {
	if ti == nil {
		return nil, fmt.Errorf("%w: nil type info", members.ErrNotStruct)
	}
	return m.addEntityType(ti.Name(), ti, source)
}

func (m *Model) addEntityType(name string, ti *members.TypeInfo, source ConfigurationSource) (*EntityType, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if _, exists := m.entityTypes[name]; exists {
		return nil, &ConfigError{EntityType: name, Err: ErrDuplicateEntityType}
	}
	if ti != nil {
		if other, exists := m.clrTypeMap[ti.Type()]; exists {
			return nil, &ConfigError{EntityType: name, Err: ErrDuplicateClrType,
				Detail: fmt.Sprintf("%v is mapped by '%s'", ti.Type(), other.name)}
		}
	}

	et := newEntityType(m, name, ti, source)
	m.entityTypes[name] = et
	if ti != nil {
		m.clrTypeMap[ti.Type()] = et
	}
	m.logger.Debug("entity type added",
		zap.String("entity_type", name),
		zap.Bool("shadow", ti == nil),
		zap.Stringer("source", source))
	return et, nil
}

// FindEntityType returns the entity type with the given name, or nil
func (m *Model) FindEntityType(name string) *EntityType {
	return m.entityTypes[name]
}

// FindEntityTypeFor returns the entity type mapped to the Go type t, or nil.
// Pointer types are dereferenced.
func (m *Model) FindEntityTypeFor(t reflect.Type) *EntityType {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return m.clrTypeMap[t]
}

// EntityTypes returns all entity types ordered by name
func (m *Model) EntityTypes() []*EntityType {
	out := make([]*EntityType, 0, len(m.entityTypes))
	for _, et := range m.entityTypes {
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// RemoveEntityType removes et together with its own foreign keys. It fails
// while another entity type references et through a foreign key.
func (m *Model) RemoveEntityType(et *EntityType) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if m.entityTypes[et.name] != et {
		return &ConfigError{EntityType: et.name, Err: ErrEntityTypeModelMismatch}
	}
	for _, fk := range et.referencingForeignKeys {
		if fk.declaringType != et {
			return configErr(et, "", ErrEntityTypeInUse, "referenced by %s", fk)
		}
	}
	for _, fk := range et.ForeignKeys() {
		if err := et.RemoveForeignKey(fk); err != nil {
			return err
		}
	}
	delete(m.entityTypes, et.name)
	if et.typeInfo != nil {
		delete(m.clrTypeMap, et.typeInfo.Type())
	}
	et.model = nil
	return nil
}

// ChangeTrackingStrategy returns the default strategy for entity types
func (m *Model) ChangeTrackingStrategy() ChangeTrackingStrategy { return m.changeTracking }

// SetChangeTrackingStrategy sets the default strategy for entity types
func (m *Model) SetChangeTrackingStrategy(strategy ChangeTrackingStrategy) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.changeTracking = strategy
	m.resetCaches()
	return nil
}

// PropertyAccessMode returns the model-wide access mode
func (m *Model) PropertyAccessMode() PropertyAccessMode {
	mode, _ := accessModeAnnotation(&m.Annotatable)
	return mode
}

// SetPropertyAccessMode sets the model-wide access mode
func (m *Model) SetPropertyAccessMode(mode PropertyAccessMode, source ConfigurationSource) bool {
	return m.SetAnnotation(AnnotationPropertyAccessMode, mode, source)
}

func (m *Model) resetCaches() {
	for _, et := range m.entityTypes {
		et.resetCaches()
	}
}

// Validate checks model-wide invariants and reports every violation
func (m *Model) Validate() error {
	var err error
	for _, et := range m.EntityTypes() {
		if et.primaryKey == nil {
			err = multierr.Append(err, &ConfigError{EntityType: et.name, Err: ErrMissingPrimaryKey})
		}
		for _, nav := range et.navigations {
			if nav.TargetEntityType().model != m {
				err = multierr.Append(err, configErr(et, nav.name, ErrEntityTypeModelMismatch, ""))
			}
		}
	}
	return err
}

// Freeze validates the model and makes it read-only. Derived caches are
// computed on first access afterwards and may be read concurrently.
func (m *Model) Freeze() (*FrozenModel, error) {
	if m.IsFrozen() {
		return &FrozenModel{model: m}, nil
	}
	if err := m.Validate(); err != nil {
		m.logger.Debug("model validation failed", zap.Error(err))
		return nil, err
	}
	m.resetCaches()
	m.frozen.Store(true)
	m.logger.Debug("model frozen", zap.Int("entity_types", len(m.entityTypes)))
	return &FrozenModel{model: m}, nil
}

// FrozenModel is the read-only view of a frozen Model
type FrozenModel struct {
	model *Model
}

// Model returns the underlying model. Its mutators return ErrModelFrozen.
func (f *FrozenModel) Model() *Model { return f.model }

// FindEntityType returns the entity type with the given name, or nil
func (f *FrozenModel) FindEntityType(name string) *EntityType { return f.model.FindEntityType(name) }

// FindEntityTypeFor returns the entity type mapped to the Go type t, or nil
func (f *FrozenModel) FindEntityTypeFor(t reflect.Type) *EntityType {
	return f.model.FindEntityTypeFor(t)
}

// EntityTypes returns all entity types ordered by name
func (f *FrozenModel) EntityTypes() []*EntityType { return f.model.EntityTypes() }

// DebugView returns a textual dump of the model
func (f *FrozenModel) DebugView() string { return f.model.DebugView() }
