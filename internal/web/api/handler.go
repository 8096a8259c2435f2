// Package api serves a frozen model over HTTP as read-only JSON.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/cli/ui"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
	"github.com/conduit-lang/ormmeta/internal/orm/modelfile"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Handler serves the metadata of one frozen model
type Handler struct {
	mux    chi.Router
	model  *metadata.FrozenModel
	graph  *metadata.DependencyGraph
	logger *zap.Logger
	secret []byte
}

// Option configures a Handler
type Option func(*Handler)

// WithAuth requires a bearer token signed with secret on every route
func WithAuth(secret []byte) Option {
	return func(h *Handler) { h.secret = secret }
}

// NewHandler builds the routes for model. A nil logger discards request logs.
func NewHandler(model *metadata.FrozenModel, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		mux:    chi.NewRouter(),
		model:  model,
		graph:  metadata.NewDependencyGraph(model.Model()),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux.Use(RequestID)
	h.mux.Use(Logging(logger))
	h.mux.Use(middleware.Recoverer)
	if len(h.secret) > 0 {
		h.mux.Use(BearerAuth(h.secret))
	}

	h.mux.Get("/entities", h.listEntities)
	h.mux.Get("/entities/{name}", h.getEntity)
	h.mux.Get("/entities/{name}/slots", h.getSlots)
	h.mux.Get("/order", h.getOrder)
	h.mux.Get("/model.yaml", h.getModelFile)
	h.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no route for %s", r.URL.Path), nil)
	})
	h.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			fmt.Sprintf("%s is not allowed; the API is read-only", r.Method), nil)
	})
	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// EntitySummary is one item of GET /entities
type EntitySummary struct {
	Name           string `json:"name"`
	Shadow         bool   `json:"shadow"`
	ChangeTracking string `json:"change_tracking"`
	Properties     int    `json:"properties"`
	Navigations    int    `json:"navigations"`
}

// EntityDetail is the body of GET /entities/{name}
type EntityDetail struct {
	Name           string           `json:"name"`
	Shadow         bool             `json:"shadow"`
	ChangeTracking string           `json:"change_tracking"`
	AccessMode     string           `json:"access_mode"`
	PrimaryKey     []string         `json:"primary_key,omitempty"`
	Properties     []PropertyDetail `json:"properties"`
	Navigations    []NavigationInfo `json:"navigations"`
	Keys           [][]string       `json:"keys"`
	ForeignKeys    []ForeignKeyInfo `json:"foreign_keys"`
	Indexes        []IndexInfo      `json:"indexes"`
	Annotations    map[string]any   `json:"annotations,omitempty"`
}

// PropertyDetail describes one scalar property
type PropertyDetail struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	Column            string `json:"column"`
	Nullable          bool   `json:"nullable"`
	Shadow            bool   `json:"shadow"`
	PrimaryKey        bool   `json:"primary_key"`
	ForeignKey        bool   `json:"foreign_key"`
	ConcurrencyToken  bool   `json:"concurrency_token"`
	ValueGenerated    string `json:"value_generated"`
	MaxLength         *int   `json:"max_length,omitempty"`
	AccessMode        string `json:"access_mode"`
	ConfigurationFrom string `json:"configuration_source"`
}

// NavigationInfo describes one navigation
type NavigationInfo struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	Collection bool   `json:"collection"`
	Inverse    string `json:"inverse,omitempty"`
}

// ForeignKeyInfo describes one foreign key declared on the entity type
type ForeignKeyInfo struct {
	Properties     []string `json:"properties"`
	Principal      string   `json:"principal"`
	PrincipalKey   []string `json:"principal_key"`
	Unique         bool     `json:"unique"`
	Required       bool     `json:"required"`
	DeleteBehavior string   `json:"delete_behavior"`
}

// IndexInfo describes one index
type IndexInfo struct {
	Properties []string `json:"properties"`
	Unique     bool     `json:"unique"`
}

// SlotInfo is the slot assignment of one member. A slot of -1 means none.
type SlotInfo struct {
	Member         string `json:"member"`
	Kind           string `json:"kind"`
	Index          int    `json:"index"`
	Original       int    `json:"original"`
	Shadow         int    `json:"shadow"`
	Relationship   int    `json:"relationship"`
	StoreGenerated int    `json:"store_generated"`
}

// SlotsResponse is the body of GET /entities/{name}/slots
type SlotsResponse struct {
	EntityType string                  `json:"entity_type"`
	Members    []SlotInfo              `json:"members"`
	Counts     metadata.PropertyCounts `json:"counts"`
}

// OrderResponse is the body of GET /order
type OrderResponse struct {
	Order        []string            `json:"order"`
	Dependencies map[string][]string `json:"dependencies"`
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	entityTypes := h.model.EntityTypes()
	out := make([]EntitySummary, 0, len(entityTypes))
	for _, et := range entityTypes {
		out = append(out, EntitySummary{
			Name:           et.Name(),
			Shadow:         !et.HasClrType(),
			ChangeTracking: et.ChangeTrackingStrategy().String(),
			Properties:     len(et.Properties()),
			Navigations:    len(et.Navigations()),
		})
	}
	renderJSON(w, http.StatusOK, out)
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	et, ok := h.entityType(w, r)
	if !ok {
		return
	}

	detail := EntityDetail{
		Name:           et.Name(),
		Shadow:         !et.HasClrType(),
		ChangeTracking: et.ChangeTrackingStrategy().String(),
		AccessMode:     et.PropertyAccessMode().String(),
		Properties:     []PropertyDetail{},
		Navigations:    []NavigationInfo{},
		Keys:           [][]string{},
		ForeignKeys:    []ForeignKeyInfo{},
		Indexes:        []IndexInfo{},
		Annotations:    annotationValues(et.Annotations()),
	}
	if pk := et.FindPrimaryKey(); pk != nil {
		detail.PrimaryKey = propertyNames(pk.Properties())
	}
	for _, p := range et.Properties() {
		pd := PropertyDetail{
			Name:              p.Name(),
			Type:              modelfile.TypeName(p.ClrType()),
			Column:            p.ColumnName(),
			Nullable:          p.IsNullable(),
			Shadow:            p.IsShadowProperty(),
			PrimaryKey:        p.IsPrimaryKey(),
			ForeignKey:        p.IsForeignKey(),
			ConcurrencyToken:  p.IsConcurrencyToken(),
			ValueGenerated:    p.ValueGenerated().String(),
			AccessMode:        p.PropertyAccessMode().String(),
			ConfigurationFrom: p.ConfigurationSource().String(),
		}
		if n, ok := p.MaxLength(); ok {
			pd.MaxLength = &n
		}
		detail.Properties = append(detail.Properties, pd)
	}
	for _, nav := range et.Navigations() {
		info := NavigationInfo{
			Name:       nav.Name(),
			Target:     nav.TargetEntityType().Name(),
			Collection: nav.IsCollection(),
		}
		if inverse := nav.Inverse(); inverse != nil {
			info.Inverse = inverse.Name()
		}
		detail.Navigations = append(detail.Navigations, info)
	}
	for _, k := range et.Keys() {
		detail.Keys = append(detail.Keys, propertyNames(k.Properties()))
	}
	for _, fk := range et.ForeignKeys() {
		detail.ForeignKeys = append(detail.ForeignKeys, ForeignKeyInfo{
			Properties:     propertyNames(fk.Properties()),
			Principal:      fk.PrincipalEntityType().Name(),
			PrincipalKey:   propertyNames(fk.PrincipalKey().Properties()),
			Unique:         fk.IsUnique(),
			Required:       fk.IsRequired(),
			DeleteBehavior: fk.DeleteBehavior().String(),
		})
	}
	for _, idx := range et.Indexes() {
		detail.Indexes = append(detail.Indexes, IndexInfo{
			Properties: propertyNames(idx.Properties()),
			Unique:     idx.IsUnique(),
		})
	}
	renderJSON(w, http.StatusOK, detail)
}

func (h *Handler) getSlots(w http.ResponseWriter, r *http.Request) {
	et, ok := h.entityType(w, r)
	if !ok {
		return
	}
	resp := SlotsResponse{EntityType: et.Name(), Members: []SlotInfo{}, Counts: et.Counts()}
	for _, p := range et.Properties() {
		resp.Members = append(resp.Members, slotInfo(p))
	}
	for _, nav := range et.Navigations() {
		resp.Members = append(resp.Members, slotInfo(nav))
	}
	renderJSON(w, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.graph.Order()
	if errors.Is(err, metadata.ErrCircularDependency) {
		renderError(w, http.StatusConflict, "circular_dependency", err.Error(), nil)
		return
	}
	if err != nil {
		renderError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
		return
	}
	resp := OrderResponse{Order: order, Dependencies: make(map[string][]string, len(order))}
	for _, name := range order {
		deps := h.graph.Dependencies(name)
		if deps == nil {
			deps = []string{}
		}
		resp.Dependencies[name] = deps
	}
	renderJSON(w, http.StatusOK, resp)
}

func (h *Handler) getModelFile(w http.ResponseWriter, r *http.Request) {
	data, err := modelfile.FromModel(h.model.Model()).Marshal()
	if err != nil {
		h.logger.Error("export model file", zap.Error(err))
		renderError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// entityType resolves the {name} parameter, writing a 404 with suggestions
// when there is no such entity type
func (h *Handler) entityType(w http.ResponseWriter, r *http.Request) (*metadata.EntityType, bool) {
	name := chi.URLParam(r, "name")
	if et := h.model.FindEntityType(name); et != nil {
		return et, true
	}
	known := make([]string, 0)
	for _, et := range h.model.EntityTypes() {
		known = append(known, et.Name())
	}
	renderError(w, http.StatusNotFound, "entity_type_not_found",
		fmt.Sprintf("entity type %q not found", name),
		ui.FindSimilar(name, known, nil))
	return nil, false
}

func slotInfo(member metadata.PropertyBase) SlotInfo {
	idx := member.PropertyIndexes()
	return SlotInfo{
		Member:         member.Name(),
		Kind:           member.Kind().String(),
		Index:          idx.Index,
		Original:       idx.OriginalValueIndex,
		Shadow:         idx.ShadowIndex,
		Relationship:   idx.RelationshipIndex,
		StoreGenerated: idx.StoreGenerationIndex,
	}
}

func annotationValues(annotations []*metadata.Annotation) map[string]any {
	if len(annotations) == 0 {
		return nil
	}
	out := make(map[string]any, len(annotations))
	for _, a := range annotations {
		out[a.Name()] = a.Value()
	}
	return out
}

func propertyNames(props []*metadata.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name()
	}
	return out
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, status int, code, message string, suggestions []string) {
	renderJSON(w, status, ErrorResponse{Error: code, Message: message, Suggestions: suggestions})
}
