// Package modelfile reads a YAML description of a model and applies it with
// the Explicit configuration source.
//
// A model file configures what conventions and struct tags cannot express,
// or overrides them:
//
//	access_mode: field
//	entities:
//	  - name: order
//	    key: [Id]
//	    properties:
//	      - name: LastModified
//	        type: time
//	      - name: Total
//	        max_length: 12
//	    foreign_keys:
//	      - properties: [CustomerID]
//	        principal: customer
//	        navigation: Customer
//	        inverse: Orders
//
// Entities without a registered Go type become shadow entity types; their
// properties need a type.
package modelfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Document is a parsed model file
type Document struct {
	ChangeTracking string    `yaml:"change_tracking,omitempty" validate:"omitempty,oneof=snapshot changed_notifications changing_and_changed_notifications changing_and_changed_notifications_with_original_values"`
	AccessMode     string    `yaml:"access_mode,omitempty" validate:"omitempty,accessmode"`
	Entities       []*Entity `yaml:"entities" validate:"required,min=1,dive,required"`
}

// Entity configures one entity type
type Entity struct {
	Name           string         `yaml:"name" validate:"required"`
	ChangeTracking string         `yaml:"change_tracking,omitempty" validate:"omitempty,oneof=snapshot changed_notifications changing_and_changed_notifications changing_and_changed_notifications_with_original_values"`
	AccessMode     string         `yaml:"access_mode,omitempty" validate:"omitempty,accessmode"`
	Properties     []*Property    `yaml:"properties,omitempty" validate:"dive,required"`
	Key            []string       `yaml:"key,omitempty" validate:"dive,required"`
	Keys           [][]string     `yaml:"keys,omitempty" validate:"dive,min=1,dive,required"`
	Indexes        []*Index       `yaml:"indexes,omitempty" validate:"dive,required"`
	ForeignKeys    []*ForeignKey  `yaml:"foreign_keys,omitempty" validate:"dive,required"`
	Ignore         []string       `yaml:"ignore,omitempty" validate:"dive,required"`
	Annotations    map[string]any `yaml:"annotations,omitempty"`
}

// Property configures one property
type Property struct {
	Name             string         `yaml:"name" validate:"required"`
	Type             string         `yaml:"type,omitempty" validate:"omitempty,scalartype"`
	Nullable         *bool          `yaml:"nullable,omitempty"`
	MaxLength        *int           `yaml:"max_length,omitempty" validate:"omitempty,min=0"`
	ConcurrencyToken *bool          `yaml:"concurrency_token,omitempty"`
	ValueGenerated   string         `yaml:"value_generated,omitempty" validate:"omitempty,oneof=never on_add on_update on_add_or_update"`
	Column           string         `yaml:"column,omitempty"`
	Field            string         `yaml:"field,omitempty"`
	AccessMode       string         `yaml:"access_mode,omitempty" validate:"omitempty,accessmode"`
	Annotations      map[string]any `yaml:"annotations,omitempty"`
}

// Index configures one index
type Index struct {
	Properties []string `yaml:"properties" validate:"required,min=1,dive,required"`
	Unique     bool     `yaml:"unique,omitempty"`
}

// ForeignKey configures one relationship from the enclosing entity to a principal
type ForeignKey struct {
	Properties     []string `yaml:"properties" validate:"required,min=1,dive,required"`
	Principal      string   `yaml:"principal" validate:"required"`
	PrincipalKey   []string `yaml:"principal_key,omitempty" validate:"dive,required"`
	Unique         *bool    `yaml:"unique,omitempty"`
	Required       *bool    `yaml:"required,omitempty"`
	DeleteBehavior string   `yaml:"delete_behavior,omitempty" validate:"omitempty,oneof=client_set_null restrict set_null cascade"`
	Navigation     string   `yaml:"navigation,omitempty"`
	Inverse        string   `yaml:"inverse,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("scalartype", func(fl validator.FieldLevel) bool {
		_, ok := TypeOf(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("accessmode", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "default", "field_during_construction", "field", "property":
			return true
		default:
			return false
		}
	})
	return v
}

// Parse decodes and validates a model file. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses the model file at path
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Validate checks the document structure. It does not resolve names against a model.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Marshal encodes the document as YAML
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Document.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "scalartype":
		return fmt.Sprintf("%s: unknown type %q (known: %s)", field, e.Value(), strings.Join(TypeNames(), ", "))
	case "accessmode":
		return fmt.Sprintf("%s: unknown access mode %q", field, e.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
