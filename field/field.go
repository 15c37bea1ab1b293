//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

// Package field defines the typed input fields of a workflow and the
// registry that classifies raw workflow slots into field kinds.
package field

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the semantic tag of a field variant. It doubles as the
// type_tag recorded in exported index maps.
type Kind string

// Built-in field kinds.
const (
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindString    Kind = "string"
	KindEnum      Kind = "enum"
	KindModel     Kind = "model_identifier"
	KindBoard     Kind = "board"
	KindImage     Kind = "image"
	KindLatents   Kind = "latents"
	KindColor     Kind = "color"
	KindLoRA      Kind = "lora"
	KindScheduler Kind = "scheduler"
)

var (
	// ErrTypeMismatch is returned when a value of the wrong type is
	// assigned to a field.
	ErrTypeMismatch = errors.New("field type mismatch")
	// ErrUnresolvedField is returned by strict classification when no
	// registered rule matches a slot.
	ErrUnresolvedField = errors.New("unresolved field kind")
	// ErrNoValue is returned when a field with no value is serialized.
	ErrNoValue = errors.New("field has no value")
)

// Metadata describes one value-bearing slot of a workflow node. It is
// the input to classification rules and constructors.
type Metadata struct {
	// NodeType is the invocation type of the owning node, e.g. "noise".
	NodeType string
	// FieldName is the input name inside the node, e.g. "width".
	FieldName string
	// Label is the slot's own label, may be empty.
	Label string
	// Raw is the value-bearing slot object as found in the document.
	Raw map[string]any
}

// Value returns the slot's current literal value, or nil.
func (m Metadata) Value() any {
	if m.Raw == nil {
		return nil
	}
	return m.Raw["value"]
}

// Options returns the slot's declared enum options, if any.
func (m Metadata) Options() []string {
	raw, ok := m.Raw["options"].([]any)
	if !ok {
		return nil
	}
	options := make([]string, 0, len(raw))
	for _, o := range raw {
		if s, ok := o.(string); ok {
			options = append(options, s)
		}
	}
	return options
}

// Description is the uniform self-description every field exposes.
type Description struct {
	Kind        Kind           `json:"kind"`
	Constraints map[string]any `json:"constraints,omitempty"`
	// Unresolved marks fallback fields produced when no rule matched.
	Unresolved bool `json:"unresolved,omitempty"`
}

// Field is the uniform capability set of a typed input. Concrete
// variants live in this package; third parties add their own via the
// registry without touching discovery code.
type Field interface {
	// Kind returns the semantic tag of the field.
	Kind() Kind
	// HasValue reports whether the field currently holds a value.
	HasValue() bool
	// Clear drops the current value.
	Clear()
	// Set assigns a value, rejecting values of the wrong type with
	// ErrTypeMismatch. Constraints are not checked here; call Validate.
	Set(v any) error
	// Validate checks the current value against the field's
	// constraints. A nil return means the value is acceptable.
	Validate() error
	// ToAPI serializes the current value into its wire form.
	ToAPI() (any, error)
	// FromAPI deserializes a wire value into the field.
	FromAPI(v any) error
	// Describe returns the field's self-description.
	Describe() Description
}

// ValidationError carries the ordered messages of a failed validation.
type ValidationError struct {
	Messages []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Messages, "; "))
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Messages: []string{fmt.Sprintf(format, args...)}}
}

// asFloat normalizes the numeric representations a decoded JSON value
// may take.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func isIntegral(f float64) bool {
	return f == float64(int64(f))
}
