//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/CodeGandee/invokeai-go-client/field"
)

// Handle binds a parsed definition to its discovered inputs and is the
// caller's surface for reading, mutating, validating, and submitting a
// workflow.
//
// A Handle is not safe for concurrent mutation. Concurrent reads of
// Inputs after construction are safe.
type Handle struct {
	def    *Definition
	inputs []*Input
}

// Option configures handle construction.
type Option func(*options)

type options struct {
	registry *field.Registry
	strict   bool
}

// WithRegistry uses a custom field type registry instead of the
// process-wide default.
func WithRegistry(r *field.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithStrictTypes makes discovery fail with an unresolved-field error
// instead of degrading unknown slots to string fields.
func WithStrictTypes(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// New discovers the inputs of a parsed definition and returns a handle
// over them.
func New(def *Definition, opts ...Option) (*Handle, error) {
	o := options{registry: field.DefaultRegistry}
	for _, opt := range opts {
		opt(&o)
	}
	inputs, err := discover(def, o.registry, o.strict)
	if err != nil {
		return nil, err
	}
	return &Handle{def: def, inputs: inputs}, nil
}

// Definition returns the underlying immutable snapshot.
func (h *Handle) Definition() *Definition { return h.def }

// Inputs returns the discovered inputs in form order. The returned
// slice is shared; callers must not reorder it.
func (h *Handle) Inputs() []*Input { return h.inputs }

// Input returns the descriptor at the given index.
func (h *Handle) Input(index int) (*Input, error) {
	if index < 0 || index >= len(h.inputs) {
		return nil, fmt.Errorf("%w: %d (have %d inputs)", ErrUnknownInputIndex, index, len(h.inputs))
	}
	return h.inputs[index], nil
}

// GetInputValue returns the mutable field object at the given index.
// Mutating the field is the sanctioned way to change its value.
func (h *Handle) GetInputValue(index int) (field.Field, error) {
	input, err := h.Input(index)
	if err != nil {
		return nil, err
	}
	return input.Field, nil
}

// SetInputValue assigns a value to the input at the given index. The
// value may be a raw Go value or a Field of the same kind; a value of
// the wrong type is rejected with field.ErrTypeMismatch. The input is
// validated after assignment.
func (h *Handle) SetInputValue(index int, value any) error {
	input, err := h.Input(index)
	if err != nil {
		return err
	}
	if replacement, ok := value.(field.Field); ok {
		if replacement.Kind() != input.Field.Kind() {
			return fmt.Errorf("%w: input %d is %s, got %s",
				field.ErrTypeMismatch, index, input.Field.Kind(), replacement.Kind())
		}
		if !replacement.HasValue() {
			input.Field.Clear()
			return nil
		}
		wire, err := replacement.ToAPI()
		if err != nil {
			return err
		}
		if err := input.Field.FromAPI(wire); err != nil {
			return err
		}
	} else if err := input.Field.Set(value); err != nil {
		return err
	}
	if result := h.mustValidate(input); !result.OK() {
		return fmt.Errorf("%w: input %d: %v", ErrValidationFailed, index, result.Errors)
	}
	return nil
}

// ValidationResult reports the outcome of validating one input.
type ValidationResult struct {
	Index  int
	Errors []string
}

// OK reports whether validation passed.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// ValidateInput validates the input at the given index against its
// field constraints. Required inputs with no value fail.
func (h *Handle) ValidateInput(index int) (ValidationResult, error) {
	input, err := h.Input(index)
	if err != nil {
		return ValidationResult{}, err
	}
	return h.mustValidate(input), nil
}

func (h *Handle) mustValidate(input *Input) ValidationResult {
	result := ValidationResult{Index: input.Index}
	if input.Required && !input.Field.HasValue() {
		result.Errors = append(result.Errors,
			fmt.Sprintf("required input %q (%s.%s) has no value", input.Label, input.NodeID, input.FieldName))
		return result
	}
	if err := input.Field.Validate(); err != nil {
		var verr *field.ValidationError
		if errors.As(err, &verr) {
			result.Errors = append(result.Errors, verr.Messages...)
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
	}
	return result
}

// ValidateAll validates every input and returns the failing ones keyed
// by input index. An empty map means the workflow is ready to submit.
func (h *Handle) ValidateAll() map[int][]string {
	failures := make(map[int][]string)
	for _, input := range h.inputs {
		if result := h.mustValidate(input); !result.OK() {
			failures[input.Index] = result.Errors
		}
	}
	return failures
}

// OutputCapability declares that a node type produces assets and names
// the destination fields that make it user-routable.
type OutputCapability struct {
	// DestinationFields are the input names that route the produced
	// asset, the target board foremost.
	DestinationFields []string
	// OutputType is the server's result type tag, e.g. "image_output".
	OutputType string
}

var (
	outputCapabilityMu sync.RWMutex
	// Asset-producing node families recognized out of the box.
	outputCapabilities = map[string]OutputCapability{
		"save_image":      {DestinationFields: []string{"board"}, OutputType: "image_output"},
		"l2i":             {DestinationFields: []string{"board"}, OutputType: "image_output"},
		"flux_vae_decode": {DestinationFields: []string{"board"}, OutputType: "image_output"},
		"sd3_l2i":         {DestinationFields: []string{"board"}, OutputType: "image_output"},
		"cogview4_l2i":    {DestinationFields: []string{"board"}, OutputType: "image_output"},
		"canvas_v2_mask_and_crop": {
			DestinationFields: []string{"board"},
			OutputType:        "image_output",
		},
	}
)

// RegisterOutputCapability recognizes an additional asset-producing
// node type. Intended for servers with custom invocations.
func RegisterOutputCapability(nodeType string, capability OutputCapability) {
	outputCapabilityMu.Lock()
	defer outputCapabilityMu.Unlock()
	outputCapabilities[nodeType] = capability
}

func outputCapability(nodeType string) (OutputCapability, bool) {
	outputCapabilityMu.RLock()
	defer outputCapabilityMu.RUnlock()
	capability, ok := outputCapabilities[nodeType]
	return capability, ok
}

// OutputNode describes a node whose produced assets are routed by a
// form-exposed destination field.
type OutputNode struct {
	NodeID   string
	NodeType string
	// OutputType is the server's result type tag for this node.
	OutputType string
	// DestinationIndex is the input index of the form-exposed
	// destination field (the board input).
	DestinationIndex int
}

// OutputNodes classifies the document's output nodes: nodes with an
// asset-producing type whose destination field appears in the form.
// Asset-producing nodes without a form-exposed destination are debug
// nodes and are excluded.
func (h *Handle) OutputNodes() []OutputNode {
	byNode := make(map[string]*OutputNode)
	for _, input := range h.inputs {
		node := h.def.node(input.NodeID)
		capability, ok := outputCapability(node.Get("type").String())
		if !ok {
			continue
		}
		for _, dest := range capability.DestinationFields {
			if input.FieldName != dest {
				continue
			}
			if _, seen := byNode[input.NodeID]; !seen {
				byNode[input.NodeID] = &OutputNode{
					NodeID:           input.NodeID,
					NodeType:         node.Get("type").String(),
					OutputType:       capability.OutputType,
					DestinationIndex: input.Index,
				}
			}
		}
	}

	outputs := make([]OutputNode, 0, len(byNode))
	for _, output := range byNode {
		outputs = append(outputs, *output)
	}
	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].DestinationIndex < outputs[j].DestinationIndex
	})
	return outputs
}
