//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"github.com/tidwall/gjson"

	"github.com/CodeGandee/invokeai-go-client/field"
	"github.com/CodeGandee/invokeai-go-client/log"
)

// Form element kinds contributing to discovery. Any other element kind
// is passed through and contributes no inputs.
const (
	elementContainer = "container"
	elementNodeField = "node-field"
)

// Input describes one user-configurable input discovered from the
// form tree. Its index is stable for a given document revision.
type Input struct {
	// Index is the zero-based position in depth-first form order.
	Index int
	// NodeID and FieldName identify the underlying node input.
	NodeID    string
	FieldName string
	// Label is the user-visible label: the form leaf's label, falling
	// back to the node label, then to the field name.
	Label string
	// Required reports whether the node schema marks the field required.
	Required bool
	// PathRef addresses the value-bearing slot inside the raw
	// document. It is computed here and used verbatim at submit time.
	PathRef string
	// Field is the typed value holder. Its concrete type is fixed at
	// discovery and never changes.
	Field field.Field
}

// discover walks the form tree depth-first and produces the ordered
// input list. Malformed leaves are skipped with a warning; they are
// never fatal. The document's exposedFields list plays no role here.
func discover(def *Definition, registry *field.Registry, strict bool) ([]*Input, error) {
	form := def.get("form")
	elements := form.Get("elements")
	if !elements.Exists() || !elements.IsObject() {
		return nil, nil
	}

	rootID := form.Get("rootElementId").String()
	if rootID == "" {
		rootID = "root"
	}

	var inputs []*Input
	stack := []string{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		element := elements.Get(escapeKey(id))
		if !element.Exists() {
			log.Warnf("workflow %q: form element %q not found, skipping", def.Name(), id)
			continue
		}

		switch element.Get("type").String() {
		case elementContainer:
			children := element.Get("data.children").Array()
			// Reversed push so the declared child order pops first.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i].String())
			}
		case elementNodeField:
			input, err := describeLeaf(def, registry, strict, element, len(inputs))
			if err != nil {
				return nil, err
			}
			if input != nil {
				inputs = append(inputs, input)
			}
		}
	}
	return inputs, nil
}

// describeLeaf resolves one node-field leaf to an input descriptor. A
// nil, nil return means the leaf was malformed and skipped.
func describeLeaf(def *Definition, registry *field.Registry, strict bool, element gjson.Result, index int) (*Input, error) {
	nodeID := element.Get("data.fieldIdentifier.nodeId").String()
	fieldName := element.Get("data.fieldIdentifier.fieldName").String()
	if nodeID == "" || fieldName == "" {
		log.Warnf("workflow %q: form leaf %q has no field identifier, skipping",
			def.Name(), element.Get("id").String())
		return nil, nil
	}

	node := def.node(nodeID)
	if !node.Exists() {
		log.Warnf("workflow %q: form leaf references unknown node %q, skipping", def.Name(), nodeID)
		return nil, nil
	}
	slot := node.Get("inputs." + escapeKey(fieldName))
	if !slot.Exists() || !slot.IsObject() {
		log.Warnf("workflow %q: node %q has no input %q, skipping", def.Name(), nodeID, fieldName)
		return nil, nil
	}

	raw, _ := slot.Value().(map[string]any)
	meta := field.Metadata{
		NodeType:  node.Get("type").String(),
		FieldName: fieldName,
		Label:     slot.Get("label").String(),
		Raw:       raw,
	}

	var typed field.Field
	if strict {
		var err error
		typed, err = registry.ClassifyStrict(meta)
		if err != nil {
			return nil, err
		}
	} else {
		typed = registry.Classify(meta)
	}

	label := element.Get("data.label").String()
	if label == "" {
		label = node.Get("label").String()
	}
	if label == "" {
		label = fieldName
	}

	required := false
	for _, name := range node.Get("required").Array() {
		if name.String() == fieldName {
			required = true
			break
		}
	}

	return &Input{
		Index:     index,
		NodeID:    nodeID,
		FieldName: fieldName,
		Label:     label,
		Required:  required,
		PathRef:   slotPath(nodeID, fieldName),
		Field:     typed,
	}, nil
}
