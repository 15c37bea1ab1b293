//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package field

import "strings"

// Rule priorities. Resource kinds outrank shape-based scalar rules so
// that, e.g., a board slot whose value happens to be a string is still
// classified as a board.
const (
	priorityResource = 100
	priorityModel    = 90
	priorityEnum     = 80
	priorityHint     = 40
	priorityScalar   = 20
	priorityText     = 10
)

// Field names whose numeric values are fractional by nature even when
// a particular document stores a whole number.
var floatHintNames = map[string]bool{
	"cfg_scale":                true,
	"cfg_rescale_multiplier":   true,
	"denoising_start":          true,
	"denoising_end":            true,
	"strength":                 true,
	"weight":                   true,
	"guidance":                 true,
	"aesthetic_score":          true,
	"negative_aesthetic_score": true,
}

func valueObject(m Metadata) map[string]any {
	v, _ := m.Value().(map[string]any)
	return v
}

func hasKey(obj map[string]any, key string) bool {
	if obj == nil {
		return false
	}
	_, ok := obj[key]
	return ok
}

// numericBounds returns the declared numeric constraints of a slot.
// Exports may carry bounds without a current value.
func numericBounds(m Metadata) []float64 {
	if m.Raw == nil {
		return nil
	}
	var bounds []float64
	for _, key := range []string{"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum", "multipleOf"} {
		if n, ok := asFloat(m.Raw[key]); ok {
			bounds = append(bounds, n)
		}
	}
	return bounds
}

func init() {
	MustRegister("builtin.board", priorityResource,
		func(m Metadata) bool {
			return m.FieldName == "board" || hasKey(valueObject(m), "board_id")
		},
		func(m Metadata) Field { return NewBoardField(m) },
	)
	MustRegister("builtin.image", priorityResource,
		func(m Metadata) bool {
			return m.FieldName == "image" || hasKey(valueObject(m), "image_name")
		},
		func(m Metadata) Field { return NewImageField(m) },
	)
	MustRegister("builtin.latents", priorityResource,
		func(m Metadata) bool {
			return m.FieldName == "latents" || hasKey(valueObject(m), "latents_name")
		},
		func(m Metadata) Field { return NewLatentsField(m) },
	)
	MustRegister("builtin.color", priorityResource,
		func(m Metadata) bool {
			obj := valueObject(m)
			return m.FieldName == "color" ||
				(hasKey(obj, "r") && hasKey(obj, "g") && hasKey(obj, "b") && hasKey(obj, "a"))
		},
		func(m Metadata) Field { return NewColorField(m) },
	)
	MustRegister("builtin.lora", priorityResource,
		func(m Metadata) bool {
			obj := valueObject(m)
			return m.FieldName == "lora" || (hasKey(obj, "lora") && hasKey(obj, "weight"))
		},
		func(m Metadata) Field { return NewLoRAField(m) },
	)
	MustRegister("builtin.scheduler", priorityResource,
		func(m Metadata) bool { return m.FieldName == "scheduler" },
		func(m Metadata) Field { return NewSchedulerField(m) },
	)
	MustRegister("builtin.model", priorityModel,
		func(m Metadata) bool {
			obj := valueObject(m)
			if hasKey(obj, "key") && hasKey(obj, "base") && hasKey(obj, "type") {
				return true
			}
			return strings.HasSuffix(m.FieldName, "model") ||
				m.FieldName == "vae" || m.FieldName == "unet" || m.FieldName == "transformer"
		},
		func(m Metadata) Field { return NewModelField(m) },
	)
	MustRegister("builtin.enum", priorityEnum,
		func(m Metadata) bool { return len(m.Options()) > 0 },
		func(m Metadata) Field { return NewEnumField(m) },
	)
	MustRegister("builtin.float-hint", priorityHint,
		func(m Metadata) bool {
			_, numeric := asFloat(m.Value())
			return numeric && floatHintNames[m.FieldName]
		},
		func(m Metadata) Field { return NewFloatField(m) },
	)
	MustRegister("builtin.boolean", priorityScalar,
		func(m Metadata) bool {
			_, ok := m.Value().(bool)
			return ok
		},
		func(m Metadata) Field { return NewBooleanField(m) },
	)
	MustRegister("builtin.integer", priorityScalar,
		func(m Metadata) bool {
			if n, ok := asFloat(m.Value()); ok {
				return isIntegral(n)
			}
			if m.Value() != nil {
				return false
			}
			bounds := numericBounds(m)
			if len(bounds) == 0 {
				return false
			}
			for _, b := range bounds {
				if !isIntegral(b) {
					return false
				}
			}
			return true
		},
		func(m Metadata) Field { return NewIntegerField(m) },
	)
	MustRegister("builtin.float", priorityScalar,
		func(m Metadata) bool {
			if _, ok := asFloat(m.Value()); ok {
				return true
			}
			return m.Value() == nil && len(numericBounds(m)) > 0
		},
		func(m Metadata) Field { return NewFloatField(m) },
	)
	MustRegister("builtin.string", priorityText,
		func(m Metadata) bool {
			_, ok := m.Value().(string)
			return ok
		},
		func(m Metadata) Field { return NewStringField(m) },
	)
}
