//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package field

import (
	"fmt"
)

// ModelIdentifier names one installed model on the server. All parts
// travel together on the wire; the key alone is authoritative.
type ModelIdentifier struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
	Name string `json:"name"`
	Base string `json:"base"`
	Type string `json:"type"`
}

func modelIdentifierFromAny(v any) (ModelIdentifier, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return ModelIdentifier{}, false
	}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	id := ModelIdentifier{
		Key:  str("key"),
		Hash: str("hash"),
		Name: str("name"),
		Base: str("base"),
		Type: str("type"),
	}
	if id.Key == "" && id.Name == "" {
		return ModelIdentifier{}, false
	}
	return id, true
}

func (id ModelIdentifier) toAPI() map[string]any {
	return map[string]any{
		"key":  id.Key,
		"hash": id.Hash,
		"name": id.Name,
		"base": id.Base,
		"type": id.Type,
	}
}

// ModelField holds a model identifier input.
type ModelField struct {
	value *ModelIdentifier
}

// NewModelField builds a model field seeded from slot metadata.
func NewModelField(m Metadata) *ModelField {
	f := &ModelField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *ModelField) Kind() Kind { return KindModel }

// HasValue implements Field.
func (f *ModelField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *ModelField) Clear() { f.value = nil }

// Value returns the current value; the second result reports presence.
func (f *ModelField) Value() (ModelIdentifier, bool) {
	if f.value == nil {
		return ModelIdentifier{}, false
	}
	return *f.value, true
}

// SetValue assigns a value directly.
func (f *ModelField) SetValue(v ModelIdentifier) { f.value = &v }

// Set implements Field.
func (f *ModelField) Set(v any) error {
	switch id := v.(type) {
	case ModelIdentifier:
		f.SetValue(id)
		return nil
	case *ModelIdentifier:
		f.SetValue(*id)
		return nil
	}
	if id, ok := modelIdentifierFromAny(v); ok {
		f.SetValue(id)
		return nil
	}
	return fmt.Errorf("%w: want model identifier, got %T", ErrTypeMismatch, v)
}

// Validate implements Field.
func (f *ModelField) Validate() error {
	if f.value == nil {
		return nil
	}
	if f.value.Key == "" && f.value.Name == "" {
		return validationErrorf("model identifier needs a key or a name")
	}
	return nil
}

// ToAPI implements Field.
func (f *ModelField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return f.value.toAPI(), nil
}

// FromAPI implements Field.
func (f *ModelField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	id, ok := modelIdentifierFromAny(v)
	if !ok {
		return fmt.Errorf("%w: want model identifier, got %T", ErrTypeMismatch, v)
	}
	f.SetValue(id)
	return nil
}

// Describe implements Field.
func (f *ModelField) Describe() Description {
	return Description{Kind: KindModel}
}

// BoardNone addresses the server's uncategorized pseudo-board.
const BoardNone = "none"

// BoardField holds a target board input. The value is the board id;
// BoardNone selects the uncategorized board.
type BoardField struct {
	value *string
}

// NewBoardField builds a board field seeded from slot metadata.
func NewBoardField(m Metadata) *BoardField {
	f := &BoardField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *BoardField) Kind() Kind { return KindBoard }

// HasValue implements Field.
func (f *BoardField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *BoardField) Clear() { f.value = nil }

// Value returns the current board id; the second result reports presence.
func (f *BoardField) Value() (string, bool) {
	if f.value == nil {
		return "", false
	}
	return *f.value, true
}

// SetValue assigns a board id directly.
func (f *BoardField) SetValue(v string) { f.value = &v }

// Set implements Field. Accepts a board id string or a wire object.
func (f *BoardField) Set(v any) error {
	if s, ok := v.(string); ok {
		f.SetValue(s)
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		if id, ok := m["board_id"].(string); ok {
			f.SetValue(id)
			return nil
		}
	}
	return fmt.Errorf("%w: want board id, got %T", ErrTypeMismatch, v)
}

// Validate implements Field.
func (f *BoardField) Validate() error {
	if f.value != nil && *f.value == "" {
		return validationErrorf("board id cannot be empty")
	}
	return nil
}

// ToAPI implements Field.
func (f *BoardField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return map[string]any{"board_id": *f.value}, nil
}

// FromAPI implements Field.
func (f *BoardField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *BoardField) Describe() Description {
	return Description{Kind: KindBoard}
}

// ImageField holds an image reference input by server-side image name.
type ImageField struct {
	value *string
}

// NewImageField builds an image field seeded from slot metadata.
func NewImageField(m Metadata) *ImageField {
	f := &ImageField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *ImageField) Kind() Kind { return KindImage }

// HasValue implements Field.
func (f *ImageField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *ImageField) Clear() { f.value = nil }

// Value returns the current image name; the second result reports presence.
func (f *ImageField) Value() (string, bool) {
	if f.value == nil {
		return "", false
	}
	return *f.value, true
}

// SetValue assigns an image name directly.
func (f *ImageField) SetValue(v string) { f.value = &v }

// Set implements Field. Accepts an image name string or a wire object.
func (f *ImageField) Set(v any) error {
	if s, ok := v.(string); ok {
		f.SetValue(s)
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		if name, ok := m["image_name"].(string); ok {
			f.SetValue(name)
			return nil
		}
	}
	return fmt.Errorf("%w: want image name, got %T", ErrTypeMismatch, v)
}

// Validate implements Field.
func (f *ImageField) Validate() error {
	if f.value != nil && *f.value == "" {
		return validationErrorf("image name cannot be empty")
	}
	return nil
}

// ToAPI implements Field.
func (f *ImageField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return map[string]any{"image_name": *f.value}, nil
}

// FromAPI implements Field.
func (f *ImageField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *ImageField) Describe() Description {
	return Description{Kind: KindImage}
}

// LatentsField holds a latents reference input by server-side name.
type LatentsField struct {
	value *string
}

// NewLatentsField builds a latents field seeded from slot metadata.
func NewLatentsField(m Metadata) *LatentsField {
	f := &LatentsField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *LatentsField) Kind() Kind { return KindLatents }

// HasValue implements Field.
func (f *LatentsField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *LatentsField) Clear() { f.value = nil }

// Value returns the current latents name; the second result reports presence.
func (f *LatentsField) Value() (string, bool) {
	if f.value == nil {
		return "", false
	}
	return *f.value, true
}

// SetValue assigns a latents name directly.
func (f *LatentsField) SetValue(v string) { f.value = &v }

// Set implements Field. Accepts a latents name string or a wire object.
func (f *LatentsField) Set(v any) error {
	if s, ok := v.(string); ok {
		f.SetValue(s)
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		if name, ok := m["latents_name"].(string); ok {
			f.SetValue(name)
			return nil
		}
	}
	return fmt.Errorf("%w: want latents name, got %T", ErrTypeMismatch, v)
}

// Validate implements Field.
func (f *LatentsField) Validate() error {
	if f.value != nil && *f.value == "" {
		return validationErrorf("latents name cannot be empty")
	}
	return nil
}

// ToAPI implements Field.
func (f *LatentsField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return map[string]any{"latents_name": *f.value}, nil
}

// FromAPI implements Field.
func (f *LatentsField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *LatentsField) Describe() Description {
	return Description{Kind: KindLatents}
}

// Color is an 8-bit RGBA color value.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	A int `json:"a"`
}

// ColorField holds an RGBA color input.
type ColorField struct {
	value *Color
}

// NewColorField builds a color field seeded from slot metadata.
func NewColorField(m Metadata) *ColorField {
	f := &ColorField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *ColorField) Kind() Kind { return KindColor }

// HasValue implements Field.
func (f *ColorField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *ColorField) Clear() { f.value = nil }

// Value returns the current color; the second result reports presence.
func (f *ColorField) Value() (Color, bool) {
	if f.value == nil {
		return Color{}, false
	}
	return *f.value, true
}

// SetValue assigns a color directly.
func (f *ColorField) SetValue(v Color) { f.value = &v }

// Set implements Field.
func (f *ColorField) Set(v any) error {
	switch c := v.(type) {
	case Color:
		f.SetValue(c)
		return nil
	case *Color:
		f.SetValue(*c)
		return nil
	case map[string]any:
		color := Color{A: 255}
		for key, dst := range map[string]*int{"r": &color.R, "g": &color.G, "b": &color.B, "a": &color.A} {
			if n, ok := asFloat(c[key]); ok {
				*dst = int(n)
			}
		}
		f.SetValue(color)
		return nil
	}
	return fmt.Errorf("%w: want color, got %T", ErrTypeMismatch, v)
}

// Validate implements Field.
func (f *ColorField) Validate() error {
	if f.value == nil {
		return nil
	}
	for _, component := range []int{f.value.R, f.value.G, f.value.B, f.value.A} {
		if component < 0 || component > 255 {
			return validationErrorf("color component %d outside 0..255", component)
		}
	}
	return nil
}

// ToAPI implements Field.
func (f *ColorField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return map[string]any{
		"r": f.value.R,
		"g": f.value.G,
		"b": f.value.B,
		"a": f.value.A,
	}, nil
}

// FromAPI implements Field.
func (f *ColorField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *ColorField) Describe() Description {
	return Description{Kind: KindColor}
}

// LoRAValue pairs a LoRA model with its application weight.
type LoRAValue struct {
	Model  ModelIdentifier `json:"lora"`
	Weight float64         `json:"weight"`
}

// LoRAField holds a LoRA reference input.
type LoRAField struct {
	value *LoRAValue
}

// NewLoRAField builds a LoRA field seeded from slot metadata.
func NewLoRAField(m Metadata) *LoRAField {
	f := &LoRAField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *LoRAField) Kind() Kind { return KindLoRA }

// HasValue implements Field.
func (f *LoRAField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *LoRAField) Clear() { f.value = nil }

// Value returns the current value; the second result reports presence.
func (f *LoRAField) Value() (LoRAValue, bool) {
	if f.value == nil {
		return LoRAValue{}, false
	}
	return *f.value, true
}

// SetValue assigns a value directly.
func (f *LoRAField) SetValue(v LoRAValue) { f.value = &v }

// Set implements Field.
func (f *LoRAField) Set(v any) error {
	switch lv := v.(type) {
	case LoRAValue:
		f.SetValue(lv)
		return nil
	case *LoRAValue:
		f.SetValue(*lv)
		return nil
	case map[string]any:
		model, ok := modelIdentifierFromAny(lv["lora"])
		if !ok {
			return fmt.Errorf("%w: lora object missing model", ErrTypeMismatch)
		}
		value := LoRAValue{Model: model, Weight: 1}
		if w, ok := asFloat(lv["weight"]); ok {
			value.Weight = w
		}
		f.SetValue(value)
		return nil
	}
	return fmt.Errorf("%w: want lora reference, got %T", ErrTypeMismatch, v)
}

// Validate implements Field.
func (f *LoRAField) Validate() error {
	if f.value == nil {
		return nil
	}
	if f.value.Model.Key == "" && f.value.Model.Name == "" {
		return validationErrorf("lora reference needs a model key or name")
	}
	return nil
}

// ToAPI implements Field.
func (f *LoRAField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return map[string]any{
		"lora":   f.value.Model.toAPI(),
		"weight": f.value.Weight,
	}, nil
}

// FromAPI implements Field.
func (f *LoRAField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *LoRAField) Describe() Description {
	return Description{Kind: KindLoRA}
}

// SchedulerNames lists the scheduler identifiers the server accepts.
var SchedulerNames = []string{
	"ddim", "ddpm", "deis", "deis_k", "lms", "lms_k", "pndm",
	"heun", "heun_k", "euler", "euler_k", "euler_a",
	"kdpm_2", "kdpm_2_k", "kdpm_2_a", "kdpm_2_a_k",
	"dpmpp_2s", "dpmpp_2s_k", "dpmpp_2m", "dpmpp_2m_k",
	"dpmpp_2m_sde", "dpmpp_2m_sde_k", "dpmpp_3m", "dpmpp_3m_k",
	"dpmpp_sde", "dpmpp_sde_k", "unipc", "unipc_k", "lcm", "tcd",
}

// SchedulerField holds a scheduler name input constrained to the
// server's known scheduler set.
type SchedulerField struct {
	value *string
}

// NewSchedulerField builds a scheduler field seeded from slot metadata.
func NewSchedulerField(m Metadata) *SchedulerField {
	f := &SchedulerField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *SchedulerField) Kind() Kind { return KindScheduler }

// HasValue implements Field.
func (f *SchedulerField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *SchedulerField) Clear() { f.value = nil }

// Value returns the current scheduler name; the second result reports presence.
func (f *SchedulerField) Value() (string, bool) {
	if f.value == nil {
		return "", false
	}
	return *f.value, true
}

// SetValue assigns a scheduler name directly.
func (f *SchedulerField) SetValue(v string) { f.value = &v }

// Set implements Field.
func (f *SchedulerField) Set(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: want scheduler name, got %T", ErrTypeMismatch, v)
	}
	f.SetValue(s)
	return nil
}

// Validate implements Field.
func (f *SchedulerField) Validate() error {
	if f.value == nil {
		return nil
	}
	for _, name := range SchedulerNames {
		if name == *f.value {
			return nil
		}
	}
	return validationErrorf("unknown scheduler %q", *f.value)
}

// ToAPI implements Field.
func (f *SchedulerField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return *f.value, nil
}

// FromAPI implements Field.
func (f *SchedulerField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *SchedulerField) Describe() Description {
	return Description{
		Kind:        KindScheduler,
		Constraints: map[string]any{"options": SchedulerNames},
	}
}
