//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package field

import (
	"fmt"
	"regexp"
)

// IntegerField holds a whole-number input, optionally bounded.
type IntegerField struct {
	value *int64
	// Min and Max bound the accepted range when non-nil.
	Min *int64
	Max *int64
}

// NewIntegerField builds an integer field seeded from slot metadata.
func NewIntegerField(m Metadata) *IntegerField {
	f := &IntegerField{}
	if min, ok := asFloat(m.Raw["minimum"]); ok {
		v := int64(min)
		f.Min = &v
	}
	if max, ok := asFloat(m.Raw["maximum"]); ok {
		v := int64(max)
		f.Max = &v
	}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *IntegerField) Kind() Kind { return KindInteger }

// HasValue implements Field.
func (f *IntegerField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *IntegerField) Clear() { f.value = nil }

// Value returns the current value; the second result reports presence.
func (f *IntegerField) Value() (int64, bool) {
	if f.value == nil {
		return 0, false
	}
	return *f.value, true
}

// SetValue assigns a value directly.
func (f *IntegerField) SetValue(v int64) { f.value = &v }

// Set implements Field. Floats are rejected unless integral.
func (f *IntegerField) Set(v any) error {
	n, ok := asFloat(v)
	if !ok || !isIntegral(n) {
		return fmt.Errorf("%w: want integer, got %T(%v)", ErrTypeMismatch, v, v)
	}
	f.SetValue(int64(n))
	return nil
}

// Validate implements Field.
func (f *IntegerField) Validate() error {
	if f.value == nil {
		return nil
	}
	if f.Min != nil && *f.value < *f.Min {
		return validationErrorf("value %d below minimum %d", *f.value, *f.Min)
	}
	if f.Max != nil && *f.value > *f.Max {
		return validationErrorf("value %d above maximum %d", *f.value, *f.Max)
	}
	return nil
}

// ToAPI implements Field.
func (f *IntegerField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return *f.value, nil
}

// FromAPI implements Field.
func (f *IntegerField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *IntegerField) Describe() Description {
	d := Description{Kind: KindInteger, Constraints: map[string]any{}}
	if f.Min != nil {
		d.Constraints["minimum"] = *f.Min
	}
	if f.Max != nil {
		d.Constraints["maximum"] = *f.Max
	}
	if len(d.Constraints) == 0 {
		d.Constraints = nil
	}
	return d
}

// FloatField holds a floating-point input, optionally bounded.
type FloatField struct {
	value *float64
	Min   *float64
	Max   *float64
}

// NewFloatField builds a float field seeded from slot metadata.
func NewFloatField(m Metadata) *FloatField {
	f := &FloatField{}
	if min, ok := asFloat(m.Raw["minimum"]); ok {
		f.Min = &min
	}
	if max, ok := asFloat(m.Raw["maximum"]); ok {
		f.Max = &max
	}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *FloatField) Kind() Kind { return KindFloat }

// HasValue implements Field.
func (f *FloatField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *FloatField) Clear() { f.value = nil }

// Value returns the current value; the second result reports presence.
func (f *FloatField) Value() (float64, bool) {
	if f.value == nil {
		return 0, false
	}
	return *f.value, true
}

// SetValue assigns a value directly.
func (f *FloatField) SetValue(v float64) { f.value = &v }

// Set implements Field.
func (f *FloatField) Set(v any) error {
	n, ok := asFloat(v)
	if !ok {
		return fmt.Errorf("%w: want number, got %T(%v)", ErrTypeMismatch, v, v)
	}
	f.SetValue(n)
	return nil
}

// Validate implements Field.
func (f *FloatField) Validate() error {
	if f.value == nil {
		return nil
	}
	if f.Min != nil && *f.value < *f.Min {
		return validationErrorf("value %g below minimum %g", *f.value, *f.Min)
	}
	if f.Max != nil && *f.value > *f.Max {
		return validationErrorf("value %g above maximum %g", *f.value, *f.Max)
	}
	return nil
}

// ToAPI implements Field.
func (f *FloatField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return *f.value, nil
}

// FromAPI implements Field.
func (f *FloatField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *FloatField) Describe() Description {
	d := Description{Kind: KindFloat, Constraints: map[string]any{}}
	if f.Min != nil {
		d.Constraints["minimum"] = *f.Min
	}
	if f.Max != nil {
		d.Constraints["maximum"] = *f.Max
	}
	if len(d.Constraints) == 0 {
		d.Constraints = nil
	}
	return d
}

// BooleanField holds an on/off input.
type BooleanField struct {
	value *bool
}

// NewBooleanField builds a boolean field seeded from slot metadata.
func NewBooleanField(m Metadata) *BooleanField {
	f := &BooleanField{}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *BooleanField) Kind() Kind { return KindBoolean }

// HasValue implements Field.
func (f *BooleanField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *BooleanField) Clear() { f.value = nil }

// Value returns the current value; the second result reports presence.
func (f *BooleanField) Value() (bool, bool) {
	if f.value == nil {
		return false, false
	}
	return *f.value, true
}

// SetValue assigns a value directly.
func (f *BooleanField) SetValue(v bool) { f.value = &v }

// Set implements Field.
func (f *BooleanField) Set(v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("%w: want boolean, got %T(%v)", ErrTypeMismatch, v, v)
	}
	f.SetValue(b)
	return nil
}

// Validate implements Field.
func (f *BooleanField) Validate() error { return nil }

// ToAPI implements Field.
func (f *BooleanField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return *f.value, nil
}

// FromAPI implements Field.
func (f *BooleanField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *BooleanField) Describe() Description {
	return Description{Kind: KindBoolean}
}

// StringField holds a free-form text input. It also serves as the
// unresolved fallback produced by non-strict classification.
type StringField struct {
	value *string
	// MaxLen bounds the accepted length when positive.
	MaxLen int
	// Pattern constrains the value when non-nil.
	Pattern    *regexp.Regexp
	unresolved bool
}

// NewStringField builds a string field seeded from slot metadata.
func NewStringField(m Metadata) *StringField {
	f := &StringField{}
	if max, ok := asFloat(m.Raw["maxLength"]); ok {
		f.MaxLen = int(max)
	}
	if pattern, ok := m.Raw["pattern"].(string); ok && pattern != "" {
		if re, err := regexp.Compile(pattern); err == nil {
			f.Pattern = re
		}
	}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *StringField) Kind() Kind { return KindString }

// HasValue implements Field.
func (f *StringField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *StringField) Clear() { f.value = nil }

// Value returns the current value; the second result reports presence.
func (f *StringField) Value() (string, bool) {
	if f.value == nil {
		return "", false
	}
	return *f.value, true
}

// SetValue assigns a value directly.
func (f *StringField) SetValue(v string) { f.value = &v }

// Set implements Field.
func (f *StringField) Set(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: want string, got %T(%v)", ErrTypeMismatch, v, v)
	}
	f.SetValue(s)
	return nil
}

// Validate implements Field.
func (f *StringField) Validate() error {
	if f.value == nil {
		return nil
	}
	if f.MaxLen > 0 && len(*f.value) > f.MaxLen {
		return validationErrorf("string longer than %d characters", f.MaxLen)
	}
	if f.Pattern != nil && !f.Pattern.MatchString(*f.value) {
		return validationErrorf("string does not match pattern %s", f.Pattern)
	}
	return nil
}

// ToAPI implements Field.
func (f *StringField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return *f.value, nil
}

// FromAPI implements Field.
func (f *StringField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *StringField) Describe() Description {
	d := Description{Kind: KindString, Unresolved: f.unresolved}
	if f.MaxLen > 0 || f.Pattern != nil {
		d.Constraints = map[string]any{}
		if f.MaxLen > 0 {
			d.Constraints["maxLength"] = f.MaxLen
		}
		if f.Pattern != nil {
			d.Constraints["pattern"] = f.Pattern.String()
		}
	}
	return d
}

// EnumField holds one value from a closed set of strings.
type EnumField struct {
	value *string
	// Options is the closed set of accepted values.
	Options []string
}

// NewEnumField builds an enum field seeded from slot metadata.
func NewEnumField(m Metadata) *EnumField {
	f := &EnumField{Options: m.Options()}
	_ = f.FromAPI(m.Value())
	return f
}

// Kind implements Field.
func (f *EnumField) Kind() Kind { return KindEnum }

// HasValue implements Field.
func (f *EnumField) HasValue() bool { return f.value != nil }

// Clear implements Field.
func (f *EnumField) Clear() { f.value = nil }

// Value returns the current value; the second result reports presence.
func (f *EnumField) Value() (string, bool) {
	if f.value == nil {
		return "", false
	}
	return *f.value, true
}

// SetValue assigns a value directly.
func (f *EnumField) SetValue(v string) { f.value = &v }

// Set implements Field.
func (f *EnumField) Set(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: want string, got %T(%v)", ErrTypeMismatch, v, v)
	}
	f.SetValue(s)
	return nil
}

// Validate implements Field.
func (f *EnumField) Validate() error {
	if f.value == nil || len(f.Options) == 0 {
		return nil
	}
	for _, o := range f.Options {
		if o == *f.value {
			return nil
		}
	}
	return validationErrorf("value %q not in allowed set %v", *f.value, f.Options)
}

// ToAPI implements Field.
func (f *EnumField) ToAPI() (any, error) {
	if f.value == nil {
		return nil, ErrNoValue
	}
	return *f.value, nil
}

// FromAPI implements Field.
func (f *EnumField) FromAPI(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	return f.Set(v)
}

// Describe implements Field.
func (f *EnumField) Describe() Description {
	d := Description{Kind: KindEnum}
	if len(f.Options) > 0 {
		d.Constraints = map[string]any{"options": f.Options}
	}
	return d
}
