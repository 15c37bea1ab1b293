//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeGandee/invokeai-go-client/field"
)

func TestGetInputValue(t *testing.T) {
	h := loadTestHandle(t)

	f, err := h.GetInputValue(2)
	require.NoError(t, err)
	width, ok := f.(*field.IntegerField)
	require.True(t, ok)

	v, has := width.Value()
	require.True(t, has)
	assert.Equal(t, int64(1024), v)

	_, err = h.GetInputValue(99)
	require.ErrorIs(t, err, ErrUnknownInputIndex)
	_, err = h.GetInputValue(-1)
	require.ErrorIs(t, err, ErrUnknownInputIndex)
}

func TestFieldTypeIsFixedForHandleLifetime(t *testing.T) {
	h := loadTestHandle(t)

	before, err := h.GetInputValue(2)
	require.NoError(t, err)
	require.NoError(t, h.SetInputValue(2, 512))
	require.NoError(t, h.SetInputValue(2, 768))

	after, err := h.GetInputValue(2)
	require.NoError(t, err)
	assert.Same(t, before, after, "the field object never changes identity")
	assert.Equal(t, field.KindInteger, after.Kind())
}

func TestSetInputValue(t *testing.T) {
	h := loadTestHandle(t)

	require.NoError(t, h.SetInputValue(0, "a red cube"))
	f, _ := h.GetInputValue(0)
	v, _ := f.(*field.StringField).Value()
	assert.Equal(t, "a red cube", v)

	require.NoError(t, h.SetInputValue(2, 512))
	require.NoError(t, h.SetInputValue(5, "none"))

	err := h.SetInputValue(2, "not a number")
	require.ErrorIs(t, err, field.ErrTypeMismatch)

	err = h.SetInputValue(42, 1)
	require.ErrorIs(t, err, ErrUnknownInputIndex)
}

func TestSetInputValueWithFieldObject(t *testing.T) {
	h := loadTestHandle(t)

	replacement := &field.IntegerField{}
	replacement.SetValue(640)
	require.NoError(t, h.SetInputValue(2, replacement))

	current, _ := h.GetInputValue(2)
	v, _ := current.(*field.IntegerField).Value()
	assert.Equal(t, int64(640), v)

	wrongKind := &field.BooleanField{}
	wrongKind.SetValue(true)
	require.ErrorIs(t, h.SetInputValue(2, wrongKind), field.ErrTypeMismatch)
}

func TestSetInputValueValidatesAfterAssignment(t *testing.T) {
	h := loadTestHandle(t)

	// 32 is below the noise node's declared minimum of 64.
	err := h.SetInputValue(2, 32)
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateAllFlagsMissingRequired(t *testing.T) {
	h := loadTestHandle(t)

	f, err := h.GetInputValue(4)
	require.NoError(t, err)
	f.Clear()

	failures := h.ValidateAll()
	require.Contains(t, failures, 4)
	assert.NotEmpty(t, failures[4])

	result, err := h.ValidateInput(4)
	require.NoError(t, err)
	assert.False(t, result.OK())
}

func TestValidateAllPassesOnLoadedDocument(t *testing.T) {
	h := loadTestHandle(t)
	assert.Empty(t, h.ValidateAll())
}

func TestOutputNodeClassification(t *testing.T) {
	h := loadTestHandle(t)

	outputs := h.OutputNodes()
	require.Len(t, outputs, 1, "save_debug has no form-exposed board and must be excluded")
	assert.Equal(t, "l2i", outputs[0].NodeID)
	assert.Equal(t, "l2i", outputs[0].NodeType)
	assert.Equal(t, "image_output", outputs[0].OutputType)
	assert.Equal(t, 5, outputs[0].DestinationIndex)
}

func TestRegisterOutputCapability(t *testing.T) {
	doc := `{
	  "name": "custom-save",
	  "nodes": {
	    "sink": {"type": "my_custom_save", "inputs": {"board": {"name": "board", "value": {"board_id": "none"}}}}
	  },
	  "edges": [],
	  "form": {
	    "elements": {
	      "root": {"id": "root", "type": "container", "data": {"children": ["nf"]}},
	      "nf": {"id": "nf", "type": "node-field", "data": {"fieldIdentifier": {"nodeId": "sink", "fieldName": "board"}}}
	    }
	  }
	}`
	def, err := Parse([]byte(doc))
	require.NoError(t, err)
	h, err := New(def)
	require.NoError(t, err)
	require.Empty(t, h.OutputNodes(), "unknown node type is not asset-producing")

	RegisterOutputCapability("my_custom_save", OutputCapability{
		DestinationFields: []string{"board"},
		OutputType:        "image_output",
	})
	outputs := h.OutputNodes()
	require.Len(t, outputs, 1)
	assert.Equal(t, "sink", outputs[0].NodeID)
}
