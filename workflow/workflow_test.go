//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// sdxlDocument is a trimmed text-to-image export: two prompts, noise
// dimensions, step count, and an output board exposed through the
// form. The save_debug node produces assets but its board is not form
// exposed, which makes it a debug node.
const sdxlDocument = `{
  "name": "sdxl-text-to-image",
  "meta": {"version": "3.0.0", "category": "user"},
  "nodes": {
    "pos_prompt": {
      "type": "sdxl_compel_prompt",
      "label": "Positive Prompt",
      "required": ["prompt"],
      "inputs": {
        "prompt": {"name": "prompt", "value": ""},
        "style": {"name": "style", "value": ""}
      }
    },
    "neg_prompt": {
      "type": "sdxl_compel_prompt",
      "label": "Negative Prompt",
      "inputs": {
        "prompt": {"name": "prompt", "value": ""}
      }
    },
    "noise": {
      "type": "noise",
      "label": "Noise",
      "required": ["width", "height"],
      "inputs": {
        "width": {"name": "width", "value": 1024, "minimum": 64, "maximum": 2048},
        "height": {"name": "height", "value": 1024, "minimum": 64, "maximum": 2048},
        "seed": {"name": "seed", "value": 0}
      }
    },
    "denoise": {
      "type": "denoise_latents",
      "label": "Denoise",
      "required": ["steps"],
      "inputs": {
        "steps": {"name": "steps", "value": 30, "minimum": 1},
        "cfg_scale": {"name": "cfg_scale", "value": 7.5},
        "scheduler": {"name": "scheduler", "value": "euler"},
        "latents": {"name": "latents"}
      }
    },
    "l2i": {
      "type": "l2i",
      "label": "Decode",
      "inputs": {
        "board": {"name": "board", "value": {"board_id": "none"}},
        "latents": {"name": "latents"}
      }
    },
    "save_debug": {
      "type": "save_image",
      "label": "Debug Save",
      "inputs": {
        "board": {"name": "board", "value": {"board_id": "none"}},
        "image": {"name": "image"}
      }
    }
  },
  "edges": [
    {"source": "noise", "sourceHandle": "noise", "target": "denoise", "targetHandle": "noise"},
    {"source": "denoise", "sourceHandle": "latents", "target": "l2i", "targetHandle": "latents"}
  ],
  "form": {
    "elements": {
      "root": {"id": "root", "type": "container", "data": {"children": ["grp_prompts", "nf_width", "nf_height", "nf_steps", "nf_board"]}},
      "grp_prompts": {"id": "grp_prompts", "type": "container", "data": {"children": ["nf_pos", "nf_neg"]}},
      "nf_pos": {"id": "nf_pos", "type": "node-field", "data": {"fieldIdentifier": {"nodeId": "pos_prompt", "fieldName": "prompt"}, "label": "Positive Prompt"}},
      "nf_neg": {"id": "nf_neg", "type": "node-field", "data": {"fieldIdentifier": {"nodeId": "neg_prompt", "fieldName": "prompt"}, "label": "Negative Prompt"}},
      "nf_width": {"id": "nf_width", "type": "node-field", "data": {"fieldIdentifier": {"nodeId": "noise", "fieldName": "width"}}},
      "nf_height": {"id": "nf_height", "type": "node-field", "data": {"fieldIdentifier": {"nodeId": "noise", "fieldName": "height"}}},
      "nf_steps": {"id": "nf_steps", "type": "node-field", "data": {"fieldIdentifier": {"nodeId": "denoise", "fieldName": "steps"}}},
      "nf_board": {"id": "nf_board", "type": "node-field", "data": {"fieldIdentifier": {"nodeId": "l2i", "fieldName": "board"}}}
    }
  },
  "exposedFields": [{"nodeId": "denoise", "fieldName": "cfg_scale"}]
}`

func loadTestHandle(t *testing.T, opts ...Option) *Handle {
	t.Helper()
	def, err := Parse([]byte(sdxlDocument))
	require.NoError(t, err)
	h, err := New(def, opts...)
	require.NoError(t, err)
	return h
}

// requireSameKeySets walks both documents in lockstep and fails on the
// first structural difference.
func requireSameKeySets(t *testing.T, want, got []byte) {
	t.Helper()
	requireSameKeySetsAt(t, gjson.ParseBytes(want), gjson.ParseBytes(got), "$")
}

func requireSameKeySetsAt(t *testing.T, want, got gjson.Result, path string) {
	t.Helper()
	require.Equal(t, want.IsObject(), got.IsObject(), "object-ness differs at %s", path)
	require.Equal(t, want.IsArray(), got.IsArray(), "array-ness differs at %s", path)
	switch {
	case want.IsObject():
		wantMap := want.Map()
		gotMap := got.Map()
		require.Len(t, gotMap, len(wantMap), "key count differs at %s", path)
		for key, wantVal := range wantMap {
			gotVal, ok := gotMap[key]
			require.True(t, ok, "key %q missing at %s", key, path)
			requireSameKeySetsAt(t, wantVal, gotVal, path+"."+key)
		}
	case want.IsArray():
		wantArr := want.Array()
		gotArr := got.Array()
		require.Len(t, gotArr, len(wantArr), "array length differs at %s", path)
		for i := range wantArr {
			requireSameKeySetsAt(t, wantArr[i], gotArr[i], path)
		}
	}
}
