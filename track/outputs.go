//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package track

import (
	"sort"

	"github.com/CodeGandee/invokeai-go-client/workflow"
)

// AssetRef points at one asset a session produced. ImageName is set
// for image outputs; other asset families reuse the same shape with
// their own Type tag.
type AssetRef struct {
	NodeID    string `json:"node_id"`
	Type      string `json:"type"`
	ImageName string `json:"image_name,omitempty"`
	BoardID   string `json:"board_id,omitempty"`
}

// MapOutputs maps a settled session's results onto the submission's
// output nodes, keyed by original node id. Resolution precedence:
//  1. direct match of the output node id in results;
//  2. lookup through prepared_source_mapping when the server renamed
//     nodes during preparation;
//  3. best-effort scan for result entries whose type matches the
//     output node's declared output type and whose board matches the
//     board configured at submit time. Candidates are visited in
//     stable node-id order and the first match wins.
//
// Asset-producing nodes without a form-exposed destination are debug
// nodes and never appear in the returned map; see DebugResults.
func MapOutputs(submission *workflow.Submission, state *SessionState) map[string][]AssetRef {
	outputs := make(map[string][]AssetRef)
	if state == nil || len(state.Results) == 0 {
		return outputs
	}

	claimed := make(map[string]bool)
	for _, output := range submission.Outputs {
		refs := resolveOutput(submission, state, output, claimed)
		if len(refs) > 0 {
			outputs[output.NodeID] = refs
		}
	}
	return outputs
}

func resolveOutput(submission *workflow.Submission, state *SessionState, output workflow.OutputNode, claimed map[string]bool) []AssetRef {
	// 1. Direct match.
	if entry, ok := state.Results[output.NodeID]; ok {
		claimed[output.NodeID] = true
		return assetRefs(output.NodeID, entry)
	}

	// 2. Prepared-to-source mapping.
	var refs []AssetRef
	prepared := make([]string, 0, len(state.PreparedSourceMapping))
	for preparedID, sourceID := range state.PreparedSourceMapping {
		if sourceID == output.NodeID {
			prepared = append(prepared, preparedID)
		}
	}
	sort.Strings(prepared)
	for _, preparedID := range prepared {
		if entry, ok := state.Results[preparedID]; ok {
			claimed[preparedID] = true
			refs = append(refs, assetRefs(output.NodeID, entry)...)
		}
	}
	if len(refs) > 0 {
		return refs
	}

	// 3. Best-effort: match by output type and configured board.
	board := submission.Boards[output.NodeID]
	resultIDs := make([]string, 0, len(state.Results))
	for id := range state.Results {
		resultIDs = append(resultIDs, id)
	}
	sort.Strings(resultIDs)
	for _, id := range resultIDs {
		if claimed[id] {
			continue
		}
		entry := state.Results[id]
		if resultType, _ := entry["type"].(string); resultType != output.OutputType {
			continue
		}
		candidates := assetRefs(output.NodeID, entry)
		if board != "" {
			matched := candidates[:0]
			for _, ref := range candidates {
				if ref.BoardID == board {
					matched = append(matched, ref)
				}
			}
			candidates = matched
		}
		if len(candidates) > 0 {
			claimed[id] = true
			return candidates
		}
	}
	return nil
}

// assetRefs extracts the asset references from one result entry.
func assetRefs(nodeID string, entry map[string]any) []AssetRef {
	ref := AssetRef{NodeID: nodeID}
	ref.Type, _ = entry["type"].(string)
	if image, ok := entry["image"].(map[string]any); ok {
		ref.ImageName, _ = image["image_name"].(string)
	}
	if ref.ImageName == "" {
		ref.ImageName, _ = entry["image_name"].(string)
	}
	if board, ok := entry["board"].(map[string]any); ok {
		ref.BoardID, _ = board["board_id"].(string)
	}
	if ref.BoardID == "" {
		ref.BoardID, _ = entry["board_id"].(string)
	}
	if ref.ImageName == "" {
		return nil
	}
	return []AssetRef{ref}
}

// Outputs aggregates MapOutputs across every settled session of the
// batch.
func (t *Tracker) Outputs() map[string][]AssetRef {
	t.mu.Lock()
	states := make([]*SessionState, 0, len(t.states))
	for _, state := range t.states {
		states = append(states, state)
	}
	t.mu.Unlock()

	outputs := make(map[string][]AssetRef)
	for _, state := range states {
		for nodeID, refs := range MapOutputs(t.submission, state) {
			outputs[nodeID] = append(outputs[nodeID], refs...)
		}
	}
	return outputs
}

// DebugResults returns the asset-bearing results that did not belong
// to any output node: assets produced by debug nodes. Keyed by the
// original node id when the prepared source mapping knows it, else by
// the prepared id.
func (t *Tracker) DebugResults() map[string][]AssetRef {
	t.mu.Lock()
	states := make([]*SessionState, 0, len(t.states))
	for _, state := range t.states {
		states = append(states, state)
	}
	t.mu.Unlock()

	outputNodes := make(map[string]bool, len(t.submission.Outputs))
	for _, output := range t.submission.Outputs {
		outputNodes[output.NodeID] = true
	}

	debug := make(map[string][]AssetRef)
	for _, state := range states {
		for preparedID, entry := range state.Results {
			sourceID := preparedID
			if mapped, ok := state.PreparedSourceMapping[preparedID]; ok {
				sourceID = mapped
			}
			if outputNodes[sourceID] {
				continue
			}
			if refs := assetRefs(sourceID, entry); len(refs) > 0 {
				debug[sourceID] = append(debug[sourceID], refs...)
			}
		}
	}
	return debug
}
