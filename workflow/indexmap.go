//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/CodeGandee/invokeai-go-client/field"
)

// IndexMapEntry is one row of the serialized input index snapshot used
// for drift detection across document revisions.
type IndexMapEntry struct {
	Index     int        `json:"index"`
	NodeID    string     `json:"node_id"`
	FieldName string     `json:"field_name"`
	TypeTag   field.Kind `json:"type_tag"`
}

// ExportIndexMap snapshots the current input indices, stable-sorted by
// index.
func (h *Handle) ExportIndexMap() []IndexMapEntry {
	entries := make([]IndexMapEntry, 0, len(h.inputs))
	for _, input := range h.inputs {
		entries = append(entries, IndexMapEntry{
			Index:     input.Index,
			NodeID:    input.NodeID,
			FieldName: input.FieldName,
			TypeTag:   input.Field.Kind(),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries
}

// WriteIndexMap serializes the index map as a JSON array.
func (h *Handle) WriteIndexMap(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(h.ExportIndexMap())
}

// ReadIndexMap parses a serialized index map.
func ReadIndexMap(r io.Reader) ([]IndexMapEntry, error) {
	var entries []IndexMapEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("read index map: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}

// DriftStatus classifies one prior index map entry against the current
// document revision.
type DriftStatus string

// Drift classifications.
const (
	DriftUnchanged DriftStatus = "unchanged"
	DriftMoved     DriftStatus = "moved"
	DriftMissing   DriftStatus = "missing"
	DriftNew       DriftStatus = "new"
)

// DriftEntry is the verdict for one input across revisions. For moved
// entries both indices are meaningful; for missing entries NewIndex is
// -1; for new entries Index is -1.
type DriftEntry struct {
	Status    DriftStatus `json:"status"`
	Index     int         `json:"index"`
	NewIndex  int         `json:"new_index"`
	NodeID    string      `json:"node_id"`
	FieldName string      `json:"field_name"`
	TypeTag   field.Kind  `json:"type_tag"`
}

// DriftReport is the outcome of verifying a prior index map against
// the current document.
type DriftReport struct {
	Entries []DriftEntry
}

// Clean reports whether every prior entry is unchanged and nothing new
// appeared.
func (r *DriftReport) Clean() bool {
	for _, entry := range r.Entries {
		if entry.Status != DriftUnchanged {
			return false
		}
	}
	return true
}

// ByStatus returns the entries with the given status.
func (r *DriftReport) ByStatus(status DriftStatus) []DriftEntry {
	var matched []DriftEntry
	for _, entry := range r.Entries {
		if entry.Status == status {
			matched = append(matched, entry)
		}
	}
	return matched
}

// VerifyAgainst classifies each prior entry as unchanged, moved, or
// missing by matching (node_id, field_name, type_tag) against the
// current inputs, and reports current inputs absent from the prior map
// as new. An entry whose identity still matches is moved, never
// missing plus new.
func (h *Handle) VerifyAgainst(prior []IndexMapEntry) *DriftReport {
	type identity struct {
		nodeID    string
		fieldName string
		typeTag   field.Kind
	}

	current := make(map[identity][]int)
	for _, input := range h.inputs {
		key := identity{input.NodeID, input.FieldName, input.Field.Kind()}
		current[key] = append(current[key], input.Index)
	}

	report := &DriftReport{}
	claimed := make(map[int]bool)
	for _, entry := range prior {
		key := identity{entry.NodeID, entry.FieldName, entry.TypeTag}
		verdict := DriftEntry{
			Status:    DriftMissing,
			Index:     entry.Index,
			NewIndex:  -1,
			NodeID:    entry.NodeID,
			FieldName: entry.FieldName,
			TypeTag:   entry.TypeTag,
		}
		// Prefer an exact index match so duplicated identities do not
		// shadow each other.
		match := -1
		for _, index := range current[key] {
			if index == entry.Index && !claimed[index] {
				match = index
				break
			}
		}
		if match < 0 {
			for _, index := range current[key] {
				if !claimed[index] {
					match = index
					break
				}
			}
		}
		if match >= 0 {
			claimed[match] = true
			verdict.NewIndex = match
			if match == entry.Index {
				verdict.Status = DriftUnchanged
			} else {
				verdict.Status = DriftMoved
			}
		}
		report.Entries = append(report.Entries, verdict)
	}

	for _, input := range h.inputs {
		if claimed[input.Index] {
			continue
		}
		report.Entries = append(report.Entries, DriftEntry{
			Status:    DriftNew,
			Index:     -1,
			NewIndex:  input.Index,
			NodeID:    input.NodeID,
			FieldName: input.FieldName,
			TypeTag:   input.Field.Kind(),
		})
	}
	return report
}
