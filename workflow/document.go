//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

// Package workflow loads GUI-exported workflow documents, exposes
// their form-declared inputs as typed fields, and turns them into
// queue submissions without ever rewriting the document structure.
package workflow

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// Definition is an immutable snapshot of a workflow document. The raw
// bytes are preserved verbatim; every write happens on a per-submission
// copy.
type Definition struct {
	raw []byte
}

// Parse reads a workflow document from its JSON bytes. Documents
// missing the top-level nodes, edges, or form sections are rejected.
func Parse(data []byte) (*Definition, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedWorkflow)
	}
	raw := make([]byte, len(data))
	copy(raw, data)

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedWorkflow)
	}
	nodes := doc.Get("nodes")
	if !nodes.Exists() || !nodes.IsObject() {
		return nil, fmt.Errorf("%w: missing nodes section", ErrMalformedWorkflow)
	}
	edges := doc.Get("edges")
	if !edges.Exists() || !edges.IsArray() {
		return nil, fmt.Errorf("%w: missing edges section", ErrMalformedWorkflow)
	}
	form := doc.Get("form")
	if !form.Exists() || !form.IsObject() {
		return nil, fmt.Errorf("%w: missing form section", ErrMalformedWorkflow)
	}
	return &Definition{raw: raw}, nil
}

// Load reads a workflow document from a reader.
func Load(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workflow document: %w", err)
	}
	return Parse(data)
}

// LoadFile reads a workflow document from a file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow document: %w", err)
	}
	return Parse(data)
}

// Raw returns a copy of the pristine document bytes.
func (d *Definition) Raw() []byte {
	raw := make([]byte, len(d.raw))
	copy(raw, d.raw)
	return raw
}

// Name returns the document's declared name, if any.
func (d *Definition) Name() string {
	return gjson.GetBytes(d.raw, "name").String()
}

// Meta returns the document's metadata section decoded as a map, or
// nil when absent.
func (d *Definition) Meta() map[string]any {
	meta, _ := gjson.GetBytes(d.raw, "meta").Value().(map[string]any)
	return meta
}

// node returns the node object with the given id.
func (d *Definition) node(id string) gjson.Result {
	return gjson.GetBytes(d.raw, "nodes."+escapeKey(id))
}

// get resolves an arbitrary path in the snapshot.
func (d *Definition) get(path string) gjson.Result {
	return gjson.GetBytes(d.raw, path)
}

// escapeKey escapes a JSON object key for use inside a gjson/sjson
// path expression.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '\\', '|', '#', '@', '*', '?', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// slotPath returns the path of the value-bearing slot for a
// (node, field) pair.
func slotPath(nodeID, fieldName string) string {
	return "nodes." + escapeKey(nodeID) + ".inputs." + escapeKey(fieldName)
}
