//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/CodeGandee/invokeai-go-client/field"
	"github.com/CodeGandee/invokeai-go-client/log"
)

// EdgeEndpoint names one end of an execution graph edge.
type EdgeEndpoint struct {
	NodeID string `json:"node_id"`
	Field  string `json:"field"`
}

// GraphEdge connects one node output to another node input.
type GraphEdge struct {
	Source      EdgeEndpoint `json:"source"`
	Destination EdgeEndpoint `json:"destination"`
}

// Graph is the reduced execution graph the queue executes: the nodes
// keyed by id with their post-substitution literal inputs, plus the
// edge list. All form and GUI-only sections are stripped.
type Graph struct {
	ID    string                    `json:"id"`
	Nodes map[string]map[string]any `json:"nodes"`
	Edges []GraphEdge               `json:"edges"`
}

// Batch is the queue batch body.
type Batch struct {
	Workflow    json.RawMessage `json:"workflow"`
	Graph       *Graph          `json:"graph"`
	Runs        int             `json:"runs"`
	Data        []any           `json:"data"`
	Origin      string          `json:"origin,omitempty"`
	Destination string          `json:"destination,omitempty"`
}

// EnqueueRequest is the queue enqueue envelope.
type EnqueueRequest struct {
	Prepend bool  `json:"prepend"`
	Batch   Batch `json:"batch"`
}

// EnqueueResult reports what the server enqueued.
type EnqueueResult struct {
	BatchID    string
	ItemIDs    []int64
	SessionIDs []string
}

// Transport is the queue collaborator a handle submits through.
// Implementations must be safe for concurrent use by independent
// handles.
type Transport interface {
	EnqueueBatch(ctx context.Context, req *EnqueueRequest) (*EnqueueResult, error)
}

// SubmitOption configures a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	runs        int
	prepend     bool
	origin      string
	destination string
}

// WithRuns repeats the batch the given number of times. Defaults to 1.
func WithRuns(runs int) SubmitOption {
	return func(o *submitOptions) { o.runs = runs }
}

// WithPrepend enqueues the batch at the front of the queue.
func WithPrepend(prepend bool) SubmitOption {
	return func(o *submitOptions) { o.prepend = prepend }
}

// WithOrigin tags the batch with a caller-chosen origin identifier.
func WithOrigin(origin string) SubmitOption {
	return func(o *submitOptions) { o.origin = origin }
}

// WithDestination tags the batch with a caller-chosen destination.
func WithDestination(destination string) SubmitOption {
	return func(o *submitOptions) { o.destination = destination }
}

// Submission correlates an enqueued batch with the handle state it was
// built from. The tracker consumes it to follow execution.
type Submission struct {
	BatchID    string
	ItemIDs    []int64
	SessionIDs []string
	// Workflow is the substituted document copy that was submitted.
	Workflow []byte
	// Outputs are the output nodes classified at submit time.
	Outputs []OutputNode
	// Boards maps each output node id to its configured board id, when
	// the destination field held a value at submit time.
	Boards map[string]string
}

// BuildSubmission validates all inputs, substitutes their serialized
// values into a copy of the document, and assembles the enqueue
// envelope. The original snapshot is never touched.
func (h *Handle) BuildSubmission(opts ...SubmitOption) (*EnqueueRequest, error) {
	o := submitOptions{runs: 1}
	for _, opt := range opts {
		opt(&o)
	}

	if failures := h.ValidateAll(); len(failures) > 0 {
		return nil, fmt.Errorf("%w: %d invalid inputs: %v", ErrValidationFailed, len(failures), failures)
	}

	workflowCopy, err := h.substitute()
	if err != nil {
		return nil, err
	}
	graph, err := extractGraph(workflowCopy)
	if err != nil {
		return nil, err
	}
	return &EnqueueRequest{
		Prepend: o.prepend,
		Batch: Batch{
			Workflow:    workflowCopy,
			Graph:       graph,
			Runs:        o.runs,
			Data:        []any{},
			Origin:      o.origin,
			Destination: o.destination,
		},
	}, nil
}

// Submit builds the submission envelope and enqueues it through the
// transport. The returned Submission carries everything a tracker
// needs to follow execution and map outputs.
func (h *Handle) Submit(ctx context.Context, transport Transport, opts ...SubmitOption) (*Submission, error) {
	req, err := h.BuildSubmission(opts...)
	if err != nil {
		return nil, err
	}
	result, err := transport.EnqueueBatch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	outputs := h.OutputNodes()
	boards := make(map[string]string, len(outputs))
	for _, output := range outputs {
		if input, err := h.Input(output.DestinationIndex); err == nil {
			if board, ok := input.Field.(*field.BoardField); ok {
				if id, has := board.Value(); has {
					boards[output.NodeID] = id
				}
			}
		}
	}
	return &Submission{
		BatchID:    result.BatchID,
		ItemIDs:    result.ItemIDs,
		SessionIDs: result.SessionIDs,
		Workflow:   req.Batch.Workflow,
		Outputs:    outputs,
		Boards:     boards,
	}, nil
}

// substitute writes each held input value into a copy of the raw
// document at its precomputed path reference. Substitution merges by
// key: existing keys are updated, keys are never added or removed. A
// key-set equality guard verifies the invariant at every visited path.
func (h *Handle) substitute() ([]byte, error) {
	copied := h.def.Raw()
	for _, input := range h.inputs {
		if !input.Field.HasValue() {
			continue
		}
		wire, err := input.Field.ToAPI()
		if err != nil {
			return nil, fmt.Errorf("serialize input %d (%s.%s): %w",
				input.Index, input.NodeID, input.FieldName, err)
		}
		copied, err = mergeExisting(copied, input.PathRef, map[string]any{"value": wire})
		if err != nil {
			return nil, fmt.Errorf("substitute input %d at %s: %w", input.Index, input.PathRef, err)
		}
		if !keySetEqual(h.def.get(input.PathRef), gjson.GetBytes(copied, input.PathRef)) {
			return nil, fmt.Errorf("substitution changed the key set at %s", input.PathRef)
		}
	}
	return copied, nil
}

// mergeExisting merges the fragment into the object at path, updating
// existing keys only. Fragment keys absent from the target are skipped
// with a warning; they are never inserted.
func mergeExisting(raw []byte, path string, fragment map[string]any) ([]byte, error) {
	target := gjson.GetBytes(raw, path)
	if !target.Exists() || !target.IsObject() {
		return nil, fmt.Errorf("path does not address an object")
	}
	var err error
	for key, value := range fragment {
		keyPath := path + "." + escapeKey(key)
		existing := target.Get(escapeKey(key))
		if !existing.Exists() {
			log.Warnf("substitution: key %q absent at %s, not inserting", key, path)
			continue
		}
		if nested, ok := value.(map[string]any); ok && existing.IsObject() {
			raw, err = mergeExisting(raw, keyPath, nested)
			if err != nil {
				return nil, err
			}
			continue
		}
		raw, err = sjson.SetBytes(raw, keyPath, value)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// keySetEqual reports whether two JSON values expose identical key
// sets, recursively.
func keySetEqual(a, b gjson.Result) bool {
	if a.IsObject() != b.IsObject() {
		return false
	}
	if !a.IsObject() {
		return true
	}
	aKeys := a.Map()
	bKeys := b.Map()
	if len(aKeys) != len(bKeys) {
		return false
	}
	for key, aVal := range aKeys {
		bVal, ok := bKeys[key]
		if !ok {
			return false
		}
		if aVal.IsObject() && bVal.IsObject() && !keySetEqual(aVal, bVal) {
			return false
		}
	}
	return true
}

// extractGraph reduces a substituted workflow copy to the execution
// graph: per-node literal inputs plus the translated edge list.
func extractGraph(workflowCopy []byte) (*Graph, error) {
	graph := &Graph{
		ID:    "workflow-" + uuid.NewString(),
		Nodes: make(map[string]map[string]any),
	}

	nodes := gjson.GetBytes(workflowCopy, "nodes")
	nodes.ForEach(func(id, node gjson.Result) bool {
		graphNode := map[string]any{
			"id":   id.String(),
			"type": node.Get("type").String(),
		}
		for _, passthrough := range []string{"is_intermediate", "use_cache"} {
			if v := node.Get(passthrough); v.Exists() {
				graphNode[passthrough] = v.Value()
			}
		}
		node.Get("inputs").ForEach(func(name, slot gjson.Result) bool {
			// The literal stays in the graph even when an edge also
			// feeds this input; the server wants it for validation.
			if value := slot.Get("value"); value.Exists() {
				graphNode[name.String()] = value.Value()
			}
			return true
		})
		graph.Nodes[id.String()] = graphNode
		return true
	})

	edges := gjson.GetBytes(workflowCopy, "edges")
	for _, edge := range edges.Array() {
		converted, ok := convertEdge(edge)
		if !ok {
			log.Warnf("graph extraction: unrecognized edge shape %s, skipping", edge.Raw)
			continue
		}
		graph.Edges = append(graph.Edges, converted)
	}
	return graph, nil
}

// convertEdge accepts both the GUI edge shape (source/sourceHandle)
// and the already-reduced graph shape (source.node_id/field).
func convertEdge(edge gjson.Result) (GraphEdge, bool) {
	if source := edge.Get("source"); source.IsObject() {
		converted := GraphEdge{
			Source: EdgeEndpoint{
				NodeID: source.Get("node_id").String(),
				Field:  source.Get("field").String(),
			},
			Destination: EdgeEndpoint{
				NodeID: edge.Get("destination.node_id").String(),
				Field:  edge.Get("destination.field").String(),
			},
		}
		if converted.Source.NodeID != "" && converted.Destination.NodeID != "" {
			return converted, true
		}
		return GraphEdge{}, false
	}
	converted := GraphEdge{
		Source: EdgeEndpoint{
			NodeID: edge.Get("source").String(),
			Field:  edge.Get("sourceHandle").String(),
		},
		Destination: EdgeEndpoint{
			NodeID: edge.Get("target").String(),
			Field:  edge.Get("targetHandle").String(),
		},
	}
	if converted.Source.NodeID != "" && converted.Destination.NodeID != "" {
		return converted, true
	}
	return GraphEdge{}, false
}
